package server

import (
	"time"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
)

// Metrics receives server counters. telemetry.Prometheus implements it.
type Metrics interface {
	netchan.Metrics

	SnapshotSent(bytes, entities int, delta bool)
	SnapshotRateDelayed()
	EntitiesTruncated(n int)
	MessageOverflow()
	ReliableCommandQueued()
	ClientConnected()
	ClientDropped(reason string)
	FrameDuration(d time.Duration)
}

// NopMetrics discards everything.
type NopMetrics struct {
	netchan.NopMetrics
}

func (NopMetrics) SnapshotSent(int, int, bool) {}
func (NopMetrics) SnapshotRateDelayed()        {}
func (NopMetrics) EntitiesTruncated(int)       {}
func (NopMetrics) MessageOverflow()            {}
func (NopMetrics) ReliableCommandQueued()      {}
func (NopMetrics) ClientConnected()            {}
func (NopMetrics) ClientDropped(string)        {}
func (NopMetrics) FrameDuration(time.Duration) {}
