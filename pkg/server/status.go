package server

import (
	"time"
)

// ClientStatus describes one connected client.
type ClientStatus struct {
	Num             int    `json:"num"`
	Name            string `json:"name"`
	State           string `json:"state"`
	Address         string `json:"address"`
	Ping            int    `json:"ping"`
	Rate            int    `json:"rate"`
	PendingCommands int    `json:"pending_commands"`
	Dropped         uint64 `json:"dropped_packets"`
	PacketsSent     uint64 `json:"packets_sent"`
	PacketsReceived uint64 `json:"packets_received"`
	Recording       bool   `json:"recording,omitempty"`
}

// StatusSnapshot is a point-in-time view of the server, published at the
// end of every frame.
type StatusSnapshot struct {
	Hostname    string         `json:"hostname"`
	ServerID    int32          `json:"server_id"`
	Time        int32          `json:"time"`
	Frame       int64          `json:"frame"`
	MaxClients  int            `json:"max_clients"`
	Clients     []ClientStatus `json:"clients"`
	CollectedAt time.Time      `json:"collected_at"`
}

// Status returns the snapshot published by the last frame. It is safe to
// call from any goroutine.
func (s *Server) Status() *StatusSnapshot {
	return s.status.Load()
}

func (s *Server) publishStatus() {
	st := &StatusSnapshot{
		Hostname:    s.cfg.Hostname,
		ServerID:    s.serverID,
		Time:        s.time,
		Frame:       s.frame,
		MaxClients:  s.cfg.MaxClients,
		Clients:     make([]ClientStatus, 0, s.cfg.MaxClients),
		CollectedAt: s.clock(),
	}
	for _, c := range s.clients {
		if c.State < StateConnected {
			continue
		}
		stats := c.Channel.Stats()
		st.Clients = append(st.Clients, ClientStatus{
			Num:             c.Num,
			Name:            c.Name,
			State:           c.State.String(),
			Address:         c.Address().String(),
			Ping:            c.Ping,
			Rate:            c.Rate,
			PendingCommands: c.commands.Pending(),
			Dropped:         stats.Dropped,
			PacketsSent:     stats.PacketsSent,
			PacketsReceived: stats.PacketsReceived,
			Recording:       c.recording != nil,
		})
	}
	s.status.Store(st)
}
