package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/TheDushan/OpenWolf-Engine-sub001/internal/config"
	"github.com/TheDushan/OpenWolf-Engine-sub001/internal/errors"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/demo"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/server"
)

// archiveTimeout bounds the upload of one demo.
const archiveTimeout = 2 * time.Minute

// archiver records the configured client slot and hands every finished
// demo to the configured stores.
type archiver struct {
	stores []demo.Store
	logger *slog.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

// newArchiver returns nil when no store is configured.
func newArchiver(cfg *config.Config, logger *slog.Logger) (*archiver, error) {
	a := &archiver{logger: logger.With("component", "archive"), now: time.Now}
	if cfg.Demo.Dir != "" {
		disk, err := demo.NewDiskStore(cfg.Demo.Dir, cfg.Demo.MaxSize)
		if err != nil {
			return nil, errors.New("W302").Wrap(err)
		}
		if age := cfg.DemoMaxAge(); age > 0 {
			if err := disk.Cleanup(age); err != nil {
				a.logger.Warn("demo cleanup failed", "error", err)
			}
		}
		a.stores = append(a.stores, disk)
	}
	if s3cfg := cfg.Demo.S3; s3cfg.Enabled() {
		client := demo.NewS3Client(s3cfg)
		a.stores = append(a.stores, demo.NewS3Store(client, s3cfg.Bucket, s3cfg.Prefix, cfg.Demo.MaxSize))
	}
	if len(a.stores) == 0 {
		return nil, nil
	}
	return a, nil
}

// maybeStart begins recording slot num once its client has a gamestate.
func (a *archiver) maybeStart(srv *server.Server, num int) {
	c := srv.Client(num)
	if c == nil || c.State < server.StatePrimed || c.Recording() {
		return
	}
	if err := srv.StartRecording(c, new(bytes.Buffer)); err != nil {
		a.logger.Warn("cannot record", "client", num, "error", err)
	}
}

// done is the server's RecordingDone callback.
func (a *archiver) done(clientNum int, w io.Writer, frames int) {
	buf, ok := w.(*bytes.Buffer)
	if !ok || frames == 0 {
		return
	}
	name := fmt.Sprintf("slot%d-%s.dm", clientNum, a.now().UTC().Format("20060102-150405"))
	data := buf.Bytes()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		for _, store := range a.stores {
			where, err := store.Save(ctx, name, bytes.NewReader(data))
			if err != nil {
				a.logger.Error("demo not archived", "error", errors.New("W302").Wrap(err), "name", name)
				continue
			}
			a.logger.Info("demo archived", "name", name, "frames", frames, "bytes", len(data), "to", where)
		}
	}()
}

// wait blocks until every pending upload has finished.
func (a *archiver) wait() {
	a.wg.Wait()
}
