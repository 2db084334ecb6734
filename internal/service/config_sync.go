package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ConfigSync re-applies the config file whenever it changes on disk.
type ConfigSync struct {
	log   *zap.Logger
	relay *RelayService

	path     string
	debounce time.Duration
}

func NewConfigSync(log *zap.Logger, relay *RelayService, path string, debounce time.Duration) *ConfigSync {
	if debounce <= 0 {
		debounce = 750 * time.Millisecond
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &ConfigSync{
		log:      log.Named("config_sync"),
		relay:    relay,
		path:     path,
		debounce: debounce,
	}
}

// applyOnce loads the file and reconciles the running flows with it.
func (s *ConfigSync) applyOnce() error {
	g, err := s.relay.ReloadFile(s.path)
	if err != nil {
		return err
	}
	s.log.Info("config applied",
		zap.Int("flows", int(g.FlowCount)),
		zap.Int("grid", int(g.GridCount)),
		zap.String("path", s.path),
	)
	return nil
}

// Run watches the file's directory until ctx is done. Editors replace
// files in bursts of events; a single timer debounces them.
func (s *ConfigSync) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher init: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	t := time.NewTimer(s.debounce)
	t.Stop()
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != s.path {
				continue
			}
			// Remove means the file is gone; wait for it to reappear.
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				t.Reset(s.debounce)
			}
		case <-t.C:
			if err := s.applyOnce(); err != nil {
				s.log.Warn("apply failed", zap.Error(err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watch error", zap.Error(err))
		}
	}
}
