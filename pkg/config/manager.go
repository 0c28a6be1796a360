package config

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Manager holds a hot-reloadable *Config behind an atomic pointer, so a
// SIGHUP reloads every one of the four configuration documents without
// restarting the process or interrupting in-flight requests.
type Manager struct {
	configDir string
	current   atomic.Pointer[Config]
	log       *slog.Logger
}

// NewManager constructs a Manager around an already-Initialize'd config.
func NewManager(configDir string, initial *Config) *Manager {
	m := &Manager{configDir: configDir, log: slog.With("component", "config-manager")}
	m.current.Store(initial)
	return m
}

// Current returns the active configuration snapshot.
func (m *Manager) Current() *Config { return m.current.Load() }

// WatchReload installs a SIGHUP handler that reloads configuration from
// disk until ctx is cancelled. A reload that fails validation is logged
// and discarded — the previous snapshot remains active.
func (m *Manager) WatchReload(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			m.reload(ctx)
		}
	}
}

func (m *Manager) reload(ctx context.Context) {
	m.log.Info("reloading configuration on SIGHUP")
	cfg, err := Initialize(ctx, m.configDir)
	if err != nil {
		m.log.Error("configuration reload failed, keeping previous snapshot", "error", err)
		return
	}
	m.current.Store(cfg)
	m.log.Info("configuration reload complete")
}
