package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/msy-int/msy-api/internal/config"
	"github.com/msy-int/msy-api/internal/hotreload"
)

// manifestReloader re-reads the service section and swaps the reporter's
// manifest. An invalid section leaves the current manifest in place and
// fails the config_reload check until a later reload succeeds.
type manifestReloader struct {
	server *Server
}

func (m *manifestReloader) Name() string {
	return "manifest"
}

func (m *manifestReloader) Reload(ctx context.Context) error {
	s := m.server

	svc, err := config.LoadServiceConfig(s.sources)
	if err != nil {
		s.reloadOK.Store(false)
		s.logger.Warn("Ignoring invalid service configuration", zap.Error(err))
		return err
	}

	if err := s.reporter.SetManifest(svc.Manifest()); err != nil {
		s.reloadOK.Store(false)
		return err
	}
	s.reloadOK.Store(true)
	s.metrics.SetInfo(svc.Name, svc.Version)

	s.logger.Info("Service manifest reloaded",
		zap.String("service", svc.Name),
		zap.String("version", svc.Version),
	)
	return nil
}

func (s *Server) startHotReload() error {
	if !s.config.HotReload.Enabled {
		return nil
	}

	configFile := s.sources.ConfigFile
	if configFile == "" {
		configFile = s.config.ConfigFile
		s.sources.ConfigFile = configFile
	}

	manager, err := hotreload.NewManager(s.logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize hot reload: %w", err)
	}
	if err := manager.AddWatch(configFile); err != nil {
		_ = manager.Shutdown(context.Background())
		return fmt.Errorf("failed to watch %s: %w", configFile, err)
	}
	if err := manager.RegisterReloadable(&manifestReloader{server: s}); err != nil {
		_ = manager.Shutdown(context.Background())
		return err
	}
	manager.SetDebounceTime(s.config.HotReload.Debounce)

	if err := manager.Start(); err != nil {
		_ = manager.Shutdown(context.Background())
		return fmt.Errorf("failed to start hot reload: %w", err)
	}

	s.hotReload = manager
	s.reloadOK.Store(true)
	s.reporter.RegisterCheck("config_reload", s.reloadOK.Load)
	return nil
}
