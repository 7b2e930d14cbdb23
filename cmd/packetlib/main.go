package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/oauth2"

	"github.com/Versifine/packetlib/internal/auth"
	"github.com/Versifine/packetlib/internal/config"
	"github.com/Versifine/packetlib/internal/event"
	"github.com/Versifine/packetlib/internal/hook"
	"github.com/Versifine/packetlib/internal/inject"
	"github.com/Versifine/packetlib/internal/logger"
	"github.com/Versifine/packetlib/internal/proxy"
	"github.com/Versifine/packetlib/internal/registry"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Config file not found, using defaults", "path", *configPath)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}); err != nil {
		logger.L().Warn("Logging to console only", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		logger.L().Error("Proxy failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	var tokens oauth2.TokenSource
	if cfg.Backend.Auth {
		var err error
		if tokens, err = auth.TokenSource(cfg.Backend.TokenCache); err != nil {
			return err
		}
	}

	bus := event.NewBus().WithLogger(logger.Component("event"))
	hooks := packetHooks(cfg.Hooks)
	hookOpts := hook.Options{Registry: registry.Default(), Bus: bus, Logger: logger.Component("hook")}

	var sessions *inject.ServerConnection[proxy.Handler]
	prx := proxy.New(proxy.Options{
		ListenAddr:  cfg.Listen.Addr(),
		BackendAddr: cfg.Backend.Addr(),
		TokenSource: tokens,
		OnOpen: func(h proxy.Handler, info proxy.SessionInfo) {
			sessions.Replace(h, hook.Wrap(h, hookOpts, hooks...))
			bus.PublishSync(event.EventSessionOpen, sessionEvent(info))
		},
		OnClose: func(h proxy.Handler, info proxy.SessionInfo) {
			sessions.Revert(h)
			bus.PublishSync(event.EventSessionClose, sessionEvent(info))
		},
	})

	sessions = inject.NewServerConnection[proxy.Handler](prx, inject.Options{
		ServerType:     cfg.Injection.ServerType,
		ConnectionType: cfg.Injection.ConnectionType,
		ListenerType:   cfg.Injection.ListenerType,
		Logger:         logger.Component("inject"),
	})
	if err := sessions.Inject(); err != nil {
		logger.L().Warn("Packet hooks disabled", "error", err)
	}
	defer sessions.CleanupAll()

	log := logger.Component("session")
	bus.Subscribe(event.EventSessionOpen, func(raw any) {
		e := raw.(*event.SessionEvent)
		log.Info("Hooked session", "session", e.SessionID, "identity", e.Identity, "state", sessions.State())
	})
	bus.Subscribe(event.EventSessionClose, func(raw any) {
		e := raw.(*event.SessionEvent)
		log.Info("Unhooked session", "session", e.SessionID, "identity", e.Identity)
	})

	return prx.Run(ctx)
}

func packetHooks(cfg config.HooksConfig) []hook.Hook {
	var hooks []hook.Hook
	if len(cfg.DropPackets) > 0 {
		hooks = append(hooks, hook.DropIDs(cfg.DropPackets...))
	}
	if cfg.LogPackets {
		hooks = append(hooks, hook.LogPackets(logger.Component("packets")))
	}
	return hooks
}

func sessionEvent(info proxy.SessionInfo) *event.SessionEvent {
	return &event.SessionEvent{SessionID: info.ID, Addr: info.Addr, Identity: info.Identity}
}
