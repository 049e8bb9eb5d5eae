package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/config"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/sink/socketio"
)

// SinkDialer connects the optional event sink.
type SinkDialer func(ctx context.Context, url string) (*socketio.Sink, error)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	loader   config.Loader
	modules  []registry.Module
	dialSink SinkDialer
}

// NewApp is the constructor for the main application. Results go to outW
// and logs to logW through an isolated logger. With no modules, every core
// provider is registered.
func NewApp(outW, logW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")
	if len(modules) == 0 {
		modules = coreModules
	}
	return &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		loader:  loader,
		modules: modules,
		dialSink: func(ctx context.Context, url string) (*socketio.Sink, error) {
			return socketio.Dial(ctx, socketio.Config{URL: url})
		},
	}
}

// WithSinkDialer replaces how the socket.io sink is connected.
func (a *App) WithSinkDialer(d SinkDialer) *App {
	a.dialSink = d
	return a
}

// newRegistry creates a registry with every module's providers.
func (a *App) newRegistry(ctx context.Context) *registry.Registry {
	reg := registry.New()
	for _, mod := range a.modules {
		mod.Register(reg)
	}
	ctxlog.FromContext(ctx).Debug("All Go modules registered.", "count", len(a.modules))
	return reg
}
