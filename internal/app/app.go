// Package app wires the language server to its transport and to the ambient
// services around it: configuration, logging and config live reload.
//
// An Application serves one client session over an io.ReadWriteCloser,
// normally the process's stdin and stdout.
package app

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.lsp.dev/jsonrpc2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/lsesample/internal/config"
	"github.com/dshills/lsesample/internal/config/watcher"
	"github.com/dshills/lsesample/internal/lsp"
)

// Exit codes reported by Run.
const (
	ExitOK    = 0 // exit after shutdown
	ExitError = 1 // exit without shutdown, lost connection or failure
)

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file. Empty means none.
	ConfigPath string

	// LogLevel overrides logging.level when set.
	LogLevel string

	// LogFile overrides logging.file when set.
	LogFile string

	// Version is reported to the client in initialize.
	Version string

	// LogOutput receives logs when no log file is configured.
	// Defaults to os.Stderr. Never point it at the protocol stream.
	LogOutput io.Writer

	// ConfigOptions are applied to the config loader after the above.
	ConfigOptions []config.Option
}

// Application is one lsesample process.
type Application struct {
	mu sync.RWMutex

	opts      Options
	loader    *config.Loader
	config    *config.Config
	logger    *Logger
	logFile   *os.File
	sessionID string

	running atomic.Bool
	closed  atomic.Bool
}

// New loads the configuration and opens the log sink.
func New(opts Options) (*Application, error) {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	var configOpts []config.Option
	if opts.ConfigPath != "" {
		configOpts = append(configOpts, config.WithFile(opts.ConfigPath))
	}
	if opts.LogLevel != "" {
		configOpts = append(configOpts, config.WithOverride(config.PathLoggingLevel, opts.LogLevel))
	}
	if opts.LogFile != "" {
		configOpts = append(configOpts, config.WithOverride(config.PathLoggingFile, opts.LogFile))
	}
	configOpts = append(configOpts, opts.ConfigOptions...)

	app := &Application{
		opts:      opts,
		loader:    config.NewLoader(configOpts...),
		sessionID: uuid.NewString(),
	}

	cfg, err := app.loader.Load()
	if err != nil {
		return nil, NewComponentError("config", "load", err)
	}
	app.config = cfg

	output := opts.LogOutput
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, NewComponentError("logging", "open log file", err)
		}
		app.logFile = f
		output = f
	}

	logCfg := DefaultLoggerConfig()
	logCfg.Output = output
	if cfg.Server.Name != "" {
		logCfg.Prefix = cfg.Server.Name
	}
	logger := NewLogger(logCfg)
	logger.ApplyLevel(cfg.Logging.Level)
	app.logger = logger.WithField("session", app.sessionID)

	return app, nil
}

// Config returns the current configuration.
func (app *Application) Config() *config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.config
}

// Logger returns the application logger.
func (app *Application) Logger() *Logger {
	return app.logger
}

// SessionID returns the id stamped on every log line of this process.
func (app *Application) SessionID() string {
	return app.sessionID
}

// Run serves one LSP session over rwc until the client sends exit, the
// connection drops or ctx is cancelled. It returns ExitOK only for an exit
// that followed shutdown. rwc is closed when Run returns.
func (app *Application) Run(ctx context.Context, rwc io.ReadWriteCloser) (int, error) {
	if app.closed.Load() {
		return ExitError, ErrClosed
	}
	if !app.running.CompareAndSwap(false, true) {
		return ExitError, ErrAlreadyRunning
	}
	defer app.running.Store(false)

	cfg := app.Config()
	log := app.logger.WithComponent("app")

	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))

	var exited atomic.Bool
	exitCode := ExitError
	server := lsp.NewServer(conn,
		lsp.WithLogger(app.logger.WithComponent("lsp")),
		lsp.WithSource(cfg.Server.Source),
		lsp.WithServerInfo(cfg.Server.Name, app.opts.Version),
		lsp.WithTriggerCharacters(cfg.Completion.TriggerCharacters),
		lsp.WithExitHandler(func(code int) {
			exitCode = code
			exited.Store(true)
			_ = conn.Close()
		}),
	)

	// The session ends when the connection does; cancelling runCtx then
	// stops the watcher.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if w := app.startWatcher(log); w != nil {
		g.Go(func() error {
			<-gctx.Done()
			w.Stop()
			return nil
		})
	}

	log.Info("serving (source %q)", cfg.Server.Source)
	conn.Go(ctx, server.Handler())

	g.Go(func() error {
		defer cancel()
		select {
		case <-conn.Done():
		case <-gctx.Done():
			log.Info("stopping: %v", context.Cause(gctx))
			_ = conn.Close()
			<-conn.Done()
		}
		return nil
	})

	_ = g.Wait()

	if exited.Load() {
		log.Info("session ended (exit code %d, %d documents open)", exitCode, server.Documents().Len())
		return exitCode, nil
	}

	if err := conn.Err(); err != nil && ctx.Err() == nil && !isClosedError(err) {
		log.Error("connection: %v", err)
		return ExitError, NewComponentError("lsp", "serve", err)
	}
	log.Warn("connection closed without exit")
	return ExitError, nil
}

// Close releases the log file. The application cannot be run afterwards.
func (app *Application) Close() error {
	if !app.closed.CompareAndSwap(false, true) {
		return nil
	}
	if app.logFile != nil {
		app.logger.SetOutput(app.opts.LogOutput)
		return app.logFile.Close()
	}
	return nil
}

// startWatcher watches the config file when live reload is enabled.
func (app *Application) startWatcher(log *Logger) *watcher.Watcher {
	if !app.Config().Server.WatchConfig || app.loader.Path() == "" {
		return nil
	}

	w := watcher.New(watcher.WithErrorHandler(func(err error) {
		log.Warn("config watcher: %v", err)
	}))
	w.OnChange(func(e watcher.Event) {
		if e.Op == watcher.OpRemove || e.Op == watcher.OpRename {
			log.Warn("config file %s: %s, keeping current settings", e.Path, e.Op)
			return
		}
		app.reload()
	})

	if err := w.Watch(app.loader.Path()); err != nil {
		log.Warn("config live reload disabled: %v", NewComponentError("watcher", "watch", err))
		return nil
	}
	if err := w.Start(); err != nil {
		log.Warn("config live reload disabled: %v", NewComponentError("watcher", "start", err))
		return nil
	}

	log.Debug("watching %s", app.loader.Path())
	return w
}

// reload re-reads the configuration. Only the log level applies to the
// running session; the rest takes effect on the next one. A config that fails
// to load or validate is ignored.
func (app *Application) reload() {
	log := app.logger.WithComponent("config")

	cfg, err := app.loader.Load()
	if err != nil {
		log.Warn("reload failed, keeping current settings: %v", err)
		return
	}

	app.mu.Lock()
	app.config = cfg
	app.mu.Unlock()

	// Logged before the level applies so a switch to off is still recorded.
	log.Info("reloading (log level %s)", cfg.Logging.Level)
	app.logger.ApplyLevel(cfg.Logging.Level)
}

// isClosedError reports whether err only says the stream was closed.
func isClosedError(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed)
}
