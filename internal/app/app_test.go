package app

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/dshills/lsesample/internal/config"
)

// syncBuffer is a bytes.Buffer safe for concurrent logging and reading.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestApp(t *testing.T, opts Options) (*Application, *syncBuffer) {
	t.Helper()

	logs := &syncBuffer{}
	opts.LogOutput = logs
	opts.ConfigOptions = append([]config.Option{config.WithEnv(nil)}, opts.ConfigOptions...)

	app, err := New(opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app, logs
}

type runResult struct {
	code int
	err  error
}

// startSession runs app over a pipe and returns the client side.
func startSession(t *testing.T, ctx context.Context, app *Application) (jsonrpc2.Conn, <-chan protocol.PublishDiagnosticsParams, <-chan runResult) {
	t.Helper()

	serverSide, clientSide := net.Pipe()

	done := make(chan runResult, 1)
	go func() {
		code, err := app.Run(ctx, serverSide)
		done <- runResult{code, err}
	}()

	published := make(chan protocol.PublishDiagnosticsParams, 16)
	client := jsonrpc2.NewConn(jsonrpc2.NewStream(clientSide))
	client.Go(context.Background(), func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		var p protocol.PublishDiagnosticsParams
		if err := json.Unmarshal(req.Params(), &p); err == nil {
			published <- p
		}
		return reply(ctx, nil, nil)
	})
	t.Cleanup(func() { _ = client.Close() })

	return client, published, done
}

func waitRun(t *testing.T, done <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
		return runResult{}
	}
}

func TestNew_Defaults(t *testing.T) {
	app, _ := newTestApp(t, Options{})

	cfg := app.Config()
	if cfg.Server.Source != "lsesample" || cfg.Logging.Level != "info" {
		t.Errorf("config = %+v", cfg)
	}
	if app.Logger().Level() != LogLevelInfo {
		t.Errorf("log level = %v, want INFO", app.Logger().Level())
	}
	if len(app.SessionID()) != 36 {
		t.Errorf("SessionID = %q, want a UUID", app.SessionID())
	}
}

func TestNew_FlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lsesample.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"error\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	app, _ := newTestApp(t, Options{ConfigPath: path, LogLevel: "debug"})
	if app.Config().Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", app.Config().Logging.Level)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Options{
		LogLevel:      "loud",
		LogOutput:     &syncBuffer{},
		ConfigOptions: []config.Option{config.WithEnv(nil)},
	})

	var cerr *ComponentError
	if !errors.As(err, &cerr) || cerr.Component != "config" {
		t.Fatalf("error = %v, want config ComponentError", err)
	}
	if !errors.Is(err, config.ErrValidationFailed) {
		t.Errorf("error = %v, want ErrValidationFailed", err)
	}
}

func TestNew_LogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "lsesample.log")
	app, stderr := newTestApp(t, Options{LogFile: logPath})

	app.Logger().Info("to the file")
	if err := app.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "to the file") || !strings.Contains(string(data), "session="+app.SessionID()) {
		t.Errorf("log file = %q", data)
	}
	if stderr.String() != "" {
		t.Errorf("stderr = %q, want nothing", stderr.String())
	}
}

func TestRun_Session(t *testing.T) {
	app, logs := newTestApp(t, Options{Version: "1.0.0"})
	client, published, done := startSession(t, context.Background(), app)
	ctx := context.Background()

	var init protocol.InitializeResult
	if _, err := client.Call(ctx, "initialize", protocol.InitializeParams{}, &init); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if init.ServerInfo == nil || init.ServerInfo.Name != "lsesample" || init.ServerInfo.Version != "1.0.0" {
		t.Errorf("serverInfo = %+v", init.ServerInfo)
	}

	open := protocol.DidOpenTextDocumentParams{TextDocument: protocol.TextDocumentItem{URI: "file:///a.txt", Version: 1, Text: "abc"}}
	if err := client.Notify(ctx, "textDocument/didOpen", open); err != nil {
		t.Fatalf("didOpen: %v", err)
	}
	select {
	case p := <-published:
		if len(p.Diagnostics) != 1 || p.Diagnostics[0].Source != "lsesample" {
			t.Errorf("published %+v", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no diagnostics published")
	}

	var ignored any
	if _, err := client.Call(ctx, "shutdown", nil, &ignored); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := client.Notify(ctx, "exit", nil); err != nil {
		t.Fatalf("exit: %v", err)
	}

	r := waitRun(t, done)
	if r.code != ExitOK || r.err != nil {
		t.Errorf("Run = (%d, %v), want (0, nil)", r.code, r.err)
	}
	if !strings.Contains(logs.String(), "session="+app.SessionID()) {
		t.Error("log lines should carry the session id")
	}
}

func TestRun_ExitWithoutShutdown(t *testing.T) {
	app, _ := newTestApp(t, Options{})
	client, _, done := startSession(t, context.Background(), app)

	if err := client.Notify(context.Background(), "exit", nil); err != nil {
		t.Fatalf("exit: %v", err)
	}

	if r := waitRun(t, done); r.code != ExitError || r.err != nil {
		t.Errorf("Run = (%d, %v), want (1, nil)", r.code, r.err)
	}
}

func TestRun_ClientDisconnect(t *testing.T) {
	app, _ := newTestApp(t, Options{})
	client, _, done := startSession(t, context.Background(), app)

	_ = client.Close()

	if r := waitRun(t, done); r.code != ExitError {
		t.Errorf("code = %d, want 1", r.code)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	app, _ := newTestApp(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	_, _, done := startSession(t, ctx, app)

	cancel()

	if r := waitRun(t, done); r.code != ExitError || r.err != nil {
		t.Errorf("Run = (%d, %v), want (1, nil)", r.code, r.err)
	}
}

func TestRun_AfterClose(t *testing.T) {
	app, _ := newTestApp(t, Options{})
	_ = app.Close()

	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	if _, err := app.Run(context.Background(), serverSide); !errors.Is(err, ErrClosed) {
		t.Errorf("Run after Close error = %v, want ErrClosed", err)
	}
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lsesample.toml")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("[logging]\nlevel = \"info\"\n")
	app, logs := newTestApp(t, Options{ConfigPath: path})
	derived := app.Logger().WithComponent("lsp")

	write("[logging]\nlevel = \"debug\"\n")
	app.reload()
	if derived.Level() != LogLevelDebug {
		t.Errorf("derived level = %v, want DEBUG", derived.Level())
	}
	if app.Config().Logging.Level != "debug" {
		t.Errorf("config level = %q, want debug", app.Config().Logging.Level)
	}

	write("[logging]\nlevel = \"shouting\"\n")
	app.reload()
	if app.Config().Logging.Level != "debug" {
		t.Error("invalid config should be ignored")
	}
	if !strings.Contains(logs.String(), "reload failed") {
		t.Errorf("logs = %q, want reload failure", logs.String())
	}
}

func TestNew_LogLevelOff(t *testing.T) {
	app, logs := newTestApp(t, Options{LogLevel: "off"})
	app.Logger().Error("should not appear")
	if logs.String() != "" {
		t.Errorf("logs = %q, want nothing with level off", logs.String())
	}
}

func TestReload_LogLevelOffAndBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lsesample.toml")
	write := func(level string) {
		t.Helper()
		if err := os.WriteFile(path, []byte("[logging]\nlevel = \""+level+"\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("info")
	app, logs := newTestApp(t, Options{ConfigPath: path})

	write("off")
	app.reload()
	app.Logger().Error("while off")
	if strings.Contains(logs.String(), "while off") {
		t.Errorf("logs = %q, want silence after switching off", logs.String())
	}

	write("warn")
	app.reload()
	app.Logger().Warn("back on")
	if !strings.Contains(logs.String(), "back on") {
		t.Errorf("logs = %q, want logging re-enabled", logs.String())
	}
	if app.Logger().Level() != LogLevelWarn {
		t.Errorf("level = %v, want WARN", app.Logger().Level())
	}
}

func TestRun_WatchesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lsesample.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"warn\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	app, _ := newTestApp(t, Options{ConfigPath: path})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _, done := startSession(t, ctx, app)

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for app.Logger().Level() != LogLevelDebug && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if app.Logger().Level() != LogLevelDebug {
		t.Errorf("level = %v after config change, want DEBUG", app.Logger().Level())
	}

	cancel()
	waitRun(t, done)
}
