package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realmclient/client"
	"realmclient/tui"
)

// realm 客户端入口：确认身份，连接世界服务器，进入终端帧循环
func main() {
	var (
		cfgPath string
		debug   string
	)
	flag.StringVar(&cfgPath, "config", "", "path to YAML config (default: $REALM_CONFIG)")
	flag.StringVar(&debug, "debug", "", "debug HTTP listen address, e.g. :6060 (overrides config)")
	flag.Parse()

	os.Exit(run(cfgPath, debug))
}

func run(cfgPath, debug string) int {
	cfg, err := client.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if debug != "" {
		cfg.DebugAddr = debug
	}
	// 终端界面占用 stdout，zap 日志写入文件（带滚动）
	if err := client.InitLogger(cfg.LogFile, client.LogOptions{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer client.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 身份确认失败对客户端是致命的
	token, err := cfg.ResolveToken()
	if err != nil {
		client.Log.Errorf("identity: %v", err)
		fmt.Fprintln(os.Stderr, "No authentication token found. Please log in first.")
		return 1
	}
	identity, err := client.NewVerifier(cfg.AuthURL).Verify(ctx, token)
	if err != nil {
		client.Log.Errorf("identity: %v", err)
		fmt.Fprintf(os.Stderr, "Authentication failed: %v\n", err)
		return 1
	}
	client.Log.Infof("authenticated as %s", identity.Username)

	term, err := tui.New(cfg.Viewport)
	if err != nil {
		client.Log.Errorf("terminal: %v", err)
		fmt.Fprintf(os.Stderr, "terminal: %v\n", err)
		return 1
	}
	defer term.Close()

	game := client.NewGame(client.GameOptions{
		Config:   cfg,
		Identity: identity,
		Input:      term,
		Renderer:   term,
		MenuLayout: term,
	})

	if cfg.DebugAddr != "" {
		srv := &http.Server{Addr: cfg.DebugAddr, Handler: game.DebugHandler()}
		go func() {
			client.Log.Infof("debug server listening on %s", cfg.DebugAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				client.Log.Errorf("debug listen: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	err = game.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		client.Log.Info("Shutting down...")
		return 0
	case errors.Is(err, client.ErrConnectionFailed):
		term.Close()
		fmt.Fprintln(os.Stderr, "Connection Failed")
		client.Log.Errorf("run: %v", err)
		return 1
	default:
		term.Close()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		client.Log.Errorf("run: %v", err)
		return 1
	}
}
