package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eternalApril/actorhost/internal/admin"
	"github.com/eternalApril/actorhost/internal/config"
	"github.com/eternalApril/actorhost/internal/logger"
	"github.com/eternalApril/actorhost/internal/server"
	"github.com/eternalApril/actorhost/internal/storage"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Directory containing config.yaml",
	Value:   ".",
	EnvVars: []string{"ACTORHOST_CONFIG_DIR"},
}

var serveCmd = &cli.Command{
	Name:   "serve",
	Usage:  "Run the actor host",
	Flags:  []cli.Flag{configFlag},
	Action: serve,
}

var checkCmd = &cli.Command{
	Name:  "check",
	Usage: "Validate the configuration and print the gc settings",
	Flags: []cli.Flag{configFlag},
	Action: func(c *cli.Context) error {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		s := cfg.GC.Settings
		fmt.Fprintf(c.App.Writer, "gc: %s idle_scans=%d\n", s, s.IdleScans())
		return nil
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "actorhost",
		Usage:    "Actor host with an idle actor collector",
		Flags:    []cli.Flag{configFlag},
		Action:   serve,
		Commands: []*cli.Command{serveCmd, checkCmd},
	}
}

// run executes the app and returns the process exit code. Errors are printed once, to stderr
func run(args []string, stdout, stderr io.Writer) int {
	app := newApp()
	app.Writer = stdout
	app.ErrWriter = stderr

	if err := app.Run(args); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lg, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer lg.Sync() //nolint:errcheck

	lg.Info("Actorhost starting",
		zap.String("port", cfg.Server.Port),
		zap.Uint("shards", cfg.Storage.Shards),
		zap.Object("gc", cfg.GC.Settings),
	)

	db, err := storage.NewShardedTable(cfg.Storage.Shards)
	if err != nil {
		lg.Error("cant initialize storage", zap.Error(err))
		return err
	}

	engine, err := server.NewEngine(db, cfg, lg)
	if err != nil {
		lg.Error("cant initialize engine", zap.Error(err))
		return err
	}
	defer engine.Shutdown()

	address := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		lg.Error("listener error", zap.Error(err))
		return err
	}
	lg.Info("listening on", zap.String("address", address))

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(engine, lg)
	errs := make(chan error, 2)
	go func() { errs <- srv.Serve(listener) }()

	var adminSrv *admin.Server
	if cfg.Admin.Enabled {
		adminListener, err := net.Listen("tcp", cfg.Admin.Addr)
		if err != nil {
			lg.Error("admin listener error", zap.Error(err))
			srv.Shutdown(context.Background()) //nolint:errcheck
			return err
		}
		adminSrv = admin.New(cfg.Admin.Addr, engine, lg.Named("admin"))
		go func() { errs <- adminSrv.Serve(adminListener) }()
	}

	select {
	case <-ctx.Done():
	case err := <-errs:
		if err != nil && !errors.Is(err, server.ErrServerClosed) {
			lg.Error("server stopped unexpectedly", zap.Error(err))
		}
	}

	lg.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if adminSrv != nil {
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			lg.Warn("admin shutdown failed", zap.Error(err))
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("Shutdown timed out, forcing exit", zap.Duration("timeout", shutdownTimeout))
	} else {
		lg.Info("All connections closed gracefully")
	}

	engine.Shutdown()
	lg.Info("Actorhost stopped")
	return nil
}
