package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/polybridge/internal/config"
	"github.com/dohr-michael/polybridge/internal/events"
	"github.com/dohr-michael/polybridge/internal/gateway"
	"github.com/dohr-michael/polybridge/internal/heartbeat"
	"github.com/dohr-michael/polybridge/internal/metricsdb"
	"github.com/dohr-michael/polybridge/internal/reaper"
	"github.com/dohr-michael/polybridge/internal/workerpool"
)

// newServeCommand starts the admin HTTP/WS server plus the idle-worker
// reaper and local metrics store backing it.
func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the admin HTTP/WS server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Host to listen on"},
			&cli.IntFlag{Name: "port", Usage: "Port to listen on"},
		},
		Action: runServe,
	}
}

func runServe(_ context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	pool := workerpool.NewPool(&workerpool.ProcessSpawner{
		ConnectTimeout: cfg.Worker.ConnectTimeout.Duration(),
	})

	db, err := metricsdb.Open(config.MetricsDBPath(cfg))
	if err != nil {
		return fmt.Errorf("open metrics store: %w", err)
	}
	defer db.Close()

	recorder := metricsdb.NewRecorder(db, bus)
	defer recorder.Close()

	rp, err := reaper.New(cfg.Reaper.CronExpr, cfg.Reaper.IdleTTL.Duration(), pool, bus)
	if err != nil {
		return fmt.Errorf("init reaper: %w", err)
	}
	rp.Start()
	defer rp.Stop()

	hb := heartbeat.NewWriter(filepath.Join(config.BridgePath(), "gateway.heartbeat.json"))
	hb.Start()
	defer hb.Stop()

	server := gateway.NewServer(bus, pool, db, cfg.Gateway.Host, cfg.Gateway.Port)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		slog.Info("shutting down bridge gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
