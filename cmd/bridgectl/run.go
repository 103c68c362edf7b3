package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/polybridge/internal/bridge"
	brdcst "github.com/dohr-michael/polybridge/internal/broadcast"
	"github.com/dohr-michael/polybridge/internal/config"
	"github.com/dohr-michael/polybridge/internal/events"
	"github.com/dohr-michael/polybridge/internal/feeder"
	"github.com/dohr-michael/polybridge/internal/persist"
	"github.com/dohr-michael/polybridge/internal/secrets"
	"github.com/dohr-michael/polybridge/internal/storage"
	"github.com/dohr-michael/polybridge/internal/taskctx"
	"github.com/dohr-michael/polybridge/internal/workerpool"
)

// newRunCommand drives one compute() session against a real worker
// subprocess, for manual protocol testing without the enclosing distributed
// framework. Input records are read as newline-delimited lines from stdin;
// output records are written as lines to stdout.
func newRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Drive one compute() session against a worker executable",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "executable", Required: true, Usage: "Worker executable path"},
			&cli.IntFlag{Name: "partition", Value: 0, Usage: "Partition index"},
			&cli.StringFlag{Name: "workdir", Usage: "Working directory to report to the worker"},
			&cli.StringFlag{Name: "command", Usage: "Command blob, as a literal string"},
			&cli.StringSliceFlag{Name: "broadcast", Usage: "Broadcast variable as id=payload, cached to disk across runs"},
		},
		Action: runRun,
	}
}

func runRun(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)

	sessionID := uuid.NewString()
	logRunStarted(sessionID, cmd.String("executable"))

	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	spillTracker := storage.NewSpillTracker(bus)
	defer spillTracker.Close()
	eventLogger := storage.NewEventLogger(config.EventLogDir(), bus)
	defer eventLogger.Close()

	pool := workerpool.NewPool(&workerpool.ProcessSpawner{
		ConnectTimeout: cfg.Worker.ConnectTimeout.Duration(),
	})

	broadcasts, err := resolveBroadcasts(cfg, cmd.StringSlice("broadcast"))
	if err != nil {
		return fmt.Errorf("resolve broadcasts: %w", err)
	}

	records := make(chan feeder.Element)
	sourceErr := make(chan error, 1)
	go feedStdin(records, sourceErr)

	task := taskctx.NewFake()

	req := bridge.Request{
		Executable:      cmd.String("executable"),
		Partition:       int32(cmd.Int("partition")),
		WorkDir:         cmd.String("workdir"),
		Command:         []byte(cmd.String("command")),
		Broadcasts:      broadcasts,
		Records:         records,
		SourceErr:       sourceErr,
		MonitorInterval: 2 * time.Second,
		BufferSize:      cfg.IO.BufferSize,
		SessionID:       sessionID,
		Events:          bus,
	}

	it, err := bridge.Compute(ctx, task, taskctx.NoopMemoryManagers{}, taskctx.StaticLocalStorage{}, cfg, pool, req)
	if err != nil {
		return fmt.Errorf("compute: %w", err)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for it.HasNext() {
		rec, err := it.Next()
		if err != nil {
			task.Complete()
			return fmt.Errorf("next record: %w", err)
		}
		out.Write(rec)
		out.WriteByte('\n')
	}
	task.Complete()
	return it.Err()
}

// feedStdin turns stdin's lines into feeder elements, closing records when
// stdin is exhausted.
func feedStdin(records chan<- feeder.Element, sourceErr chan<- error) {
	defer close(records)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		records <- feeder.Element{Bytes: []byte(scanner.Text())}
	}
	if err := scanner.Err(); err != nil {
		sourceErr <- err
	}
}

// resolveBroadcasts parses "id=payload" flag values, writes each payload
// through the broadcast cache (overwriting any cached copy for that id), and
// reads the cached copy back. Every spec must carry its payload; a bare id is
// rejected rather than looked up in the cache.
func resolveBroadcasts(cfg *config.Config, specs []string) ([]brdcst.Broadcast, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	var enc persist.Encryptor
	if cfg.Broadcast.Encrypt {
		keyPath := secrets.KeyPath()
		if err := secrets.GenerateIdentity(keyPath); err != nil {
			return nil, fmt.Errorf("generate broadcast age identity: %w", err)
		}
		identity, err := secrets.LoadIdentity(keyPath)
		if err != nil {
			return nil, fmt.Errorf("load broadcast age identity: %w", err)
		}
		enc = &secrets.FileEncryptor{Recipient: identity.Recipient(), Identity: identity}
	}

	cache := brdcst.NewCache(config.BroadcastDir(cfg), enc)

	out := make([]brdcst.Broadcast, 0, len(specs))
	for _, spec := range specs {
		idStr, payload, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("broadcast spec %q: want id=payload", spec)
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("broadcast spec %q: invalid id: %w", spec, err)
		}
		if err := cache.Put(id, []byte(payload)); err != nil {
			return nil, fmt.Errorf("cache broadcast %d: %w", id, err)
		}
		cached, err := cache.Get(id)
		if err != nil {
			return nil, fmt.Errorf("read cached broadcast %d: %w", id, err)
		}
		out = append(out, brdcst.Broadcast{ID: id, Payload: cached})
	}
	return out, nil
}

func logRunStarted(sessionID, executable string) {
	slog.Info("bridge session started", "session_id", sessionID, "executable", strings.TrimSpace(executable))
}
