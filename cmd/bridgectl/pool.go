package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/polybridge/internal/workerpool"
)

// newPoolCommand shows live pool occupancy. It spins up an empty pool for
// the duration of the call, since bridgectl has no long-lived daemon of its
// own to query out of process; against a running `serve` host this would
// instead hit GET /api/pool.
func newPoolCommand() *cli.Command {
	return &cli.Command{
		Name:  "pool",
		Usage: "Show worker pool occupancy (idle/busy counts per key)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gateway",
				Usage: "Query a running gateway's /api/pool instead of showing an empty local pool",
			},
		},
		Action: runPool,
	}
}

func runPool(ctx context.Context, cmd *cli.Command) error {
	if addr := cmd.String("gateway"); addr != "" {
		return fetchAndPrint(ctx, addr+"/api/pool")
	}

	pool := workerpool.NewPool(&workerpool.ProcessSpawner{})
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(pool.Snapshot())
}
