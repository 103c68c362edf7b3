package main

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/polybridge/internal/tui"
)

// newTUICommand starts the terminal dashboard against a running gateway.
func newTUICommand() *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Start the terminal dashboard against a running gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gateway",
				Usage: "Gateway host:port to connect to",
				Value: "127.0.0.1:18420",
			},
		},
		Action: runTUI,
	}
}

func runTUI(ctx context.Context, cmd *cli.Command) error {
	addr := strings.TrimPrefix(cmd.String("gateway"), "http://")
	return tui.Run(ctx, "ws://"+addr+"/api/ws")
}
