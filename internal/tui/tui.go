package tui

import (
	"context"
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/term"
)

// Run dials the gateway's websocket endpoint and runs the dashboard program
// until the user quits or the connection drops.
func Run(ctx context.Context, gatewayWSURL string) error {
	client, err := Dial(ctx, gatewayWSURL)
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer client.Close()

	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width, height = 80, 24
	}

	model := NewModel(client)
	model.width, model.height = width, height

	p := tea.NewProgram(model, tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
