package review

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ledgermesh/ledgermesh/internal/common"
	"github.com/ledgermesh/ledgermesh/internal/ops"
	"github.com/ledgermesh/ledgermesh/internal/service"
)

// Run launches the review queue browser and blocks until the user quits.
func Run(ctx context.Context, store service.Storage, clock common.Clock, threshold int) error {
	program := tea.NewProgram(New(ctx, Config{
		Store:     store,
		Ops:       ops.New(store, clock),
		Threshold: threshold,
	}), tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("review program exited with error: %w", err)
	}
	return nil
}
