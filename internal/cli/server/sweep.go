package server

import (
	"context"
	"fmt"

	"github.com/julianstephens/streakd/internal/cli"
	"github.com/julianstephens/streakd/internal/rollover"
)

// SweepCmd runs the day rollover once, for one owner or for everyone
type SweepCmd struct {
	Owner string `help:"Only auto-complete this owner's habits."`
}

func (cmd *SweepCmd) Run(ctx *cli.Context) error {
	runCtx := context.Background()
	if err := ctx.LoadStore(runCtx); err != nil {
		return err
	}
	defer ctx.Store.Close()

	svc, err := ctx.Tracker(nil)
	if err != nil {
		return err
	}

	if cmd.Owner != "" {
		n, err := svc.AutoComplete(runCtx, cmd.Owner)
		if err != nil {
			return fmt.Errorf("sweep failed for %s: %w", cmd.Owner, err)
		}
		fmt.Printf("✓ Auto-completed %d habit(s) for %s\n", n, cmd.Owner)
		return nil
	}

	res, err := rollover.Sweep(runCtx, svc)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	fmt.Printf("✓ Auto-completed %d habit(s) across %d owner(s)\n", res.Completed, res.Owners)
	if res.Failed > 0 {
		return fmt.Errorf("%d owner(s) failed, see the log for details", res.Failed)
	}
	return nil
}
