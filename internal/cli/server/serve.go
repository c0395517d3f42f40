package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julianstephens/streakd/internal/api"
	"github.com/julianstephens/streakd/internal/cli"
	"github.com/julianstephens/streakd/internal/identity"
	"github.com/julianstephens/streakd/internal/logger"
	"github.com/julianstephens/streakd/internal/rollover"
)

// ServeCmd runs the HTTP API, the realtime hub and the rollover job
type ServeCmd struct {
	Listen     string `help:"Listen address (overrides STREAKD_LISTEN_ADDR)."`
	Migrate    bool   `help:"Apply pending migrations before serving."`
	NoRollover bool   `help:"Do not schedule the daily auto-complete sweep."`
}

func (cmd *ServeCmd) Run(ctx *cli.Context) error {
	cfg := ctx.Config
	if cmd.Listen != "" {
		cfg.ListenAddr = cmd.Listen
	}
	if cmd.NoRollover {
		cfg.RolloverEnabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	ctx.Config = cfg

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd.Migrate {
		if err := ctx.Store.Init(runCtx); err != nil {
			return err
		}
	} else if err := ctx.LoadStore(runCtx); err != nil {
		return err
	}
	defer ctx.Store.Close()

	hub := ctx.Hub()
	svc, err := ctx.Tracker(hub)
	if err != nil {
		return err
	}

	verifier, err := identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	if cfg.RolloverEnabled {
		sched, err := rollover.New(svc, cfg.RolloverSchedule, svc.Location())
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				logger.Warn("Rollover did not stop cleanly", "err", err)
			}
		}()
	}

	srv := api.New(svc, hub, verifier, api.Config{
		ListenAddr:        cfg.ListenAddr,
		HeartbeatInterval: cfg.HeartbeatInterval,
		RateLimitRPS:      cfg.RateLimitRPS,
		RateLimitBurst:    cfg.RateLimitBurst,
	})

	logger.Info("Starting streakd", "addr", cfg.ListenAddr, "timezone", svc.Location().String(),
		"rollover", cfg.RolloverEnabled)
	fmt.Printf("streakd listening on %s\n", cfg.ListenAddr)

	return srv.Run(runCtx)
}
