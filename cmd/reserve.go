package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voltmesh/cso/app"
	"github.com/voltmesh/cso/config"
	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/core/roaming"
)

var (
	reserveEVSE     string
	reserveDuration time.Duration
)

var reserveCmd = &cobra.Command{
	Use:   "reserve",
	Short: "Issue a test reservation against the configured topology",
	RunE:  reserve,
}

func init() {
	reserveCmd.Flags().StringVar(&reserveEVSE, "evse", "", "evse to reserve")
	reserveCmd.Flags().DurationVar(&reserveDuration, "duration", 15*time.Minute, "reservation duration")
	rootCmd.AddCommand(reserveCmd)
}

func reserve(cmd *cobra.Command, args []string) error {
	if reserveEVSE == "" {
		return fmt.Errorf("--evse is required")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	applyLogLevel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	res := svc.Dispatcher.ReserveEVSE(ctx, roaming.ReserveRequest{
		EVSEID:   model.EVSEID(reserveEVSE),
		Duration: reserveDuration,
	})
	if res.Code != model.ResultSuccess {
		return fmt.Errorf("reserve %s: %s %s", reserveEVSE, res.Code, res.Message)
	}
	fmt.Printf("reserved %s until %s (id %s)\n", res.Reservation.EVSEID, res.Reservation.EndTime().Format(time.RFC3339), res.Reservation.ID)
	return nil
}
