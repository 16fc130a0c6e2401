package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgenrique/ess-controller/config"
	"github.com/mgenrique/ess-controller/infra/forecastsolar"
	"github.com/mgenrique/ess-controller/infra/kvstore"
	"github.com/mgenrique/ess-controller/infra/logger"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Print the hourly solar forecast",
	RunE:  runForecast,
}

func init() {
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return err
	}
	cache, err := kvstore.NewSQLiteStore(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() { _ = cache.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	client := forecastsolar.New(cfg.ForecastSolar, cache, logger.New("forecast_solar"), loc)
	s, err := client.SolarForecast(ctx, time.Now().In(loc))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, p := range s.Points() {
		if _, err := fmt.Fprintf(out, "%s\t%.0f Wh\n", p.At.Format("2006-01-02 15:04"), p.Value); err != nil {
			return err
		}
	}
	return nil
}
