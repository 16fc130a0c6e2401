package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgenrique/ess-controller/core/optimizer"
	"github.com/mgenrique/ess-controller/pkg/export"
)

var (
	scenarioPath string
	outFormat    string
	solveAt      string
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a scenario file once and print the schedule",
	RunE:  runSolve,
}

func init() {
	solveCmd.Flags().StringVar(&scenarioPath, "scenario", "", "scenario YAML file")
	solveCmd.Flags().StringVar(&outFormat, "format", string(export.FormatMarkdown), "output format: markdown, json, csv or html")
	solveCmd.Flags().StringVar(&solveAt, "at", "", "solve time in RFC3339, defaults to the scenario time")
	_ = solveCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	f, err := os.Open(scenarioPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	sc, err := decodeScenario(f)
	if err != nil {
		return err
	}
	var at time.Time
	if solveAt != "" {
		if at, err = time.Parse(time.RFC3339, solveAt); err != nil {
			return fmt.Errorf("--at: %w", err)
		}
	}
	req, err := sc.request(at)
	if err != nil {
		return err
	}
	res, err := optimizer.New().Optimize(req)
	if err != nil {
		return fmt.Errorf("solve: %w", err)
	}
	return export.Write(cmd.OutOrStdout(), export.Format(outFormat), res.Schedule)
}
