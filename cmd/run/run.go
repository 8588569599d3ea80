package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/logging"
	"github.com/tphakala/medtel-go/internal/observability"
	"github.com/tphakala/medtel-go/internal/pipeline"
)

// Command creates the run command, which executes the full pipeline graph
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full warehouse pipeline",
		Long:  "Executes every pipeline step in dependency order: lake load, staging, dimensions, facts, validation and enrichment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(settings)
		},
	}

	setupFlags(cmd, settings)
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.Flags().BoolVar(&settings.Pipeline.Acquire.Enabled, "acquire", viper.GetBool("pipeline.acquire.enabled"), "Acquire new messages from the spool before loading")
	cmd.Flags().IntVar(&settings.Pipeline.MaxParallel, "parallel", viper.GetInt("pipeline.maxparallel"), "Maximum number of steps to run concurrently")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable the Prometheus telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}

func runPipeline(settings *conf.Settings) error {
	log := logging.ForService("cli")

	runner, store, obs, err := pipeline.Bootstrap(settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close store", "error", err)
		}
	}()

	if obs != nil {
		endpoint, err := observability.NewEndpoint(settings, obs)
		if err == nil {
			endpoint.Start()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = endpoint.Stop(ctx)
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := runner.Run(ctx)
	if result != nil {
		printSummary(result)
	}
	return err
}

func printSummary(result *pipeline.RunResult) {
	fmt.Printf("run %s finished in %s\n", result.RunID, result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	for _, name := range sortedStepNames(result) {
		step := result.Steps[name]
		fmt.Printf("  %-20s %-9s rows=%-7d attempts=%d duration=%s\n",
			name, step.Status, step.Rows, step.Attempts, step.Duration.Round(time.Millisecond))
	}
}

func sortedStepNames(result *pipeline.RunResult) []string {
	names := make([]string, 0, len(result.Steps))
	for name := range result.Steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
