package step

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/pipeline"
)

// Command creates the step command, which runs one or more named pipeline
// steps in dependency order. Useful when iterating on one table, or to
// re-run detect and enrich after the vision collaborator delivers a fresh
// export.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step [name ...]",
		Short: "Run named pipeline steps",
		Long: "Runs the named steps in dependency order, without the rest of the graph. Steps: " +
			"acquire, load, stage, build_calendar_dim, build_channel_dim, build_facts, validate, detect, enrich.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSteps(settings, args)
		},
	}
	return cmd
}

func runSteps(settings *conf.Settings, names []string) error {
	runner, store, _, err := pipeline.Bootstrap(settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := runner.RunSubset(ctx, names)
	for _, result := range results {
		fmt.Printf("%s: %s rows=%d attempts=%d duration=%s\n",
			result.Name, result.Status, result.Rows, result.Attempts, result.Duration.Round(time.Millisecond))
	}
	return err
}
