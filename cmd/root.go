package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/medtel-go/cmd/report"
	"github.com/tphakala/medtel-go/cmd/run"
	"github.com/tphakala/medtel-go/cmd/step"
	"github.com/tphakala/medtel-go/cmd/validate"
	"github.com/tphakala/medtel-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "medtel",
		Short: "Medical Telegram warehouse CLI",
		Long:  "Builds and queries the star-schema warehouse of scraped medical Telegram channel posts.",
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		run.Command(settings),
		step.Command(settings),
		validate.Command(settings),
		report.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := conf.ValidateSettings(settings); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return nil
	}

	return rootCmd
}

// setupFlags configures the global flags for the root command
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	cmd.PersistentFlags().StringVar(&settings.Output.SQLite.Path, "database", viper.GetString("output.sqlite.path"), "Path to the SQLite warehouse database")
	cmd.PersistentFlags().StringVar(&settings.Pipeline.Lake.BasePath, "lake", viper.GetString("pipeline.lake.basepath"), "Base path of the file data lake")

	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}
