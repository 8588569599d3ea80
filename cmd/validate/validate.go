package validate

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/datastore"
	"github.com/tphakala/medtel-go/internal/quality"
)

// Command creates the validate command, which runs the data-quality
// battery against the current warehouse contents without rebuilding
// anything.
func Command(settings *conf.Settings) *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the data-quality battery against the warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidation(settings, asYAML)
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Emit the report as YAML for machine consumption")
	return cmd
}

// reportView is the YAML shape of a battery run
type reportView struct {
	RanAt  string      `yaml:"ran_at"`
	Passed bool        `yaml:"passed"`
	Checks []checkView `yaml:"checks"`
}

type checkView struct {
	Name       string  `yaml:"name"`
	Table      string  `yaml:"table"`
	Passed     bool    `yaml:"passed"`
	Violations int64   `yaml:"violations"`
	SampleIDs  []int64 `yaml:"sample_ids,omitempty"`
	Error      string  `yaml:"error,omitempty"`
}

func runValidation(settings *conf.Settings, asYAML bool) error {
	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no output store enabled in settings")
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	opts, err := quality.OptionsFromSettings(settings)
	if err != nil {
		return err
	}

	report := quality.Run(store.Conn(), opts)

	if asYAML {
		view := reportView{
			RanAt:  report.RanAt.Format(time.RFC3339),
			Passed: report.Passed(),
		}
		for i := range report.Results {
			res := &report.Results[i]
			cv := checkView{
				Name:       res.Name,
				Table:      res.Table,
				Passed:     res.Passed(),
				Violations: res.Violations,
				SampleIDs:  res.SampleIDs,
			}
			if res.Err != nil {
				cv.Error = res.Err.Error()
			}
			view.Checks = append(view.Checks, cv)
		}
		out, err := yaml.Marshal(&view)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	} else {
		fmt.Print(report.String())
	}

	return report.Err()
}
