// conf/validate.go settings validation
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/medtel-go/internal/errors"
)

// ValidateSettings checks the loaded settings for misconfiguration that
// would otherwise surface as confusing runtime failures.
func ValidateSettings(settings *Settings) error {
	var problems []string

	if err := validateOutput(&settings.Output); err != nil {
		problems = append(problems, err.Error())
	}
	if err := validatePipeline(&settings.Pipeline); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return errors.Newf("invalid configuration: %s", strings.Join(problems, "; ")).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func validateOutput(output *OutputSettings) error {
	if !output.SQLite.Enabled && !output.MySQL.Enabled {
		return fmt.Errorf("no warehouse store enabled, enable output.sqlite or output.mysql")
	}
	if output.SQLite.Enabled && output.MySQL.Enabled {
		return fmt.Errorf("both warehouse stores enabled, enable only one of output.sqlite and output.mysql")
	}
	if output.SQLite.Enabled && output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must not be empty")
	}
	if output.MySQL.Enabled {
		if output.MySQL.Database == "" || output.MySQL.Host == "" {
			return fmt.Errorf("output.mysql requires database and host")
		}
	}
	return nil
}

func validatePipeline(pipeline *PipelineSettings) error {
	if _, err := time.Parse(DateLayout, pipeline.Staging.MinDate); err != nil {
		return fmt.Errorf("pipeline.staging.mindate %q is not a valid date: %w", pipeline.Staging.MinDate, err)
	}
	if _, err := time.Parse(DateLayout, pipeline.Calendar.StartDate); err != nil {
		return fmt.Errorf("pipeline.calendar.startdate %q is not a valid date: %w", pipeline.Calendar.StartDate, err)
	}
	if pipeline.Calendar.HorizonDays < 0 {
		return fmt.Errorf("pipeline.calendar.horizondays must not be negative")
	}
	if pipeline.Staging.FutureSlackHrs < 0 {
		return fmt.Errorf("pipeline.staging.futureslackhrs must not be negative")
	}
	if pipeline.MaxParallel < 1 {
		return fmt.Errorf("pipeline.maxparallel must be at least 1")
	}
	if pipeline.Acquire.Retry.Enabled {
		if pipeline.Acquire.Retry.MaxRetries < 0 {
			return fmt.Errorf("pipeline.acquire.retry.maxretries must not be negative")
		}
		if pipeline.Acquire.Retry.BackoffMult < 1 {
			return fmt.Errorf("pipeline.acquire.retry.backoffmult must be at least 1")
		}
	}
	for _, rule := range pipeline.Classify.ChannelRules {
		if rule.Label == "" || len(rule.Keywords) == 0 {
			return fmt.Errorf("pipeline.classify.channelrules entries need a label and at least one keyword")
		}
	}
	for _, rule := range pipeline.Classify.ProductRules {
		if rule.Label == "" || len(rule.Keywords) == 0 {
			return fmt.Errorf("pipeline.classify.productrules entries need a label and at least one keyword")
		}
	}
	return nil
}
