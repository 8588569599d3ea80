// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "medtel-go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "medtel.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)
	viper.SetDefault("main.log.rotationday", "Sunday")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "warehouse.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "medtel")
	viper.SetDefault("output.mysql.password", "medtel")
	viper.SetDefault("output.mysql.database", "medtel")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("pipeline.lake.basepath", "data")

	viper.SetDefault("pipeline.acquire.enabled", false)
	viper.SetDefault("pipeline.acquire.retry.enabled", true)
	viper.SetDefault("pipeline.acquire.retry.maxretries", 3)
	viper.SetDefault("pipeline.acquire.retry.retrydelay", 5)
	viper.SetDefault("pipeline.acquire.retry.backoffmult", 2.0)

	viper.SetDefault("pipeline.staging.mindate", "2020-01-01")
	viper.SetDefault("pipeline.staging.futureslackhrs", 24)

	viper.SetDefault("pipeline.calendar.startdate", "2020-01-01")
	viper.SetDefault("pipeline.calendar.horizondays", 365)

	viper.SetDefault("pipeline.quality.maxsampleids", 20)

	viper.SetDefault("pipeline.maxparallel", 2)

	viper.SetDefault("report.searchlimit", 50)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")
}
