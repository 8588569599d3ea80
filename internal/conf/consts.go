// conf/consts.go shared constants for the conf package
package conf

// RotationType defines the log rotation strategy.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

const (
	osWindows = "windows"
)

// DateLayout is the calendar date layout used across the warehouse.
const DateLayout = "2006-01-02"
