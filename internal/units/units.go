// Package units converts speeds and durations for presentation, the way a
// participant or spectator reads them rather than the way the store keeps
// them (m/s, seconds).
package units

import "fmt"

// Unit constants for speed conversion.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values.
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages.
func GetValidUnitsString() string {
	return "mps, mph, kmph, kph"
}

// ConvertSpeed converts a speed from meters per second to the target units.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.23694
	case KMPH, KPH:
		return speedMPS * 3.6
	case MPS:
		return speedMPS
	default:
		return speedMPS
	}
}

// ConvertToMPS converts a speed in the given unit back to meters per second.
func ConvertToMPS(speed float64, fromUnits string) float64 {
	switch fromUnits {
	case MPH:
		return speed / 2.23694
	case KMPH, KPH:
		return speed / 3.6
	case MPS:
		return speed
	default:
		return speed
	}
}

// FormatDuration renders a non-negative second count as HH:MM:SS, the way a
// race clock or a split time is displayed.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds + 0.5)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// PacePerKm converts a speed in m/s to a MM:SS-per-kilometer pace string.
// A zero or negative speed has no meaningful pace and renders as "--:--".
func PacePerKm(speedMPS float64) string {
	if speedMPS <= 0 {
		return "--:--"
	}
	secsPerKm := 1000.0 / speedMPS
	total := int64(secsPerKm + 0.5)
	m := total / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}
