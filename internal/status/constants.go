// internal/status/constants.go
package status

// ---- HEALTH CODES ----

// HealthUnknown represents the state before the first poll.
const HealthUnknown uint16 = 0

// HealthOK represents a channel with a fresh reading.
const HealthOK uint16 = 1

// HealthError represents a transport fault; polling has stopped.
const HealthError uint16 = 2

// HealthStale represents a channel whose last poll missed.
const HealthStale uint16 = 3

// HealthDisabled represents a channel switched off by the operator.
const HealthDisabled uint16 = 4

// ---- ERROR CODES ----

// ErrorGeneric is reported for errors that expose no code.
const ErrorGeneric uint16 = 1

// ---- DISPLAY TEXT ----

const (
	TextNoReading = "--- mm"
	TextInactive  = "Inactive"
	TextNoStdDev  = "Std: ---"
)
