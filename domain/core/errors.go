package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Parameter errors
	ErrInvalidParameterRange  = errors.New("parameter out of range")
	ErrInsufficientPopulation = errors.New("population too small for requested sample")

	// Sampling errors
	ErrImplausibleDistribution = errors.New("implausible distribution parameters")
	ErrNonPositiveShape        = errors.New("non-positive shape parameter")
	ErrDegenerateSample        = errors.New("sample is essentially constant")

	// Data errors
	ErrMissingEmpiricalData = errors.New("missing empirical data")
	ErrRunNotFound          = errors.New("power run not found")
)

// NewRangeError reports a parameter outside its permitted closed interval.
func NewRangeError(name string, value, lo, hi float64) error {
	return fmt.Errorf("%w: %s=%g not in [%g, %g]", ErrInvalidParameterRange, name, value, lo, hi)
}

// NewMissingDataError reports an empty or absent empirical table.
func NewMissingDataError(table string) error {
	return fmt.Errorf("%w: %s is empty", ErrMissingEmpiricalData, table)
}

func NewImplausibleError(attempts int, lower, upper float64) error {
	return fmt.Errorf("%w: no individual with ed25 >= %.4g and ed75 <= %.4g after %d attempts",
		ErrImplausibleDistribution, lower, upper, attempts)
}

func NewInsufficientPopulationError(have, need int) error {
	return fmt.Errorf("%w: have %d individuals, need %d", ErrInsufficientPopulation, have, need)
}

// IsParameterError reports whether err is caused by caller-supplied values.
func IsParameterError(err error) bool {
	return errors.Is(err, ErrInvalidParameterRange) ||
		errors.Is(err, ErrInsufficientPopulation)
}

// IsSamplingError reports whether err means the simulation could not produce
// usable draws for otherwise valid parameters.
func IsSamplingError(err error) bool {
	return errors.Is(err, ErrImplausibleDistribution) ||
		errors.Is(err, ErrNonPositiveShape) ||
		errors.Is(err, ErrDegenerateSample)
}
