/*package errs contains the error types returned by cfdem's components and
simple functions for reporting fatal errors to the user.

Components never exit the process themselves. They return one of the typed
errors below (possibly wrapped with fmt.Errorf's %w verb) and the command line
driver decides how to report it with External or Internal.
*/
package errs

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime/debug"
)

// Kind classifies an error into one of the categories that the driver knows
// how to handle.
type Kind int

const (
	// Unknown is any error which isn't one of the types in this package.
	Unknown Kind = iota
	Config
	Convergence
	Numerical
	Domain
	RestartMismatch
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "configuration"
	case Convergence:
		return "convergence"
	case Numerical:
		return "numerical"
	case Domain:
		return "particle domain"
	case RestartMismatch:
		return "restart mismatch"
	default:
		return "unknown"
	}
}

// ConfigError is returned when a configuration value is missing or invalid.
// It is always detected before the first step is taken.
type ConfigError struct {
	Section, Key string
	Msg          string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config [%s]: %s", e.Section, e.Msg)
	}
	return fmt.Sprintf("config [%s] %s: %s", e.Section, e.Key, e.Msg)
}

// Configf creates a new ConfigError with a printf-style message.
func Configf(section, key, format string, a ...interface{}) *ConfigError {
	return &ConfigError{section, key, fmt.Sprintf(format, a...)}
}

// ConvergenceError is returned when an iterative solve fails to reach its
// tolerance within its iteration limit.
type ConvergenceError struct {
	Solver     string
	Residual   float64
	Target     float64
	Iterations int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s solve did not converge after %d iterations: "+
		"residual = %g, target = %g", e.Solver, e.Iterations,
		e.Residual, e.Target)
}

// NumericalError is returned when a field or a scalar quantity becomes
// non-finite or otherwise physically invalid. Level, Box and Cell are -1
// when the location isn't associated with a grid.
type NumericalError struct {
	Quantity string
	Level    int
	Box      int
	Cell     [3]int
	Value    float64
}

func (e *NumericalError) Error() string {
	if e.Level < 0 {
		return fmt.Sprintf("%s has invalid value %g", e.Quantity, e.Value)
	}
	return fmt.Sprintf("%s has invalid value %g on level %d, box %d, "+
		"cell %v", e.Quantity, e.Value, e.Level, e.Box, e.Cell)
}

// DomainViolation records particles which left the domain during a step.
// It is recoverable: the particles are removed and counted.
type DomainViolation struct {
	Step    int
	Removed int
}

func (e *DomainViolation) Error() string {
	return fmt.Sprintf("%d particles left the domain during step %d",
		e.Removed, e.Step)
}

// RestartMismatchError is returned when a checkpoint can't be loaded into
// the current configuration.
type RestartMismatchError struct {
	File string
	Msg  string
}

func (e *RestartMismatchError) Error() string {
	return fmt.Sprintf("cannot restart from %s: %s", e.File, e.Msg)
}

// KindOf returns the Kind of err, looking through any wrapping.
func KindOf(err error) Kind {
	var (
		ce *ConfigError
		cv *ConvergenceError
		ne *NumericalError
		dv *DomainViolation
		rm *RestartMismatchError
	)
	switch {
	case err == nil:
		return Unknown
	case errors.As(err, &ce):
		return Config
	case errors.As(err, &cv):
		return Convergence
	case errors.As(err, &ne):
		return Numerical
	case errors.As(err, &dv):
		return Domain
	case errors.As(err, &rm):
		return RestartMismatch
	}
	return Unknown
}

// IsFatal returns true if err should stop the simulation. Only domain
// violations are recoverable.
func IsFatal(err error) bool {
	return err != nil && KindOf(err) != Domain
}

// CheckFinite returns a NumericalError if x is NaN, infinite, or (when
// positive is true) not strictly positive.
func CheckFinite(quantity string, x float64, positive bool) error {
	if x != x || x > maxFloat || x < -maxFloat || (positive && x <= 0) {
		return &NumericalError{quantity, -1, -1, [3]int{}, x}
	}
	return nil
}

const maxFloat = 1.7976931348623157e308

// External reports an error to stderr and kills the program. It should be
// used when an error is something a user could reasonbly be expected to fix
// through changes in configuration/data/environment. It has the same
// signature as the standard fmt.*printf() functions.
func External(format string, a ...interface{}) {
	log.Printf("cfdem exited early with the following error:\n"+format, a...)
	os.Exit(1)
}

// Internal reports an error to stderr along with a stack trace and kills the
// program. It should be used when the error requires a code dive to fix.
func Internal(format string, a ...interface{}) {
	log.Println("cfdem exited early with the following error:")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n\n")
	debug.PrintStack()
	os.Exit(1)
}

// Report chooses between External and Internal based on the kind of err.
// Configuration, restart and numerical problems are the user's to fix.
func Report(err error) {
	switch KindOf(err) {
	case Unknown:
		Internal("%s", err.Error())
	default:
		External("%s error: %s", KindOf(err), err.Error())
	}
}
