// Package assert provides lightweight runtime invariant checks that
// surface as errors rather than panics, so callers in a library with no
// business crashing its host process can fail a single operation instead.
package assert

import "fmt"

// Check returns an error built from format/args when cond is false, and nil
// otherwise. Call sites treat a non-nil return as "abort this operation",
// never as a signal to retry or recover partial state.
func Check(cond bool, format string, args ...interface{}) error {
	if cond {
		return nil
	}
	return fmt.Errorf(format, args...)
}
