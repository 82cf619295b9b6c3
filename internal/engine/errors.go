package engine

import "fmt"

// ValidationError reports a malformed ShipmentDescriptor. The invocation is
// aborted immediately; no partial result is produced.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("engine: invalid shipment descriptor: %s: %s", e.Field, e.Reason)
}

// NoRateDefinedError reports a matched authority rule lacking a rate at every
// specificity level for the given inputs. This is a catalog configuration
// fault, distinct from a legitimate zero-duty outcome.
type NoRateDefinedError struct {
	RuleID string
	HSCode string
	Origin string
}

func (e *NoRateDefinedError) Error() string {
	return fmt.Sprintf("engine: no rate defined for authority %s (hs=%s origin=%s)", e.RuleID, e.HSCode, e.Origin)
}
