package checkpoint

import "errors"

// Reasons returned by Check.
var (
	ErrNilCheckpoint    = errors.New("checkpoint is nil")
	ErrMissingVersion   = errors.New("checkpoint has no version")
	ErrMissingPhase     = errors.New("checkpoint has no phase")
	ErrMissingTimestamp = errors.New("checkpoint has no timestamp")
	ErrBadVersion       = errors.New("checkpoint version must be at least 1")
	ErrUnknownPhase     = errors.New("checkpoint phase is not recognized")
)

// Check returns the first structural problem with c, or nil when c can be
// trusted. Anything ambiguous is rejected rather than defaulted.
func Check(c *Checkpoint) error {
	if c == nil {
		return ErrNilCheckpoint
	}
	if c.Version == 0 {
		return ErrMissingVersion
	}
	if c.Phase == "" {
		return ErrMissingPhase
	}
	if c.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if c.Version < 1 {
		return ErrBadVersion
	}
	if !c.Phase.Known() {
		return ErrUnknownPhase
	}
	return nil
}

// Validate reports whether c passes Check.
func Validate(c *Checkpoint) bool {
	return Check(c) == nil
}
