package testutil

import (
	"context"
	"testing"
	"time"
)

const (
	// DefaultRunTimeout bounds a whole driver run, every provider call
	// included.
	DefaultRunTimeout = 2 * time.Minute

	// DefaultAssistantTimeout bounds a single assistant invocation.
	DefaultAssistantTimeout = 30 * time.Second

	// DefaultTestBuffer is kept free before the test deadline so cleanup
	// can still run.
	DefaultTestBuffer = 10 * time.Second
)

// ContextWithTestDeadline returns a context that expires buffer before the
// test's own deadline, or after fallback when the test has none.
//
//	ctx, cancel := testutil.ContextWithTestDeadline(t, time.Minute, testutil.DefaultTestBuffer)
//	defer cancel()
func ContextWithTestDeadline(t *testing.T, fallback, buffer time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()

	if deadline, ok := t.Deadline(); ok {
		if adjusted := deadline.Add(-buffer); time.Until(adjusted) > 0 {
			return context.WithDeadline(context.Background(), adjusted)
		}
	}
	return context.WithTimeout(context.Background(), fallback)
}

// RunContext bounds a full driver run.
func RunContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return ContextWithTestDeadline(t, DefaultRunTimeout, DefaultTestBuffer)
}

// AssistantCallContext bounds one provider call.
func AssistantCallContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return ContextWithTestDeadline(t, DefaultAssistantTimeout, DefaultTestBuffer)
}
