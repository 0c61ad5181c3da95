package testutil

import (
	"time"

	"github.com/thruflo/loopsh/internal/checkpoint"
)

// SampleTime is the timestamp used by the sample checkpoints.
var SampleTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// SampleSpec provides a minimal spec for testing planning.
const SampleSpec = `# Password Login

## Overview

Let users sign in with an email and password.

## Requirements

1. Store password hashes
2. Add a login endpoint
3. Add unit tests
`

// SamplePlan provides an implementation plan with nothing done yet.
const SamplePlan = `# Implementation Plan

- [ ] Store password hashes
- [ ] Add a login endpoint
- [ ] Add unit tests
`

// SamplePlanPartiallyComplete has the first item checked off.
const SamplePlanPartiallyComplete = `# Implementation Plan

- [x] Store password hashes
- [ ] Add a login endpoint
- [ ] Add unit tests
`

// SamplePlanComplete has every item checked off.
const SamplePlanComplete = `# Implementation Plan

- [x] Store password hashes
- [x] Add a login endpoint
- [x] Add unit tests
`

// SamplePlanTasks returns the item descriptions of SamplePlan in order.
// Returns a new slice each time to prevent test interference.
func SamplePlanTasks() []string {
	return []string{
		"Store password hashes",
		"Add a login endpoint",
		"Add unit tests",
	}
}

// SampleBuildingCheckpoint returns a resumable checkpoint taken while building
// the second plan item, after three iterations.
func SampleBuildingCheckpoint() *checkpoint.Checkpoint {
	c := checkpoint.New(checkpoint.PhaseBuilding, 3, SampleTime)
	c.CurrentTask = "Add a login endpoint"
	c.CompletedTasks = []string{"Store password hashes"}
	c.CanResume = true
	return c
}

// SamplePlanningCheckpoint returns a resumable checkpoint taken while planning.
func SamplePlanningCheckpoint() *checkpoint.Checkpoint {
	c := checkpoint.New(checkpoint.PhasePlanning, 0, SampleTime)
	c.CanResume = true
	return c
}

// SampleErrorCheckpoint returns a checkpoint for a run that stopped with a
// provider failure while planning.
func SampleErrorCheckpoint(canResume bool) *checkpoint.Checkpoint {
	c := checkpoint.New(checkpoint.PhaseError, 2, SampleTime)
	c.InterruptedPhase = checkpoint.PhasePlanning
	c.CanResume = canResume
	c.Error = &checkpoint.ErrorDetail{
		Kind:    checkpoint.ErrorKindProviderFailure,
		Message: "API timeout",
	}
	return c
}

// SampleCompleteCheckpoint returns a checkpoint for a finished run.
func SampleCompleteCheckpoint() *checkpoint.Checkpoint {
	c := checkpoint.New(checkpoint.PhaseComplete, 3, SampleTime)
	c.CompletedTasks = SamplePlanTasks()
	return c
}
