// Package testutil provides shared test utilities for loopsh.
//
// It holds the fixtures, environment helpers and assertions that the
// recovery, driver, effect and cli tests have in common. Packages that
// testutil itself imports (checkpoint, actionlog) cannot use it from
// their own tests.
//
// # Fixtures
//
//   - SampleSpec, SamplePlan, SamplePlanPartiallyComplete, SamplePlanComplete
//   - SamplePlanTasks() - item descriptions of SamplePlan
//   - SampleBuildingCheckpoint(), SamplePlanningCheckpoint(),
//     SampleErrorCheckpoint(canResume), SampleCompleteCheckpoint()
//
// # Environment Helpers
//
//   - SetupMemFS(t, base) - in-memory filesystem and a FileStore over it
//   - WriteCheckpoint, ReadCheckpoint - store access that fails the test
//   - WriteTestFile, MustMarshalJSON, MustUnmarshalJSON
//
// # Assertions
//
//   - AssertCheckpointPhase, AssertCheckpointError, AssertCompletedTasks
//   - AssertResumable, AssertNotResumable
//   - AssertReportCounts - per-type counts of a dry-run report
//
// # Timeouts
//
//   - ContextWithTestDeadline, RunContext, AssistantCallContext
package testutil
