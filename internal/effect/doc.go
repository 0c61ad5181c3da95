// Package effect is the boundary between the loop's decision logic and the
// outside world. Every side-effecting operation the session driver needs
// goes through a Provider:
//
//   - Real performs the assistant call, file write or session change and
//     returns the true result.
//   - Simulated records one actionlog entry per call and returns a
//     deterministic success shaped like Real's, touching neither the
//     filesystem nor the assistant.
//
// The driver receives a Provider and never learns which one it holds, so a
// dry run follows exactly the branches a real run would take on success.
package effect
