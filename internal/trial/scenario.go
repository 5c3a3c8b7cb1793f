// Package trial runs simulation trials: it sequences initialization,
// stepping, noise injection, recording and cleanup for each trial, and
// schedules trials across a run with filesystem-based resumability.
package trial

import (
	"github.com/simdata/trajgen/internal/engine"
	"github.com/simdata/trajgen/internal/noise"
)

// Scene content is supplied by an external collaborator through the
// capability interfaces below. Each scenario implements them independently;
// the orchestrator is generic over all of them.

// SceneInitializer supplies the one-time commands sent before the first
// trial of a run (room geometry, global physics settings).
type SceneInitializer interface {
	SceneInitCommands() []engine.Command
}

// TrialInitializer supplies the commands that set up one trial. The seed
// sequence is passed in so initializers can apply launch-velocity noise
// (noise.PerturbInitialVelocity) while building their object-add commands.
// Placement noise is owned by the orchestrator, which injects it at the
// configured start frame.
type TrialInitializer interface {
	TrialInitCommands(trialIndex int, seq *noise.Sequence) []engine.Command

	// FrameDataRequestCommands are appended to the init batch and ask the
	// engine to report transforms, rigidbody state, collisions and any
	// sensor passes on every subsequent step.
	FrameDataRequestCommands() []engine.Command
}

// FrameCommandProvider supplies the scenario's per-step commands, given the
// previous step's response.
type FrameCommandProvider interface {
	PerFrameCommands(resp *engine.Response, frame int) []engine.Command
}

// TerminationPredicate reports scenario-specific completion (target reached,
// structure toppled). Trials also end when every dynamic body falls asleep.
type TerminationPredicate interface {
	IsComplete(resp *engine.Response, frame int) bool
}

// ModelNamer optionally exposes the model names of the bodies a trial adds,
// in registry order, for the static section.
type ModelNamer interface {
	ModelNames() []string
}

// Scenario bundles a collaborator's capabilities. Init is required; the
// other fields may be nil: a nil Scene sends no scene commands, a nil Frames
// sends no per-step commands, a nil Done never reports completion (trials
// end by sleeping or the frame cap).
type Scenario struct {
	Scene  SceneInitializer
	Init   TrialInitializer
	Frames FrameCommandProvider
	Done   TerminationPredicate
}
