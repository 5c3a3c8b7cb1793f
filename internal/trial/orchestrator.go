package trial

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/simdata/trajgen/internal/engine"
	"github.com/simdata/trajgen/internal/noise"
	"github.com/simdata/trajgen/internal/trajstore"
)

// State tracks where a trial is in its lifecycle.
type State int

const (
	StateInit State = iota
	StateRunning
	StateDone
	StateCleanup
	StatePersisted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateCleanup:
		return "cleanup"
	case StatePersisted:
		return "persisted"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// abyssY is the plane below which a body no longer counts toward the
// all-asleep check. Objects that fall off the scene never sleep but should
// not hold a trial open.
const abyssY = -1.0

// Result summarizes one persisted trial.
type Result struct {
	TrialIndex    int
	Frames        int
	TrialTimeout  bool
	TrialComplete bool
	StimulusName  string
}

// Orchestrator drives a single trial end to end: init commands, the step
// loop with noise injection and frame recording, cleanup, and atomic
// persistence. Create a fresh Orchestrator per trial.
type Orchestrator struct {
	Channel    engine.Channel
	Scenario   Scenario
	Noise      *noise.Params
	MaxFrames  int
	BaseSeed   uint64
	Provenance string
	Log        *log.Logger

	state    State
	registry []int64
	states   map[int64]engine.ObjectPhysicsState
}

// State reports the trial's current lifecycle state.
func (o *Orchestrator) State() State { return o.state }

func (o *Orchestrator) logf(format string, args ...any) {
	if o.Log != nil {
		o.Log.Printf(format, args...)
	}
}

func (o *Orchestrator) abort(st *trajstore.Store, err error) error {
	o.state = StateAborted
	if st != nil {
		if derr := st.Discard(); derr != nil {
			o.logf("discard after abort: %v", derr)
		}
	}
	return err
}

// RunTrial executes one trial, recording frames into a temporary store at
// tmpPath and moving it to finalPath on success. The preamble commands, if
// any, are prepended to the trial's init batch.
func (o *Orchestrator) RunTrial(ctx context.Context, trialIndex int, tmpPath, finalPath, stimulusName string, preamble []engine.Command) (*Result, error) {
	noiseParams := o.Noise
	if noiseParams == nil {
		noiseParams = &noise.Params{}
	}
	seq := noise.NewSequence(o.BaseSeed, trialIndex)

	o.state = StateInit
	o.registry = nil
	o.states = make(map[int64]engine.ObjectPhysicsState)

	st, err := trajstore.Open(tmpPath)
	if err != nil {
		return nil, o.abort(nil, fmt.Errorf("trial %d: open store: %w", trialIndex, err))
	}

	init := append([]engine.Command{}, preamble...)
	init = append(init, o.Scenario.Init.TrialInitCommands(trialIndex, seq)...)
	init = append(init, o.Scenario.Init.FrameDataRequestCommands()...)

	resp, err := o.Channel.Send(ctx, init)
	if err != nil {
		return nil, o.abort(st, fmt.Errorf("trial %d: init: %w", trialIndex, err))
	}
	resp.ApplyTo(o.states)
	o.buildRegistry(resp)

	if err := o.writeStatic(st, stimulusName, resp); err != nil {
		return nil, o.abort(st, fmt.Errorf("trial %d: %w", trialIndex, err))
	}

	// Frame 0 is the placement frame; no trial can end on it.
	if err := o.writeFrame(st, 0, resp, trajstore.FrameLabels{}); err != nil {
		return nil, o.abort(st, fmt.Errorf("trial %d: %w", trialIndex, err))
	}

	o.state = StateRunning
	startFrame := noiseParams.GetStartFrame()
	// A start frame of 0 means "perturb the initial placement": the batch
	// goes out on the first step, built from the frame-0 states.
	injectAt := startFrame
	if injectAt < 1 {
		injectAt = 1
	}
	result := &Result{TrialIndex: trialIndex, StimulusName: stimulusName}

	for frame := 1; ; frame++ {
		var batch []engine.Command
		if frame == injectAt && noiseParams.PlacementEnabled() {
			batch = append(batch, o.perturbPlacements(seq, noiseParams)...)
		}
		if frame >= startFrame {
			for _, ev := range resp.Collisions {
				batch = append(batch, noise.CollisionCommands(seq, noiseParams, ev)...)
			}
		}
		if o.Scenario.Frames != nil {
			batch = append(batch, o.Scenario.Frames.PerFrameCommands(resp, frame)...)
		}

		resp, err = o.Channel.Send(ctx, batch)
		if err != nil {
			return nil, o.abort(st, fmt.Errorf("trial %d frame %d: %w", trialIndex, frame, err))
		}
		resp.ApplyTo(o.states)

		sleeping := o.allAsleep(resp)
		complete := o.Scenario.Done != nil && o.Scenario.Done.IsComplete(resp, frame)
		if frame >= o.MaxFrames && !sleeping && !complete {
			// The frame cap cuts the trial short; record it as a timeout.
			sleeping = true
		}
		done := sleeping || complete
		labels := trajstore.FrameLabels{
			TrialEnd:      done,
			TrialTimeout:  sleeping && !complete,
			TrialComplete: complete && !sleeping,
		}
		if err := o.writeFrame(st, frame, resp, labels); err != nil {
			return nil, o.abort(st, fmt.Errorf("trial %d: %w", trialIndex, err))
		}

		if done {
			result.Frames = frame + 1
			result.TrialTimeout = labels.TrialTimeout
			result.TrialComplete = labels.TrialComplete
			break
		}
	}
	o.state = StateDone

	o.state = StateCleanup
	cleanup := make([]engine.Command, 0, len(o.registry))
	for _, id := range o.registry {
		cleanup = append(cleanup, engine.DestroyObject{ID: id})
	}
	if len(cleanup) > 0 {
		if _, err := o.Channel.Send(ctx, cleanup); err != nil {
			return nil, o.abort(st, fmt.Errorf("trial %d: cleanup: %w", trialIndex, err))
		}
	}

	if err := st.Finalize(finalPath); err != nil {
		return nil, o.abort(st, fmt.Errorf("trial %d: finalize: %w", trialIndex, err))
	}
	o.state = StatePersisted
	o.logf("trial %04d persisted: frames=%d timeout=%v complete=%v", trialIndex, result.Frames, result.TrialTimeout, result.TrialComplete)
	return result, nil
}

// buildRegistry fixes the per-trial object ordering from the first response.
// Transforms arrive in engine order; the registry preserves it so frame rows
// and static labels line up across the whole trial.
func (o *Orchestrator) buildRegistry(resp *engine.Response) {
	seen := make(map[int64]bool, len(resp.Transforms))
	for _, tr := range resp.Transforms {
		if !seen[tr.ID] {
			seen[tr.ID] = true
			o.registry = append(o.registry, tr.ID)
		}
	}
	// Bodies that only ever show up in rigidbody records still belong to
	// the trial; append them in a stable order.
	var extra []int64
	for _, rb := range resp.Rigidbodies {
		if !seen[rb.ID] {
			seen[rb.ID] = true
			extra = append(extra, rb.ID)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	o.registry = append(o.registry, extra...)
}

func (o *Orchestrator) writeStatic(st *trajstore.Store, stimulusName string, resp *engine.Response) error {
	colors := make(map[int64][3]uint8, len(resp.Colors))
	for _, c := range resp.Colors {
		colors[c.ID] = c.Color
	}
	labels := make([]trajstore.ObjectLabel, 0, len(o.registry))
	for _, id := range o.registry {
		c := colors[id]
		labels = append(labels, trajstore.ObjectLabel{ObjectID: id, R: c[0], G: c[1], B: c[2]})
	}
	rec := trajstore.StaticRecord{
		Provenance:   o.Provenance,
		StimulusName: stimulusName,
		ObjectIDs:    append([]int64{}, o.registry...),
		Labels:       labels,
	}
	if mn, ok := o.Scenario.Init.(ModelNamer); ok {
		rec.ModelNames = mn.ModelNames()
	}
	return st.WriteStatic(rec)
}

func (o *Orchestrator) writeFrame(st *trajstore.Store, frame int, resp *engine.Response, labels trajstore.FrameLabels) error {
	objs := make([]engine.ObjectPhysicsState, 0, len(o.registry))
	for _, id := range o.registry {
		if s, ok := o.states[id]; ok {
			objs = append(objs, s)
		}
	}
	return st.WriteFrame(frame, trajstore.FrameRecord{
		Objects: objs,
		Labels:  labels,
		Sensors: resp.Sensors,
	})
}

// allAsleep reports whether every dynamic body has settled. Bodies below
// the abyss plane are ignored; they fell out of the scene and will never
// sleep. A response with no rigidbody records counts as settled.
func (o *Orchestrator) allAsleep(resp *engine.Response) bool {
	positions := make(map[int64]engine.Vec3, len(resp.Transforms))
	for _, tr := range resp.Transforms {
		positions[tr.ID] = tr.Position
	}
	for _, rb := range resp.Rigidbodies {
		if rb.Sleeping {
			continue
		}
		if pos, ok := positions[rb.ID]; ok && pos.Y < abyssY {
			continue
		}
		return false
	}
	return true
}

// perturbPlacements perturbs every tracked body's cached placement state and
// returns the commands that push the perturbed values back to the engine.
// Draws follow registry order so a given seed always produces the same
// trajectory.
func (o *Orchestrator) perturbPlacements(seq *noise.Sequence, p *noise.Params) []engine.Command {
	var cmds []engine.Command
	for _, id := range o.registry {
		s, ok := o.states[id]
		if !ok {
			continue
		}
		s = noise.PerturbPlacement(seq, p, s)
		o.states[id] = s
		cmds = append(cmds, noise.PlacementCommands(s)...)
	}
	return cmds
}
