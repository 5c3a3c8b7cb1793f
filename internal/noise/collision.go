package noise

import (
	"github.com/simdata/trajgen/internal/engine"
)

// CollisionCommands perturbs one collision event and returns the force
// commands that realise the perturbation on the next step. The impulse is
// split into magnitude and unit direction; the magnitude is redrawn from a
// Gaussian (clamped at zero) when collision_mag is set, the direction from a
// von Mises-Fisher distribution when collision_dir is set. The perturbed
// minus original differential is divided evenly across the event's contact
// points and applied equal-and-opposite: +share on the patient, -share on
// the agent, at every contact point.
//
// Nil is returned when collision noise is unconfigured, when the impulse
// magnitude is strictly below the threshold, and for degenerate events
// (zero impulse, no contact points).
func CollisionCommands(seq *Sequence, p *Params, ev engine.CollisionEvent) []engine.Command {
	if !p.CollisionEnabled() {
		return nil
	}
	mag := ev.Impulse.Norm()
	if mag < p.GetCollisionThreshold() {
		return nil
	}
	if mag == 0 {
		// A zero impulse has no direction to redraw.
		return nil
	}
	contacts := ev.NumContacts
	if contacts == 0 {
		contacts = len(ev.ContactPoints)
	}
	if contacts == 0 || len(ev.ContactPoints) == 0 {
		return nil
	}

	dir := ev.Impulse.Scale(1 / mag)
	perturbedMag := mag
	if p.CollisionMag != nil {
		perturbedMag = seq.normalClamped(mag, *p.CollisionMag)
	}
	perturbedDir := dir
	if p.CollisionDir != nil {
		perturbedDir = vonMisesFisher(seq.source(), dir, *p.CollisionDir)
	}

	delta := perturbedDir.Scale(perturbedMag).Sub(ev.Impulse)
	share := delta.Scale(1 / float64(contacts))

	cmds := make([]engine.Command, 0, 2*len(ev.ContactPoints))
	for _, pt := range ev.ContactPoints {
		cmds = append(cmds, engine.ApplyForceAtPosition{ID: ev.PatientID, Force: share, Position: pt})
	}
	for _, pt := range ev.ContactPoints {
		cmds = append(cmds, engine.ApplyForceAtPosition{ID: ev.AgentID, Force: share.Neg(), Position: pt})
	}
	return cmds
}
