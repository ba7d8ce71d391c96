package dropzone

import (
	"context"
	"fmt"
	"sync"

	"Bobine/logger"
	"Bobine/materialize"

	"github.com/google/uuid"
)

// Kind of a native drag event.
type Kind int

const (
	Enter Kind = iota
	Over
	Drop
	Leave
	Cancel
)

func (k Kind) String() string {
	switch k {
	case Enter:
		return "enter"
	case Over:
		return "over"
	case Drop:
		return "drop"
	case Leave:
		return "leave"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// ParseKind maps the frontend's event names to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k := Enter; k <= Cancel; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Event is one item of the native drag stream.
type Event struct {
	Kind  Kind
	Pos   *Point
	Paths []string
	// Zone is the zone a leave/cancel originates from. Empty on a native
	// cancel, which applies to whatever is active.
	Zone string
}

// Materializer converts dropped paths to files.
type Materializer interface {
	Materialize(ctx context.Context, paths []string) ([]materialize.File, error)
}

// Arbitrator resolves which registered zone a drag targets and routes drops
// to it. At most one zone is claimed at any time.
type Arbitrator struct {
	mu    sync.Mutex // serializes claim changes; not held while reading files
	reg   *Registry
	files Materializer
	ratio float64
}

func NewArbitrator(reg *Registry, files Materializer) *Arbitrator {
	return &Arbitrator{reg: reg, files: files, ratio: 1}
}

// SetPixelRatio records the display's device pixel ratio used for the
// fallback containment pass.
func (a *Arbitrator) SetPixelRatio(ratio float64) {
	if ratio <= 0 {
		ratio = 1
	}
	a.mu.Lock()
	a.ratio = ratio
	a.mu.Unlock()
}

// Registry returns the registry the arbitrator writes claims to.
func (a *Arbitrator) Registry() *Registry {
	return a.reg
}

// Handle applies one event. Only a failed materialization returns an error;
// drops without a target or onto a full zone are silently ignored. A drop
// ends the gesture before its files are read, so later events are handled
// while a slow read is in progress.
func (a *Arbitrator) Handle(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case Enter, Over:
		a.mu.Lock()
		defer a.mu.Unlock()
		a.move(ev)
		return nil
	case Drop:
		target, session := a.take(ev)
		return a.deliver(ctx, target, session, ev.Paths)
	case Leave, Cancel:
		a.mu.Lock()
		defer a.mu.Unlock()
		a.release(ev)
		return nil
	default:
		return fmt.Errorf("unknown drag event kind %d", ev.Kind)
	}
}

// resolve runs the two-pass containment test: raw coordinates first, then
// coordinates divided by the pixel ratio.
func (a *Arbitrator) resolve(p Point) (*zone, bool) {
	if z, ok := a.reg.hit(p); ok {
		return z, true
	}
	if a.ratio == 1 {
		return nil, false
	}
	return a.reg.hit(p.Scale(a.ratio))
}

func (a *Arbitrator) contains(z *zone, p Point) bool {
	return z.rect.Contains(p) || (a.ratio != 1 && z.rect.Contains(p.Scale(a.ratio)))
}

func (a *Arbitrator) move(ev Event) {
	if ev.Pos == nil {
		return
	}
	r := a.reg
	r.mu.Lock()
	before := r.stateLocked()

	if z, ok := a.resolve(*ev.Pos); ok && (z.handler == nil || !z.handler.Full()) {
		r.claimLocked(z.id)
	} else if r.active != "" {
		cur, found := r.lookup(r.active)
		if !found || !a.contains(cur, *ev.Pos) {
			r.resetLocked()
		}
	}

	after := r.stateLocked()
	fn := r.onChange
	r.mu.Unlock()

	if before.Zone != after.Zone || before.Phase != after.Phase {
		logger.Debug("drag %s: %s -> %s (zone %q)", ev.Kind, before.Name, after.Name, after.Zone)
		notify(fn, after)
	}
}

// take ends the gesture and returns the zone a drop lands on: the claimed
// zone, or, when the claim is already gone, the zone under the drop point.
func (a *Arbitrator) take(ev Event) (*zone, string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := a.reg
	r.mu.Lock()
	var target *zone
	if r.active != "" {
		target, _ = r.lookup(r.active)
	} else if ev.Pos != nil && len(ev.Paths) > 0 {
		target, _ = a.resolve(*ev.Pos)
	}
	session := r.session
	st := r.resetLocked()
	fn := r.onChange
	r.mu.Unlock()
	notify(fn, st)

	if session == "" {
		session = uuid.NewString()
	}
	return target, session
}

func (a *Arbitrator) deliver(ctx context.Context, target *zone, session string, paths []string) error {
	if target == nil || len(paths) == 0 {
		logger.Debug("drop ignored: no active zone or no paths")
		return nil
	}
	if target.handler == nil || target.handler.Full() {
		logger.Debug("drop ignored: zone %q is at its limit", target.id)
		return nil
	}

	files, err := a.files.Materialize(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to read dropped files: %w", err)
	}
	logger.Info("drop session %s: %d file(s) to zone %q", session, len(files), target.id)
	return target.handler.Receive(files)
}

func (a *Arbitrator) release(ev Event) {
	r := a.reg
	r.mu.Lock()
	if r.active == "" || (ev.Zone != "" && ev.Zone != r.active) {
		r.mu.Unlock()
		return
	}
	st := r.resetLocked()
	fn := r.onChange
	r.mu.Unlock()
	logger.Debug("drag %s: released zone", ev.Kind)
	notify(fn, st)
}
