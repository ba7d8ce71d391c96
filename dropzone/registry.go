// Package dropzone arbitrates a single native drag stream between several
// mounted drop targets.
package dropzone

import (
	"sync"

	"Bobine/materialize"

	"github.com/google/uuid"
)

// Handler is the receiving side of a zone.
type Handler interface {
	// Full reports whether the zone has reached its file limit.
	Full() bool
	// Receive accepts the files of a drop routed to this zone.
	Receive(files []materialize.File) error
}

// Phase of the drag state machine. Dropped, Left and Cancelled are
// transitions back to Idle and never persist.
type Phase int

const (
	Idle Phase = iota
	Entered
	Hovering
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Entered:
		return "entered"
	case Hovering:
		return "over"
	default:
		return "unknown"
	}
}

// State is a snapshot of the claim.
type State struct {
	Phase   Phase  `json:"-"`
	Name    string `json:"phase"`
	Zone    string `json:"zone"`
	Session string `json:"session"`
}

type zone struct {
	id      string
	rect    Rect
	handler Handler
}

// Registry maps zone ids to rectangles and tracks the one claimed zone.
// One Registry exists per wizard session.
type Registry struct {
	mu       sync.Mutex
	zones    []*zone
	phase    Phase
	active   string
	session  string
	onChange func(State)
}

func NewRegistry() *Registry {
	return &Registry{}
}

// OnChange sets an observer called after every claim change. It is invoked
// without the registry lock held.
func (r *Registry) OnChange(fn func(State)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Register adds or replaces a zone. Last write wins.
func (r *Registry) Register(id string, rect Rect, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, z := range r.zones {
		if z.id == id {
			z.rect = rect
			z.handler = h
			return
		}
	}
	r.zones = append(r.zones, &zone{id: id, rect: rect, handler: h})
}

// Unregister removes a zone. A claimed zone releases its claim.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	for i, z := range r.zones {
		if z.id == id {
			r.zones = append(r.zones[:i], r.zones[i+1:]...)
			break
		}
	}
	if r.active != id {
		r.mu.Unlock()
		return
	}
	st := r.resetLocked()
	fn := r.onChange
	r.mu.Unlock()
	notify(fn, st)
}

// Active returns the claimed zone, if any.
func (r *Registry) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, r.active != ""
}

// State returns the current claim snapshot.
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

// Len returns the number of registered zones.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.zones)
}

func (r *Registry) lookup(id string) (*zone, bool) {
	for _, z := range r.zones {
		if z.id == id {
			return z, true
		}
	}
	return nil, false
}

// hit returns the first zone containing p.
func (r *Registry) hit(p Point) (*zone, bool) {
	for _, z := range r.zones {
		if z.rect.Contains(p) {
			return z, true
		}
	}
	return nil, false
}

// claimLocked makes id the active zone, starting a session from Idle.
func (r *Registry) claimLocked(id string) {
	if r.phase == Idle {
		r.session = uuid.NewString()
		r.phase = Entered
	} else {
		r.phase = Hovering
	}
	r.active = id
}

func (r *Registry) resetLocked() State {
	r.phase = Idle
	r.active = ""
	r.session = ""
	return r.stateLocked()
}

func (r *Registry) stateLocked() State {
	return State{Phase: r.phase, Name: r.phase.String(), Zone: r.active, Session: r.session}
}

func notify(fn func(State), st State) {
	if fn != nil {
		fn(st)
	}
}
