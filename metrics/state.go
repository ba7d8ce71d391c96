package metrics

import (
	"sort"

	"github.com/samber/lo"
)

// State is the selection in a form that survives a round trip through the
// frontend.
type State struct {
	Selected []string             `json:"selected"`
	Elements map[string][]string  `json:"elements,omitempty"`
	Ranges   map[string]TimeRange `json:"ranges,omitempty"`
}

// State captures the current selection.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settleRangesLocked()

	st := State{
		Selected: lo.Keys(e.selected),
		Elements: make(map[string][]string, len(e.elements)),
		Ranges:   make(map[string]TimeRange, len(e.ranges)),
	}
	sort.Strings(st.Selected)
	for k, v := range e.elements {
		if len(v) > 0 {
			st.Elements[k] = append([]string(nil), v...)
		}
	}
	for k, v := range e.ranges {
		st.Ranges[k] = v
	}
	return st
}

// Restore replaces the selection with st, keeping only what the catalog
// allows. It never starts the time-axis fetch: without a loaded axis, ranges
// are taken as given.
func (e *Engine) Restore(st State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.selected = make(map[string]bool)
	e.elements = make(map[string][]string)
	e.ranges = make(map[string]TimeRange)

	for _, key := range st.Selected {
		if _, m, ok := e.metric(key); ok && m.Available {
			e.selected[key] = true
		}
	}
	for key, elements := range st.Elements {
		_, m, ok := e.metric(key)
		if !ok || !m.HasElements() {
			continue
		}
		kept := lo.Uniq(lo.Filter(elements, func(el string, _ int) bool {
			return lo.Contains(m.ChemicalElements, el)
		}))
		if len(kept) > 0 {
			e.elements[key] = kept
		}
	}
	for key, r := range st.Ranges {
		gk, err := rangeKey(key)
		if err != nil || r.IsZero() {
			continue
		}
		sensor, found := lo.Find(Sensors, func(s Sensor) bool { return s.GlobalKey() == gk })
		if found && e.anySelectedLocked(sensor) {
			e.ranges[gk] = r
		}
	}
	e.settleRangesLocked()
}
