package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"Bobine/lazy"

	"github.com/samber/lo"
)

var (
	ErrUnknownTime = errors.New("time is not on the sensor's axis")
	ErrNoTimeRange = errors.New("sensor has no time range")
)

// Engine tracks which catalog metrics are selected and projects them into a
// Selection. Expected edge cases (unknown keys, unavailable metrics, error
// sensors) are no-ops, never errors.
type Engine struct {
	mu       sync.Mutex
	catalog  Catalog
	selected map[string]bool
	elements map[string][]string
	ranges   map[string]TimeRange
	axis     *lazy.Value[TimeAxis]
}

// NewEngine builds an engine over catalog. fetchAxis loads the time axis the
// first time a time-series metric is selected; it may be nil.
func NewEngine(catalog Catalog, fetchAxis lazy.Fetch[TimeAxis]) *Engine {
	if fetchAxis == nil {
		fetchAxis = func(context.Context) (TimeAxis, error) { return TimeAxis{}, nil }
	}
	e := &Engine{axis: lazy.New(fetchAxis)}
	e.Reset(catalog)
	return e
}

// Reset replaces the catalog and clears all selection state, including the
// cached time axis.
func (e *Engine) Reset(catalog Catalog) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if catalog == nil {
		catalog = Catalog{}
	}
	e.catalog = catalog
	e.selected = make(map[string]bool)
	e.elements = make(map[string][]string)
	e.ranges = make(map[string]TimeRange)
	e.axis.Reset()
}

// Catalog returns the catalog the engine selects from.
func (e *Engine) Catalog() Catalog {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog
}

func (e *Engine) metric(key string) (Sensor, Metric, bool) {
	sensor, i, ok := ParseKey(key)
	if !ok || !lo.Contains(Sensors, sensor) {
		return "", Metric{}, false
	}
	list := e.catalog[sensor].Available()
	if i >= len(list) {
		return "", Metric{}, false
	}
	return sensor, list[i], true
}

// availableLocked lists every selectable key in display order. Catalog
// entries for sensors the report does not know are never selectable.
func (e *Engine) availableLocked() []string {
	var keys []string
	for _, s := range Sensors {
		for i, m := range e.catalog[s].Available() {
			if m.Available {
				keys = append(keys, Key(s, i))
			}
		}
	}
	return keys
}

// Available returns every selectable key.
func (e *Engine) Available() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.availableLocked()
}

// Toggle flips a metric's membership and reports whether anything changed.
// Selecting the first metric of a time-series sensor starts the time-axis
// fetch; deselecting the last one clears the sensor's shared range.
func (e *Engine) Toggle(ctx context.Context, key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	sensor, m, ok := e.metric(key)
	if !ok || !m.Available {
		return false
	}

	if e.selected[key] {
		delete(e.selected, key)
		if sensor.Kind() == TimeSeries && !e.anySelectedLocked(sensor) {
			delete(e.ranges, sensor.GlobalKey())
		}
		return true
	}

	e.selected[key] = true
	if sensor.Kind() == TimeSeries {
		e.axis.Trigger(ctx)
	}
	return true
}

func (e *Engine) anySelectedLocked(sensor Sensor) bool {
	for key := range e.selected {
		if s, _, ok := ParseKey(key); ok && s == sensor {
			return true
		}
	}
	return false
}

// IsSelected reports whether key is selected.
func (e *Engine) IsSelected(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected[key]
}

// Selected returns the selected keys, sorted.
func (e *Engine) Selected() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := lo.Keys(e.selected)
	sort.Strings(keys)
	return keys
}

// AddElement adds a chemical element to a metric's sub-selection.
func (e *Engine) AddElement(key, element string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, m, ok := e.metric(key)
	if !ok || !m.HasElements() || !lo.Contains(m.ChemicalElements, element) {
		return false
	}
	if lo.Contains(e.elements[key], element) {
		return false
	}
	e.elements[key] = append(e.elements[key], element)
	return true
}

// RemoveElement removes a chemical element from a metric's sub-selection.
func (e *Engine) RemoveElement(key, element string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, m, ok := e.metric(key)
	if !ok || !m.HasElements() || !lo.Contains(e.elements[key], element) {
		return false
	}
	e.elements[key] = lo.Without(e.elements[key], element)
	return true
}

// Elements returns the chosen elements of a metric.
func (e *Engine) Elements(key string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string{}, e.elements[key]...)
}

// rangeKey maps a metric key or a global key of a time-series sensor to the
// sensor's shared range key.
func rangeKey(key string) (string, error) {
	sensor, _, ok := ParseKey(key)
	if !ok {
		for _, s := range Sensors {
			if s.GlobalKey() == key {
				sensor, ok = s, true
			}
		}
	}
	if !ok || sensor.Kind() != TimeSeries {
		return "", fmt.Errorf("%w: %s", ErrNoTimeRange, key)
	}
	return sensor.GlobalKey(), nil
}

// SetTimeRange stores the range shared by every selected metric of the key's
// sensor. Once the axis is loaded, times must lie on it and an end earlier
// than the start is dropped. A range set before that is accepted as given
// and settled against the axis when it arrives.
func (e *Engine) SetTimeRange(key string, r TimeRange) (TimeRange, error) {
	gk, err := rangeKey(key)
	if err != nil {
		return TimeRange{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if axis, ok := e.axis.Peek(); ok {
		if r, err = checkRange(axis, r); err != nil {
			return TimeRange{}, err
		}
	}

	if r.IsZero() {
		delete(e.ranges, gk)
	} else {
		e.ranges[gk] = r
	}
	return r, nil
}

// checkRange requires both times of r to lie on axis and drops an end
// earlier than the start.
func checkRange(axis TimeAxis, r TimeRange) (TimeRange, error) {
	start, end := -1, -1
	if r.StartTime != "" {
		if start = axis.Index(r.StartTime); start < 0 {
			return TimeRange{}, fmt.Errorf("%w: %s", ErrUnknownTime, r.StartTime)
		}
	}
	if r.EndTime != "" {
		if end = axis.Index(r.EndTime); end < 0 {
			return TimeRange{}, fmt.Errorf("%w: %s", ErrUnknownTime, r.EndTime)
		}
	}
	if start >= 0 && end >= 0 && end < start {
		r.EndTime = ""
	}
	return r, nil
}

// settleRangesLocked re-checks ranges stored before the axis arrived: times
// missing from the axis are cleared and a reversed end is dropped. Every
// read of the ranges goes through it.
func (e *Engine) settleRangesLocked() {
	axis, ok := e.axis.Peek()
	if !ok {
		return
	}
	for gk, r := range e.ranges {
		if axis.Index(r.StartTime) < 0 {
			r.StartTime = ""
		}
		if axis.Index(r.EndTime) < 0 {
			r.EndTime = ""
		}
		r, _ = checkRange(axis, r)
		if r.IsZero() {
			delete(e.ranges, gk)
		} else {
			e.ranges[gk] = r
		}
	}
}

// TimeRange returns the shared range for key's sensor.
func (e *Engine) TimeRange(key string) (TimeRange, bool) {
	gk, err := rangeKey(key)
	if err != nil {
		return TimeRange{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settleRangesLocked()
	r, ok := e.ranges[gk]
	return r, ok
}

// SelectAll selects every available metric of every non-error sensor.
func (e *Engine) SelectAll(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys := e.availableLocked()
	next := make(map[string]bool, len(keys))
	timeSeries := false
	for _, k := range keys {
		next[k] = true
		if s, _, _ := ParseKey(k); s.Kind() == TimeSeries {
			timeSeries = true
		}
	}
	e.selected = next
	if timeSeries {
		e.axis.Trigger(ctx)
	}
}

// DeselectAll clears the selection and the shared time ranges.
func (e *Engine) DeselectAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = make(map[string]bool)
	for _, s := range Sensors {
		if s.Kind() == TimeSeries {
			delete(e.ranges, s.GlobalKey())
		}
	}
}

// IsAllSelected is true iff something is selectable and all of it is
// selected.
func (e *Engine) IsAllSelected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := e.availableLocked()
	return len(keys) > 0 && lo.EveryBy(keys, func(k string) bool { return e.selected[k] })
}

// Export projects the state into the normalized request. Every sensor key
// is present; error sensors export an empty list.
func (e *Engine) Export() Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settleRangesLocked()

	out := EmptySelection()
	for _, sensor := range Sensors {
		for i, m := range e.catalog[sensor].Available() {
			key := Key(sensor, i)
			if !e.selected[key] {
				continue
			}
			switch sensor {
			case ChromeleonOffline:
				out.ChromeleonOffline = append(out.ChromeleonOffline, m.Name)
			case Resume:
				out.Resume = append(out.Resume, m.Name)
			case ChromeleonOnline:
				out.ChromeleonOnline = append(out.ChromeleonOnline, e.elementSelectionLocked(key, m))
			case ChromeleonOnlinePermanentGas:
				out.ChromeleonOnlinePermanentGas = append(out.ChromeleonOnlinePermanentGas, e.elementSelectionLocked(key, m))
			case Pignat:
				ts := TimedSelection{Name: m.Name}
				if r, ok := e.ranges[sensor.GlobalKey()]; ok {
					ts.TimeRange = &r
				}
				out.Pignat = append(out.Pignat, ts)
			}
		}
	}
	return out
}

func (e *Engine) elementSelectionLocked(key string, m Metric) ElementSelection {
	sel := ElementSelection{Name: m.Name, Elements: []string{}}
	if m.HasElements() {
		sel.Elements = append(sel.Elements, e.elements[key]...)
	}
	return sel
}

// Warnings returns the error message of every failed sensor.
func (e *Engine) Warnings() map[Sensor]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Warnings()
}

// AxisState describes the time-axis resource.
type AxisState struct {
	Axis    TimeAxis `json:"axis"`
	Loaded  bool     `json:"loaded"`
	Loading bool     `json:"loading"`
	Error   string   `json:"error,omitempty"`
}

// TimeAxis returns the time axis state without fetching.
func (e *Engine) TimeAxis() AxisState {
	axis, loaded := e.axis.Peek()
	st := AxisState{Axis: axis, Loaded: loaded, Loading: e.axis.Loading()}
	if err := e.axis.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// LoadAxis returns the time axis, fetching it if needed. It shares a fetch
// already started by a selection.
func (e *Engine) LoadAxis(ctx context.Context) (TimeAxis, error) {
	return e.axis.Get(ctx)
}

// WaitAxis blocks until a triggered time-axis fetch has finished.
func (e *Engine) WaitAxis() {
	e.axis.Wait()
}
