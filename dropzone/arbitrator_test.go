package dropzone

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"Bobine/materialize"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeZone struct {
	full     bool
	received [][]materialize.File
}

func (z *fakeZone) Full() bool { return z.full }

func (z *fakeZone) Receive(files []materialize.File) error {
	z.received = append(z.received, files)
	return nil
}

type fakeFiles struct {
	calls int
	err   error
}

func (f *fakeFiles) Materialize(_ context.Context, paths []string) ([]materialize.File, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]materialize.File, len(paths))
	for i, p := range paths {
		out[i] = materialize.NewFile(p, []byte(p))
	}
	return out, nil
}

func pt(x, y float64) *Point { return &Point{X: x, Y: y} }

// Three side-by-side zones, 100px wide, 10px apart.
func setup(t *testing.T) (*Arbitrator, map[string]*fakeZone, *fakeFiles) {
	t.Helper()
	reg := NewRegistry()
	zones := map[string]*fakeZone{"a": {}, "b": {}, "c": {}}
	reg.Register("a", Rect{Left: 0, Top: 0, Right: 100, Bottom: 100}, zones["a"])
	reg.Register("b", Rect{Left: 110, Top: 0, Right: 210, Bottom: 100}, zones["b"])
	reg.Register("c", Rect{Left: 220, Top: 0, Right: 320, Bottom: 100}, zones["c"])
	files := &fakeFiles{}
	return NewArbitrator(reg, files), zones, files
}

func handle(t *testing.T, a *Arbitrator, ev Event) {
	t.Helper()
	require.NoError(t, a.Handle(context.Background(), ev))
}

func TestClaimFollowsPointer(t *testing.T) {
	a, _, _ := setup(t)
	reg := a.Registry()

	handle(t, a, Event{Kind: Enter, Pos: pt(50, 50)})
	st := reg.State()
	assert.Equal(t, "a", st.Zone)
	assert.Equal(t, Entered, st.Phase)
	assert.NotEmpty(t, st.Session)
	session := st.Session

	handle(t, a, Event{Kind: Over, Pos: pt(150, 50)})
	st = reg.State()
	assert.Equal(t, "b", st.Zone)
	assert.Equal(t, Hovering, st.Phase)
	assert.Equal(t, session, st.Session, "same gesture keeps its session")

	// Gap between zones releases the claim.
	handle(t, a, Event{Kind: Over, Pos: pt(105, 50)})
	_, ok := reg.Active()
	assert.False(t, ok)
	assert.Equal(t, Idle, reg.State().Phase)
}

func TestEdgesAreInside(t *testing.T) {
	a, _, _ := setup(t)

	handle(t, a, Event{Kind: Over, Pos: pt(100, 100)})
	id, _ := a.Registry().Active()
	assert.Equal(t, "a", id)
}

func TestAtMostOneActiveZone(t *testing.T) {
	a, _, _ := setup(t)
	reg := a.Registry()
	rng := rand.New(rand.NewSource(7))

	var seen []string
	reg.OnChange(func(s State) { seen = append(seen, s.Zone) })

	for i := 0; i < 500; i++ {
		kind := []Kind{Enter, Over, Leave}[rng.Intn(3)]
		ev := Event{Kind: kind, Pos: pt(rng.Float64()*340-10, rng.Float64()*120-10)}
		if kind == Leave {
			ev.Zone = []string{"a", "b", "c"}[rng.Intn(3)]
		}
		handle(t, a, ev)

		active, ok := reg.Active()
		if ok {
			assert.Contains(t, []string{"a", "b", "c"}, active)
		}
		assert.Equal(t, active, reg.State().Zone)
	}
	assert.NotEmpty(t, seen)
}

func TestDropRouting(t *testing.T) {
	tests := []struct {
		name      string
		events    []Event
		fullZone  string
		wantZone  string
		wantCalls int
	}{
		{
			name: "drop goes to last hovered zone",
			events: []Event{
				{Kind: Enter, Pos: pt(10, 10)},
				{Kind: Over, Pos: pt(250, 10)},
			},
			wantZone:  "c",
			wantCalls: 1,
		},
		{
			name:     "no zone matched",
			events:   []Event{{Kind: Over, Pos: pt(500, 500)}},
			wantZone: "",
		},
		{
			name:     "matched zone is at its limit",
			events:   []Event{{Kind: Over, Pos: pt(150, 10)}},
			fullZone: "b",
			wantZone: "",
		},
		{
			name: "leave from the active zone",
			events: []Event{
				{Kind: Over, Pos: pt(150, 10)},
				{Kind: Leave, Zone: "b"},
			},
			wantZone: "",
		},
		{
			name: "stale leave from another zone is ignored",
			events: []Event{
				{Kind: Over, Pos: pt(150, 10)},
				{Kind: Leave, Zone: "a"},
			},
			wantZone:  "b",
			wantCalls: 1,
		},
		{
			name: "native cancel",
			events: []Event{
				{Kind: Over, Pos: pt(150, 10)},
				{Kind: Cancel},
			},
			wantZone: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, zones, files := setup(t)
			if tt.fullZone != "" {
				zones[tt.fullZone].full = true
			}
			for _, ev := range tt.events {
				handle(t, a, ev)
			}

			// Outside every zone: routing follows the claim alone.
			handle(t, a, Event{Kind: Drop, Pos: pt(500, 500), Paths: []string{"/data/run.csv"}})

			for id, z := range zones {
				if id == tt.wantZone {
					require.Len(t, z.received, 1, "zone %s", id)
					assert.Equal(t, "run.csv", z.received[0][0].Name)
				} else {
					assert.Empty(t, z.received, "zone %s", id)
				}
			}
			assert.Equal(t, tt.wantCalls, files.calls)
			_, ok := a.Registry().Active()
			assert.False(t, ok, "drop always resets")
		})
	}
}

func TestDropWithoutClaimUsesPosition(t *testing.T) {
	tests := []struct {
		name     string
		ratio    float64
		pos      *Point
		fullZone string
		wantZone string
	}{
		{name: "logical pixels", ratio: 1, pos: pt(150, 10), wantZone: "b"},
		{name: "physical pixels", ratio: 2, pos: pt(540, 100), wantZone: "c"},
		{name: "gap between zones", ratio: 1, pos: pt(105, 10)},
		{name: "zone at its limit", ratio: 1, pos: pt(150, 10), fullZone: "b"},
		{name: "no position", ratio: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, zones, _ := setup(t)
			a.SetPixelRatio(tt.ratio)
			if tt.fullZone != "" {
				zones[tt.fullZone].full = true
			}

			handle(t, a, Event{Kind: Drop, Pos: tt.pos, Paths: []string{"/data/run.csv"}})

			for id, z := range zones {
				if id == tt.wantZone {
					assert.Len(t, z.received, 1, "zone %s", id)
				} else {
					assert.Empty(t, z.received, "zone %s", id)
				}
			}
			assert.Equal(t, Idle, a.Registry().State().Phase)
		})
	}
}

type blockingFiles struct {
	started chan struct{}
	release chan struct{}
}

func (f *blockingFiles) Materialize(ctx context.Context, paths []string) ([]materialize.File, error) {
	close(f.started)
	<-f.release
	return (&fakeFiles{}).Materialize(ctx, paths)
}

func TestSlowDropDoesNotBlockNextGesture(t *testing.T) {
	reg := NewRegistry()
	za, zb := &fakeZone{}, &fakeZone{}
	reg.Register("a", Rect{Left: 0, Top: 0, Right: 100, Bottom: 100}, za)
	reg.Register("b", Rect{Left: 110, Top: 0, Right: 210, Bottom: 100}, zb)
	files := &blockingFiles{started: make(chan struct{}), release: make(chan struct{})}
	a := NewArbitrator(reg, files)

	handle(t, a, Event{Kind: Over, Pos: pt(10, 10)})
	done := make(chan error)
	go func() {
		done <- a.Handle(context.Background(), Event{Kind: Drop, Paths: []string{"/data/big.csv"}})
	}()
	<-files.started

	handle(t, a, Event{Kind: Enter, Pos: pt(150, 10)})
	id, ok := reg.Active()
	assert.True(t, ok)
	assert.Equal(t, "b", id)

	close(files.release)
	require.NoError(t, <-done)
	require.Len(t, za.received, 1)
	assert.Empty(t, zb.received)
}

func TestDropWithoutPathsResets(t *testing.T) {
	a, zones, files := setup(t)

	handle(t, a, Event{Kind: Over, Pos: pt(10, 10)})
	handle(t, a, Event{Kind: Drop})

	assert.Empty(t, zones["a"].received)
	assert.Zero(t, files.calls)
	assert.Equal(t, Idle, a.Registry().State().Phase)
}

func TestDropMaterializeFailure(t *testing.T) {
	a, zones, files := setup(t)
	files.err = materialize.ErrUnreadable

	handle(t, a, Event{Kind: Over, Pos: pt(10, 10)})
	err := a.Handle(context.Background(), Event{Kind: Drop, Paths: []string{"/gone.csv"}})

	assert.True(t, errors.Is(err, materialize.ErrUnreadable))
	assert.Empty(t, zones["a"].received)
	assert.Equal(t, Idle, a.Registry().State().Phase)
}

func TestPixelRatioFallback(t *testing.T) {
	for _, ratio := range []float64{1, 1.25, 1.5, 2, 3} {
		t.Run(fmt.Sprintf("dpr %.2f", ratio), func(t *testing.T) {
			a, _, _ := setup(t)
			a.SetPixelRatio(ratio)

			// Centre of zone c in logical pixels, reported in physical pixels.
			handle(t, a, Event{Kind: Over, Pos: pt(270*ratio, 50*ratio)})

			id, ok := a.Registry().Active()
			require.True(t, ok)
			assert.Equal(t, "c", id)

			// Still inside c on the next physical-pixel move.
			handle(t, a, Event{Kind: Over, Pos: pt(300*ratio, 90*ratio)})
			id, _ = a.Registry().Active()
			assert.Equal(t, "c", id)
		})
	}
}

func TestUnregisterReleasesClaim(t *testing.T) {
	a, _, _ := setup(t)
	reg := a.Registry()
	var last State
	reg.OnChange(func(s State) { last = s })

	handle(t, a, Event{Kind: Over, Pos: pt(150, 10)})
	require.Equal(t, "b", last.Zone)

	reg.Unregister("a")
	id, _ := reg.Active()
	assert.Equal(t, "b", id, "unregistering another zone keeps the claim")

	reg.Unregister("b")
	_, ok := reg.Active()
	assert.False(t, ok)
	assert.Equal(t, Idle, last.Phase)
	assert.Equal(t, 1, reg.Len())
}

func TestRegisterUpsert(t *testing.T) {
	a, _, _ := setup(t)
	reg := a.Registry()

	reg.Register("a", Rect{Left: 1000, Top: 1000, Right: 1100, Bottom: 1100}, &fakeZone{})
	assert.Equal(t, 3, reg.Len())

	handle(t, a, Event{Kind: Over, Pos: pt(50, 50)})
	_, ok := reg.Active()
	assert.False(t, ok, "old rectangle was replaced")

	handle(t, a, Event{Kind: Over, Pos: pt(1050, 1050)})
	id, _ := reg.Active()
	assert.Equal(t, "a", id)
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{Enter, Over, Drop, Leave, Cancel} {
		got, ok := ParseKind(k.String())
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("hover")
	assert.False(t, ok)
}
