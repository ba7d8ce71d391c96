package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	e, _ := newEngine(t)
	ctx := t.Context()

	e.Toggle(ctx, "pignat-1")
	e.Toggle(ctx, "chromeleon_online-0")
	e.AddElement("chromeleon_online-0", "CH4")
	e.WaitAxis()
	_, err := e.SetTimeRange("pignat-global", TimeRange{StartTime: "09:00"})
	require.NoError(t, err)

	st := e.State()
	assert.Equal(t, []string{"chromeleon_online-0", "pignat-1"}, st.Selected)

	other := NewEngine(loadCatalog(t), nil)
	other.Restore(st)
	assert.Equal(t, e.Export(), other.Export())
	assert.Equal(t, st, other.State())
}

func TestRestoreDropsWhatTheCatalogRefuses(t *testing.T) {
	e := NewEngine(loadCatalog(t), nil)

	e.Restore(State{
		Selected: []string{"chromeleon_offline-1", "chromeleon_offline-0", "resume-0", "bogus"},
		Elements: map[string][]string{
			"chromeleon_online-0": {"H2", "Xe", "H2"},
			"pignat-0":            {"H2"},
		},
		Ranges: map[string]TimeRange{
			"pignat-global": {StartTime: "08:00"},
		},
	})

	assert.Equal(t, []string{"chromeleon_offline-0"}, e.Selected())
	assert.Equal(t, []string{"H2"}, e.Elements("chromeleon_online-0"))
	assert.Empty(t, e.Elements("pignat-0"))
	_, ok := e.TimeRange("pignat-global")
	assert.False(t, ok, "range without a selected pignat metric is dropped")
	assert.False(t, e.TimeAxis().Loading)
}
