// Package steps maps wizard screens to their position in the fixed step
// sequence.
package steps

const (
	Upload = "/"
	Select = "/select/"
	Export = "/export/"
)

// Step is one screen of the wizard.
type Step struct {
	Number int    `json:"step"`
	Title  string `json:"title"`
	Path   string `json:"path"`
}

var sequence = []Step{
	{Number: 1, Title: "Accueil", Path: Upload},
	{Number: 2, Title: "Sélectionner", Path: Select},
	{Number: 3, Title: "Exporter", Path: Export},
}

// Steps returns the ordered step list.
func Steps() []Step {
	return append([]Step(nil), sequence...)
}

// Index returns the position of path, or -1.
func Index(path string) int {
	for i, s := range sequence {
		if s.Path == path {
			return i
		}
	}
	return -1
}

// Path returns the path at index i.
func Path(i int) (string, bool) {
	if i < 0 || i >= len(sequence) {
		return "", false
	}
	return sequence[i].Path, true
}

// Previous returns the step before i; false on the first step.
func Previous(i int) (string, bool) {
	if i <= 0 {
		return "", false
	}
	return Path(i - 1)
}

// Next returns the step after i; false on the last step.
func Next(i int) (string, bool) {
	if i < 0 {
		return "", false
	}
	return Path(i + 1)
}

// Navigation is the previous/next pair for a screen.
type Navigation struct {
	Index    int    `json:"index"`
	Previous string `json:"previous,omitempty"`
	HasPrev  bool   `json:"hasPrevious"`
	Next     string `json:"next,omitempty"`
	HasNext  bool   `json:"hasNext"`
}

// For resolves the navigation of the screen at path.
func For(path string) Navigation {
	i := Index(path)
	nav := Navigation{Index: i}
	nav.Previous, nav.HasPrev = Previous(i)
	nav.Next, nav.HasNext = Next(i)
	return nav
}
