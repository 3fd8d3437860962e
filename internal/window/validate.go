package window

import "fmt"

// Validation is the outcome of checking a window. Valid is always true for a
// structurally correct window; Warning carries advice the caller may show.
type Validation struct {
	Valid   bool   `json:"valid"`
	Warning string `json:"warning,omitempty"`
}

// Validate checks that start and end are HH:MM values. It never rejects a
// window for being short or daytime-only; a window that does not cross
// midnight gets an advisory warning instead.
func Validate(start, end string) (Validation, error) {
	w, err := New(start, end)
	if err != nil {
		return Validation{}, err
	}
	return w.Validate(), nil
}

// Validate returns the advisory result for an already parsed window.
func (w Window) Validate() Validation {
	v := Validation{Valid: true}
	if !w.CrossesMidnight() {
		v.Warning = fmt.Sprintf("window %s does not cross midnight; a window spanning midnight is more likely to cover your sleep", w)
	}
	return v
}
