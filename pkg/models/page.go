package models

// Paging defaults for list operations.
const (
	DefaultPageLimit = 50
	DefaultLogLimit  = 100
	MaxPageLimit     = 500
)

// Page selects a window of a list ordered newest first.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Normalize clamps the page, using def when no limit was given.
func (p Page) Normalize(def int) Page {
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
