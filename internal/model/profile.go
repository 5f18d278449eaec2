package model

import "strings"

// ProfileStatus is derived from field presence, never stored independently.
type ProfileStatus string

const (
	StatusPending       ProfileStatus = "pending"
	StatusPartiallyDone ProfileStatus = "partially_done"
	StatusDone          ProfileStatus = "done"
)

// Profile represents one row of the outreach sheet.
type Profile struct {
	// Row is the 0-based data row index (header excluded). Stable for the
	// lifetime of a run.
	Row int `json:"row"`

	Name    string `json:"name"`
	Company string `json:"company"`
	Role    string `json:"role"`

	Location  string `json:"location,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Education string `json:"education,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Subtopic  string `json:"subtopic,omitempty"`

	Research string `json:"research,omitempty"`
	Draft    string `json:"draft,omitempty"`

	// Extra holds passthrough columns not mapped to a named field.
	Extra map[string]string `json:"extra,omitempty"`
}

// Status derives the profile's enrichment status from field presence.
func (p *Profile) Status() ProfileStatus {
	hasResearch := strings.TrimSpace(p.Research) != ""
	hasDraft := strings.TrimSpace(p.Draft) != ""
	switch {
	case hasResearch && hasDraft:
		return StatusDone
	case hasResearch || hasDraft:
		return StatusPartiallyDone
	default:
		return StatusPending
	}
}

// Validate checks the required fields. It returns a ValidationError naming
// the first missing field, or nil.
func (p *Profile) Validate() error {
	for _, f := range []struct {
		name  string
		value string
	}{
		{"name", p.Name},
		{"company", p.Company},
		{"role", p.Role},
	} {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Row: p.Row, Field: f.name, Reason: "required field is empty"}
		}
	}
	return nil
}
