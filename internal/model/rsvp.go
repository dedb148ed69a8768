package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RSVP is a guest's attendance response.
//
// OWN vs ON-BEHALF RECORDS:
// A guest's own response has UserID set to their account id (at most one per
// account, enforced by a unique index). Responses entered for other guests
// have a nil UserID; SubmittedBy always names the account that wrote it.
type RSVP struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"userId"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	Attending   bool      `json:"attending"`
	Dietary     string    `json:"dietaryRequirements"`
	Songs       string    `json:"songRequests"`
	Children    []Child   `json:"children"`
	PlusOne     *PlusOne  `json:"plusOne"`
	SubmittedBy string    `json:"submittedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// IsOwn reports whether the record is its owner's own response.
func (r *RSVP) IsOwn() bool {
	return r.UserID != nil && *r.UserID != ""
}

// MarshalJSON always writes children as an array, so pages can iterate it
// without a null check.
func (r RSVP) MarshalJSON() ([]byte, error) {
	type plain RSVP
	out := plain(r)
	if out.Children == nil {
		out.Children = []Child{}
	}
	return json.Marshal(out)
}

// Child is a dependent attending with the guest.
type Child struct {
	Name string `json:"name"`
	Age  string `json:"age"`
}

// UnmarshalJSON accepts the age either as a string ("4") or a number (4).
// Both shapes exist in stored records.
func (c *Child) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name string          `json:"name"`
		Age  json.RawMessage `json:"age"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Name = aux.Name
	c.Age = ""

	raw := bytes.TrimSpace(aux.Age)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &c.Age); err != nil {
			return fmt.Errorf("child age: %w", err)
		}
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("child age: %w", err)
		}
		c.Age = n.String()
	}
	return nil
}

// PlusOne is the optional partner accompanying the guest.
type PlusOne struct {
	Name    string `json:"name"`
	Dietary string `json:"dietary"`
}

// RSVPPatch is a partial update of an existing record. Only the fields below
// are editable; name and email are fixed once a record exists.
//
// Children and PlusOne carry a Set flag so "clear the plus-one" can be told
// apart from "leave the plus-one alone".
type RSVPPatch struct {
	Attending   *bool
	Dietary     *string
	Songs       *string
	Children    []Child
	SetChildren bool
	PlusOne     *PlusOne
	SetPlusOne  bool
}

// Apply copies the patched fields onto r.
func (p RSVPPatch) Apply(r *RSVP) {
	if p.Attending != nil {
		r.Attending = *p.Attending
	}
	if p.Dietary != nil {
		r.Dietary = *p.Dietary
	}
	if p.Songs != nil {
		r.Songs = *p.Songs
	}
	if p.SetChildren {
		r.Children = p.Children
	}
	if p.SetPlusOne {
		r.PlusOne = p.PlusOne
	}
}

// CleanChildren trims names and ages and drops entries without a name.
func CleanChildren(in []Child) []Child {
	out := make([]Child, 0, len(in))
	for _, c := range in {
		c.Name = strings.TrimSpace(c.Name)
		c.Age = strings.TrimSpace(c.Age)
		if c.Name == "" {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CleanPlusOne returns nil for a plus-one without a name.
func CleanPlusOne(p *PlusOne) *PlusOne {
	if p == nil {
		return nil
	}
	c := PlusOne{Name: strings.TrimSpace(p.Name), Dietary: strings.TrimSpace(p.Dietary)}
	if c.Name == "" {
		return nil
	}
	return &c
}
