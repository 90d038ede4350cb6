package domain

import (
	"time"
)

type Paste struct {
	ID        int64      `json:"-"`
	Hash      string     `json:"hash"`
	Content   string     `json:"content"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	MaxViews  *int       `json:"max_views,omitempty"`
	Views     int        `json:"views"`
	Expired   bool       `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"-"`
}

// IsAccessible reports whether the paste may still be served at the given
// instant. All three clauses are independent of the physical purge sweep: a
// row may still exist on disk while being logically gone.
func (p *Paste) IsAccessible(now time.Time) bool {
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return false
	}
	if p.MaxViews != nil && p.Views >= *p.MaxViews {
		return false
	}
	return !p.Expired
}

type CreateParams struct {
	Content        string
	ExpirationTime *int
	ExpirationUnit string
	MaxViews       *int
}

// ExpiryFor converts the expirationTime/expirationUnit pair into an absolute
// deadline. A nil or non-positive time means no expiration. A set time with
// an unrecognized unit is rejected rather than silently ignored.
func (c CreateParams) ExpiryFor(now time.Time) (*time.Time, error) {
	if c.ExpirationTime == nil || *c.ExpirationTime <= 0 {
		return nil, nil
	}
	var unit time.Duration
	switch c.ExpirationUnit {
	case "minutes":
		unit = time.Minute
	case "hours":
		unit = time.Hour
	case "days":
		unit = 24 * time.Hour
	default:
		return nil, ErrInvalidExpiration
	}
	t := now.Add(time.Duration(*c.ExpirationTime) * unit)
	return &t, nil
}
