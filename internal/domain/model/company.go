//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"regexp"
	"strings"
	"time"
)

// Portal identifies one external review listing provider.
type Portal string

var portalPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// Valid reports whether the portal identifier is a lowercase slug.
func (p Portal) Valid() bool {
	return portalPattern.MatchString(string(p))
}

func (p Portal) String() string {
	return string(p)
}

// Company is a business target monitored across review portals.
// Companies are managed externally and are read-only to the harvester.
type Company struct {
	ID           string            `json:"id"                      db:"id"`
	Name         string            `json:"name"                    db:"name"`
	IsMember     bool              `json:"is_member"               db:"is_member"`
	ContactName  *string           `json:"contact_name,omitempty"  db:"contact_name"`
	ContactEmail *string           `json:"contact_email,omitempty" db:"contact_email"`
	ContactPhone *string           `json:"contact_phone,omitempty" db:"contact_phone"`
	SourceURLs   map[string]string `json:"source_urls,omitempty"   db:"source_urls"`
	CreatedAt    time.Time         `json:"created_at"              db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"              db:"updated_at"`
}

// SourceURL returns the configured URI for a portal, or "" when the company has none.
func (c *Company) SourceURL(p Portal) string {
	if c == nil || c.SourceURLs == nil {
		return ""
	}
	return strings.TrimSpace(c.SourceURLs[string(p)])
}
