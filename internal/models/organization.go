// Package models defines the records shared by the license and SSO code.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant and its stored subscription plan.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Plan      string    `json:"plan"`
	LicenseID string    `json:"license_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOrganization creates a new Organization on the free plan.
func NewOrganization(name, slug string) *Organization {
	now := time.Now()
	return &Organization{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slug,
		Plan:      "free",
		CreatedAt: now,
		UpdatedAt: now,
	}
}
