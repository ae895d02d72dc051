package api

import (
	"github.com/lysyi3m/jobradar/app/database"
)

type Handler struct {
	jobRepo     database.JobRepository
	profileRepo database.ProfileRepository
	changeRepo  database.ChangeRepository
	companyRepo database.CompanyRepository
}

// CreateProfileRequest is the payload for POST /api/profiles.
type CreateProfileRequest struct {
	Name            string `json:"name" binding:"required"`
	Keywords        string `json:"keywords" binding:"required"`
	Location        string `json:"location"`
	Distance        int    `json:"distance"`
	RefreshInterval int    `json:"refresh_interval"`
	Enabled         *bool  `json:"enabled"`
}

// UpdateProfileRequest is the payload for PATCH /api/profiles/:id. Pointer
// fields distinguish "not provided" from a zero value.
type UpdateProfileRequest struct {
	Name            *string `json:"name"`
	Keywords        *string `json:"keywords"`
	Location        *string `json:"location"`
	Distance        *int    `json:"distance"`
	RefreshInterval *int    `json:"refresh_interval"`
	Enabled         *bool   `json:"enabled"`
}
