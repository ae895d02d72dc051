package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/jobradar/app/database"
)

func (h *Handler) ListProfiles(c *gin.Context) {
	includeDeleted := c.Query("include_deleted") == "true"

	profiles, err := h.profileRepo.ListProfiles(includeDeleted)
	if err != nil {
		slog.Error("Database error", "operation", "list_profiles", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}

	out := make([]map[string]interface{}, 0, len(profiles))
	for i := range profiles {
		out = append(out, profileResponse(&profiles[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"profiles": out,
		"total":    len(out),
	})
}

func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.profileRepo.GetProfile(c.Param("id"))
	if err != nil {
		slog.Error("Database error", "operation", "get_profile", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}

	c.JSON(http.StatusOK, profileResponse(profile))
}

// CreateProfile registers a new ingestion profile. The scheduler picks it
// up on its next poll; no restart is needed.
func (h *Handler) CreateProfile(c *gin.Context) {
	var req CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.RefreshInterval != 0 && req.RefreshInterval < 60 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_interval must be at least 60 seconds"})
		return
	}

	existing, err := h.profileRepo.GetProfileByName(req.Name)
	if err != nil {
		slog.Error("Database error", "operation", "get_profile_by_name", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Profile name already in use"})
		return
	}

	profile := &database.Profile{
		Name:            req.Name,
		Keywords:        req.Keywords,
		Location:        req.Location,
		Distance:        req.Distance,
		RefreshInterval: req.RefreshInterval,
		Enabled:         true,
	}
	if profile.Distance == 0 {
		profile.Distance = 25
	}
	if profile.RefreshInterval == 0 {
		profile.RefreshInterval = 3600
	}
	if req.Enabled != nil {
		profile.Enabled = *req.Enabled
	}

	if err := h.profileRepo.CreateProfile(profile); err != nil {
		slog.Error("Database error", "operation", "create_profile", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}

	slog.Info("Profile created", "name", profile.Name, "id", profile.ID)
	c.JSON(http.StatusCreated, profileResponse(profile))
}

// UpdateProfile applies a partial update. Criteria and cadence edits take
// effect on the scheduler's next poll.
func (h *Handler) UpdateProfile(c *gin.Context) {
	profile, err := h.profileRepo.GetProfile(c.Param("id"))
	if err != nil {
		slog.Error("Database error", "operation", "get_profile", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.RefreshInterval != nil && *req.RefreshInterval < 60 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_interval must be at least 60 seconds"})
		return
	}

	if req.Name != nil {
		profile.Name = *req.Name
	}
	if req.Keywords != nil {
		profile.Keywords = *req.Keywords
	}
	if req.Location != nil {
		profile.Location = *req.Location
	}
	if req.Distance != nil {
		profile.Distance = *req.Distance
	}
	if req.RefreshInterval != nil {
		profile.RefreshInterval = *req.RefreshInterval
	}
	if req.Enabled != nil {
		profile.Enabled = *req.Enabled
	}

	if err := h.profileRepo.UpdateProfile(profile); err != nil {
		slog.Error("Database error", "operation", "update_profile", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}

	slog.Info("Profile updated", "name", profile.Name, "id", profile.ID)
	c.JSON(http.StatusOK, profileResponse(profile))
}

// DeleteProfile soft-deletes by default so stored jobs keep their
// provenance; ?hard=true removes the row entirely.
func (h *Handler) DeleteProfile(c *gin.Context) {
	id := c.Param("id")

	profile, err := h.profileRepo.GetProfile(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_profile", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}

	hard := c.Query("hard") == "true"
	if hard {
		err = h.profileRepo.HardDeleteProfile(id)
	} else {
		err = h.profileRepo.SoftDeleteProfile(id)
	}
	if err != nil {
		slog.Error("Database error", "operation", "delete_profile", "hard", hard, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}

	slog.Info("Profile deleted", "name", profile.Name, "id", id, "hard", hard)
	c.JSON(http.StatusOK, gin.H{"success": true, "hard": hard})
}

func profileResponse(p *database.Profile) map[string]interface{} {
	resp := map[string]interface{}{
		"id":               p.ID,
		"name":             p.Name,
		"keywords":         p.Keywords,
		"location":         p.Location,
		"distance":         p.Distance,
		"refresh_interval": p.RefreshInterval,
		"enabled":          p.Enabled,
		"deleted":          p.Deleted,
		"created_at":       p.CreatedAt.Format(time.RFC3339),
		"updated_at":       p.UpdatedAt.Format(time.RFC3339),
	}

	if p.LastRunAt != nil {
		resp["last_run_at"] = p.LastRunAt.Format(time.RFC3339)
	}

	return resp
}
