package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/jobradar/app/database"
	"github.com/lysyi3m/jobradar/app/job"
)

func NewHandler(jobRepo database.JobRepository, profileRepo database.ProfileRepository,
	changeRepo database.ChangeRepository, companyRepo database.CompanyRepository) *Handler {
	return &Handler{
		jobRepo:     jobRepo,
		profileRepo: profileRepo,
		changeRepo:  changeRepo,
		companyRepo: companyRepo,
	}
}

// ListJobs serves the filtered job query. Reads never block on ingestion;
// a store failure maps to 503 so callers can distinguish "no matches"
// from "store unavailable".
func (h *Handler) ListJobs(c *gin.Context) {
	filter := database.JobFilter{
		Company:  c.Query("company"),
		Location: c.Query("location"),
		Keywords: c.Query("q"),
		SortBy:   c.Query("sort"),
	}

	if raw := c.Query("posted_within"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid posted_within, expected a duration like 72h"})
			return
		}
		filter.PostedWithin = d
	}

	filter.RemoteOnly = c.Query("remote") == "true"
	filter.VisaOnly = c.Query("visa") == "true"

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit, expected 1-500"})
			return
		}
		filter.Limit = limit
	}

	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
			return
		}
		filter.Offset = offset
	}

	records, err := h.jobRepo.QueryJobs(filter)
	if err != nil {
		slog.Error("Database error", "operation", "query_jobs", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}

	jobs := make([]map[string]interface{}, 0, len(records))
	for i := range records {
		jobs = append(jobs, jobResponse(&records[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

func (h *Handler) GetJob(c *gin.Context) {
	id := c.Param("id")

	record, err := h.jobRepo.GetJob(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_job", "id", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, jobResponse(record))
}

func (h *Handler) GetJobChanges(c *gin.Context) {
	id := c.Param("id")

	record, err := h.jobRepo.GetJob(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_job", "id", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	changes, err := h.changeRepo.GetChangesForJob(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_job_changes", "id", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":  id,
		"changes": changeResponses(changes),
		"total":   len(changes),
	})
}

// ListChanges serves the audit trail since a given time, newest first.
func (h *Handler) ListChanges(c *gin.Context) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since, expected RFC3339 timestamp"})
			return
		}
		since = parsed
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit, expected 1-1000"})
			return
		}
		limit = parsed
	}

	changes, err := h.changeRepo.GetChangesSince(since, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_changes", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"since":   since.Format(time.RFC3339),
		"changes": changeResponses(changes),
		"total":   len(changes),
	})
}

func (h *Handler) GetCompany(c *gin.Context) {
	name := c.Param("name")

	company, err := h.companyRepo.GetCompany(job.NormalizeCompany(name))
	if err != nil {
		slog.Error("Database error", "operation", "get_company", "name", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}
	if company == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Company not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":            company.Name,
		"normalized_name": company.NormalizedName,
		"size":            company.Size,
		"industry":        company.Industry,
		"website":         company.Website,
		"headquarters":    company.Headquarters,
		"description":     company.Description,
		"fetched_at":      company.FetchedAt.Format(time.RFC3339),
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if jobCount, err := h.jobRepo.CountJobs(); err == nil {
		health["jobs"] = jobCount
	} else {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}

	if profileCount, err := h.profileRepo.CountProfiles(); err == nil {
		health["profiles"] = profileCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{}

	if jobCount, err := h.jobRepo.CountJobs(); err == nil {
		stats["jobs"] = jobCount
	}
	if profileCount, err := h.profileRepo.CountProfiles(); err == nil {
		stats["profiles"] = profileCount
	}
	if companyCount, err := h.companyRepo.CountCompanies(); err == nil {
		stats["companies"] = companyCount
	}

	c.JSON(http.StatusOK, stats)
}

func jobResponse(record *job.Record) map[string]interface{} {
	resp := map[string]interface{}{
		"id":               record.ID,
		"title":            record.Title,
		"company":          record.Company,
		"location":         record.Location,
		"url":              record.URL,
		"description":      record.Description,
		"skills":           record.Skills,
		"salary_currency":  record.SalaryCurrency,
		"salary_min":       record.SalaryMin,
		"salary_max":       record.SalaryMax,
		"remote_eligible":  record.RemoteEligible,
		"visa_sponsorship": record.VisaSponsorship,
		"applicants":       record.Applicants,
		"profile_id":       record.ProfileID,
		"first_seen":       record.FirstSeen.Format(time.RFC3339),
		"last_seen":        record.LastSeen.Format(time.RFC3339),
	}

	if record.PostedAt != nil {
		resp["posted_at"] = record.PostedAt.Format(time.RFC3339)
	}

	return resp
}

func changeResponses(changes []database.ChangeEntry) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(changes))
	for _, change := range changes {
		out = append(out, map[string]interface{}{
			"job_id":     change.JobID,
			"job_title":  change.JobTitle,
			"company":    change.Company,
			"field":      change.Field,
			"old_value":  change.OldValue,
			"new_value":  change.NewValue,
			"changed_at": change.ChangedAt.Format(time.RFC3339),
		})
	}
	return out
}
