package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/jobradar/app/job"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func testRecord(id, title, company string) *job.Record {
	now := time.Now().UTC()
	return &job.Record{
		ID:                id,
		Title:             title,
		Company:           company,
		NormalizedCompany: job.NormalizeCompany(company),
		Location:          "Berlin, Germany",
		URL:               "https://example.com/jobs/" + id,
		FirstSeen:         now,
		LastSeen:          now,
	}
}

func TestUpsertJobInsertThenGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)

	rec := testRecord("J1", "Engineer", "Acme, Inc.")

	result, err := repo.UpsertJob(rec)
	if err != nil {
		t.Fatalf("UpsertJob failed: %v", err)
	}
	if !result.Inserted {
		t.Error("Expected first upsert to insert")
	}
	if len(result.ChangedFields) != 0 {
		t.Errorf("Insert must not produce change entries, got %v", result.ChangedFields)
	}

	stored, err := repo.GetJob("J1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if stored == nil {
		t.Fatal("Expected stored record")
	}
	if stored.Title != "Engineer" || stored.NormalizedCompany != "acme" {
		t.Errorf("Unexpected stored record: %+v", stored)
	}
}

func TestUpsertJobIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)
	changeRepo := NewChangeRepository(db)

	rec := testRecord("J1", "Engineer", "Acme")
	if _, err := repo.UpsertJob(rec); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	again := testRecord("J1", "Engineer", "Acme")
	result, err := repo.UpsertJob(again)
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if result.Inserted {
		t.Error("Expected second upsert to update, not insert")
	}
	if len(result.ChangedFields) != 0 {
		t.Errorf("Identical re-ingest must produce no changes, got %v", result.ChangedFields)
	}

	count, err := repo.CountJobs()
	if err != nil {
		t.Fatalf("CountJobs failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 job after re-ingest, got %d", count)
	}

	changes, err := changeRepo.GetChangesForJob("J1")
	if err != nil {
		t.Fatalf("GetChangesForJob failed: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("Expected no change entries, got %d", len(changes))
	}
}

func TestUpsertJobRecordsTitleChange(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)
	changeRepo := NewChangeRepository(db)

	if _, err := repo.UpsertJob(testRecord("J1", "Engineer", "Acme")); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	result, err := repo.UpsertJob(testRecord("J1", "Senior Engineer", "Acme"))
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if len(result.ChangedFields) != 1 || result.ChangedFields[0] != "title" {
		t.Fatalf("Expected exactly one title change, got %v", result.ChangedFields)
	}

	stored, err := repo.GetJob("J1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if stored.Title != "Senior Engineer" {
		t.Errorf("Expected updated title, got '%s'", stored.Title)
	}

	changes, err := changeRepo.GetChangesForJob("J1")
	if err != nil {
		t.Fatalf("GetChangesForJob failed: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("Expected exactly 1 change entry, got %d", len(changes))
	}
	if changes[0].Field != "title" || changes[0].OldValue != "Engineer" || changes[0].NewValue != "Senior Engineer" {
		t.Errorf("Unexpected change entry: %+v", changes[0])
	}
	if changes[0].JobTitle != "Senior Engineer" {
		t.Errorf("Expected change joined with current title, got '%s'", changes[0].JobTitle)
	}
}

func TestUpsertJobAbsentFieldDoesNotClobber(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)

	rec := testRecord("J1", "Engineer", "Acme")
	rec.Description = "full description"
	salary := 100000.0
	rec.SalaryMin = &salary
	if _, err := repo.UpsertJob(rec); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	// Incoming record with the derived fields missing.
	sparse := testRecord("J1", "Engineer", "Acme")
	result, err := repo.UpsertJob(sparse)
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if len(result.ChangedFields) != 0 {
		t.Errorf("Sparse re-ingest should not register changes, got %v", result.ChangedFields)
	}

	stored, err := repo.GetJob("J1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if stored.Description != "full description" {
		t.Errorf("Absent incoming description clobbered stored value: '%s'", stored.Description)
	}
	if stored.SalaryMin == nil || *stored.SalaryMin != salary {
		t.Errorf("Absent incoming salary clobbered stored value: %v", stored.SalaryMin)
	}
}

func TestUpsertJobsBatchCounts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)

	if _, err := repo.UpsertJob(testRecord("J1", "Engineer", "Acme")); err != nil {
		t.Fatalf("Seed upsert failed: %v", err)
	}

	batch := []*job.Record{
		testRecord("J1", "Senior Engineer", "Acme"), // update with one change
		testRecord("J2", "Data Engineer", "Globex"), // new
		testRecord("J3", "SRE", "Initech"),          // new
	}

	inserted, updated, changed, err := repo.UpsertJobs(batch)
	if err != nil {
		t.Fatalf("UpsertJobs failed: %v", err)
	}
	if inserted != 2 {
		t.Errorf("Expected 2 inserts, got %d", inserted)
	}
	if updated != 1 {
		t.Errorf("Expected 1 update, got %d", updated)
	}
	if changed != 1 {
		t.Errorf("Expected 1 changed field, got %d", changed)
	}
}

func TestQueryJobsByCompany(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)

	if _, err := repo.UpsertJob(testRecord("J1", "Engineer", "Acme, Inc.")); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.UpsertJob(testRecord("J2", "Engineer", "Globex LLC")); err != nil {
		t.Fatal(err)
	}

	// Query with a different spelling of the same company.
	records, err := repo.QueryJobs(JobFilter{Company: "ACME Inc"})
	if err != nil {
		t.Fatalf("QueryJobs failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "J1" {
		t.Errorf("Expected only J1 for company 'ACME Inc', got %+v", records)
	}
}

func TestQueryJobsByKeywords(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)

	rec := testRecord("J1", "Backend Engineer", "Acme")
	rec.Description = "We build distributed systems in Go"
	if _, err := repo.UpsertJob(rec); err != nil {
		t.Fatal(err)
	}
	other := testRecord("J2", "Accountant", "Globex")
	other.Description = "Bookkeeping and reporting"
	if _, err := repo.UpsertJob(other); err != nil {
		t.Fatal(err)
	}

	records, err := repo.QueryJobs(JobFilter{Keywords: "distributed"})
	if err != nil {
		t.Fatalf("QueryJobs failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "J1" {
		t.Errorf("Expected only J1 for keyword 'distributed', got %d records", len(records))
	}
}

func TestQueryJobsFtsReflectsUpdates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)

	rec := testRecord("J1", "Engineer", "Acme")
	rec.Description = "Original description about accounting"
	if _, err := repo.UpsertJob(rec); err != nil {
		t.Fatal(err)
	}

	updated := testRecord("J1", "Engineer", "Acme")
	updated.Description = "Rewritten description about kubernetes"
	if _, err := repo.UpsertJob(updated); err != nil {
		t.Fatal(err)
	}

	if records, err := repo.QueryJobs(JobFilter{Keywords: "kubernetes"}); err != nil || len(records) != 1 {
		t.Errorf("Expected updated text to be searchable, got %d records (err=%v)", len(records), err)
	}
	if records, err := repo.QueryJobs(JobFilter{Keywords: "accounting"}); err != nil || len(records) != 0 {
		t.Errorf("Expected stale text to be gone from the index, got %d records (err=%v)", len(records), err)
	}
}

func TestQueryJobsFlagsAndRecency(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)

	remote := true
	recent := time.Now().UTC().Add(-2 * time.Hour)
	old := time.Now().UTC().Add(-30 * 24 * time.Hour)

	r1 := testRecord("J1", "Engineer", "Acme")
	r1.RemoteEligible = &remote
	r1.PostedAt = &recent
	if _, err := repo.UpsertJob(r1); err != nil {
		t.Fatal(err)
	}

	r2 := testRecord("J2", "Engineer", "Globex")
	r2.PostedAt = &old
	if _, err := repo.UpsertJob(r2); err != nil {
		t.Fatal(err)
	}

	records, err := repo.QueryJobs(JobFilter{RemoteOnly: true})
	if err != nil {
		t.Fatalf("QueryJobs failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "J1" {
		t.Errorf("Expected only the remote job, got %d records", len(records))
	}

	records, err = repo.QueryJobs(JobFilter{PostedWithin: 72 * time.Hour})
	if err != nil {
		t.Fatalf("QueryJobs failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "J1" {
		t.Errorf("Expected only the recent job, got %d records", len(records))
	}
}

func TestListNeedingEnrichmentOrderAndCooldown(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)

	older := testRecord("J1", "Engineer", "Acme")
	older.FirstSeen = time.Now().UTC().Add(-48 * time.Hour)
	if _, err := repo.UpsertJob(older); err != nil {
		t.Fatal(err)
	}

	newer := testRecord("J2", "Engineer", "Globex")
	newer.FirstSeen = time.Now().UTC().Add(-1 * time.Hour)
	if _, err := repo.UpsertJob(newer); err != nil {
		t.Fatal(err)
	}

	// A fully enriched record must not be listed.
	full := testRecord("J3", "Engineer", "Initech")
	salary := 90000.0
	yes := true
	full.SalaryMin = &salary
	full.RemoteEligible = &yes
	full.VisaSponsorship = &yes
	full.Skills = []string{"Go"}
	full.Description = "complete"
	if _, err := repo.UpsertJob(full); err != nil {
		t.Fatal(err)
	}

	candidates, err := repo.ListNeedingEnrichment(10)
	if err != nil {
		t.Fatalf("ListNeedingEnrichment failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].ID != "J1" || candidates[1].ID != "J2" {
		t.Errorf("Expected oldest first_seen first, got %s then %s", candidates[0].ID, candidates[1].ID)
	}

	// Put J1 on cooldown after reaching the failure threshold.
	for i := 0; i < 3; i++ {
		if err := repo.MarkEnrichmentFailure("J1", 3, time.Hour); err != nil {
			t.Fatalf("MarkEnrichmentFailure failed: %v", err)
		}
	}

	candidates, err = repo.ListNeedingEnrichment(10)
	if err != nil {
		t.Fatalf("ListNeedingEnrichment failed: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != "J2" {
		t.Errorf("Expected J1 excluded during cooldown, got %+v", candidates)
	}

	// Clearing the markers makes the record eligible again.
	if err := repo.ClearEnrichmentMarkers("J1"); err != nil {
		t.Fatalf("ClearEnrichmentMarkers failed: %v", err)
	}
	candidates, err = repo.ListNeedingEnrichment(10)
	if err != nil {
		t.Fatalf("ListNeedingEnrichment failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Errorf("Expected J1 eligible again after clearing markers, got %d candidates", len(candidates))
	}
}

func TestMarkEnrichmentFailureBelowThresholdKeepsEligibility(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)

	if _, err := repo.UpsertJob(testRecord("J1", "Engineer", "Acme")); err != nil {
		t.Fatal(err)
	}

	if err := repo.MarkEnrichmentFailure("J1", 3, time.Hour); err != nil {
		t.Fatalf("MarkEnrichmentFailure failed: %v", err)
	}

	candidates, err := repo.ListNeedingEnrichment(10)
	if err != nil {
		t.Fatalf("ListNeedingEnrichment failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Errorf("One failure below threshold must not start a cooldown, got %d candidates", len(candidates))
	}
}

func TestGetChangesSince(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobRepository(db)
	changeRepo := NewChangeRepository(db)

	if _, err := repo.UpsertJob(testRecord("J1", "Engineer", "Acme")); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.UpsertJob(testRecord("J1", "Senior Engineer", "Acme")); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.UpsertJob(testRecord("J1", "Staff Engineer", "Acme")); err != nil {
		t.Fatal(err)
	}

	changes, err := changeRepo.GetChangesSince(time.Now().UTC().Add(-time.Hour), 100)
	if err != nil {
		t.Fatalf("GetChangesSince failed: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes, got %d", len(changes))
	}
	// Newest first.
	if changes[0].NewValue != "Staff Engineer" {
		t.Errorf("Expected newest change first, got %+v", changes[0])
	}

	changes, err = changeRepo.GetChangesSince(time.Now().UTC().Add(time.Hour), 100)
	if err != nil {
		t.Fatalf("GetChangesSince failed: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("Expected no changes for a future cutoff, got %d", len(changes))
	}
}
