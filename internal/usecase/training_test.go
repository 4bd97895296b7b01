package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/repository/memory"
)

func newTrainingFixture(t *testing.T) (*TrainingService, *memory.DocumentStore) {
	t.Helper()
	store := memory.NewDocumentStore()
	return NewTrainingService(store, zaptest.NewLogger(t)).WithClock(fixedClock), store
}

func timePtr(t time.Time) *time.Time { return &t }

func TestAddTrainingDefaultsAndValidation(t *testing.T) {
	svc, _ := newTrainingFixture(t)
	ctx := context.Background()

	_, err := svc.AddTraining(ctx, "u1", domain.Training{
		Title:          "",
		Status:         "Someday",
		StartDate:      timePtr(testNow),
		EndDate:        timePtr(testNow.Add(-time.Hour)),
		CertificateURL: strPtr("ftp://certs"),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"title", "provider", "status", "endDate", "certificateUrl"} {
		if len(verr.Fields[field]) == 0 {
			t.Fatalf("expected a message for %s, got %v", field, verr.Fields)
		}
	}

	added, err := svc.AddTraining(ctx, "u1", domain.Training{Title: "IFRS update", Provider: "SAICA"})
	if err != nil {
		t.Fatalf("add training: %v", err)
	}
	if added.Status != domain.TrainingPlanned || added.ID == "" || !added.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected training %+v", added)
	}
}

func TestTrainingQueries(t *testing.T) {
	svc, _ := newTrainingFixture(t)
	ctx := context.Background()

	add := func(title string, status domain.TrainingStatus, start time.Time, hours int, cert *string) domain.Training {
		t.Helper()
		tr, err := svc.AddTraining(ctx, "u1", domain.Training{
			Title:          title,
			Provider:       "National School of Government",
			Status:         status,
			StartDate:      timePtr(start),
			Duration:       hours,
			CertificateURL: cert,
		})
		if err != nil {
			t.Fatalf("add %s: %v", title, err)
		}
		return tr
	}

	// each record is created a minute after the previous one
	clock := testNow
	svc.WithClock(func() time.Time { clock = clock.Add(time.Minute); return clock })
	add("Ethics", domain.TrainingCompleted, testNow.AddDate(0, -2, 0), 8, strPtr("https://certs.example/1"))
	add("PFMA", domain.TrainingCompleted, testNow.AddDate(0, -1, 0), 16, nil)
	add("Leadership", domain.TrainingPlanned, testNow.AddDate(0, 0, 5), 24, nil)
	add("Excel", domain.TrainingCancelled, testNow.AddDate(0, 0, -3), 4, nil)
	svc.WithClock(fixedClock)

	all, err := svc.ListUserTrainings(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 || all[0].Title != "Excel" || all[3].Title != "Ethics" {
		t.Fatalf("expected newest first, got %v", trainingTitles(all))
	}

	completed, err := svc.Completed(ctx, "u1")
	if err != nil {
		t.Fatalf("completed: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("expected 2 completed, got %v", trainingTitles(completed))
	}

	upcoming, err := svc.Upcoming(ctx, "u1")
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].Title != "Leadership" {
		t.Fatalf("unexpected upcoming %v", trainingTitles(upcoming))
	}

	ranged, err := svc.ListByDateRange(ctx, "u1", testNow.AddDate(0, -1, -1), testNow)
	if err != nil {
		t.Fatalf("date range: %v", err)
	}
	if got := trainingTitles(ranged); len(got) != 2 || got[0] != "Excel" || got[1] != "PFMA" {
		t.Fatalf("unexpected range result %v", got)
	}
	if _, err := svc.ListByDateRange(ctx, "u1", testNow, testNow.Add(-time.Hour)); err == nil {
		t.Fatal("expected inverted range to be rejected")
	}

	hours, err := svc.TrainingHours(ctx, "u1")
	if err != nil || hours != 24 {
		t.Fatalf("expected 24 hours, got %d (%v)", hours, err)
	}

	stats, err := svc.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 4 || stats.TotalHours != 24 || stats.Certificates != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.ByStatus[domain.TrainingCompleted] != 2 || stats.ByStatus[domain.TrainingInProgress] != 0 {
		t.Fatalf("unexpected status counts %+v", stats.ByStatus)
	}
}

func TestTrainingOwnership(t *testing.T) {
	svc, _ := newTrainingFixture(t)
	ctx := context.Background()

	tr, err := svc.AddTraining(ctx, "owner", domain.Training{Title: "Audit basics", Provider: "IIA"})
	if err != nil {
		t.Fatalf("add training: %v", err)
	}
	stranger := domain.Identity{UserID: "stranger", Role: domain.RoleEmployee}
	admin := domain.Identity{UserID: "root", Role: domain.RoleAdmin}

	status := domain.TrainingInProgress
	if _, err := svc.UpdateTraining(ctx, stranger, tr.ID, domain.TrainingPatch{Status: &status}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	updated, err := svc.UpdateTraining(ctx, admin, tr.ID, domain.TrainingPatch{Status: &status})
	if err != nil || updated.Status != domain.TrainingInProgress {
		t.Fatalf("admin update: %+v, %v", updated, err)
	}
	if err := svc.DeleteTraining(ctx, stranger, tr.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if err := svc.DeleteTraining(ctx, domain.Identity{UserID: "owner", Role: domain.RoleEmployee}, tr.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetTraining(ctx, tr.ID); !errors.Is(err, ErrTrainingNotFound) {
		t.Fatalf("expected ErrTrainingNotFound, got %v", err)
	}
}

func trainingTitles(list []domain.Training) []string {
	out := make([]string, 0, len(list))
	for _, tr := range list {
		out = append(out, tr.Title)
	}
	return out
}
