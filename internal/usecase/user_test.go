package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/repository/memory"
)

func newUserFixture(t *testing.T) (*UserService, *memory.DocumentStore, *recordingEvents) {
	t.Helper()
	store := memory.NewDocumentStore()
	events := &recordingEvents{}
	svc := NewUserService(store, events, nil, zaptest.NewLogger(t)).WithClock(fixedClock)
	return svc, store, events
}

func TestListUsersPagesWithoutOverlap(t *testing.T) {
	svc, store, _ := newUserFixture(t)
	ctx := context.Background()

	lastNames := []string{"Zulu", "Botha", "Naidoo", "Mokoena", "Dlamini", "Khumalo", "Adams"}
	for i, last := range lastNames {
		seedProfile(t, store, domain.Profile{
			ID:         fmt.Sprintf("fin-%d", i),
			LastName:   last,
			Email:      fmt.Sprintf("fin%d@treasury.gov.za", i),
			EmployeeID: fmt.Sprintf("EMP10%02d", i),
			Department: "Finance",
			Role:       domain.RoleEmployee,
			IsActive:   i != 3,
		})
	}
	seedProfile(t, store, domain.Profile{
		ID:         "legal-1",
		LastName:   "Abrahams",
		Email:      "legal@treasury.gov.za",
		EmployeeID: "EMP2000",
		Department: "Legal",
		IsActive:   true,
	})

	var names []string
	seen := make(map[string]bool)
	cursor := ""
	pages := 0
	for {
		page, err := svc.ListUsers(ctx, UserFilter{Department: "Finance"}, 2, cursor)
		if err != nil {
			t.Fatalf("list users: %v", err)
		}
		pages++
		for _, u := range page.Users {
			if seen[u.ID] {
				t.Fatalf("user %s returned twice", u.ID)
			}
			seen[u.ID] = true
			if u.Department != "Finance" || !u.IsActive {
				t.Fatalf("unexpected user in page: %+v", u)
			}
			names = append(names, u.LastName)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	if len(names) != 6 {
		t.Fatalf("expected 6 active Finance users, got %d (%v)", len(names), names)
	}
	if !sort.StringsAreSorted(names) {
		t.Fatalf("expected last name order, got %v", names)
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
}

func TestListUsersRejectsGarbageCursor(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	_, err := svc.ListUsers(context.Background(), UserFilter{}, 10, "%%%")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateProfileValidates(t *testing.T) {
	svc, store, _ := newUserFixture(t)
	ctx := context.Background()
	seedProfile(t, store, domain.Profile{ID: "u1", FirstName: "Old", Email: "u1@treasury.gov.za", EmployeeID: "EMP3000", Department: "Finance", IsActive: true})

	role := domain.RoleAdmin
	dept := "Marketing"
	phone := "12345"
	_, err := svc.UpdateProfile(ctx, "u1", domain.ProfilePatch{Role: &role, Department: &dept, PhoneNumber: &phone})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"role", "department", "phoneNumber"} {
		if len(verr.Fields[field]) == 0 {
			t.Fatalf("expected a message for %s, got %v", field, verr.Fields)
		}
	}

	first := "  Thabo "
	validPhone := "0821234567"
	updated, err := svc.UpdateProfile(ctx, "u1", domain.ProfilePatch{FirstName: &first, PhoneNumber: &validPhone})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.FirstName != "Thabo" || updated.PhoneNumber == nil || *updated.PhoneNumber != validPhone {
		t.Fatalf("unexpected profile %+v", updated)
	}
	if !updated.UpdatedAt.Equal(testNow) {
		t.Fatalf("expected updatedAt %v, got %v", testNow, updated.UpdatedAt)
	}

	if _, err := svc.UpdateProfile(ctx, "missing", domain.ProfilePatch{FirstName: &first}); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestUpdateRoleAndStatus(t *testing.T) {
	svc, store, events := newUserFixture(t)
	ctx := context.Background()
	seedProfile(t, store, domain.Profile{ID: "admin", Email: "admin@treasury.gov.za", EmployeeID: "EMP0001", Role: domain.RoleAdmin, IsActive: true})
	seedProfile(t, store, domain.Profile{ID: "emp", Email: "emp@treasury.gov.za", EmployeeID: "EMP0002", Role: domain.RoleEmployee, IsActive: true})

	if err := svc.UpdateRole(ctx, "admin", "admin", "employee"); !errors.Is(err, ErrSelfModification) {
		t.Fatalf("expected ErrSelfModification, got %v", err)
	}
	var verr *ValidationError
	if err := svc.UpdateRole(ctx, "admin", "emp", "superuser"); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.UpdateRole(ctx, "admin", "emp", "Manager"); err != nil {
		t.Fatalf("update role: %v", err)
	}
	profile, err := svc.GetUser(ctx, "emp")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if profile.Role != domain.RoleManager {
		t.Fatalf("expected manager, got %s", profile.Role)
	}
	if len(events.roles) != 1 || events.roles[0].OldRole != domain.RoleEmployee || events.roles[0].ChangedBy != "admin" {
		t.Fatalf("unexpected role events %+v", events.roles)
	}

	if err := svc.Deactivate(ctx, "admin", "emp"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if svc.IsUserActive(ctx, "emp") {
		t.Fatal("expected user to be inactive")
	}
	if err := svc.Activate(ctx, "admin", "emp"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !svc.IsUserActive(ctx, "emp") {
		t.Fatal("expected user to be active")
	}
	if len(events.statuses) != 2 {
		t.Fatalf("expected two status events, got %d", len(events.statuses))
	}
	if err := svc.Deactivate(ctx, "admin", "admin"); !errors.Is(err, ErrSelfModification) {
		t.Fatalf("expected ErrSelfModification, got %v", err)
	}
	if svc.IsUserActive(ctx, "missing") {
		t.Fatal("unknown users are never active")
	}
}

func TestLookupByEmailAndEmployeeID(t *testing.T) {
	svc, store, _ := newUserFixture(t)
	ctx := context.Background()
	seedProfile(t, store, domain.Profile{ID: "u1", Email: "find@treasury.gov.za", EmployeeID: "EMP4000", IsActive: true})

	byEmail, err := svc.GetUserByEmail(ctx, " Find@Treasury.gov.za ")
	if err != nil || byEmail.ID != "u1" {
		t.Fatalf("lookup by email: %+v, %v", byEmail, err)
	}
	byEmployee, err := svc.GetUserByEmployeeID(ctx, "emp4000")
	if err != nil || byEmployee.ID != "u1" {
		t.Fatalf("lookup by employee id: %+v, %v", byEmployee, err)
	}
	if _, err := svc.GetUserByEmail(ctx, "none@treasury.gov.za"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestUserStats(t *testing.T) {
	svc, store, _ := newUserFixture(t)
	ctx := context.Background()

	phone := "0821234567"
	position := "Analyst"
	seedProfile(t, store, domain.Profile{
		ID:          "u1",
		FirstName:   "Full",
		LastName:    "Profile",
		Email:       "full@treasury.gov.za",
		EmployeeID:  "EMP5000",
		Department:  "Finance",
		PhoneNumber: &phone,
		Position:    &position,
		IsActive:    true,
	})
	for i := 0; i < 3; i++ {
		if err := store.Set(ctx, domain.CollectionSkills, fmt.Sprintf("s%d", i), map[string]any{domain.FieldUserID: "u1"}); err != nil {
			t.Fatalf("seed skill: %v", err)
		}
	}
	if err := store.Set(ctx, domain.CollectionTraining, "t1", map[string]any{domain.FieldUserID: "u1"}); err != nil {
		t.Fatalf("seed training: %v", err)
	}
	if err := store.Set(ctx, domain.CollectionSkills, "other", map[string]any{domain.FieldUserID: "u2"}); err != nil {
		t.Fatalf("seed skill: %v", err)
	}

	stats, err := svc.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := domain.UserStats{TotalSkills: 3, TotalTraining: 1, TotalQualifications: 0, ProfileCompletion: 100}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
}
