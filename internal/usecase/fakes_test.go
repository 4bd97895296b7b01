package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/infra/security"
	"github.com/arklim/skills-audit/internal/repository/memory"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakeAccount struct {
	id       string
	email    string
	password string
	disabled bool
}

// fakeIdentity is an in-memory identity provider that counts calls.
type fakeIdentity struct {
	mu       sync.Mutex
	accounts map[string]*fakeAccount
	tokens   map[string]string
	seq      int

	createCalls         int
	updatePasswordCalls int
	updateEmailCalls    int
	deleteCalls         int
	resetCalls          int

	verifyTokenErr  error
	updateEmailErrs []error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		accounts: make(map[string]*fakeAccount),
		tokens:   make(map[string]string),
	}
}

// seed creates an account directly and returns its id.
func (f *fakeIdentity) seed(email, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("acct-%d", f.seq)
	f.accounts[id] = &fakeAccount{id: id, email: strings.ToLower(email), password: password}
	return id
}

func (f *fakeIdentity) byEmail(email string) *fakeAccount {
	for _, a := range f.accounts {
		if a.email == strings.ToLower(email) {
			return a
		}
	}
	return nil
}

func (f *fakeIdentity) issue(id string) string {
	token := "token-" + id
	f.tokens[token] = id
	return token
}

func (f *fakeIdentity) VerifyPassword(_ context.Context, email, password string) (domain.ProviderAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.byEmail(email)
	if a == nil || a.password != password {
		return domain.ProviderAccount{}, domain.NewProviderError(domain.ProviderInvalidLogin, nil)
	}
	if a.disabled {
		return domain.ProviderAccount{}, domain.NewProviderError(domain.ProviderUserDisabled, nil)
	}
	return domain.ProviderAccount{AccountID: a.id, Token: f.issue(a.id), Email: a.email}, nil
}

func (f *fakeIdentity) CreateAccount(_ context.Context, email, password string) (domain.ProviderAccount, error) {
	f.mu.Lock()
	f.createCalls++
	exists := f.byEmail(email) != nil
	f.mu.Unlock()
	if exists {
		return domain.ProviderAccount{}, domain.NewProviderError(domain.ProviderEmailExists, nil)
	}
	id := f.seed(email, password)
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.ProviderAccount{AccountID: id, Token: f.issue(id), Email: strings.ToLower(email)}, nil
}

func (f *fakeIdentity) SendPasswordReset(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	if f.byEmail(email) == nil {
		return domain.NewProviderError(domain.ProviderEmailNotFound, nil)
	}
	return nil
}

func (f *fakeIdentity) ConfirmPasswordReset(_ context.Context, code, _ string) error {
	if code != "valid-code" {
		return domain.NewProviderError(domain.ProviderInvalidOOBCode, nil)
	}
	return nil
}

func (f *fakeIdentity) VerifyToken(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyTokenErr != nil {
		return "", f.verifyTokenErr
	}
	id, ok := f.tokens[token]
	if !ok {
		return "", domain.NewProviderError(domain.ProviderInvalidToken, nil)
	}
	return id, nil
}

func (f *fakeIdentity) UpdatePassword(_ context.Context, accountID, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatePasswordCalls++
	a, ok := f.accounts[accountID]
	if !ok {
		return domain.NewProviderError(domain.ProviderUserNotFound, nil)
	}
	a.password = newPassword
	return nil
}

func (f *fakeIdentity) UpdateEmail(_ context.Context, accountID, newEmail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateEmailCalls++
	if len(f.updateEmailErrs) > 0 {
		err := f.updateEmailErrs[0]
		f.updateEmailErrs = f.updateEmailErrs[1:]
		if err != nil {
			return err
		}
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return domain.NewProviderError(domain.ProviderUserNotFound, nil)
	}
	a.email = strings.ToLower(newEmail)
	return nil
}

func (f *fakeIdentity) DeleteAccount(_ context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	delete(f.accounts, accountID)
	return nil
}

// recordingEvents keeps every published event.
type recordingEvents struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	passwords  []domain.PasswordChangedEvent
	resets     []domain.PasswordResetRequestedEvent
	emails     []domain.EmailChangedEvent
	roles      []domain.RoleChangedEvent
	statuses   []domain.AccountStatusChangedEvent
	imports    []domain.SkillsImportedEvent
	reminders  []domain.TrainingReminderEvent
}

func (r *recordingEvents) PublishUserRegistered(_ context.Context, e domain.UserRegisteredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, e)
	return nil
}

func (r *recordingEvents) PublishPasswordChanged(_ context.Context, e domain.PasswordChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passwords = append(r.passwords, e)
	return nil
}

func (r *recordingEvents) PublishPasswordResetRequested(_ context.Context, e domain.PasswordResetRequestedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets = append(r.resets, e)
	return nil
}

func (r *recordingEvents) PublishEmailChanged(_ context.Context, e domain.EmailChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, e)
	return nil
}

func (r *recordingEvents) PublishRoleChanged(_ context.Context, e domain.RoleChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles = append(r.roles, e)
	return nil
}

func (r *recordingEvents) PublishAccountStatusChanged(_ context.Context, e domain.AccountStatusChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, e)
	return nil
}

func (r *recordingEvents) PublishSkillsImported(_ context.Context, e domain.SkillsImportedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imports = append(r.imports, e)
	return nil
}

func (r *recordingEvents) PublishTrainingReminder(_ context.Context, e domain.TrainingReminderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reminders = append(r.reminders, e)
	return nil
}

type authFixture struct {
	identity *fakeIdentity
	store    *memory.DocumentStore
	events   *recordingEvents
	service  *AuthSessionService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		identity: newFakeIdentity(),
		store:    memory.NewDocumentStore(),
		events:   &recordingEvents{},
	}
	f.service = NewAuthSessionService(
		f.identity,
		f.store,
		f.events,
		security.DefaultPasswordPolicy(),
		nil,
		zaptest.NewLogger(t),
	).WithClock(fixedClock)
	return f
}

// seedProfile writes a profile for an existing provider account.
func seedProfile(t *testing.T, store *memory.DocumentStore, p domain.Profile) {
	t.Helper()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = testNow
		p.UpdatedAt = testNow
	}
	if err := store.Set(context.Background(), domain.CollectionUsers, p.ID, p.ToDocument()); err != nil {
		t.Fatalf("seed profile %s: %v", p.ID, err)
	}
}
