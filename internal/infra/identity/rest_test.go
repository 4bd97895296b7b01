package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/infra/config"
)

type recordedCall struct {
	path   string
	key    string
	auth   string
	body   map[string]any
	method string
}

func newTestRESTProvider(t *testing.T, handler func(call recordedCall) (int, any)) (*RESTProvider, *[]recordedCall) {
	t.Helper()

	var calls []recordedCall
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := recordedCall{
			path:   r.URL.Path,
			key:    r.URL.Query().Get("key"),
			auth:   r.Header.Get("Authorization"),
			method: r.Method,
		}
		_ = json.NewDecoder(r.Body).Decode(&call.body)
		calls = append(calls, call)

		status, body := handler(call)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}))
	t.Cleanup(server.Close)

	provider, err := NewRESTProvider(config.IdentitySettings{
		BaseURL:      server.URL + "/v1/",
		APIKey:       "api-key",
		ServiceToken: "service-token",
		Timeout:      time.Second,
	}, server.Client(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new rest provider: %v", err)
	}
	return provider, &calls
}

func providerFailure(message string) map[string]any {
	return map[string]any{"error": map[string]any{"code": 400, "message": message}}
}

func TestRESTProviderVerifyPassword(t *testing.T) {
	provider, calls := newTestRESTProvider(t, func(call recordedCall) (int, any) {
		return http.StatusOK, map[string]any{
			"idToken":      "id-token",
			"email":        "thandi@treasury.gov.za",
			"refreshToken": "refresh",
			"expiresIn":    "3600",
			"localId":      "uid-1",
		}
	})

	account, err := provider.VerifyPassword(context.Background(), "thandi@treasury.gov.za", "secret")
	if err != nil {
		t.Fatalf("verify password: %v", err)
	}
	if account.AccountID != "uid-1" || account.Token != "id-token" || account.Email != "thandi@treasury.gov.za" {
		t.Fatalf("unexpected account %+v", account)
	}

	if len(*calls) != 1 {
		t.Fatalf("expected one call, got %d", len(*calls))
	}
	call := (*calls)[0]
	if call.method != http.MethodPost || call.path != "/v1/accounts:signInWithPassword" {
		t.Fatalf("unexpected request %s %s", call.method, call.path)
	}
	if call.key != "api-key" {
		t.Fatalf("expected api key query parameter, got %q", call.key)
	}
	if call.auth != "" {
		t.Fatalf("sign-in must not carry the service token")
	}
	if call.body["returnSecureToken"] != true {
		t.Fatalf("expected returnSecureToken, got %v", call.body)
	}
}

func TestRESTProviderMapsErrorMessages(t *testing.T) {
	cases := []struct {
		message string
		want    domain.ProviderCode
	}{
		{"EMAIL_NOT_FOUND", domain.ProviderEmailNotFound},
		{"INVALID_PASSWORD", domain.ProviderInvalidPassword},
		{"INVALID_LOGIN_CREDENTIALS", domain.ProviderInvalidLogin},
		{"WEAK_PASSWORD : Password should be at least 6 characters", domain.ProviderWeakPassword},
		{"TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account has been temporarily disabled", domain.ProviderTooManyAttempts},
		{"USER_DISABLED", domain.ProviderUserDisabled},
		{"TOKEN_EXPIRED", domain.ProviderInvalidToken},
		{"SOMETHING_NEW", domain.ProviderUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			provider, _ := newTestRESTProvider(t, func(recordedCall) (int, any) {
				return http.StatusBadRequest, providerFailure(tc.message)
			})

			_, err := provider.VerifyPassword(context.Background(), "a@b.co", "x")
			if got := domain.ProviderCodeOf(err); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			if strings.Contains(err.Error(), "Password should") || strings.Contains(err.Error(), "temporarily") {
				t.Fatalf("raw provider message leaked into %q", err.Error())
			}
		})
	}
}

func TestRESTProviderServerErrorIsUnavailable(t *testing.T) {
	provider, _ := newTestRESTProvider(t, func(recordedCall) (int, any) {
		return http.StatusBadGateway, nil
	})

	err := provider.SendPasswordReset(context.Background(), "a@b.co")
	if got := domain.ProviderCodeOf(err); got != domain.ProviderUnavailable {
		t.Fatalf("expected UNAVAILABLE, got %s", got)
	}
}

func TestRESTProviderTransportFailureIsUnavailable(t *testing.T) {
	provider, err := NewRESTProvider(config.IdentitySettings{
		BaseURL: "http://127.0.0.1:1",
		APIKey:  "api-key",
		Timeout: 200 * time.Millisecond,
	}, nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new rest provider: %v", err)
	}

	_, err = provider.VerifyToken(context.Background(), "token")
	var pErr *domain.ProviderError
	if !errors.As(err, &pErr) || pErr.Code != domain.ProviderUnavailable {
		t.Fatalf("expected UNAVAILABLE provider error, got %v", err)
	}
}

func TestRESTProviderVerifyToken(t *testing.T) {
	provider, calls := newTestRESTProvider(t, func(call recordedCall) (int, any) {
		if call.body["idToken"] == "disabled" {
			return http.StatusOK, map[string]any{"users": []any{map[string]any{"localId": "uid-2", "disabled": true}}}
		}
		if call.body["idToken"] == "orphan" {
			return http.StatusOK, map[string]any{"users": []any{}}
		}
		return http.StatusOK, map[string]any{"users": []any{map[string]any{"localId": "uid-1", "email": "a@b.co"}}}
	})
	ctx := context.Background()

	uid, err := provider.VerifyToken(ctx, "good")
	if err != nil || uid != "uid-1" {
		t.Fatalf("expected uid-1, got %q (%v)", uid, err)
	}
	if (*calls)[0].path != "/v1/accounts:lookup" {
		t.Fatalf("unexpected path %s", (*calls)[0].path)
	}

	_, err = provider.VerifyToken(ctx, "disabled")
	if got := domain.ProviderCodeOf(err); got != domain.ProviderUserDisabled {
		t.Fatalf("expected USER_DISABLED, got %s", got)
	}

	_, err = provider.VerifyToken(ctx, "orphan")
	if got := domain.ProviderCodeOf(err); got != domain.ProviderInvalidToken {
		t.Fatalf("expected INVALID_ID_TOKEN, got %s", got)
	}

	before := len(*calls)
	_, err = provider.VerifyToken(ctx, "  ")
	if got := domain.ProviderCodeOf(err); got != domain.ProviderInvalidToken {
		t.Fatalf("expected INVALID_ID_TOKEN for blank token, got %s", got)
	}
	if len(*calls) != before {
		t.Fatalf("blank token must not reach the provider")
	}
}

func TestRESTProviderPrivilegedCallsCarryServiceToken(t *testing.T) {
	provider, calls := newTestRESTProvider(t, func(recordedCall) (int, any) {
		return http.StatusOK, map[string]any{}
	})
	ctx := context.Background()

	if err := provider.UpdatePassword(ctx, "uid-1", "N3w!Password"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if err := provider.UpdateEmail(ctx, "uid-1", "new@b.co"); err != nil {
		t.Fatalf("update email: %v", err)
	}
	if err := provider.DeleteAccount(ctx, "uid-1"); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	wantPaths := []string{"/v1/accounts:update", "/v1/accounts:update", "/v1/accounts:delete"}
	for i, call := range *calls {
		if call.path != wantPaths[i] {
			t.Fatalf("call %d: expected %s, got %s", i, wantPaths[i], call.path)
		}
		if call.auth != "Bearer service-token" {
			t.Fatalf("call %d: expected service bearer token, got %q", i, call.auth)
		}
		if call.body["localId"] != "uid-1" {
			t.Fatalf("call %d: expected localId, got %v", i, call.body)
		}
	}
}

func TestRESTProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewRESTProvider(config.IdentitySettings{BaseURL: "https://example.test"}, nil, nil); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestCodeFromMessage(t *testing.T) {
	if got := CodeFromMessage("  EMAIL_EXISTS  "); got != domain.ProviderEmailExists {
		t.Fatalf("expected EMAIL_EXISTS, got %s", got)
	}
	if got := CodeFromMessage("INVALID_OOB_CODE : The action code is invalid"); got != domain.ProviderInvalidOOBCode {
		t.Fatalf("expected INVALID_OOB_CODE, got %s", got)
	}
}
