package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/core/port"
	"github.com/arklim/skills-audit/internal/infra/config"
	"github.com/arklim/skills-audit/internal/infra/logger"
)

const (
	defaultRESTTimeout = 10 * time.Second
	maxResponseBytes   = 1 << 20
)

// RESTProvider talks to an Identity Toolkit compatible accounts API.
type RESTProvider struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	serviceToken string
	limiter      *rate.Limiter
	logger       *zap.Logger
}

// NewRESTProvider builds a provider from the identity settings. A nil client
// gets a fresh http.Client using the configured timeout.
func NewRESTProvider(cfg config.IdentitySettings, client *http.Client, log *zap.Logger) (*RESTProvider, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("identity: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("identity: parse base url: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("identity: api key is required")
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultRESTTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := 1
	if cfg.MaxRequestsPerSecond > 0 {
		limit = rate.Limit(cfg.MaxRequestsPerSecond)
		burst = int(cfg.MaxRequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	return &RESTProvider{
		client:       client,
		baseURL:      base,
		apiKey:       cfg.APIKey,
		serviceToken: cfg.ServiceToken,
		limiter:      rate.NewLimiter(limit, burst),
		logger:       logger.OrNop(log),
	}, nil
}

type signInResponse struct {
	IDToken      string `json:"idToken"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
}

type lookupResponse struct {
	Users []struct {
		LocalID  string `json:"localId"`
		Email    string `json:"email"`
		Disabled bool   `json:"disabled"`
	} `json:"users"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *RESTProvider) VerifyPassword(ctx context.Context, email, password string) (domain.ProviderAccount, error) {
	var out signInResponse
	err := p.call(ctx, "signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out, false)
	if err != nil {
		return domain.ProviderAccount{}, err
	}
	return domain.ProviderAccount{AccountID: out.LocalID, Token: out.IDToken, Email: out.Email}, nil
}

func (p *RESTProvider) CreateAccount(ctx context.Context, email, password string) (domain.ProviderAccount, error) {
	var out signInResponse
	err := p.call(ctx, "signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out, false)
	if err != nil {
		return domain.ProviderAccount{}, err
	}
	return domain.ProviderAccount{AccountID: out.LocalID, Token: out.IDToken, Email: out.Email}, nil
}

func (p *RESTProvider) SendPasswordReset(ctx context.Context, email string) error {
	return p.call(ctx, "sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil, false)
}

func (p *RESTProvider) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	return p.call(ctx, "resetPassword", map[string]any{
		"oobCode":     code,
		"newPassword": newPassword,
	}, nil, false)
}

func (p *RESTProvider) VerifyToken(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", domain.NewProviderError(domain.ProviderInvalidToken, errors.New("empty token"))
	}
	var out lookupResponse
	if err := p.call(ctx, "lookup", map[string]any{"idToken": token}, &out, false); err != nil {
		return "", err
	}
	if len(out.Users) == 0 || out.Users[0].LocalID == "" {
		return "", domain.NewProviderError(domain.ProviderInvalidToken, errors.New("lookup returned no account"))
	}
	if out.Users[0].Disabled {
		return "", domain.NewProviderError(domain.ProviderUserDisabled, nil)
	}
	return out.Users[0].LocalID, nil
}

func (p *RESTProvider) UpdatePassword(ctx context.Context, accountID, newPassword string) error {
	return p.call(ctx, "update", map[string]any{
		"localId":  accountID,
		"password": newPassword,
	}, nil, true)
}

func (p *RESTProvider) UpdateEmail(ctx context.Context, accountID, newEmail string) error {
	return p.call(ctx, "update", map[string]any{
		"localId": accountID,
		"email":   newEmail,
	}, nil, true)
}

func (p *RESTProvider) DeleteAccount(ctx context.Context, accountID string) error {
	return p.call(ctx, "delete", map[string]any{"localId": accountID}, nil, true)
}

// call posts body to accounts:<method>. Privileged calls carry the service token.
func (p *RESTProvider) call(ctx context.Context, method string, body any, out any, privileged bool) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return domain.NewProviderError(domain.ProviderUnavailable, fmt.Errorf("rate limiter: %w", err))
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return domain.NewProviderError(domain.ProviderUnknown, fmt.Errorf("encode %s request: %w", method, err))
	}

	endpoint := fmt.Sprintf("%s/accounts:%s?key=%s", p.baseURL, method, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.NewProviderError(domain.ProviderUnknown, fmt.Errorf("build %s request: %w", method, err))
	}
	req.Header.Set("Content-Type", "application/json")
	if privileged && p.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.serviceToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("identity provider request failed", zap.String("method", method), zap.Error(err))
		return domain.NewProviderError(domain.ProviderUnavailable, fmt.Errorf("%s: %w", method, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.NewProviderError(domain.ProviderUnavailable, fmt.Errorf("read %s response: %w", method, err))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		p.logger.Warn("identity provider unavailable",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
		)
		return domain.NewProviderError(domain.ProviderUnavailable, fmt.Errorf("%s: status %d", method, resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(method, resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.NewProviderError(domain.ProviderUnknown, fmt.Errorf("decode %s response: %w", method, err))
	}
	return nil
}

func decodeError(method string, status int, raw []byte) error {
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Message == "" {
		return domain.NewProviderError(domain.ProviderUnknown, fmt.Errorf("%s: status %d", method, status))
	}
	return domain.NewProviderError(
		CodeFromMessage(body.Error.Message),
		fmt.Errorf("%s: status %d: %s", method, status, body.Error.Message),
	)
}

// providerAliases folds codes the accounts API uses interchangeably.
var providerAliases = map[string]domain.ProviderCode{
	"TOKEN_EXPIRED":                  domain.ProviderInvalidToken,
	"USER_DISABLED":                  domain.ProviderUserDisabled,
	"INVALID_IDP_RESPONSE":           domain.ProviderInvalidToken,
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN": domain.ProviderInvalidToken,
}

// CodeFromMessage extracts the provider code from an error message such as
// "WEAK_PASSWORD : Password should be at least 6 characters".
func CodeFromMessage(message string) domain.ProviderCode {
	code := message
	if idx := strings.Index(code, ":"); idx >= 0 {
		code = code[:idx]
	}
	code = strings.TrimSpace(code)
	if alias, ok := providerAliases[code]; ok {
		return alias
	}
	return domain.ParseProviderCode(code)
}

var _ port.IdentityProvider = (*RESTProvider)(nil)
