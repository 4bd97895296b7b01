package security

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

// ErrInvalidToken wraps every verification failure.
var ErrInvalidToken = errors.New("jwt: invalid token")

const defaultTokenTTL = time.Hour

// IdentityClaims are carried by tokens issued to local identity accounts.
type IdentityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies RS256 identity tokens.
type TokenManager struct {
	keys   KeyProvider
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager constructs a manager signing with keys.
func NewTokenManager(keys KeyProvider, issuer string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenManager{keys: keys, issuer: issuer, ttl: ttl, now: time.Now}
}

// WithClock overrides the issuing clock.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	if now != nil {
		m.now = now
	}
	return m
}

// Issue signs a token whose subject is accountID.
func (m *TokenManager) Issue(accountID, email string) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", fmt.Errorf("jwt: account id is required")
	}

	kid, key, err := m.keys.SigningKey()
	if err != nil {
		return "", fmt.Errorf("jwt: get signing key: %w", err)
	}

	now := m.now().UTC()
	claims := IdentityClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the claims.
func (m *TokenManager) Verify(raw string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		return m.keys.VerificationKey(kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// JWKS renders the verification keys as a JSON Web Key Set.
func (m *TokenManager) JWKS() ([]byte, error) {
	published := m.keys.VerificationKeys()
	kids := make([]string, 0, len(published))
	for kid := range published {
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	keys := make([]map[string]string, 0, len(kids))
	for _, kid := range kids {
		key := published[kid]
		keys = append(keys, map[string]string{
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"kid": kid,
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}
	return json.Marshal(map[string]any{"keys": keys})
}
