package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"loomos.org/internal/ids"
)

const (
	defaultIssuer     = "loomos"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14

	// Allow a small clock skew when validating issued-at.
	issuedAtSkew = 5 * time.Second
)

// Service issues and verifies session tokens and authenticates credentials.
// Access-token claims are trusted as-is at verification time; the live user
// record is consulted only at login and refresh.
type Service struct {
	users   UserStore
	refresh RefreshTokenStore
	revoker Revoker

	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		if v := strings.TrimSpace(issuer); v != "" {
			s.issuer = v
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithRevoker enables token revocation checks against the provided store.
func WithRevoker(r Revoker) ServiceOption {
	return func(s *Service) error {
		s.revoker = r
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service signing HS256 session tokens with secret.
func NewService(users UserStore, refresh RefreshTokenStore, secret string, opts ...ServiceOption) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if users == nil || refresh == nil {
		return nil, errors.New("auth: user and refresh token stores are required")
	}
	svc := &Service{
		users:      users,
		refresh:    refresh,
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// SessionClaims are the JWT claims carried by access tokens. Everything the
// gateway needs per request is established here at issuance time.
type SessionClaims struct {
	Email               string `json:"email,omitempty"`
	Role                string `json:"role"`
	OrganizationID      string `json:"org,omitempty"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
	TokenType           string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair bundles access and refresh tokens with their expirations.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Login authenticates email+password and issues a fresh token pair.
// Every failure mode collapses to ErrUnauthorized so responses do not reveal
// whether the account exists.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, Identity{}, ErrUnauthorized
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Identity{}, ErrUnauthorized
		}
		return TokenPair{}, Identity{}, err
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, Identity{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, Identity{}, ErrUnauthorized
	}
	identity := identityFromUser(user)
	pair, err := s.mintTokens(ctx, identity)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	return pair, identity, nil
}

// Refresh rotates the refresh token and issues new access credentials.
// The user record is re-read so role or status changes take effect here.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, Identity, error) {
	tokenID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, Identity{}, ErrInvalidToken
	}
	record, err := s.refresh.Find(ctx, tokenID)
	if err != nil {
		return TokenPair{}, Identity{}, ErrInvalidToken
	}
	if record.Revoked || s.now().After(record.ExpiresAt) {
		return TokenPair{}, Identity{}, ErrInvalidToken
	}
	if !secureCompareHash(record.TokenHash, secret) {
		_ = s.refresh.MarkRevoked(ctx, record.ID)
		return TokenPair{}, Identity{}, ErrInvalidToken
	}

	user, err := s.users.Find(ctx, record.UserID)
	if err != nil {
		return TokenPair{}, Identity{}, ErrInvalidToken
	}
	if user.Status != UserStatusActive {
		_ = s.refresh.MarkRevoked(ctx, record.ID)
		return TokenPair{}, Identity{}, ErrUnauthorized
	}

	// Rotate: revoke old, issue new pair.
	if err := s.refresh.MarkRevoked(ctx, record.ID); err != nil {
		return TokenPair{}, Identity{}, err
	}
	identity := identityFromUser(user)
	pair, err := s.mintTokens(ctx, identity)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	return pair, identity, nil
}

// Logout revokes the presented refresh token and denylists the live access
// token until its natural expiry.
func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if tokenID, _, err := splitRefreshToken(refreshToken); err == nil {
		if rec, err := s.refresh.Find(ctx, tokenID); err == nil && rec.UserID == session.Identity.UserID {
			if err := s.refresh.MarkRevoked(ctx, rec.ID); err != nil {
				return err
			}
		}
	}
	if s.revoker != nil && session.TokenID != "" {
		return s.revoker.RevokeToken(ctx, session.TokenID, session.ExpiresAt)
	}
	return nil
}

// VerifyAccess validates an access token and returns the verified session.
func (s *Service) VerifyAccess(ctx context.Context, token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return Session{}, ErrInvalidToken
	}
	if err := s.validateClaims(claims); err != nil {
		return Session{}, ErrInvalidToken
	}

	role, err := ParseRole(claims.Role)
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	session := Session{
		Identity: Identity{
			UserID:              claims.Subject,
			Email:               claims.Email,
			Role:                role,
			OrganizationID:      claims.OrganizationID,
			OnboardingCompleted: claims.OnboardingCompleted,
		},
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.checkRevocation(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *Service) checkRevocation(ctx context.Context, session Session) error {
	if s.revoker == nil {
		return nil
	}
	revoked, err := s.revoker.TokenRevoked(ctx, session.TokenID)
	if err != nil {
		return err
	}
	if revoked {
		return ErrInvalidToken
	}
	orgID := session.Identity.OrganizationID
	if orgID == "" {
		return nil
	}
	cutoff, ok, err := s.revoker.OrganizationCutoff(ctx, orgID)
	if err != nil {
		return err
	}
	if ok && session.IssuedAt.Before(cutoff) {
		return ErrInvalidToken
	}
	return nil
}

func (s *Service) validateClaims(claims *SessionClaims) error {
	if claims.Issuer != s.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.TokenType != "access" {
		return errors.New("not an access token")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := s.now().UTC()
	if claims.IssuedAt.Time.After(now.Add(issuedAtSkew)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

func (s *Service) mintTokens(ctx context.Context, identity Identity) (TokenPair, error) {
	now := s.now().UTC()
	access, accessExp, err := s.signAccessToken(identity, now)
	if err != nil {
		return TokenPair{}, err
	}
	refreshString, refreshRec, err := s.generateRefreshToken(identity.UserID, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.refresh.Create(ctx, refreshRec); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refreshString,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshRec.ExpiresAt,
	}, nil
}

func (s *Service) signAccessToken(identity Identity, now time.Time) (string, time.Time, error) {
	exp := now.Add(s.accessTTL)
	claims := SessionClaims{
		Email:               identity.Email,
		Role:                string(identity.Role),
		OrganizationID:      identity.OrganizationID,
		OnboardingCompleted: identity.OnboardingCompleted,
		TokenType:           "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        ids.New(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (s *Service) generateRefreshToken(userID string, now time.Time) (string, *RefreshToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	tokenID := ids.New()
	sum := sha256.Sum256([]byte(secret))
	rec := &RefreshToken{
		ID:        tokenID,
		UserID:    userID,
		TokenHash: hex.EncodeToString(sum[:]),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	return tokenID + "." + secret, rec, nil
}

func identityFromUser(user *User) Identity {
	return Identity{
		UserID:              user.ID,
		Email:               user.Email,
		Role:                user.Role,
		OrganizationID:      user.OrganizationID,
		OnboardingCompleted: user.OnboardingCompleted,
	}
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func secureCompareHash(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}
