package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/lotwise/backend-lotwise/internal/common"
)

const defaultAccessTTL = 8 * time.Hour

// ErrOperatorNotFound is returned when no operator matches the lookup.
var ErrOperatorNotFound = errors.New("auth: operator not found")

// Operator is a staff account that can act on a tenant's lot: open and close
// sessions, grant validations, and manage settings.
type Operator struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     string     `json:"tenantId"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	DisplayName  string     `json:"displayName"`
	Role         string     `json:"role"`
	Active       bool       `json:"active"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Storage is the persistence surface for operator accounts. Satisfied by Store.
type Storage interface {
	GetByUsername(ctx context.Context, tenantID, username string) (Operator, error)
	GetByID(ctx context.Context, id uuid.UUID) (Operator, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Store persists operators in postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const operatorColumns = `id, tenant_id, username, password_hash, display_name, role, active, last_login_at, created_at, updated_at`

func (s Store) GetByUsername(ctx context.Context, tenantID, username string) (Operator, error) {
	const query = `SELECT ` + operatorColumns + ` FROM operators WHERE tenant_id = $1 AND lower(username) = lower($2)`
	return s.scanOne(s.Pool.QueryRow(ctx, query, tenantID, username))
}

func (s Store) GetByID(ctx context.Context, id uuid.UUID) (Operator, error) {
	const query = `SELECT ` + operatorColumns + ` FROM operators WHERE id = $1`
	return s.scanOne(s.Pool.QueryRow(ctx, query, id))
}

func (s Store) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	const query = `UPDATE operators SET last_login_at = $2, updated_at = now() WHERE id = $1`
	_, err := s.Pool.Exec(ctx, query, id, at)
	return err
}

func (s Store) scanOne(row pgx.Row) (Operator, error) {
	var op Operator
	err := row.Scan(&op.ID, &op.TenantID, &op.Username, &op.PasswordHash, &op.DisplayName,
		&op.Role, &op.Active, &op.LastLoginAt, &op.CreatedAt, &op.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Operator{}, ErrOperatorNotFound
	}
	if err != nil {
		return Operator{}, err
	}
	return op, nil
}

// Config configures the auth service.
type Config struct {
	Store     Storage
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Now       func() time.Time
}

// Service authenticates operators and issues short-lived access tokens.
// Operator accounts are provisioned out of band; there is no self-service
// signup or password reset flow on the kiosk API.
type Service struct {
	store     Storage
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
	signer    jwa.SignatureAlgorithm
	validator TokenValidator
	issuer    string
	audience  string
	clockSkew time.Duration
}

// NewService builds an auth service from configuration, applying defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	if len(cfg.Secret) < 32 {
		return nil, errors.New("auth: secret must be at least 32 bytes")
	}
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     cfg.Store,
		secret:    cfg.Secret,
		accessTTL: accessTTL,
		now:       now,
		signer:    jwa.HS256,
		validator: TokenValidator{
			Issuer:    cfg.Issuer,
			Audience:  cfg.Audience,
			ClockSkew: cfg.ClockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		clockSkew: cfg.ClockSkew,
	}, nil
}

// LoginResult carries the issued token and the authenticated operator.
type LoginResult struct {
	AccessToken  string    `json:"accessToken"`
	AccessExpiry time.Time `json:"accessExpiry"`
	Operator     Operator  `json:"operator"`
}

// Login verifies the operator's credentials and issues an access token.
// Lookup failures and bad passwords produce the same error so the endpoint
// does not disclose which usernames exist.
func (s *Service) Login(ctx context.Context, tenantID, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, invalidCredentials(nil)
	}

	op, err := s.store.GetByUsername(ctx, tenantID, username)
	if err != nil {
		if errors.Is(err, ErrOperatorNotFound) {
			return LoginResult{}, invalidCredentials(err)
		}
		return LoginResult{}, fmt.Errorf("lookup operator: %w", err)
	}
	if !op.Active {
		return LoginResult{}, common.NewAppError("OPERATOR_DISABLED", "operator account is disabled", http.StatusForbidden, nil)
	}

	match, err := argon2id.ComparePasswordAndHash(password, op.PasswordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return LoginResult{}, invalidCredentials(nil)
	}

	token, expiry, err := s.signAccessToken(op)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}

	loginAt := s.now()
	if err := s.store.TouchLastLogin(ctx, op.ID, loginAt); err == nil {
		op.LastLoginAt = &loginAt
	}

	return LoginResult{AccessToken: token, AccessExpiry: expiry, Operator: op}, nil
}

// Me fetches the authenticated operator's account.
func (s *Service) Me(ctx context.Context, operatorID string) (Operator, error) {
	id, err := uuid.Parse(strings.TrimSpace(operatorID))
	if err != nil {
		return Operator{}, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, err)
	}
	op, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Operator{}, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, err)
	}
	return op, nil
}

// Claims are the token fields the middleware puts on the request context.
type Claims struct {
	OperatorID string
	Role       string
}

// ParseAccessToken validates an access token and returns its claims.
func (s *Service) ParseAccessToken(token string) (Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret))
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	claims := Claims{OperatorID: parsed.Subject()}
	if raw, ok := parsed.Get(roleClaim); ok {
		if role, ok := raw.(string); ok {
			claims.Role = role
		}
	}
	return claims, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", fmt.Errorf("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

const roleClaim = "role"

func (s *Service) signAccessToken(op Operator) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	builder := jwt.NewBuilder().
		Subject(op.ID.String()).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Claim(roleClaim, op.Role)
	token, err := builder.Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func invalidCredentials(err error) error {
	return common.NewAppError("INVALID_CREDENTIALS", "invalid username or password", http.StatusUnauthorized, err)
}
