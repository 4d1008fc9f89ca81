package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/lotwise/backend-lotwise/internal/common"
)

type fakeStore struct {
	operators map[string]Operator
	touched   []uuid.UUID
}

func (f *fakeStore) GetByUsername(_ context.Context, tenantID, username string) (Operator, error) {
	op, ok := f.operators[tenantID+"/"+strings.ToLower(username)]
	if !ok {
		return Operator{}, ErrOperatorNotFound
	}
	return op, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (Operator, error) {
	for _, op := range f.operators {
		if op.ID == id {
			return op, nil
		}
	}
	return Operator{}, ErrOperatorNotFound
}

func (f *fakeStore) TouchLastLogin(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.touched = append(f.touched, id)
	return nil
}

func newTestService(t *testing.T, store *fakeStore) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Store:     store,
		Secret:    []byte("0123456789abcdef0123456789abcdef"),
		AccessTTL: time.Hour,
		Issuer:    "lotwise-api",
		Audience:  "lotwise",
		ClockSkew: time.Second,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedOperator(t *testing.T, store *fakeStore, tenantID, username, password string, active bool) Operator {
	t.Helper()
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	op := Operator{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Username:     username,
		PasswordHash: hash,
		DisplayName:  "Test Operator",
		Role:         "operator",
		Active:       active,
	}
	if store.operators == nil {
		store.operators = map[string]Operator{}
	}
	store.operators[tenantID+"/"+strings.ToLower(username)] = op
	return op
}

func TestLoginIssuesParsableToken(t *testing.T) {
	store := &fakeStore{}
	op := seedOperator(t, store, "acme", "booth-1", "s3cret-pass", true)
	svc := newTestService(t, store)

	result, err := svc.Login(context.Background(), "acme", "booth-1", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.AccessToken == "" {
		t.Fatal("expected access token")
	}

	claims, err := svc.ParseAccessToken(result.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.OperatorID != op.ID.String() {
		t.Fatalf("expected subject %s, got %s", op.ID, claims.OperatorID)
	}
	if claims.Role != "operator" {
		t.Fatalf("expected role claim, got %q", claims.Role)
	}
	if len(store.touched) != 1 || store.touched[0] != op.ID {
		t.Fatalf("expected last login touch for %s", op.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	store := &fakeStore{}
	seedOperator(t, store, "acme", "booth-1", "s3cret-pass", true)
	svc := newTestService(t, store)

	_, err := svc.Login(context.Background(), "acme", "booth-1", "wrong")
	assertAppCode(t, err, "INVALID_CREDENTIALS")
}

func TestLoginUnknownUserSameError(t *testing.T) {
	svc := newTestService(t, &fakeStore{})
	_, err := svc.Login(context.Background(), "acme", "ghost", "whatever")
	assertAppCode(t, err, "INVALID_CREDENTIALS")
}

func TestLoginDisabledOperator(t *testing.T) {
	store := &fakeStore{}
	seedOperator(t, store, "acme", "booth-1", "s3cret-pass", false)
	svc := newTestService(t, store)

	_, err := svc.Login(context.Background(), "acme", "booth-1", "s3cret-pass")
	assertAppCode(t, err, "OPERATOR_DISABLED")
}

func TestLoginIsTenantScoped(t *testing.T) {
	store := &fakeStore{}
	seedOperator(t, store, "acme", "booth-1", "s3cret-pass", true)
	svc := newTestService(t, store)

	_, err := svc.Login(context.Background(), "beta", "booth-1", "s3cret-pass")
	assertAppCode(t, err, "INVALID_CREDENTIALS")
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t, &fakeStore{})
	if _, err := svc.ParseAccessToken("not-a-token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
	if _, err := svc.ParseAccessToken(""); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestRequireAuthMiddleware(t *testing.T) {
	store := &fakeStore{}
	op := seedOperator(t, store, "acme", "booth-1", "s3cret-pass", true)
	svc := newTestService(t, store)

	result, err := svc.Login(context.Background(), "acme", "booth-1", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	mw := Middleware{Service: svc}
	var gotOperator string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOperator, _ = common.OperatorID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+result.AccessToken)
	rec := httptest.NewRecorder()
	mw.RequireAuth(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if gotOperator != op.ID.String() {
		t.Fatalf("expected operator %s in context, got %q", op.ID, gotOperator)
	}

	rec = httptest.NewRecorder()
	mw.RequireAuth(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	guard := RequireRole("admin")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings/rates", nil)
	req = req.WithContext(common.WithOperatorRole(req.Context(), "admin"))
	rec := httptest.NewRecorder()
	guard(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for admin, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/v1/settings/rates", nil)
	req = req.WithContext(common.WithOperatorRole(req.Context(), "operator"))
	rec = httptest.NewRecorder()
	guard(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	guard(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/settings/rates", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without role, got %d", rec.Code)
	}
}

func assertAppCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *common.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s", code, appErr.Code)
	}
}
