package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kindfund/kindfund/internal/config"
	"github.com/kindfund/kindfund/internal/model"
)

const testSecret = "test-secret-key-for-jwt"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestAuth(t *testing.T, opts ...Option) (*AuthService, *config.Store) {
	t.Helper()
	store, err := config.NewStore("sqlite", "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	opts = append([]Option{WithHasher(NewBcryptHasher(4))}, opts...)
	auth, err := NewAuthService(store, testSecret, opts...)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return auth, store
}

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected *RejectionError, got %v", err)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("rejection should match ErrUnauthorized")
	}
	return rej.Reason
}

func TestNewAuthServiceRequiresSecret(t *testing.T) {
	_, err := NewAuthService(nil, "")
	if !errors.Is(err, ErrServerMisconfigured) {
		t.Fatalf("expected ErrServerMisconfigured, got %v", err)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 500, time.UTC)}
	auth, _ := newTestAuth(t, WithClock(clock.Now))
	ctx := context.Background()

	admin, err := auth.Register(ctx, "admin@example.org", "S3cret!!", "Admin")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if admin.PasswordHash == "" || admin.PasswordHash == "S3cret!!" {
		t.Fatalf("password not hashed: %q", admin.PasswordHash)
	}

	sess, err := auth.Login(ctx, "admin@example.org", "S3cret!!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("expected non-empty token")
	}
	if got := sess.ExpiresAt.Sub(sess.IssuedAt); got != 24*time.Hour {
		t.Errorf("token lifetime = %v, want exactly 24h", got)
	}

	p, err := auth.VerifyToken(sess.Token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if p.Email != "admin@example.org" {
		t.Errorf("Email = %q", p.Email)
	}
	if p.AdminID != admin.ID {
		t.Errorf("AdminID = %q, want %q", p.AdminID, admin.ID)
	}
	if p.ExpiresAt.Sub(p.IssuedAt) != 24*time.Hour {
		t.Errorf("claims lifetime = %v, want 24h", p.ExpiresAt.Sub(p.IssuedAt))
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := auth.Register(ctx, "admin@example.org", "S3cret!!", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, wrongPass := auth.Login(ctx, "admin@example.org", "wrongpass")
	_, unknown := auth.Login(ctx, "nobody@example.org", "whatever")

	if wrongPass != ErrInvalidCredentials || unknown != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", wrongPass, unknown)
	}
	if wrongPass.Error() != unknown.Error() {
		t.Errorf("messages differ: %q vs %q", wrongPass, unknown)
	}
}

func TestLoginIsCaseSensitive(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := auth.Register(ctx, "admin@example.org", "S3cret!!", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := auth.Login(ctx, "ADMIN@example.org", "S3cret!!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

type countingHasher struct {
	Hasher
	hashes   int
	compares int
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.hashes++
	return h.Hasher.Hash(password)
}

func (h *countingHasher) Compare(hash, password string) error {
	h.compares++
	return h.Hasher.Compare(hash, password)
}

func TestLoginUnknownEmailStillHashes(t *testing.T) {
	h := &countingHasher{Hasher: NewBcryptHasher(4)}
	auth, _ := newTestAuth(t, WithHasher(h))

	if _, err := auth.Login(context.Background(), "nobody@example.org", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if h.compares != 1 {
		t.Errorf("expected one hash comparison for unknown email, got %d", h.compares)
	}
	if h.hashes != 1 {
		t.Errorf("expected only the constructor to hash, got %d", h.hashes)
	}
}

func TestLoginWrongPasswordComparesOnce(t *testing.T) {
	h := &countingHasher{Hasher: NewBcryptHasher(4)}
	auth, _ := newTestAuth(t, WithHasher(h))
	ctx := context.Background()
	if _, err := auth.Register(ctx, "admin@example.org", "S3cret!!", "Admin"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	h.compares = 0

	if _, err := auth.Login(ctx, "admin@example.org", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if h.compares != 1 {
		t.Errorf("expected one hash comparison for wrong password, got %d", h.compares)
	}
}

type brokenHasher struct{ Hasher }

func (brokenHasher) Hash(string) (string, error) { return "", errors.New("entropy unavailable") }

func TestNewAuthServiceHasherFailure(t *testing.T) {
	_, err := NewAuthService(nil, testSecret, WithHasher(brokenHasher{}))
	if err == nil || !strings.Contains(err.Error(), "entropy unavailable") {
		t.Fatalf("expected dummy hash error, got %v", err)
	}
}

func TestLoginMissingCredentials(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	tests := []struct{ email, password string }{
		{"", "pw"},
		{"a@example.org", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if _, err := auth.Login(ctx, tt.email, tt.password); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("Login(%q, %q): expected ErrMissingCredentials, got %v", tt.email, tt.password, err)
		}
	}
}

type failingStore struct{}

func (failingStore) GetAdminByEmail(context.Context, string) (*model.Admin, error) {
	return nil, errors.New("database is locked")
}

func (failingStore) CreateAdmin(context.Context, *model.Admin) error {
	return errors.New("database is locked")
}

func TestLoginStoreFailure(t *testing.T) {
	auth, err := NewAuthService(failingStore{}, testSecret, WithHasher(NewBcryptHasher(4)))
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	_, err = auth.Login(context.Background(), "a@example.org", "password")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected a server error, got %v", err)
	}
}

func TestRegisterDuplicateLeavesOriginal(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()

	first, err := auth.Register(ctx, "admin@example.org", "first-password", "First")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := auth.Register(ctx, "admin@example.org", "second-password", "Second"); !errors.Is(err, ErrAdminExists) {
		t.Fatalf("expected ErrAdminExists, got %v", err)
	}

	stored, err := store.GetAdminByEmail(ctx, "admin@example.org")
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	if stored.ID != first.ID || stored.PasswordHash != first.PasswordHash || stored.Name != "First" {
		t.Errorf("stored record changed: %+v", stored)
	}
	if _, err := auth.Login(ctx, "admin@example.org", "first-password"); err != nil {
		t.Errorf("original password should still work: %v", err)
	}
	if _, err := auth.Login(ctx, "admin@example.org", "second-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("second password must not work, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"missing email", "", "longenough", ErrMissingCredentials},
		{"missing password", "a@example.org", "", ErrMissingCredentials},
		{"bad email", "not-an-email", "longenough", ErrInvalidEmail},
		{"short password", "a@example.org", "short", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := auth.Register(ctx, tt.email, tt.password, ""); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestVerifyTokenExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	auth, _ := newTestAuth(t, WithClock(clock.Now))

	sess, err := auth.IssueToken(&model.Admin{ID: "a1", Email: "admin@example.org"})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	clock.t = clock.t.Add(24*time.Hour - time.Second)
	if _, err := auth.VerifyToken(sess.Token); err != nil {
		t.Fatalf("token should be valid just before expiry: %v", err)
	}

	clock.t = clock.t.Add(2 * time.Second)
	_, err = auth.VerifyToken(sess.Token)
	if got := reasonOf(t, err); got != ReasonExpired {
		t.Errorf("reason = %q, want %q", got, ReasonExpired)
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	auth, _ := newTestAuth(t)
	other, err := NewAuthService(nil, "a-different-secret", WithTokenTTL(100*365*24*time.Hour))
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	sess, err := other.IssueToken(&model.Admin{ID: "a1", Email: "admin@example.org"})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	_, err = auth.VerifyToken(sess.Token)
	if got := reasonOf(t, err); got != ReasonSignatureInvalid {
		t.Errorf("reason = %q, want %q", got, ReasonSignatureInvalid)
	}
}

func TestVerifyTokenRejectsForgedTokens(t *testing.T) {
	auth, _ := newTestAuth(t)
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "admin@example.org", Issuer: TokenIssuer, ExpiresAt: future},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "admin@example.org", Issuer: "someone-else", ExpiresAt: future},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "admin@example.org", Issuer: TokenIssuer},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: TokenIssuer, ExpiresAt: future},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  Reason
	}{
		{"empty", "", ReasonMissing},
		{"garbage", "garbage.token.here", ReasonMalformed},
		{"alg none", none, ReasonSignatureInvalid},
		{"wrong issuer", wrongIssuer, ReasonMalformed},
		{"no expiry", noExpiry, ReasonMalformed},
		{"no subject", noSubject, ReasonMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.VerifyToken(tt.token)
			if got := reasonOf(t, err); got != tt.want {
				t.Errorf("reason = %q, want %q (err: %v)", got, tt.want, err)
			}
		})
	}
}

func TestRejectionMessages(t *testing.T) {
	for _, r := range []Reason{ReasonMissing, ReasonMalformed, ReasonExpired, ReasonSignatureInvalid} {
		e := &RejectionError{Reason: r}
		if e.Message() == "" {
			t.Errorf("empty message for %q", r)
		}
	}
}
