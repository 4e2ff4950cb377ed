package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kindfund/kindfund/internal/config"
	"github.com/kindfund/kindfund/internal/model"
)

const (
	// TokenTTL is the fixed lifetime of a session token.
	TokenTTL = 24 * time.Hour

	// TokenIssuer is the iss claim on every session token.
	TokenIssuer = "kindfund"

	// MinPasswordLength applies to newly registered admins.
	MinPasswordLength = 8

	// bcrypt ignores input past 72 bytes.
	maxPasswordLength = 72
)

var (
	ErrMissingCredentials  = errors.New("email and password are required")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidEmail        = errors.New("email address is not valid")
	ErrWeakPassword        = fmt.Errorf("password must be between %d and %d characters", MinPasswordLength, maxPasswordLength)
	ErrAdminExists         = errors.New("an admin with this email already exists")
	ErrServerMisconfigured = errors.New("server misconfigured: jwt signing secret is not set")
)

// CredentialStore is the persistence the authenticator needs. *config.Store
// satisfies it.
type CredentialStore interface {
	GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	CreateAdmin(ctx context.Context, admin *model.Admin) error
}

// Principal is the admin identity resolved from a verified session token.
type Principal struct {
	AdminID   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims is the JWT payload of a session token. The subject is the admin's
// email address.
type Claims struct {
	AdminID string `json:"admin_id"`
	jwt.RegisteredClaims
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithHasher overrides the password hasher (bcrypt at the default cost
// otherwise).
func WithHasher(h Hasher) Option {
	return func(s *AuthService) { s.hasher = h }
}

// WithTokenTTL overrides the session token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *AuthService) { s.ttl = ttl }
}

// AuthService authenticates admins and issues and verifies their session
// tokens. It holds no per-session state and is safe for concurrent use.
type AuthService struct {
	store     CredentialStore
	jwtSecret []byte
	hasher    Hasher
	ttl       time.Duration
	now       func() time.Time
	parser    *jwt.Parser

	// dummyHash is compared against on unknown emails so every failed
	// login costs one hash comparison.
	dummyHash string
}

// NewAuthService returns an AuthService signing tokens with secret. An empty
// secret is a configuration error: the server must not start without one.
func NewAuthService(store CredentialStore, secret string, opts ...Option) (*AuthService, error) {
	if secret == "" {
		return nil, ErrServerMisconfigured
	}
	s := &AuthService{
		store:     store,
		jwtSecret: []byte(secret),
		hasher:    NewBcryptHasher(0),
		ttl:       TokenTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	dummy, err := s.hasher.Hash("kindfund-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return s, nil
}

// Login checks email and password against the credential store and returns
// a signed session token. Unknown emails and wrong passwords both yield
// ErrInvalidCredentials after the same hashing work.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, config.ErrNotFound) {
			return nil, fmt.Errorf("lookup admin: %w", err)
		}
		s.hasher.Compare(s.dummyHash, password) //nolint:errcheck
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(admin.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.IssueToken(admin)
}

// Register creates a new admin identity with a hashed password.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*model.Admin, error) {
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if !model.IsEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength || len(password) > maxPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	admin := &model.Admin{Email: email, PasswordHash: hash, Name: name}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, config.ErrConflict) {
			return nil, ErrAdminExists
		}
		return nil, err
	}
	return admin, nil
}

// IssueToken signs a session token for admin. The expiry is exactly the
// token lifetime after issuance, at second precision.
func (s *AuthService) IssueToken(admin *model.Admin) (*Session, error) {
	iat := s.now().UTC().Truncate(time.Second)
	exp := iat.Add(s.ttl)

	claims := Claims{
		AdminID: admin.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   admin.Email,
			Issuer:    TokenIssuer,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: signed, Email: admin.Email, IssuedAt: iat, ExpiresAt: exp}, nil
}

// VerifyToken checks the signature and expiry of a session token. Failures
// are returned as *RejectionError.
func (s *AuthService) VerifyToken(tokenStr string) (*Principal, error) {
	if tokenStr == "" {
		return nil, &RejectionError{Reason: ReasonMissing}
	}

	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &RejectionError{Reason: classify(err), Err: err}
	}
	if claims.Subject == "" {
		return nil, &RejectionError{Reason: ReasonMalformed, Err: errors.New("token has no subject")}
	}

	p := &Principal{AdminID: claims.AdminID, Email: claims.Subject}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	p.ExpiresAt = claims.ExpiresAt.Time
	return p, nil
}

// classify maps a jwt parse error to a rejection reason. Signature checks
// run before claim validation, so an expired token with a bad signature is
// reported as a signature failure.
func classify(err error) Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	default:
		return ReasonMalformed
	}
}
