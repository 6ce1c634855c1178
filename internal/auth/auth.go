// Package auth registers and logs in users and issues the bearer tokens the
// HTTP API authenticates with.
package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/cemention/internal/domain/user"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password. The two cases are not distinguished.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("invalid authentication token")
)

// InvalidFieldError indicates a rejected registration field.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Claims are the JWT claims of an access token. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Role user.Role `json:"role"`
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a Tokens with the given signing secret and lifetime.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		return nil, errors.Errorf("invalid token ttl %s", ttl)
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for u.
func (t *Tokens) Issue(u *user.User) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Role: u.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Parse verifies token and returns its claims.
func (t *Tokens) Parse(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// HashPassword hashes password with bcrypt at cost.
func HashPassword(password string, cost int) (string, error) {
	if len(password) < MinPasswordLength {
		return "", &InvalidFieldError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLength)}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

// CheckPassword reports ErrInvalidCredentials unless password matches hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// RegisterRequest holds the fields of a new account.
type RegisterRequest struct {
	Name         string
	Email        string
	Password     string
	Phone        string
	BusinessName string
	Role         string
}

// Service implements registration, login and token authentication.
type Service struct {
	users  user.Repository
	tokens *Tokens
	cost   int
	now    func() time.Time
}

// NewService creates an auth Service. cost is the bcrypt cost.
func NewService(users user.Repository, tokens *Tokens, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{users: users, tokens: tokens, cost: cost, now: time.Now}
}

// Register creates a buyer account and returns it with an access token.
// Admin accounts cannot be self-registered.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*user.User, string, error) {
	role, err := user.ParseRole(req.Role)
	if err != nil {
		return nil, "", err
	}
	if !role.SelfRegistrable() {
		return nil, "", &InvalidFieldError{Field: "role", Reason: fmt.Sprintf("%s accounts cannot be self-registered", role)}
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, "", &InvalidFieldError{Field: "name", Reason: "required"}
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, "", err
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return nil, "", &InvalidFieldError{Field: "phone", Reason: "required"}
	}

	hash, err := HashPassword(req.Password, s.cost)
	if err != nil {
		return nil, "", err
	}

	u := &user.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		BusinessName: strings.TrimSpace(req.BusinessName),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, "", errors.Wrap(err, "create user")
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login checks the credentials and returns the user with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (*user.User, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", errors.Wrap(err, "get user")
	}
	if err := CheckPassword(u.PasswordHash, password); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Authenticate resolves a bearer token to the current user record. The role
// is always read from the store, so role changes apply to existing tokens.
func (s *Service) Authenticate(ctx context.Context, token string) (*user.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, errors.Wrap(err, "get user")
	}
	return u, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &InvalidFieldError{Field: "email", Reason: "malformed address"}
	}
	return email, nil
}
