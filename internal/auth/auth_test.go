package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/cemention/internal/domain/user"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*user.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[string]*user.User)}
}

func (m *memUsers) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return user.ErrEmailTaken
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *memUsers) List(context.Context) ([]user.User, error) { return nil, nil }

func (m *memUsers) Update(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) UpdateRole(_ context.Context, id string, role user.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return user.ErrNotFound
	}
	u.Role = role
	return nil
}

func newTestService(t *testing.T) (*Service, *memUsers) {
	t.Helper()
	tokens, err := NewTokens("test-secret", time.Hour)
	require.NoError(t, err)
	users := newMemUsers()
	return NewService(users, tokens, bcrypt.MinCost), users
}

func validRequest() RegisterRequest {
	return RegisterRequest{
		Name:     "Shree Traders",
		Email:    " Owner@Shree.example ",
		Password: "secret123",
		Phone:    "9823064024",
		Role:     "dealer",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, token, err := svc.Register(ctx, validRequest())
	require.NoError(t, err)
	assert.Equal(t, "owner@shree.example", u.Email)
	assert.Equal(t, user.RoleDealer, u.Role)
	assert.NotEqual(t, "secret123", u.PasswordHash)
	assert.NotEmpty(t, token)

	got, token2, err := svc.Login(ctx, "OWNER@shree.example", "secret123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	me, err := svc.Authenticate(ctx, token2)
	require.NoError(t, err)
	assert.Equal(t, u.ID, me.ID)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *RegisterRequest)
		field  string
	}{
		{"admin role", func(r *RegisterRequest) { r.Role = "admin" }, "role"},
		{"empty name", func(r *RegisterRequest) { r.Name = "  " }, "name"},
		{"bad email", func(r *RegisterRequest) { r.Email = "not-an-email" }, "email"},
		{"missing phone", func(r *RegisterRequest) { r.Phone = "" }, "phone"},
		{"short password", func(r *RegisterRequest) { r.Password = "abc" }, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			req := validRequest()
			tt.modify(&req)

			_, _, err := svc.Register(context.Background(), req)
			var fe *InvalidFieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}

	t.Run("unknown role", func(t *testing.T) {
		svc, _ := newTestService(t)
		req := validRequest()
		req.Role = "wholesaler"
		_, _, err := svc.Register(context.Background(), req)
		var re *user.InvalidRoleError
		require.ErrorAs(t, err, &re)
	})
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, validRequest())
	require.NoError(t, err)
	_, _, err = svc.Register(ctx, validRequest())
	require.ErrorIs(t, err, user.ErrEmailTaken)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, _, err := svc.Register(ctx, validRequest())
	require.NoError(t, err)

	for _, tc := range []struct{ email, password string }{
		{"owner@shree.example", "wrong-password"},
		{"nobody@shree.example", "secret123"},
		{"garbage", "secret123"},
	} {
		_, _, err := svc.Login(ctx, tc.email, tc.password)
		require.ErrorIs(t, err, ErrInvalidCredentials, tc.email)
	}
}

func TestAuthenticate_ReadsCurrentRole(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()

	u, token, err := svc.Register(ctx, validRequest())
	require.NoError(t, err)
	require.NoError(t, users.UpdateRole(ctx, u.ID, user.RoleAdmin))

	me, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, me.Role)
}

func TestAuthenticate_DeletedUser(t *testing.T) {
	svc, _ := newTestService(t)
	token, err := svc.tokens.Issue(&user.User{ID: "ghost", Role: user.RoleCustomer})
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_Parse(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Minute)
	require.NoError(t, err)
	u := &user.User{ID: "u1", Role: user.RoleRetailer}

	token, err := tokens.Issue(u)
	require.NoError(t, err)

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, user.RoleRetailer, claims.Role)

	t.Run("expired", func(t *testing.T) {
		tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		defer func() { tokens.now = time.Now }()
		_, err := tokens.Parse(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewTokens("another-secret", time.Minute)
		require.NoError(t, err)
		_, err = other.Parse(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("tampered payload", func(t *testing.T) {
		forged, err := tokens.Issue(&user.User{ID: "u1", Role: user.RoleAdmin})
		require.NoError(t, err)
		parts := strings.Split(token, ".")
		forgedParts := strings.Split(forged, ".")
		_, err = tokens.Parse(parts[0] + "." + forgedParts[1] + "." + parts[2])
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Parse("not.a.token")
		require.True(t, errors.Is(err, ErrInvalidToken))
	})
}

func TestNewTokens_Invalid(t *testing.T) {
	_, err := NewTokens("", time.Hour)
	require.Error(t, err)
	_, err = NewTokens("s", 0)
	require.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret123", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, CheckPassword(hash, "secret123"))
	require.ErrorIs(t, CheckPassword(hash, "secret124"), ErrInvalidCredentials)
}
