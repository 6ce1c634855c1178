package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cemention/internal/domain/user"
)

const (
	userColumns = `id, name, email, phone, business_name, role, tax_registered, tax_id,
		password_hash, addresses, created_at`

	createUserSQL = `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	getUserByIDSQL    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	listUsersSQL      = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	updateUserSQL = `UPDATE users SET name = $2, phone = $3, business_name = $4,
		tax_registered = $5, tax_id = $6, addresses = $7 WHERE id = $1`

	updateUserRoleSQL = `UPDATE users SET role = $2 WHERE id = $1`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts u. A taken email yields user.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	addresses, err := marshalAddresses(u.Addresses)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, createUserSQL,
		u.ID, u.Name, u.Email, u.Phone, u.BusinessName, string(u.Role),
		u.TaxRegistered, u.TaxID, u.PasswordHash, addresses, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("creating user %q: %w", u.ID, err)
	}
	return nil
}

// GetByID returns the user with id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

// GetByEmail returns the user registered with email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

func (r *UserRepository) getOne(ctx context.Context, query, arg string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", arg, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", arg, err)
	}
	return &u, nil
}

// List returns every user, newest first.
func (r *UserRepository) List(ctx context.Context) ([]user.User, error) {
	rows, err := r.pool.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return pgx.CollectRows(rows, scanUser)
}

// Update writes the profile fields of u. Email, role and password are not
// changed.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	addresses, err := marshalAddresses(u.Addresses)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, updateUserSQL,
		u.ID, u.Name, u.Phone, u.BusinessName, u.TaxRegistered, u.TaxID, addresses,
	)
	if err != nil {
		return fmt.Errorf("updating user %q: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// UpdateRole sets the role of user id.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role user.Role) error {
	tag, err := r.pool.Exec(ctx, updateUserRoleSQL, id, string(role))
	if err != nil {
		return fmt.Errorf("updating role of user %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u         user.User
		role      string
		addresses []byte
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.BusinessName, &role,
		&u.TaxRegistered, &u.TaxID, &u.PasswordHash, &addresses, &u.CreatedAt,
	)
	if err != nil {
		return u, err
	}
	u.Role = user.Role(role)
	if err := json.Unmarshal(addresses, &u.Addresses); err != nil {
		return u, fmt.Errorf("decoding addresses of user %q: %w", u.ID, err)
	}
	return u, nil
}

func marshalAddresses(addresses []user.Address) ([]byte, error) {
	if addresses == nil {
		addresses = []user.Address{}
	}
	b, err := json.Marshal(addresses)
	if err != nil {
		return nil, fmt.Errorf("marshaling addresses: %w", err)
	}
	return b, nil
}
