package identity

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-id/meridian/internal/shared"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	Create(ctx context.Context, user NewUser) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id int64, params UpdateUserParams) (*User, error)
	Delete(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, afterID int64, limit int) ([]User, error)
}

// Repository provides PostgreSQL backed persistence. Driver errors never
// cross this boundary unmapped.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, fullname, username, email, phone_number, password_hash, role_type, status, created_at, updated_at`

// Create inserts a new account. A duplicate email or username surfaces as
// a mapped unique-violation error.
func (r *Repository) Create(ctx context.Context, user NewUser) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (fullname, username, email, phone_number, password_hash, role_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		user.Fullname, user.Username, user.Email, user.PhoneNumber, user.PasswordHash, user.Role, user.Status)
	return scanUser(row)
}

// GetByID fetches an account by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail fetches an account by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Update applies the non-nil fields and returns the updated account.
func (r *Repository) Update(ctx context.Context, id int64, params UpdateUserParams) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET
			fullname = COALESCE($2, fullname),
			username = COALESCE($3, username),
			phone_number = COALESCE($4, phone_number),
			status = COALESCE($5, status),
			updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, params.Fullname, params.Username, params.PhoneNumber, params.Status)
	return scanUser(row)
}

// Delete removes an account and returns the deleted row.
func (r *Repository) Delete(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING `+userColumns, id)
	return scanUser(row)
}

// List returns accounts after the cursor, ordered by id. Callers pass
// limit+1 semantics through shared.NewCursorPage.
func (r *Repository) List(ctx context.Context, afterID int64, limit int) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE id > $1
		ORDER BY id
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, shared.MapDBError(err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Fullname, &u.Username, &u.Email, &u.PhoneNumber, &u.PasswordHash, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, shared.MapDBError(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.MapDBError(err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Fullname, &u.Username, &u.Email, &u.PhoneNumber, &u.PasswordHash, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, shared.MapDBError(err)
	}
	return &u, nil
}

var _ RepositoryPort = (*Repository)(nil)
