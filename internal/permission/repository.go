package permission

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-id/meridian/internal/shared"
)

// TxRepository exposes the writes that must share a transaction: catalog
// creation happens-before grant insertion, and both commit or roll back
// together.
type TxRepository interface {
	CreateMany(ctx context.Context, perms []NewPermission) ([]Permission, error)
	CreateUserPermissions(ctx context.Context, grants []NewUserPermission) ([]UserPermission, error)
}

// RepositoryPort defines data access used by the service.
type RepositoryPort interface {
	GetByIDs(ctx context.Context, ids []string) ([]Permission, error)
	GetUserPermissions(ctx context.Context, userID int64) ([]UserPermission, error)
	DeleteUserPermissions(ctx context.Context, userID int64, ids []string) ([]UserPermission, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Repository provides PostgreSQL backed persistence. All errors returned
// here have already been mapped into application errors.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByIDs returns the catalog entries matching ids. Missing ids are not
// an error; the result simply omits them. No ordering is guaranteed.
func (r *Repository) GetByIDs(ctx context.Context, ids []string) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, action, resource_name, description, created_at, updated_at
		FROM permissions
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, shared.MapDBError(err)
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// GetUserPermissions returns every grant held by the user.
func (r *Repository) GetUserPermissions(ctx context.Context, userID int64) ([]UserPermission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, permission_id, created_by, created_at, updated_at
		FROM user_permissions
		WHERE user_id = $1`, userID)
	if err != nil {
		return nil, shared.MapDBError(err)
	}
	defer rows.Close()
	return scanUserPermissions(rows)
}

// DeleteUserPermissions revokes the named grants and returns the deleted
// rows. Deleting nothing is reported as a no-data error.
func (r *Repository) DeleteUserPermissions(ctx context.Context, userID int64, ids []string) ([]UserPermission, error) {
	rows, err := r.pool.Query(ctx, `
		DELETE FROM user_permissions
		WHERE user_id = $1 AND permission_id = ANY($2)
		RETURNING id, user_id, permission_id, created_by, created_at, updated_at`, userID, ids)
	if err != nil {
		return nil, shared.MapDBError(err)
	}
	defer rows.Close()
	deleted, err := scanUserPermissions(rows)
	if err != nil {
		return nil, err
	}
	if len(deleted) == 0 {
		return nil, shared.NewError(shared.CodeNoData, "no data deleted")
	}
	return deleted, nil
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a transaction; any error rolls everything
// back.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return shared.MapDBError(err)
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return shared.MapDBError(err)
	}
	return nil
}

// CreateMany batch-inserts catalog entries. A concurrent creation of the
// same id surfaces as a mapped unique-violation error.
func (t *txRepo) CreateMany(ctx context.Context, perms []NewPermission) ([]Permission, error) {
	ids := make([]string, len(perms))
	actions := make([]string, len(perms))
	resources := make([]string, len(perms))
	descriptions := make([]string, len(perms))
	for i, p := range perms {
		ids[i] = p.ID
		actions[i] = p.Action
		resources[i] = p.ResourceName
		descriptions[i] = p.Description
	}

	rows, err := t.tx.Query(ctx, `
		INSERT INTO permissions (id, action, resource_name, description)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::text[])
		RETURNING id, action, resource_name, description, created_at, updated_at`,
		ids, actions, resources, descriptions)
	if err != nil {
		return nil, shared.MapDBError(err)
	}
	defer rows.Close()
	created, err := scanPermissions(rows)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, shared.NewError(shared.CodeNoData, "no data returned")
	}
	return created, nil
}

// CreateUserPermissions batch-inserts grants.
func (t *txRepo) CreateUserPermissions(ctx context.Context, grants []NewUserPermission) ([]UserPermission, error) {
	userIDs := make([]int64, len(grants))
	permissionIDs := make([]string, len(grants))
	createdBys := make([]string, len(grants))
	for i, g := range grants {
		userIDs[i] = g.UserID
		permissionIDs[i] = g.PermissionID
		createdBys[i] = g.CreatedBy
	}

	rows, err := t.tx.Query(ctx, `
		INSERT INTO user_permissions (user_id, permission_id, created_by)
		SELECT * FROM unnest($1::bigint[], $2::text[], $3::text[])
		RETURNING id, user_id, permission_id, created_by, created_at, updated_at`,
		userIDs, permissionIDs, createdBys)
	if err != nil {
		return nil, shared.MapDBError(err)
	}
	defer rows.Close()
	created, err := scanUserPermissions(rows)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, shared.NewError(shared.CodeNoData, "no data returned")
	}
	return created, nil
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Action, &p.ResourceName, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, shared.MapDBError(err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.MapDBError(err)
	}
	return perms, nil
}

func scanUserPermissions(rows pgx.Rows) ([]UserPermission, error) {
	var grants []UserPermission
	for rows.Next() {
		var g UserPermission
		if err := rows.Scan(&g.ID, &g.UserID, &g.PermissionID, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, shared.MapDBError(err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.MapDBError(err)
	}
	return grants, nil
}

var _ RepositoryPort = (*Repository)(nil)
