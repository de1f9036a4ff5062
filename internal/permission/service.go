package permission

import (
	"context"
	"log/slog"
	"strings"
)

// Enqueuer schedules background cache warmups after grants change.
type Enqueuer interface {
	EnqueueWarmPermissions(ctx context.Context, userID int64) error
}

// Service orchestrates catalog reconciliation and user grants. Cache and
// queue are optional; without them the service degrades to storage-only
// behavior.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	cache  *Cache
	queue  Enqueuer
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, repo RepositoryPort, cache *Cache, queue Enqueuer) *Service {
	return &Service{logger: logger, repo: repo, cache: cache, queue: queue}
}

// AssignPermissionsToUser reconciles the requested ids against the catalog
// and grants all of them to the user, stamped with the author. Catalog
// rows missing from the lookup are created and the grant rows inserted
// inside one transaction. The existence check runs before the transaction,
// so a concurrent assignment of the same id surfaces as a mapped
// unique-violation error rather than being silently ignored.
func (s *Service) AssignPermissionsToUser(ctx context.Context, userID int64, author string, permissionIDs []string) ([]UserPermission, error) {
	existing, err := s.repo.GetByIDs(ctx, permissionIDs)
	if err != nil {
		return nil, err
	}

	catalog := make(map[string]Permission, len(existing))
	for _, p := range existing {
		if _, ok := catalog[p.ID]; !ok {
			catalog[p.ID] = p
		}
	}

	missing := missingPermissions(permissionIDs, catalog)

	var granted []UserPermission
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if len(missing) > 0 {
			if _, err := tx.CreateMany(ctx, missing); err != nil {
				return err
			}
		}
		grants := make([]NewUserPermission, 0, len(permissionIDs))
		for _, id := range permissionIDs {
			grants = append(grants, NewUserPermission{
				UserID:       userID,
				PermissionID: id,
				CreatedBy:    author,
			})
		}
		created, err := tx.CreateUserPermissions(ctx, grants)
		if err != nil {
			return err
		}
		granted = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refreshCache(ctx, userID)
	return granted, nil
}

// GetUserPermissions returns every grant held by the user.
func (s *Service) GetUserPermissions(ctx context.Context, userID int64) ([]UserPermission, error) {
	return s.repo.GetUserPermissions(ctx, userID)
}

// DeleteUserPermissions revokes the named grants.
func (s *Service) DeleteUserPermissions(ctx context.Context, userID int64, permissionIDs []string) ([]UserPermission, error) {
	deleted, err := s.repo.DeleteUserPermissions(ctx, userID, permissionIDs)
	if err != nil {
		return nil, err
	}
	s.refreshCache(ctx, userID)
	return deleted, nil
}

// PermissionString returns the user's grants joined into the
// comma-delimited scope string embedded in access tokens, consulting the
// cache first.
func (s *Service) PermissionString(ctx context.Context, userID int64) (string, error) {
	if cached, hit, err := s.cache.Get(ctx, userID); err == nil && hit {
		return cached, nil
	} else if err != nil {
		s.logger.Warn("permission cache read", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	grants, err := s.repo.GetUserPermissions(ctx, userID)
	if err != nil {
		return "", err
	}
	ids := make([]string, len(grants))
	for i, g := range grants {
		ids[i] = g.PermissionID
	}
	joined := strings.Join(ids, ",")

	if err := s.cache.Set(ctx, userID, joined); err != nil {
		s.logger.Warn("permission cache write", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	return joined, nil
}

// WarmPermissionString recomputes and re-caches the permission string; the
// background worker calls this after grants change.
func (s *Service) WarmPermissionString(ctx context.Context, userID int64) (string, error) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("permission cache invalidate", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	return s.PermissionString(ctx, userID)
}

// missingPermissions derives catalog rows for ids the lookup did not
// return. The id is split on the first colon; an id without one yields an
// empty resource name, stored as-is.
func missingPermissions(ids []string, catalog map[string]Permission) []NewPermission {
	var missing []NewPermission
	for _, id := range ids {
		if _, ok := catalog[id]; ok {
			continue
		}
		action, resource, _ := strings.Cut(id, ":")
		missing = append(missing, NewPermission{
			ID:           id,
			Action:       action,
			ResourceName: resource,
		})
	}
	return missing
}

func (s *Service) refreshCache(ctx context.Context, userID int64) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("permission cache invalidate", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueWarmPermissions(ctx, userID); err != nil {
		s.logger.Warn("enqueue permission warmup", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
