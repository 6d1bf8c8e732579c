package pgStore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

func (s *Store) GetUser(ctx context.Context, tenantId string, userId string) (commonModels.User, bool, error) {
	var user commonModels.User
	err := s.db.GetContext(ctx, &user,
		`SELECT * FROM users WHERE id = $1 AND tenant_id = $2 AND is_active`, userId, tenantId)
	if errors.Is(err, sql.ErrNoRows) {
		return commonModels.User{}, false, nil
	}
	return user, err == nil, err
}

func (s *Store) GroupIdsForUser(ctx context.Context, userId string) ([]string, error) {
	var groupIds []string
	err := s.db.SelectContext(ctx, &groupIds,
		`SELECT group_id FROM group_memberships WHERE user_id = $1`, userId)
	return groupIds, err
}

func (s *Store) Append(ctx context.Context, entry commonModels.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, tenant_id, actor_user_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Id, entry.TenantId, entry.ActorUserId, entry.Action, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) Save(ctx context.Context, fb commonModels.Feedback) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		fb.Id, fb.UserId, fb.Rating, fb.Comment, fb.CreatedAt)
	return err
}
