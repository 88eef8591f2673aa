package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/skillstake/internal/models"
)

// LogAdminAction writes one audit row directly.
func (s *Store) LogAdminAction(ctx context.Context, action models.AdminAction) error {
	return s.InsertAdminActions(ctx, []models.AdminAction{action})
}

// InsertAdminActions writes a batch of audit rows in one transaction. Rows
// already present (a redelivered queue entry) are skipped.
func (s *Store) InsertAdminActions(ctx context.Context, actions []models.AdminAction) error {
	if len(actions) == 0 {
		return nil
	}
	q := `
		INSERT INTO admin_actions (id, admin_id, action_type, target_id, target_type, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, a := range actions {
			batch.Queue(q, a.ID, a.AdminID, a.ActionType, a.TargetID, a.TargetType, a.Reason, a.CreatedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("insert admin actions: %w", err)
	}
	return nil
}
