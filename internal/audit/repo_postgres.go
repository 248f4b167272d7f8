package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo appends audit events to the audit_events table. There are no
// read paths here on purpose; ops query the table directly.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

var _ Repository = (*PostgresRepo)(nil)

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
		INSERT INTO audit_events
			(id, type, actor_user_id, actor_role, ip_address, campaign_id, phone_number, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, string(e.Type), e.ActorUserID, e.ActorRole, e.IPAddress,
		e.CampaignID, e.PhoneNumber, e.Message, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: appending event: %w", err)
	}
	return nil
}
