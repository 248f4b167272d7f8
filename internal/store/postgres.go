package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Postgres implements Store over database/sql (pgx stdlib driver).
//
// Counter increments are single UPDATE statements (read-modify-write stays in
// the database), so concurrent completions for one campaign cannot lose
// updates.
type Postgres struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, clock: time.Now}
}

var _ Store = (*Postgres)(nil)

const campaignColumns = `id, name, agent_id, voice_id, system_prompt, first_message, status,
	total_leads, completed_calls, successful_calls, failed_calls, created_at, updated_at`

func (p *Postgres) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	if id == "" {
		return Campaign{}, ErrInvalidArgument
	}
	row := p.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	return scanCampaign(row)
}

func (p *Postgres) UpdateCampaign(ctx context.Context, id string, upd CampaignUpdate) error {
	if id == "" {
		return ErrInvalidArgument
	}
	sets := []string{"updated_at = $1"}
	args := []any{p.clock().UTC()}
	if upd.Status != nil {
		args = append(args, *upd.Status)
		sets = append(sets, "status = $"+strconv.Itoa(len(args)))
	}
	if upd.TotalLeads != nil {
		args = append(args, *upd.TotalLeads)
		sets = append(sets, "total_leads = $"+strconv.Itoa(len(args)))
	}
	args = append(args, id)
	res, err := p.db.ExecContext(ctx,
		`UPDATE campaigns SET `+strings.Join(sets, ", ")+` WHERE id = $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) IncrementCampaignCounters(ctx context.Context, id string, delta CounterDelta) error {
	if id == "" {
		return ErrInvalidArgument
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE campaigns SET
			completed_calls = completed_calls + $1,
			successful_calls = successful_calls + $2,
			failed_calls = failed_calls + $3,
			updated_at = $4
		WHERE id = $5`,
		delta.Completed, delta.Successful, delta.Failed, p.clock().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) GetLeadsByCampaign(ctx context.Context, campaignID string) ([]Lead, error) {
	if campaignID == "" {
		return nil, ErrInvalidArgument
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, campaign_id, first_name, last_name, contact_no, status, created_at, updated_at
		FROM leads WHERE campaign_id = $1 ORDER BY created_at, id`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Lead, 0)
	for rows.Next() {
		var l Lead
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.FirstName, &l.LastName, &l.ContactNo, &l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateLead(ctx context.Context, id string, upd LeadUpdate) error {
	if id == "" {
		return ErrInvalidArgument
	}
	if upd.Status == nil {
		return nil
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3`,
		*upd.Status, p.clock().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

const callLogColumns = `id, campaign_id, lead_id, phone_number, status, duration_seconds,
	provider_call_id, agent_conversation_id, created_at, updated_at`

func (p *Postgres) CreateCallLog(ctx context.Context, cl CallLog) error {
	if cl.ID == "" || cl.CampaignID == "" {
		return ErrInvalidArgument
	}
	now := p.clock().UTC()
	if cl.CreatedAt.IsZero() {
		cl.CreatedAt = now
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO call_logs (`+callLogColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		cl.ID, cl.CampaignID, cl.LeadID, cl.PhoneNumber, cl.Status, cl.DurationSeconds,
		nullIfEmpty(cl.ProviderCallID), nullIfEmpty(cl.AgentConversationID), cl.CreatedAt, now)
	return err
}

func (p *Postgres) UpdateCallLog(ctx context.Context, id string, upd CallLogUpdate) error {
	if id == "" {
		return ErrInvalidArgument
	}
	sets := []string{"updated_at = $1"}
	args := []any{p.clock().UTC()}
	if upd.Status != nil {
		args = append(args, *upd.Status)
		sets = append(sets, "status = $"+strconv.Itoa(len(args)))
	}
	if upd.DurationSeconds != nil {
		args = append(args, *upd.DurationSeconds)
		sets = append(sets, "duration_seconds = $"+strconv.Itoa(len(args)))
	}
	if upd.ProviderCallID != nil {
		args = append(args, *upd.ProviderCallID)
		sets = append(sets, "provider_call_id = $"+strconv.Itoa(len(args)))
	}
	args = append(args, id)
	res, err := p.db.ExecContext(ctx,
		`UPDATE call_logs SET `+strings.Join(sets, ", ")+` WHERE id = $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) GetCallLogByProviderCallID(ctx context.Context, providerCallID string) (CallLog, error) {
	if providerCallID == "" {
		return CallLog{}, ErrInvalidArgument
	}
	row := p.db.QueryRowContext(ctx,
		`SELECT `+callLogColumns+` FROM call_logs WHERE provider_call_id = $1`, providerCallID)
	return scanCallLog(row)
}

func (p *Postgres) FindCallLog(ctx context.Context, campaignID, providerCallID string) (CallLog, error) {
	if campaignID == "" || providerCallID == "" {
		return CallLog{}, ErrInvalidArgument
	}
	row := p.db.QueryRowContext(ctx,
		`SELECT `+callLogColumns+` FROM call_logs WHERE campaign_id = $1 AND provider_call_id = $2`,
		campaignID, providerCallID)
	return scanCallLog(row)
}

func (p *Postgres) GetCallLogsByCampaign(ctx context.Context, campaignID string) ([]CallLog, error) {
	if campaignID == "" {
		return nil, ErrInvalidArgument
	}
	return p.queryCallLogs(ctx,
		`SELECT `+callLogColumns+` FROM call_logs WHERE campaign_id = $1 ORDER BY created_at, id`, campaignID)
}

func (p *Postgres) GetActiveCallLogForLead(ctx context.Context, leadID string) (CallLog, error) {
	if leadID == "" {
		return CallLog{}, ErrInvalidArgument
	}
	row := p.db.QueryRowContext(ctx, `
		SELECT `+callLogColumns+` FROM call_logs
		WHERE lead_id = $1 AND status <> $2
		ORDER BY created_at DESC LIMIT 1`, leadID, CallStatusFailed)
	return scanCallLog(row)
}

func (p *Postgres) GetAllCallLogs(ctx context.Context) ([]CallLog, error) {
	return p.queryCallLogs(ctx,
		`SELECT `+callLogColumns+` FROM call_logs ORDER BY created_at, id`)
}

func (p *Postgres) SetCallLogConversationID(ctx context.Context, id, conversationID string) error {
	if id == "" || conversationID == "" {
		return ErrInvalidArgument
	}
	// COALESCE keeps an already-set identifier (write-once).
	res, err := p.db.ExecContext(ctx, `
		UPDATE call_logs SET
			agent_conversation_id = COALESCE(agent_conversation_id, $1),
			updated_at = $2
		WHERE id = $3`,
		conversationID, p.clock().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) GetKnowledgeBaseByCampaign(ctx context.Context, campaignID string) ([]KnowledgeBaseDoc, error) {
	if campaignID == "" {
		return nil, ErrInvalidArgument
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, campaign_id, name, document_id, created_at
		FROM knowledge_base_docs WHERE campaign_id = $1 ORDER BY created_at, id`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]KnowledgeBaseDoc, 0)
	for rows.Next() {
		var d KnowledgeBaseDoc
		if err := rows.Scan(&d.ID, &d.CampaignID, &d.Name, &d.DocumentID, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) queryCallLogs(ctx context.Context, query string, args ...any) ([]CallLog, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallLog, 0)
	for rows.Next() {
		cl, err := scanCallLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cl)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (Campaign, error) {
	var c Campaign
	var voiceID sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.AgentID, &voiceID, &c.SystemPrompt, &c.FirstMessage, &c.Status,
		&c.TotalLeads, &c.CompletedCalls, &c.SuccessfulCalls, &c.FailedCalls, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	if err != nil {
		return Campaign{}, err
	}
	c.VoiceID = voiceID.String
	return c, nil
}

func scanCallLog(row rowScanner) (CallLog, error) {
	var cl CallLog
	var providerCallID, conversationID sql.NullString
	var duration sql.NullInt64
	err := row.Scan(&cl.ID, &cl.CampaignID, &cl.LeadID, &cl.PhoneNumber, &cl.Status, &duration,
		&providerCallID, &conversationID, &cl.CreatedAt, &cl.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CallLog{}, ErrNotFound
	}
	if err != nil {
		return CallLog{}, err
	}
	cl.ProviderCallID = providerCallID.String
	cl.AgentConversationID = conversationID.String
	if duration.Valid {
		d := int(duration.Int64)
		cl.DurationSeconds = &d
	}
	return cl, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
