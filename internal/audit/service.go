package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only; records are for operators, not API consumers.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogCampaignRun records who launched a campaign run.
func (s *Service) LogCampaignRun(ctx context.Context, actorUserID, actorRole, ip, campaignID string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeCampaignRun,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		CampaignID:  campaignID,
		Message:     "campaign run requested",
	})
}

// LogTestCall records a test call placed against a campaign's agent setup.
func (s *Service) LogTestCall(ctx context.Context, actorUserID, actorRole, ip, campaignID, phoneNumber string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeTestCall,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		CampaignID:  campaignID,
		PhoneNumber: phoneNumber,
		Message:     "test call requested",
	})
}
