package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory Store for tests and early development.
// Fields are exported so tests can seed state directly.
type Memory struct {
	mu sync.Mutex

	Campaigns map[string]Campaign
	Leads     map[string]Lead
	CallLogs  map[string]CallLog
	KBDocs    map[string][]KnowledgeBaseDoc // keyed by campaign id

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		Campaigns: map[string]Campaign{},
		Leads:     map[string]Lead{},
		CallLogs:  map[string]CallLog{},
		KBDocs:    map[string][]KnowledgeBaseDoc{},
		clock:     time.Now,
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	if id == "" {
		return Campaign{}, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Campaigns[id]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) UpdateCampaign(ctx context.Context, id string, upd CampaignUpdate) error {
	if id == "" {
		return ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Campaigns[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Status != nil {
		c.Status = *upd.Status
	}
	if upd.TotalLeads != nil {
		c.TotalLeads = *upd.TotalLeads
	}
	c.UpdatedAt = m.clock().UTC()
	m.Campaigns[id] = c
	return nil
}

func (m *Memory) IncrementCampaignCounters(ctx context.Context, id string, delta CounterDelta) error {
	if id == "" {
		return ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Campaigns[id]
	if !ok {
		return ErrNotFound
	}
	c.CompletedCalls += delta.Completed
	c.SuccessfulCalls += delta.Successful
	c.FailedCalls += delta.Failed
	c.UpdatedAt = m.clock().UTC()
	m.Campaigns[id] = c
	return nil
}

func (m *Memory) GetLeadsByCampaign(ctx context.Context, campaignID string) ([]Lead, error) {
	if campaignID == "" {
		return nil, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Lead, 0)
	for _, l := range m.Leads {
		if l.CampaignID == campaignID {
			out = append(out, l)
		}
	}
	sortByCreatedAtLeads(out)
	return out, nil
}

func (m *Memory) UpdateLead(ctx context.Context, id string, upd LeadUpdate) error {
	if id == "" {
		return ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.Leads[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Status != nil {
		l.Status = *upd.Status
	}
	l.UpdatedAt = m.clock().UTC()
	m.Leads[id] = l
	return nil
}

func (m *Memory) CreateCallLog(ctx context.Context, cl CallLog) error {
	if cl.ID == "" || cl.CampaignID == "" {
		return ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock().UTC()
	if cl.CreatedAt.IsZero() {
		cl.CreatedAt = now
	}
	cl.UpdatedAt = now
	m.CallLogs[cl.ID] = cl
	return nil
}

func (m *Memory) UpdateCallLog(ctx context.Context, id string, upd CallLogUpdate) error {
	if id == "" {
		return ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cl, ok := m.CallLogs[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Status != nil {
		cl.Status = *upd.Status
	}
	if upd.DurationSeconds != nil {
		cl.DurationSeconds = upd.DurationSeconds
	}
	if upd.ProviderCallID != nil {
		cl.ProviderCallID = *upd.ProviderCallID
	}
	cl.UpdatedAt = m.clock().UTC()
	m.CallLogs[id] = cl
	return nil
}

func (m *Memory) GetCallLogByProviderCallID(ctx context.Context, providerCallID string) (CallLog, error) {
	if providerCallID == "" {
		return CallLog{}, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cl := range m.CallLogs {
		if cl.ProviderCallID == providerCallID {
			return cl, nil
		}
	}
	return CallLog{}, ErrNotFound
}

func (m *Memory) FindCallLog(ctx context.Context, campaignID, providerCallID string) (CallLog, error) {
	if campaignID == "" || providerCallID == "" {
		return CallLog{}, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cl := range m.CallLogs {
		if cl.CampaignID == campaignID && cl.ProviderCallID == providerCallID {
			return cl, nil
		}
	}
	return CallLog{}, ErrNotFound
}

func (m *Memory) GetCallLogsByCampaign(ctx context.Context, campaignID string) ([]CallLog, error) {
	if campaignID == "" {
		return nil, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallLog, 0)
	for _, cl := range m.CallLogs {
		if cl.CampaignID == campaignID {
			out = append(out, cl)
		}
	}
	sortByCreatedAtCallLogs(out)
	return out, nil
}

func (m *Memory) GetActiveCallLogForLead(ctx context.Context, leadID string) (CallLog, error) {
	if leadID == "" {
		return CallLog{}, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cl := range m.CallLogs {
		if cl.LeadID != nil && *cl.LeadID == leadID && cl.Status != CallStatusFailed {
			return cl, nil
		}
	}
	return CallLog{}, ErrNotFound
}

func (m *Memory) GetAllCallLogs(ctx context.Context) ([]CallLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallLog, 0, len(m.CallLogs))
	for _, cl := range m.CallLogs {
		out = append(out, cl)
	}
	sortByCreatedAtCallLogs(out)
	return out, nil
}

func (m *Memory) SetCallLogConversationID(ctx context.Context, id, conversationID string) error {
	if id == "" || conversationID == "" {
		return ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cl, ok := m.CallLogs[id]
	if !ok {
		return ErrNotFound
	}
	if cl.AgentConversationID != "" {
		// write-once
		return nil
	}
	cl.AgentConversationID = conversationID
	cl.UpdatedAt = m.clock().UTC()
	m.CallLogs[id] = cl
	return nil
}

func (m *Memory) GetKnowledgeBaseByCampaign(ctx context.Context, campaignID string) ([]KnowledgeBaseDoc, error) {
	if campaignID == "" {
		return nil, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]KnowledgeBaseDoc(nil), m.KBDocs[campaignID]...), nil
}

// Map iteration order is random; callers expect list order, so sort by
// insertion time with id as tiebreaker.

func sortByCreatedAtLeads(xs []Lead) {
	sort.Slice(xs, func(i, j int) bool {
		if xs[i].CreatedAt.Equal(xs[j].CreatedAt) {
			return xs[i].ID < xs[j].ID
		}
		return xs[i].CreatedAt.Before(xs[j].CreatedAt)
	})
}

func sortByCreatedAtCallLogs(xs []CallLog) {
	sort.Slice(xs, func(i, j int) bool {
		if xs[i].CreatedAt.Equal(xs[j].CreatedAt) {
			return xs[i].ID < xs[j].ID
		}
		return xs[i].CreatedAt.Before(xs[j].CreatedAt)
	})
}
