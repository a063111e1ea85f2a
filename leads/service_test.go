package leads

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	almalead "github.com/phbpx/almalead"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memRepo struct {
	mu    sync.Mutex
	leads map[string]almalead.Lead
}

func (r *memRepo) Create(ctx context.Context, lead almalead.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads[lead.ID] = lead
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id string) (almalead.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.leads[id]
	if !ok {
		return almalead.Lead{}, almalead.ErrLeadNotFound
	}
	return lead, nil
}

func (r *memRepo) List(ctx context.Context, filter almalead.ListFilter) ([]almalead.Lead, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []almalead.Lead
	for _, l := range r.leads {
		if filter.State == nil || l.State == *filter.State {
			all = append(all, l)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if filter.Skip >= len(all) {
		return []almalead.Lead{}, total, nil
	}
	all = all[filter.Skip:]
	if len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, total, nil
}

func (r *memRepo) UpdateState(ctx context.Context, id string, state almalead.State, updatedAt time.Time) (almalead.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.leads[id]
	if !ok {
		return almalead.Lead{}, almalead.ErrLeadNotFound
	}
	lead.State = state
	lead.UpdatedAt = updatedAt
	r.leads[id] = lead
	return lead, nil
}

type urlStorage struct{}

func (urlStorage) Store(ctx context.Context, upload almalead.Upload) (string, error) {
	return "", nil
}

func (urlStorage) URL(key string) string { return "http://files.test/" + key }

func (urlStorage) Remove(ctx context.Context, key string) error { return nil }

var created = time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, n int) (*Service, *memRepo) {
	t.Helper()
	repo := &memRepo{leads: map[string]almalead.Lead{}}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("lead-%d", i)
		at := created.Add(time.Duration(i) * time.Minute)
		repo.leads[id] = almalead.Lead{
			ID:        id,
			FirstName: "John",
			LastName:  "Doe",
			Email:     "john@example.com",
			ResumeKey: "resumes/" + id + ".pdf",
			State:     almalead.StatePending,
			CreatedAt: at,
			UpdatedAt: at,
		}
	}
	s := NewService(repo, urlStorage{}, zaptest.NewLogger(t).Sugar())
	s.now = func() time.Time { return created.Add(24 * time.Hour) }
	return s, repo
}

func TestTransition_PendingToReachedOut(t *testing.T) {
	s, _ := newService(t, 1)

	lead, err := s.Transition(context.Background(), "lead-0", almalead.StateReachedOut)
	require.NoError(t, err)

	assert.Equal(t, almalead.StateReachedOut, lead.State)
	assert.True(t, lead.UpdatedAt.After(lead.CreatedAt))
	assert.Equal(t, "http://files.test/resumes/lead-0.pdf", lead.ResumeURL)
}

func TestTransition_IsIdempotent(t *testing.T) {
	s, _ := newService(t, 1)

	first, err := s.Transition(context.Background(), "lead-0", almalead.StateReachedOut)
	require.NoError(t, err)

	s.now = func() time.Time { return created.Add(48 * time.Hour) }
	second, err := s.Transition(context.Background(), "lead-0", almalead.StateReachedOut)
	require.NoError(t, err)

	assert.Equal(t, almalead.StateReachedOut, second.State)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt, "no-op does not touch updated_at")
}

func TestTransition_ToPendingAlwaysFails(t *testing.T) {
	s, _ := newService(t, 2)

	_, err := s.Transition(context.Background(), "lead-0", almalead.StatePending)
	assert.ErrorIs(t, err, almalead.ErrInvalidTransition)

	_, err = s.Transition(context.Background(), "lead-1", almalead.StateReachedOut)
	require.NoError(t, err)
	_, err = s.Transition(context.Background(), "lead-1", almalead.StatePending)
	assert.ErrorIs(t, err, almalead.ErrInvalidTransition)
}

func TestTransition_UnknownTarget(t *testing.T) {
	s, _ := newService(t, 1)

	_, err := s.Transition(context.Background(), "lead-0", almalead.State("QUALIFIED"))
	assert.ErrorIs(t, err, almalead.ErrInvalidTransition)
}

func TestTransition_UnknownLead(t *testing.T) {
	s, _ := newService(t, 1)

	_, err := s.Transition(context.Background(), "nope", almalead.StateReachedOut)
	assert.ErrorIs(t, err, almalead.ErrLeadNotFound)
}

func TestTransition_ClockSkewStillAdvancesUpdatedAt(t *testing.T) {
	s, _ := newService(t, 1)
	s.now = func() time.Time { return created.Add(-time.Hour) }

	lead, err := s.Transition(context.Background(), "lead-0", almalead.StateReachedOut)
	require.NoError(t, err)
	assert.True(t, lead.UpdatedAt.After(lead.CreatedAt))
}

func TestList_FilterByState(t *testing.T) {
	s, _ := newService(t, 3)

	_, err := s.Transition(context.Background(), "lead-1", almalead.StateReachedOut)
	require.NoError(t, err)

	pending := almalead.StatePending
	page, err := s.List(context.Background(), almalead.ListFilter{State: &pending})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Leads, 2)

	reached := almalead.StateReachedOut
	page, err = s.List(context.Background(), almalead.ListFilter{State: &reached})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "lead-1", page.Leads[0].ID)
}

func TestList_PagingNewestFirst(t *testing.T) {
	s, _ := newService(t, 5)

	page, err := s.List(context.Background(), almalead.ListFilter{Skip: 1, Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Leads, 2)
	assert.Equal(t, "lead-3", page.Leads[0].ID)
	assert.Equal(t, "lead-2", page.Leads[1].ID)
	assert.Equal(t, "http://files.test/resumes/lead-3.pdf", page.Leads[0].ResumeURL)
}

func TestList_InvalidFilter(t *testing.T) {
	s, _ := newService(t, 1)
	bogus := almalead.State("BOGUS")

	for _, f := range []almalead.ListFilter{
		{Skip: -1},
		{Limit: -5},
		{Limit: MaxLimit + 1},
		{State: &bogus},
	} {
		_, err := s.List(context.Background(), f)
		assert.True(t, almalead.IsValidation(err), "%+v", f)
	}
}

func TestGet(t *testing.T) {
	s, _ := newService(t, 1)

	lead, err := s.Get(context.Background(), "lead-0")
	require.NoError(t, err)
	assert.Equal(t, "http://files.test/resumes/lead-0.pdf", lead.ResumeURL)

	_, err = s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, almalead.ErrLeadNotFound)
}
