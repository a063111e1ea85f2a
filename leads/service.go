// Package leads serves the attorney-facing operations on persisted leads:
// listing, reading and moving a lead through its lifecycle.
package leads

import (
	"context"
	"fmt"
	"time"

	almalead "github.com/phbpx/almalead"
	"go.uber.org/zap"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type Service struct {
	repo    almalead.LeadRepository
	storage almalead.Storage
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewService(repo almalead.LeadRepository, storage almalead.Storage, log *zap.SugaredLogger) *Service {
	return &Service{
		repo:    repo,
		storage: storage,
		log:     log,
		now:     time.Now,
	}
}

func (s *Service) Get(ctx context.Context, id string) (almalead.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return almalead.Lead{}, err
	}
	return s.withURL(lead), nil
}

// List applies defaults to a zero limit and rejects out of range paging.
func (s *Service) List(ctx context.Context, filter almalead.ListFilter) (almalead.LeadPage, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Skip < 0 {
		return almalead.LeadPage{}, &almalead.ValidationError{Field: "skip", Reason: "must not be negative"}
	}
	if filter.Limit < 1 || filter.Limit > MaxLimit {
		return almalead.LeadPage{}, &almalead.ValidationError{Field: "limit", Reason: fmt.Sprintf("must be between 1 and %d", MaxLimit)}
	}
	if filter.State != nil && !filter.State.Valid() {
		return almalead.LeadPage{}, &almalead.ValidationError{Field: "state", Reason: fmt.Sprintf("unknown state %q", *filter.State)}
	}

	leads, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return almalead.LeadPage{}, err
	}

	page := almalead.LeadPage{Total: total, Leads: make([]almalead.Lead, 0, len(leads))}
	for _, l := range leads {
		page.Leads = append(page.Leads, s.withURL(l))
	}
	return page, nil
}

// Transition moves a lead to target. PENDING -> REACHED_OUT is the only
// edge. Asking for the state a lead is already in is a no-op success only
// when that state is REACHED_OUT; any other target is rejected. There is no
// version check, so two concurrent transitions resolve as last writer wins.
func (s *Service) Transition(ctx context.Context, id string, target almalead.State) (almalead.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return almalead.Lead{}, err
	}

	if target != almalead.StateReachedOut {
		return almalead.Lead{}, fmt.Errorf("%w: %s to %s", almalead.ErrInvalidTransition, lead.State, target)
	}

	if lead.State == target {
		return s.withURL(lead), nil
	}

	if !lead.State.CanTransitionTo(target) {
		return almalead.Lead{}, fmt.Errorf("%w: %s to %s", almalead.ErrInvalidTransition, lead.State, target)
	}

	updatedAt := s.now().UTC()
	if !updatedAt.After(lead.CreatedAt) {
		updatedAt = lead.CreatedAt.Add(time.Microsecond)
	}

	updated, err := s.repo.UpdateState(ctx, id, target, updatedAt)
	if err != nil {
		return almalead.Lead{}, err
	}

	s.log.Infow("transition", "lead_id", id, "from", lead.State, "to", target)
	return s.withURL(updated), nil
}

func (s *Service) withURL(lead almalead.Lead) almalead.Lead {
	lead.ResumeURL = s.storage.URL(lead.ResumeKey)
	return lead
}
