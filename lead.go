package almalead

import (
	"context"
	"fmt"
	"time"
)

// State is the lifecycle stage of a lead.
type State string

const (
	StatePending    State = "PENDING"
	StateReachedOut State = "REACHED_OUT"
)

// ParseState converts raw input into a known State.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", &ValidationError{Field: "state", Reason: fmt.Sprintf("unknown state %q", s)}
	}
	return st, nil
}

func (s State) Valid() bool {
	return s == StatePending || s == StateReachedOut
}

// CanTransitionTo reports whether moving from s to target is allowed.
// PENDING -> REACHED_OUT is the only edge; REACHED_OUT is terminal.
func (s State) CanTransitionTo(target State) bool {
	return s == StatePending && target == StateReachedOut
}

type Lead struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	ResumeKey string    `json:"-"`
	ResumeURL string    `json:"resume_url"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilter narrows a lead listing. A nil State lists every lead.
type ListFilter struct {
	Skip  int
	Limit int
	State *State
}

type LeadPage struct {
	Total int    `json:"total"`
	Leads []Lead `json:"leads"`
}

// LeadRepository persists lead records. Create is the only write of ID and
// ResumeKey; UpdateState touches state and updated_at only.
type LeadRepository interface {
	Create(ctx context.Context, lead Lead) error
	GetByID(ctx context.Context, id string) (Lead, error)
	List(ctx context.Context, filter ListFilter) ([]Lead, int, error)
	UpdateState(ctx context.Context, id string, state State, updatedAt time.Time) (Lead, error)
}
