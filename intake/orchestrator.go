// Package intake turns a public lead submission into a stored resume, a
// persisted lead and two notification emails.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	almalead "github.com/phbpx/almalead"
	"github.com/phbpx/almalead/notify"
	"github.com/phbpx/almalead/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Step names one stage of the intake pipeline.
type Step string

const (
	StepValidate Step = "validate"
	StepStore    Step = "store"
	StepPersist  Step = "persist"
	StepNotify   Step = "notify"
)

// StepOutcome records how a single stage ended. Err is nil on success.
type StepOutcome struct {
	Step Step
	Err  error
}

// Submission is what a prospect sends.
type Submission struct {
	FirstName string
	LastName  string
	Email     string
	Resume    almalead.Upload
}

type Result struct {
	Lead          almalead.Lead
	Notifications notify.Result
	Steps         []StepOutcome
}

// NotificationsFailed reports whether any email was not accepted.
func (r Result) NotificationsFailed() bool {
	return len(r.Notifications.Errors) > 0
}

type Dispatcher interface {
	Dispatch(ctx context.Context, lead almalead.Lead) notify.Result
}

type Orchestrator struct {
	storage  almalead.Storage
	leads    almalead.LeadRepository
	notifier Dispatcher
	policy   storage.Policy
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewOrchestrator(store almalead.Storage, leads almalead.LeadRepository, notifier Dispatcher, policy storage.Policy, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		storage:  store,
		leads:    leads,
		notifier: notifier,
		policy:   policy,
		log:      log,
		now:      time.Now,
	}
}

// Submit runs validate, store, persist and notify in that order. The three
// effects are not atomic:
//   - a storage failure aborts before any lead exists;
//   - a persistence failure leaves the stored resume orphaned;
//   - notification failures are reported in the result and never fail the
//     call, because the lead is already durable.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (Result, error) {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "intake.submit")
	defer span.End()

	var res Result

	// =========================================================================
	// Validate

	err := validate(&sub, o.policy)
	res.Steps = append(res.Steps, StepOutcome{Step: StepValidate, Err: err})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	// =========================================================================
	// Store resume

	key, err := o.store(ctx, sub.Resume)
	res.Steps = append(res.Steps, StepOutcome{Step: StepStore, Err: err})
	if err != nil {
		o.log.Errorw("intake", "step", StepStore, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	// =========================================================================
	// Persist lead

	now := o.now().UTC()
	lead := almalead.Lead{
		ID:        uuid.NewString(),
		FirstName: sub.FirstName,
		LastName:  sub.LastName,
		Email:     sub.Email,
		ResumeKey: key,
		ResumeURL: o.storage.URL(key),
		State:     almalead.StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	span.SetAttributes(attribute.String("lead.id", lead.ID))

	err = o.persist(ctx, lead)
	res.Steps = append(res.Steps, StepOutcome{Step: StepPersist, Err: err})
	if err != nil {
		o.log.Errorw("intake", "step", StepPersist, "status", "resume orphaned", "resume_key", key, "error", err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	res.Lead = lead

	// =========================================================================
	// Notify

	res.Notifications = o.notifier.Dispatch(ctx, lead)
	res.Steps = append(res.Steps, StepOutcome{Step: StepNotify, Err: errors.Join(res.Notifications.Errors...)})
	if res.NotificationsFailed() {
		o.log.Warnw("intake", "step", StepNotify, "lead_id", lead.ID,
			"prospect_sent", res.Notifications.ProspectSent,
			"attorney_sent", res.Notifications.AttorneySent,
			"errors", errors.Join(res.Notifications.Errors...))
	}

	o.log.Infow("intake", "status", "lead created", "lead_id", lead.ID)
	return res, nil
}

func (o *Orchestrator) store(ctx context.Context, upload almalead.Upload) (string, error) {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "intake.store")
	defer span.End()

	key, err := o.storage.Store(ctx, upload)
	if err != nil {
		switch {
		case errors.Is(err, almalead.ErrUnsupportedMediaType),
			errors.Is(err, almalead.ErrPayloadTooLarge),
			errors.Is(err, almalead.ErrStorage),
			almalead.IsValidation(err):
			return "", err
		default:
			return "", fmt.Errorf("%w: %v", almalead.ErrStorage, err)
		}
	}
	return key, nil
}

func (o *Orchestrator) persist(ctx context.Context, lead almalead.Lead) error {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "intake.persist")
	defer span.End()

	if err := o.leads.Create(ctx, lead); err != nil {
		return fmt.Errorf("%w: %v", almalead.ErrPersistence, err)
	}
	return nil
}
