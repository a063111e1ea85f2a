// Package notify sends the two emails that follow a lead submission: a
// confirmation to the prospect and an alert to the attorney.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	almalead "github.com/phbpx/almalead"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Message is one plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer hands a message to a transport. A nil error means the transport
// accepted it, nothing more.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Result reports which of the two messages were accepted.
type Result struct {
	ProspectSent bool
	AttorneySent bool
	Errors       []error
}

func (r Result) OK() bool {
	return r.ProspectSent && r.AttorneySent
}

// Config holds the rendering inputs that do not come from the lead.
type Config struct {
	AttorneyEmail string
	AppName       string
}

type Dispatcher struct {
	mailer Mailer
	cfg    Config
	log    *zap.SugaredLogger
}

func NewDispatcher(mailer Mailer, cfg Config, log *zap.SugaredLogger) *Dispatcher {
	if cfg.AppName == "" {
		cfg.AppName = "AlmaLead"
	}
	return &Dispatcher{
		mailer: mailer,
		cfg:    cfg,
		log:    log,
	}
}

// Dispatch attempts both messages once each. A failure on one does not stop
// the other and nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, lead almalead.Lead) Result {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "notify.dispatch")
	span.SetAttributes(attribute.String("lead.id", lead.ID))
	defer span.End()

	data := templateData{Lead: lead, AppName: d.cfg.AppName}
	var res Result

	if err := d.send(ctx, lead.Email, prospectSubject, prospectBody, data); err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("prospect confirmation: %w", err))
	} else {
		res.ProspectSent = true
	}

	if err := d.send(ctx, d.cfg.AttorneyEmail, attorneySubject, attorneyBody, data); err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("attorney alert: %w", err))
	} else {
		res.AttorneySent = true
	}

	if !res.OK() {
		span.SetStatus(codes.Error, "notification delivery failed")
	}
	span.SetAttributes(
		attribute.Bool("notify.prospect_sent", res.ProspectSent),
		attribute.Bool("notify.attorney_sent", res.AttorneySent),
	)
	return res
}

func (d *Dispatcher) send(ctx context.Context, to string, subject, body *template.Template, data templateData) error {
	if to == "" {
		return fmt.Errorf("%w: no recipient", almalead.ErrNotification)
	}

	msg, err := render(to, subject, body, data)
	if err != nil {
		return fmt.Errorf("%w: render: %v", almalead.ErrNotification, err)
	}

	if err := d.mailer.Send(ctx, msg); err != nil {
		d.log.Warnw("notify", "status", "send failed", "to", to, "subject", msg.Subject, "error", err)
		return fmt.Errorf("%w: %v", almalead.ErrNotification, err)
	}

	d.log.Infow("notify", "status", "sent", "to", to, "subject", msg.Subject)
	return nil
}

func render(to string, subject, body *template.Template, data templateData) (Message, error) {
	var s, b bytes.Buffer
	if err := subject.Execute(&s, data); err != nil {
		return Message{}, err
	}
	if err := body.Execute(&b, data); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: s.String(), Body: b.String()}, nil
}
