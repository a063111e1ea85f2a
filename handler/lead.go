package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	almalead "github.com/phbpx/almalead"
	"github.com/phbpx/almalead/intake"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temporary files.
const multipartMemory = 1 << 20

// notificationWarning is sent when the lead was created but an email was not
// accepted by the mail provider.
const notificationWarning = `199 - "lead created but notification delivery failed"`

type Intake interface {
	Submit(ctx context.Context, sub intake.Submission) (intake.Result, error)
}

type LeadService interface {
	Get(ctx context.Context, id string) (almalead.Lead, error)
	List(ctx context.Context, filter almalead.ListFilter) (almalead.LeadPage, error)
	Transition(ctx context.Context, id string, target almalead.State) (almalead.Lead, error)
}

type LeadHandler struct {
	intake   Intake
	service  LeadService
	maxBytes int64
	log      *Logger
}

// NewLeadHandler builds the lead endpoints. maxBytes is the resume size
// limit; request bodies are capped at maxBytes plus 1 MiB for form overhead.
func NewLeadHandler(in Intake, service LeadService, maxBytes int64, log *Logger) *LeadHandler {
	return &LeadHandler{
		intake:   in,
		service:  service,
		maxBytes: maxBytes,
		log:      log,
	}
}

func (lh LeadHandler) Create(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(rw, r.Body, lh.maxBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			lh.log.Ctx(ctx).Infow("Create", "status", http.StatusRequestEntityTooLarge, "error", err.Error())
			respondErr(ctx, rw, http.StatusRequestEntityTooLarge, almalead.ErrPayloadTooLarge)
			return
		}
		lh.log.Ctx(ctx).Infow("Create", "status", http.StatusBadRequest, "error", err.Error())
		respondErr(ctx, rw, http.StatusBadRequest, errors.New("expected a multipart/form-data body"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	sub := intake.Submission{
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Email:     r.FormValue("email"),
	}

	file, header, err := r.FormFile("resume")
	switch {
	case err == nil:
		defer file.Close()
		sub.Resume = upload(file, header)
	case !errors.Is(err, http.ErrMissingFile):
		fail(ctx, rw, lh.log, "Create", &almalead.ValidationError{Field: "resume", Reason: "unreadable", Err: err})
		return
	}

	res, err := lh.intake.Submit(ctx, sub)
	if err != nil {
		fail(ctx, rw, lh.log, "Create", err)
		return
	}

	if res.NotificationsFailed() {
		rw.Header().Set("Warning", notificationWarning)
	}

	respond(ctx, rw, http.StatusCreated, res.Lead)
}

func (lh LeadHandler) List(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := listFilter(r)
	if err != nil {
		fail(ctx, rw, lh.log, "List", err)
		return
	}

	page, err := lh.service.List(ctx, filter)
	if err != nil {
		fail(ctx, rw, lh.log, "List", err)
		return
	}

	respond(ctx, rw, http.StatusOK, page)
}

func (lh LeadHandler) GetByID(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		lh.log.Ctx(ctx).Infow("GetByID", "error", err.Error())
		respondErr(ctx, rw, http.StatusBadRequest, errors.New("ID is not in its proper form"))
		return
	}

	lead, err := lh.service.Get(ctx, id.String())
	if err != nil {
		fail(ctx, rw, lh.log, "GetByID", err)
		return
	}

	respond(ctx, rw, http.StatusOK, lead)
}

func (lh LeadHandler) Transition(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		lh.log.Ctx(ctx).Infow("Transition", "error", err.Error())
		respondErr(ctx, rw, http.StatusBadRequest, errors.New("ID is not in its proper form"))
		return
	}

	var body struct {
		State string `json:"state"`
	}
	if err := decode(r, &body); err != nil {
		fail(ctx, rw, lh.log, "Transition", err)
		return
	}

	target, err := almalead.ParseState(body.State)
	if err != nil {
		fail(ctx, rw, lh.log, "Transition", err)
		return
	}

	lead, err := lh.service.Transition(ctx, id.String(), target)
	if err != nil {
		fail(ctx, rw, lh.log, "Transition", err)
		return
	}

	if identity, ok := IdentityFrom(ctx); ok {
		lh.log.Ctx(ctx).Infow("Transition", "lead_id", lead.ID, "state", lead.State, "by", identity.UserID)
	}

	respond(ctx, rw, http.StatusOK, lead)
}

func upload(file multipart.File, header *multipart.FileHeader) almalead.Upload {
	return almalead.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
}

func listFilter(r *http.Request) (almalead.ListFilter, error) {
	var filter almalead.ListFilter
	q := r.URL.Query()

	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, &almalead.ValidationError{Field: "skip", Reason: fmt.Sprintf("%q is not a number", v)}
		}
		filter.Skip = n
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, &almalead.ValidationError{Field: "limit", Reason: fmt.Sprintf("%q is not a number", v)}
		}
		if n == 0 {
			return filter, &almalead.ValidationError{Field: "limit", Reason: "must be at least 1"}
		}
		filter.Limit = n
	}

	if v := q.Get("state"); v != "" {
		state, err := almalead.ParseState(v)
		if err != nil {
			return filter, err
		}
		filter.State = &state
	}

	return filter, nil
}
