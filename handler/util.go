package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	almalead "github.com/phbpx/almalead"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// maxJSONBytes caps JSON request bodies.
const maxJSONBytes = 1 << 20

func decode(r *http.Request, into interface{}) error {
	rawJson, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBytes))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(rawJson, into); err != nil {
		return &almalead.ValidationError{Field: "body", Reason: "malformed JSON", Err: err}
	}
	return nil
}

func respond(ctx context.Context, rw http.ResponseWriter, status int, data interface{}) {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "handler.respond")
	span.SetAttributes(attribute.Int("http.status", status))
	defer span.End()

	if status == http.StatusNoContent || data == nil {
		rw.WriteHeader(status)
		return
	}

	rawJson, err := json.Marshal(data)
	if err != nil {
		panic("respond-json-marshal:" + err.Error())
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	rw.Write(rawJson)
}

func respondErr(ctx context.Context, rw http.ResponseWriter, status int, err error) {
	respond(ctx, rw, status, map[string]string{
		"code":  http.StatusText(status),
		"error": err.Error(),
	})
}

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, almalead.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, almalead.ErrUnsupportedMediaType),
		errors.Is(err, almalead.ErrInvalidTransition),
		almalead.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, almalead.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, almalead.ErrLeadNotFound),
		errors.Is(err, almalead.ErrResumeNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server side failures are logged
// and their detail is kept out of the response body.
func fail(ctx context.Context, rw http.ResponseWriter, log *Logger, op string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Ctx(ctx).Errorw(op, "error", err.Error())
		respondErr(ctx, rw, status, errors.New("internal server error"))
		return
	}
	log.Ctx(ctx).Infow(op, "status", status, "error", err.Error())
	respondErr(ctx, rw, status, err)
}
