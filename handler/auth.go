package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	almalead "github.com/phbpx/almalead"
	"github.com/phbpx/almalead/auth"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.Token, error)
	Verify(token string) (auth.Identity, error)
}

type AuthHandler struct {
	auth Authenticator
	log  *Logger
}

func NewAuthHandler(a Authenticator, log *Logger) *AuthHandler {
	return &AuthHandler{
		auth: a,
		log:  log,
	}
}

func (ah AuthHandler) Login(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &creds); err != nil {
		fail(ctx, rw, ah.log, "Login", err)
		return
	}
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		fail(ctx, rw, ah.log, "Login", &almalead.ValidationError{Field: "body", Reason: "email and password are required"})
		return
	}

	token, err := ah.auth.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, almalead.ErrUnauthorized) {
			rw.Header().Set("WWW-Authenticate", "Bearer")
			respondErr(ctx, rw, http.StatusUnauthorized, errors.New("Incorrect email or password"))
			return
		}
		fail(ctx, rw, ah.log, "Login", err)
		return
	}

	respond(ctx, rw, http.StatusOK, token)
}

type ctxKey int

const identityKey ctxKey = 1

// IdentityFrom returns the caller attached by Authenticate.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}

// Authenticate rejects requests without a valid bearer token.
func (ah AuthHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := bearer(r.Header.Get("Authorization"))
		if !ok {
			rw.Header().Set("WWW-Authenticate", "Bearer")
			respondErr(ctx, rw, http.StatusUnauthorized, errors.New("not authenticated"))
			return
		}

		identity, err := ah.auth.Verify(token)
		if err != nil {
			ah.log.Ctx(ctx).Infow("Authenticate", "error", err.Error())
			rw.Header().Set("WWW-Authenticate", "Bearer")
			respondErr(ctx, rw, http.StatusUnauthorized, errors.New("could not validate credentials"))
			return
		}

		next.ServeHTTP(rw, r.WithContext(context.WithValue(ctx, identityKey, identity)))
	})
}

func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
