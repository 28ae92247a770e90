package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AntonStoeckl/library-lending-go/app/identity"
)

type identityKey struct{}

// IdentityFrom returns the authenticated caller of the request.
func IdentityFrom(ctx context.Context) (identity.Identity, bool) {
	caller, ok := ctx.Value(identityKey{}).(identity.Identity)
	return caller, ok
}

func withIdentity(ctx context.Context, caller identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, caller)
}

// authenticated resolves the bearer token and rejects the request if it does not belong to a live session.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.writeJSON(w, r, http.StatusUnauthorized, failure(msgUnauthenticated))
			return
		}

		caller, err := s.auth.Resolve(r.Context(), token)
		switch {
		case errors.Is(err, identity.ErrUnauthenticated):
			s.writeJSON(w, r, http.StatusUnauthorized, failure(msgUnauthenticated))
			return
		case err != nil:
			s.writeServerError(w, r, err)
			return
		}

		next(w, r.WithContext(withIdentity(r.Context(), caller)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, tokenTypeBearer) {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}

// statusRecorder remembers the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logInfo(r.Context(), logMsgRequestHandled,
			logAttrMethod, r.Method,
			logAttrPath, r.URL.Path,
			logAttrRoute, r.Pattern,
			logAttrStatus, rec.status,
			logAttrDurationMS, float64(time.Since(start).Microseconds())/1000,
		)
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			if recovered == http.ErrAbortHandler { //nolint:errorlint,err113 // sentinel value used with panic
				panic(recovered)
			}

			s.logError(r.Context(), logMsgPanicRecovered, logAttrPath, r.URL.Path, logAttrPanic, fmt.Sprint(recovered))
			s.writeJSON(w, r, http.StatusInternalServerError, failure(msgServerError))
		}()

		next.ServeHTTP(w, r)
	})
}
