package httpapi

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/AntonStoeckl/library-lending-go/app/features/command/addbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/borrowbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/removebook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/returnbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/updatebook"
	"github.com/AntonStoeckl/library-lending-go/app/features/query/getbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/query/listbooks"
	"github.com/AntonStoeckl/library-lending-go/app/features/query/loanhistory"
	"github.com/AntonStoeckl/library-lending-go/app/identity"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

const defaultMaxUploadBytes = 2048 * 1024

// Handlers are the command and query handlers behind the book routes.
// Usually they are the observable wrappers around the feature handlers.
type Handlers struct {
	AddBook     shell.CoreCommandHandler[addbook.Command, lending.Book]
	UpdateBook  shell.CoreCommandHandler[updatebook.Command, lending.Book]
	RemoveBook  shell.CoreCommandHandler[removebook.Command, lending.Book]
	BorrowBook  shell.CoreCommandHandler[borrowbook.Command, lending.Book]
	ReturnBook  shell.CoreCommandHandler[returnbook.Command, lending.Book]
	GetBook     shell.CoreQueryHandler[getbook.Query, lending.Book]
	ListBooks   shell.CoreQueryHandler[listbooks.Query, listbooks.Books]
	LoanHistory shell.CoreQueryHandler[loanhistory.Query, loanhistory.LoanHistory]
}

// Authenticator manages accounts and bearer tokens. *identity.Store implements it.
type Authenticator interface {
	SignUp(ctx context.Context, input identity.SignUpInput) (identity.User, error)
	Login(ctx context.Context, credentials identity.Credentials) (identity.Token, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	Resolve(ctx context.Context, plainToken string) (identity.Identity, error)
}

// ImageStore stores uploaded cover images. *blobstore.FileStore implements it.
type ImageStore interface {
	Save(ctx context.Context, r io.Reader, filename string, maxBytes int64) (string, error)
	Open(ref string) (*os.File, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Server routes HTTP requests to the handlers.
type Server struct {
	handlers         Handlers
	auth             Authenticator
	images           ImageStore
	logger           lending.Logger
	contextualLogger lending.ContextualLogger
	corsOrigins      []string
	healthChecks     []HealthCheck
	maxUploadBytes   int64
	now              func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for access and error logs.
func WithLogger(logger lending.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithContextualLogger sets a context-aware logger, preferred over the plain logger.
func WithContextualLogger(logger lending.ContextualLogger) Option {
	return func(s *Server) {
		s.contextualLogger = logger
	}
}

// WithCORSOrigins enables CORS for the given origins.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.corsOrigins = append(s.corsOrigins, origins...)
	}
}

// WithHealthCheck adds a check to the health route.
func WithHealthCheck(check HealthCheck) Option {
	return func(s *Server) {
		s.healthChecks = append(s.healthChecks, check)
	}
}

// WithMaxUploadBytes sets the image size limit.
func WithMaxUploadBytes(limit int64) Option {
	return func(s *Server) {
		if limit > 0 {
			s.maxUploadBytes = limit
		}
	}
}

// WithClock sets the time source for command timestamps and year validation.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer creates a Server.
func NewServer(handlers Handlers, auth Authenticator, images ImageStore, opts ...Option) *Server {
	s := &Server{
		handlers:       handlers,
		auth:           auth,
		images:         images,
		maxUploadBytes: defaultMaxUploadBytes,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler returns the fully wired http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /signup", s.handleSignUp)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /images/{ref}", s.handleImage)

	mux.Handle("POST /logout", s.authenticated(s.handleLogout))
	mux.Handle("GET /books", s.authenticated(s.handleListBooks))
	mux.Handle("POST /books", s.authenticated(s.handleAddBook))
	mux.Handle("GET /books/{id}", s.authenticated(s.handleGetBook))
	mux.Handle("PUT /books/{id}", s.authenticated(s.handleUpdateBook))
	mux.Handle("DELETE /books/{id}", s.authenticated(s.handleRemoveBook))
	mux.Handle("POST /books/{id}/borrow", s.authenticated(s.handleBorrowBook))
	mux.Handle("POST /books/{id}/return", s.authenticated(s.handleReturnBook))
	mux.Handle("GET /books/{id}/loans", s.authenticated(s.handleLoanHistory))

	var handler http.Handler = mux
	handler = s.recoverPanics(handler)
	handler = s.accessLog(handler)

	if len(s.corsOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Accept"},
		}).Handler(handler)
	}

	return handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, check := range s.healthChecks {
		if err := check(r.Context()); err != nil {
			s.logError(r.Context(), logMsgHealthCheckFailed, logAttrError, err.Error())
			s.writeJSON(w, r, http.StatusServiceUnavailable, failure(msgUnhealthy))

			return
		}
	}

	s.writeJSON(w, r, http.StatusOK, success(msgHealthy, nil))
}
