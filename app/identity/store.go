package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/bcrypt"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	driverName       = "sqlite"
	memoryPath       = ":memory:"
	dsnPragmas       = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	tokenBytes       = 40
	defaultCacheSize = 1024
	defaultCacheTTL  = 5 * time.Minute

	logMsgUserCreated    = "identity: user created"
	logMsgLoginSucceeded = "identity: login succeeded"
	logMsgLoginFailed    = "identity: login failed"
	logMsgLoggedOut      = "identity: tokens revoked"
	logAttrUserID        = "user_id"
	logAttrRevoked       = "revoked_tokens"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash BLOB NOT NULL,
		created_at    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tokens (
		digest     TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL,
		expires_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS tokens_user_id_idx ON tokens (user_id)`,
}

type cachedIdentity struct {
	identity  Identity
	expiresAt *time.Time
}

// Store is the SQLite backed identity store. It is safe for concurrent use.
type Store struct {
	db         *sql.DB
	cache      *expirable.LRU[string, cachedIdentity]
	cacheSize  int
	cacheTTL   time.Duration
	tokenTTL   time.Duration
	bcryptCost int
	now        func() time.Time
	logger     lending.Logger
	dummyHash  func() []byte

	// revocation orders cache fills against Logout: a fill holds it shared from the token
	// read until the cache add, Logout holds it exclusively until the cache entries are gone.
	revocation  sync.RWMutex
	afterLookup func()
}

// Option configures a Store.
type Option func(*Store)

// WithTokenTTL limits the lifetime of issued tokens. Zero means tokens never expire.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.tokenTTL = ttl
	}
}

// WithResolveCache sets the size and entry lifetime of the token cache.
func WithResolveCache(size int, ttl time.Duration) Option {
	return func(s *Store) {
		if size > 0 {
			s.cacheSize = size
		}

		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithBcryptCost overrides bcrypt.DefaultCost, tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Store) {
		s.bcryptCost = cost
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger lending.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens (and creates) the SQLite database at path and migrates it.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Join(ErrOpeningStoreFailed, err)
		}
	}

	db, err := sql.Open(driverName, path+dsnPragmas)
	if err != nil {
		return nil, errors.Join(ErrOpeningStoreFailed, err)
	}

	// one writer, and an in-memory database only lives as long as its single connection
	db.SetMaxOpenConns(1)

	store, err := NewStore(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// NewStore creates a Store on an open SQLite handle and migrates the schema.
func NewStore(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:         db,
		cacheSize:  defaultCacheSize,
		cacheTTL:   defaultCacheTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.dummyHash = sync.OnceValue(func() []byte {
		hash, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.bcryptCost) //nolint:errcheck
		return hash
	})

	s.cache = expirable.NewLRU[string, cachedIdentity](s.cacheSize, nil, s.cacheTTL)

	for _, statement := range schemaStatements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return nil, errors.Join(ErrMigratingStoreFailed, err)
		}
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SignUp validates the input and creates the account.
// Invalid input or a taken email yield a *lending.ValidationError.
func (s *Store) SignUp(ctx context.Context, input SignUpInput) (User, error) {
	input, verr := validateSignUp(input)
	if verr.HasErrors() {
		return User{}, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return User{}, errors.Join(ErrHashingPasswordFailed, err)
	}

	user := User{
		ID:           uuid.New(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID.String(), user.Name, user.Email, user.PasswordHash, user.CreatedAt.UnixMicro(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			taken := lending.NewValidationError()
			taken.Add(FieldEmail, EmailTakenMessage)

			return User{}, taken
		}

		return User{}, errors.Join(ErrExecutingFailed, err)
	}

	s.logInfo(logMsgUserCreated, logAttrUserID, user.ID.String())

	return user, nil
}

// Login checks the credentials and issues a new bearer token.
func (s *Store) Login(ctx context.Context, credentials Credentials) (Token, error) {
	credentials, verr := validateCredentials(credentials)
	if verr.HasErrors() {
		return Token{}, verr
	}

	var (
		rawID string
		hash  []byte
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email = ?`,
		credentials.Email,
	).Scan(&rawID, &hash)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// same cost as a wrong password, so response times do not reveal registered emails
		_ = bcrypt.CompareHashAndPassword(s.dummyHash(), []byte(credentials.Password))
		s.logInfo(logMsgLoginFailed)

		return Token{}, ErrInvalidCredentials
	case err != nil:
		return Token{}, errors.Join(ErrQueryingFailed, err)
	}

	if err = bcrypt.CompareHashAndPassword(hash, []byte(credentials.Password)); err != nil {
		s.logInfo(logMsgLoginFailed, logAttrUserID, rawID)
		return Token{}, ErrInvalidCredentials
	}

	userID, err := uuid.Parse(rawID)
	if err != nil {
		return Token{}, errors.Join(ErrQueryingFailed, err)
	}

	token, err := s.issueToken(ctx, userID)
	if err != nil {
		return Token{}, err
	}

	s.logInfo(logMsgLoginSucceeded, logAttrUserID, rawID)

	return token, nil
}

// Logout revokes every token of the user.
func (s *Store) Logout(ctx context.Context, userID uuid.UUID) error {
	s.revocation.Lock()
	defer s.revocation.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT digest FROM tokens WHERE user_id = ?`, userID.String())
	if err != nil {
		return errors.Join(ErrQueryingFailed, err)
	}

	digests := make([]string, 0)

	for rows.Next() {
		var digest string
		if err = rows.Scan(&digest); err != nil {
			_ = rows.Close()
			return errors.Join(ErrQueryingFailed, err)
		}

		digests = append(digests, digest)
	}

	if err = errors.Join(rows.Err(), rows.Close()); err != nil {
		return errors.Join(ErrQueryingFailed, err)
	}

	if _, err = s.db.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = ?`, userID.String()); err != nil {
		return errors.Join(ErrExecutingFailed, err)
	}

	for _, digest := range digests {
		s.cache.Remove(digest)
	}

	s.logInfo(logMsgLoggedOut, logAttrUserID, userID.String(), logAttrRevoked, len(digests))

	return nil
}

// Resolve returns the identity owning the token or ErrUnauthenticated.
func (s *Store) Resolve(ctx context.Context, plainToken string) (Identity, error) {
	if plainToken == "" {
		return Identity{}, ErrUnauthenticated
	}

	digest := digestOf(plainToken)

	if cached, ok := s.cache.Get(digest); ok {
		if s.isExpired(cached.expiresAt) {
			s.cache.Remove(digest)
			return Identity{}, ErrUnauthenticated
		}

		return cached.identity, nil
	}

	return s.resolveAndCache(ctx, digest)
}

func (s *Store) resolveAndCache(ctx context.Context, digest string) (Identity, error) {
	s.revocation.RLock()
	defer s.revocation.RUnlock()

	var (
		rawID     string
		identity  Identity
		expiresAt sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.name, u.email, t.expires_at
		 FROM tokens t JOIN users u ON u.id = t.user_id
		 WHERE t.digest = ?`,
		digest,
	).Scan(&rawID, &identity.Name, &identity.Email, &expiresAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Identity{}, ErrUnauthenticated
	case err != nil:
		return Identity{}, errors.Join(ErrQueryingFailed, err)
	}

	if identity.UserID, err = uuid.Parse(rawID); err != nil {
		return Identity{}, errors.Join(ErrQueryingFailed, err)
	}

	var expires *time.Time
	if expiresAt.Valid {
		t := time.UnixMicro(expiresAt.Int64).UTC()
		expires = &t
	}

	if s.isExpired(expires) {
		return Identity{}, ErrUnauthenticated
	}

	if s.afterLookup != nil {
		s.afterLookup()
	}

	s.cache.Add(digest, cachedIdentity{identity: identity, expiresAt: expires})

	return identity, nil
}

// GetUser loads an account by id.
func (s *Store) GetUser(ctx context.Context, userID uuid.UUID) (User, error) {
	user := User{ID: userID}

	var createdAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT name, email, password_hash, created_at FROM users WHERE id = ?`,
		userID.String(),
	).Scan(&user.Name, &user.Email, &user.PasswordHash, &createdAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return User{}, ErrUnauthenticated
	case err != nil:
		return User{}, errors.Join(ErrQueryingFailed, err)
	}

	user.CreatedAt = time.UnixMicro(createdAt).UTC()

	return user, nil
}

func (s *Store) issueToken(ctx context.Context, userID uuid.UUID) (Token, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return Token{}, errors.Join(ErrGeneratingTokenFailed, err)
	}

	token := Token{Plain: hex.EncodeToString(raw), UserID: userID}
	now := s.now().UTC()

	var expiresAt sql.NullInt64
	if s.tokenTTL > 0 {
		expires := now.Add(s.tokenTTL).Truncate(time.Microsecond)
		token.ExpiresAt = &expires
		expiresAt = sql.NullInt64{Int64: expires.UnixMicro(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (digest, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		digestOf(token.Plain), userID.String(), now.UnixMicro(), expiresAt,
	)
	if err != nil {
		return Token{}, errors.Join(ErrExecutingFailed, err)
	}

	return token, nil
}

func (s *Store) isExpired(expiresAt *time.Time) bool {
	return expiresAt != nil && !s.now().Before(*expiresAt)
}

func (s *Store) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func digestOf(plainToken string) string {
	sum := sha256.Sum256([]byte(plainToken))
	return hex.EncodeToString(sum[:])
}

// isUniqueViolation matches the primary constraint code, extended codes included.
// A fresh random id cannot collide, so the email is the only constraint an insert can violate.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error

	return errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
