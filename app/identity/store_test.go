package identity_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/AntonStoeckl/library-lending-go/app/identity"
	"github.com/AntonStoeckl/library-lending-go/lending"
	. "github.com/AntonStoeckl/library-lending-go/testutil/helper" //nolint:revive
)

func Test_SignUp_CreatesUserWithHashedPassword(t *testing.T) {
	// setup
	store := givenStore(t)

	// act
	user, err := store.SignUp(context.Background(), identity.SignUpInput{
		Name:     "  Ada Lovelace ",
		Email:    " Ada@Example.org",
		Password: "secret1",
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", user.Name)
	assert.Equal(t, "ada@example.org", user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword(user.PasswordHash, []byte("secret1")))

	loaded, err := store.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, loaded.Email)
	assert.True(t, user.CreatedAt.Equal(loaded.CreatedAt))
}

func Test_SignUp_Validation(t *testing.T) {
	testCases := []struct {
		name     string
		input    identity.SignUpInput
		expected map[string]string
	}{
		{
			name:  "everything missing",
			input: identity.SignUpInput{},
			expected: map[string]string{
				"name":     "The name field is required.",
				"email":    "The email field is required.",
				"password": "The password field is required.",
			},
		},
		{
			name:     "invalid email",
			input:    identity.SignUpInput{Name: "Ada", Email: "ada-at-example", Password: "secret1"},
			expected: map[string]string{"email": "The email field must be a valid email address."},
		},
		{
			name:     "display name form is not a bare address",
			input:    identity.SignUpInput{Name: "Ada", Email: "ada <ada@example.org>", Password: "secret1"},
			expected: map[string]string{"email": "The email field must be a valid email address."},
		},
		{
			name:     "short password",
			input:    identity.SignUpInput{Name: "Ada", Email: "ada@example.org", Password: "12345"},
			expected: map[string]string{"password": "The password field must be at least 6 characters."},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			store := givenStore(t)

			// act
			_, err := store.SignUp(context.Background(), tc.input)

			// assert
			var verr *lending.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.expected, verr.Fields())
		})
	}
}

func Test_SignUp_EmailIsUniqueIgnoringCase(t *testing.T) {
	// setup
	store := givenStore(t)
	ctx := context.Background()

	// arrange
	givenUser(t, store, "ada@example.org", "secret1")

	// act
	_, err := store.SignUp(ctx, identity.SignUpInput{Name: "Other Ada", Email: "ADA@example.org", Password: "secret2"})

	// assert
	var verr *lending.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{"email": identity.EmailTakenMessage}, verr.Fields())
}

func Test_Login_IssuesResolvableToken(t *testing.T) {
	// setup
	store := givenStore(t)
	ctx := context.Background()

	// arrange
	user := givenUser(t, store, "ada@example.org", "secret1")

	// act
	token, err := store.Login(ctx, identity.Credentials{Email: "ADA@example.org", Password: "secret1"})

	// assert
	require.NoError(t, err)
	assert.Len(t, token.Plain, 80)
	assert.Nil(t, token.ExpiresAt)

	resolved, err := store.Resolve(ctx, token.Plain)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.UserID)
	assert.Equal(t, "ada@example.org", resolved.Email)
}

func Test_Login_Error_InvalidCredentials(t *testing.T) {
	// setup
	store := givenStore(t)
	ctx := context.Background()

	// arrange
	givenUser(t, store, "ada@example.org", "secret1")

	// act
	_, wrongPasswordErr := store.Login(ctx, identity.Credentials{Email: "ada@example.org", Password: "secret2"})
	_, unknownEmailErr := store.Login(ctx, identity.Credentials{Email: "bob@example.org", Password: "secret1"})
	_, validationErr := store.Login(ctx, identity.Credentials{Email: "", Password: ""})

	// assert
	assert.ErrorIs(t, wrongPasswordErr, identity.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmailErr, identity.ErrInvalidCredentials)
	assert.ErrorIs(t, validationErr, lending.ErrValidation)
}

func Test_Logout_RevokesAllTokensOfTheUser(t *testing.T) {
	// setup
	store := givenStore(t)
	ctx := context.Background()

	// arrange
	ada := givenUser(t, store, "ada@example.org", "secret1")
	givenUser(t, store, "bob@example.org", "secret1")

	first := givenToken(t, store, "ada@example.org", "secret1")
	second := givenToken(t, store, "ada@example.org", "secret1")
	bobs := givenToken(t, store, "bob@example.org", "secret1")

	_, err := store.Resolve(ctx, first) // warm the cache
	require.NoError(t, err)

	// act
	err = store.Logout(ctx, ada.ID)

	// assert
	require.NoError(t, err)

	_, err = store.Resolve(ctx, first)
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)

	_, err = store.Resolve(ctx, second)
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)

	_, err = store.Resolve(ctx, bobs)
	assert.NoError(t, err)
}

func Test_Logout_DuringResolve_DoesNotLeaveRevokedTokenCached(t *testing.T) {
	// setup
	ctx := context.Background()

	var (
		store      *identity.Store
		adaID      uuid.UUID
		logoutOnce sync.Once
		logoutDone = make(chan error, 1)
	)

	// logs out while a resolve sits between reading the token and caching it
	store = givenStore(t, identity.WithAfterTokenLookup(func() {
		logoutOnce.Do(func() {
			go func() { logoutDone <- store.Logout(ctx, adaID) }()

			select {
			case err := <-logoutDone:
				logoutDone <- err
			case <-time.After(50 * time.Millisecond):
			}
		})
	}))

	// arrange
	adaID = givenUser(t, store, "ada@example.org", "secret1").ID
	token := givenToken(t, store, "ada@example.org", "secret1")

	// act
	_, resolveErr := store.Resolve(ctx, token)
	logoutErr := <-logoutDone

	// assert
	require.NoError(t, resolveErr)
	require.NoError(t, logoutErr)

	_, err := store.Resolve(ctx, token)
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func Test_Resolve_Error_UnknownOrEmptyToken(t *testing.T) {
	// setup
	store := givenStore(t)

	// act
	_, emptyErr := store.Resolve(context.Background(), "")
	_, unknownErr := store.Resolve(context.Background(), "deadbeef")

	// assert
	assert.ErrorIs(t, emptyErr, identity.ErrUnauthenticated)
	assert.ErrorIs(t, unknownErr, identity.ErrUnauthenticated)
}

func Test_Resolve_HonorsTokenTTL_AlsoWhenCached(t *testing.T) {
	// setup
	clock := &fakeClock{now: FakeClock()}
	store := givenStore(t, identity.WithTokenTTL(time.Hour), identity.WithClock(clock.Now))
	ctx := context.Background()

	// arrange
	givenUser(t, store, "ada@example.org", "secret1")
	token, err := store.Login(ctx, identity.Credentials{Email: "ada@example.org", Password: "secret1"})
	require.NoError(t, err)
	require.NotNil(t, token.ExpiresAt)

	_, err = store.Resolve(ctx, token.Plain)
	require.NoError(t, err, "token must be valid before it expires")

	// act
	clock.Advance(time.Hour)
	_, err = store.Resolve(ctx, token.Plain)

	// assert
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func Test_Open_PersistsAcrossReopen(t *testing.T) {
	// setup
	path := filepath.Join(t.TempDir(), "nested", "identity.db")
	ctx := context.Background()

	// arrange
	store, err := identity.Open(ctx, path, identity.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	givenUser(t, store, "ada@example.org", "secret1")
	token := givenToken(t, store, "ada@example.org", "secret1")
	require.NoError(t, store.Close())

	// act
	reopened, err := identity.Open(ctx, path, identity.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	resolved, err := reopened.Resolve(ctx, token)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, "ada@example.org", resolved.Email)
}

func givenStore(t *testing.T, opts ...identity.Option) *identity.Store {
	t.Helper()

	opts = append([]identity.Option{identity.WithBcryptCost(bcrypt.MinCost)}, opts...)

	store, err := identity.Open(context.Background(), filepath.Join(t.TempDir(), "identity.db"), opts...)
	require.NoError(t, err, "error in arranging test data")
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func givenUser(t *testing.T, store *identity.Store, email string, password string) identity.User {
	t.Helper()

	user, err := store.SignUp(context.Background(), identity.SignUpInput{Name: "Reader", Email: email, Password: password})
	require.NoError(t, err, "error in arranging test data")

	return user
}

func givenToken(t *testing.T, store *identity.Store, email string, password string) string {
	t.Helper()

	token, err := store.Login(context.Background(), identity.Credentials{Email: email, Password: password})
	require.NoError(t, err, "error in arranging test data")

	return token.Plain
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}
