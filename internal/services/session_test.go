package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harentsoaR/dermacare-api/internal/apperr"
	"github.com/harentsoaR/dermacare-api/internal/logger"
	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/store"
	"github.com/harentsoaR/dermacare-api/internal/store/memory"
	"github.com/harentsoaR/dermacare-api/internal/utils"
)

type sessionFixture struct {
	store *memory.Store
	mgr   *SessionManager
	now   time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		store: memory.New(),
		now:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	tokens, err := utils.NewTokenIssuer("test-secret", 15*time.Minute, clock)
	require.NoError(t, err)

	f.mgr = NewSessionManager(f.store, tokens, 7*24*time.Hour, logger.Discard(), nil)
	f.mgr.now = clock
	return f
}

func (f *sessionFixture) register(t *testing.T, email, role string) *models.Session {
	t.Helper()
	s, err := f.mgr.Register(context.Background(), RegisterInput{Email: email, Password: "testpass123", Role: role})
	require.NoError(t, err)
	return s
}

func TestRegisterDefaultsToPatient(t *testing.T) {
	f := newSessionFixture(t)

	s := f.register(t, "  Jane@Example.com ", "")
	assert.Equal(t, models.RolePatient, s.Role)
	assert.Equal(t, "jane@example.com", s.Email)
	assert.NotEmpty(t, s.AccessToken)
	assert.NotEmpty(t, s.RefreshToken)

	id, err := f.mgr.ResolveIdentity(context.Background(), s.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{UserID: s.UserID, Role: models.RolePatient}, id)
}

func TestRegisterDoctorJoinsDirectory(t *testing.T) {
	f := newSessionFixture(t)

	s := f.register(t, "house@hospital.com", "doctor")

	doc, err := f.store.DoctorByID(context.Background(), s.UserID)
	require.NoError(t, err)
	assert.Equal(t, "house", doc.Name)
	assert.Equal(t, "Dermatology", doc.Specialization)
	assert.True(t, doc.IsAvailable)
}

func TestRegisterRejects(t *testing.T) {
	f := newSessionFixture(t)
	f.register(t, "jane@example.com", "patient")

	tests := []struct {
		name string
		in   RegisterInput
		kind apperr.Kind
	}{
		{"duplicate email", RegisterInput{Email: "JANE@example.com", Password: "testpass123"}, apperr.KindConflict},
		{"short password", RegisterInput{Email: "new@example.com", Password: "short"}, apperr.KindValidation},
		{"unknown role", RegisterInput{Email: "new@example.com", Password: "testpass123", Role: "admin"}, apperr.KindValidation},
		{"bad email", RegisterInput{Email: "not-an-email", Password: "testpass123"}, apperr.KindValidation},
		{"missing email", RegisterInput{Password: "testpass123"}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.mgr.Register(context.Background(), tt.in)
			assert.Equal(t, tt.kind, apperr.KindOf(err), "got %v", err)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	f := newSessionFixture(t)
	f.register(t, "jane@example.com", "")
	ctx := context.Background()

	s, err := f.mgr.Authenticate(ctx, "Jane@example.com", "testpass123")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", s.Email)

	_, wrongPass := f.mgr.Authenticate(ctx, "jane@example.com", "nope")
	_, unknown := f.mgr.Authenticate(ctx, "ghost@example.com", "testpass123")
	require.True(t, apperr.Is(wrongPass, apperr.KindAuthentication))
	require.True(t, apperr.Is(unknown, apperr.KindAuthentication))
	assert.Equal(t, wrongPass.Error(), unknown.Error(), "must not reveal which part was wrong")
}

func TestMostRecentSessionWins(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	first := f.register(t, "jane@example.com", "")

	second, err := f.mgr.Authenticate(ctx, "jane@example.com", "testpass123")
	require.NoError(t, err)

	_, err = f.mgr.ResolveIdentity(ctx, first.AccessToken)
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))

	_, err = f.mgr.Refresh(ctx, first.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))

	_, err = f.mgr.ResolveIdentity(ctx, second.AccessToken)
	assert.NoError(t, err)
}

func TestResolveIdentityRejects(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	s := f.register(t, "jane@example.com", "")

	for _, tok := range []string{"", "garbage", s.RefreshToken} {
		_, err := f.mgr.ResolveIdentity(ctx, tok)
		assert.True(t, apperr.Is(err, apperr.KindAuthentication), "token %q", tok)
	}

	f.now = f.now.Add(16 * time.Minute)
	_, err := f.mgr.ResolveIdentity(ctx, s.AccessToken)
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))

	// expiry has no side effects: refresh still works
	_, err = f.mgr.Refresh(ctx, s.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRotatesTokens(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	s := f.register(t, "jane@example.com", "doctor")

	f.now = f.now.Add(time.Minute)
	next, err := f.mgr.Refresh(ctx, s.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, s.AccessToken, next.AccessToken)
	assert.NotEqual(t, s.RefreshToken, next.RefreshToken)
	assert.Equal(t, models.RoleDoctor, next.Role)

	_, err = f.mgr.Refresh(ctx, s.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.KindAuthentication), "old refresh token must be spent")

	_, err = f.mgr.ResolveIdentity(ctx, s.AccessToken)
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))

	id, err := f.mgr.ResolveIdentity(ctx, next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDoctor, id.Role)
}

func TestRefreshExpired(t *testing.T) {
	f := newSessionFixture(t)
	s := f.register(t, "jane@example.com", "")

	f.now = f.now.Add(8 * 24 * time.Hour)
	_, err := f.mgr.Refresh(context.Background(), s.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))

	_, err = f.mgr.Refresh(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))
}

func TestInvalidateIsIdempotent(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	s := f.register(t, "jane@example.com", "")

	require.NoError(t, f.mgr.Invalidate(ctx, s.AccessToken))
	require.NoError(t, f.mgr.Invalidate(ctx, s.AccessToken))

	_, err := f.mgr.ResolveIdentity(ctx, s.AccessToken)
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))
	_, err = f.mgr.Refresh(ctx, s.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))

	err = f.mgr.Invalidate(ctx, "forged.token.value")
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))
}

func TestInvalidateStaleTokenKeepsNewerSession(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	old := f.register(t, "jane@example.com", "")
	current, err := f.mgr.Authenticate(ctx, "jane@example.com", "testpass123")
	require.NoError(t, err)

	require.NoError(t, f.mgr.Invalidate(ctx, old.AccessToken))

	_, err = f.mgr.ResolveIdentity(ctx, current.AccessToken)
	assert.NoError(t, err)
}

// replayedLookup answers refresh lookups with the first record it saw for
// each hash, as if every caller had read before anyone rotated.
type replayedLookup struct {
	*memory.Store
	mu   sync.Mutex
	seen map[string]*models.SessionRecord
}

func (r *replayedLookup) SessionByRefreshHash(ctx context.Context, hash string) (*models.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.seen[hash]; ok {
		cp := *rec
		return &cp, nil
	}
	rec, err := r.Store.SessionByRefreshHash(ctx, hash)
	if err == nil {
		r.seen[hash] = rec
	}
	return rec, err
}

func TestRefreshTokenCannotBeSpentTwice(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	s := f.register(t, "jane@example.com", "")

	lookup := &replayedLookup{Store: f.store, seen: map[string]*models.SessionRecord{}}
	tokens, err := utils.NewTokenIssuer("test-secret", 15*time.Minute, func() time.Time { return f.now })
	require.NoError(t, err)
	mgr := NewSessionManager(lookup, tokens, 7*24*time.Hour, logger.Discard(), nil)
	mgr.now = f.mgr.now

	first, err := mgr.Refresh(ctx, s.RefreshToken)
	require.NoError(t, err)

	_, err = mgr.Refresh(ctx, s.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.KindAuthentication), "got %v", err)

	_, err = mgr.ResolveIdentity(ctx, first.AccessToken)
	assert.NoError(t, err, "the winning refresh keeps its session")
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	s := f.register(t, "jane@example.com", "")

	var (
		wg   sync.WaitGroup
		errs = make([]error, 8)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.mgr.Refresh(ctx, s.RefreshToken)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindAuthentication), "got %v", err)
	}
	assert.Equal(t, 1, wins)
}

// flakyDirectory fails the first directory write.
type flakyDirectory struct {
	*memory.Store
	failed bool
}

func (d *flakyDirectory) UpsertDoctor(ctx context.Context, doc *models.Doctor) error {
	if !d.failed {
		d.failed = true
		return errors.New("write timeout")
	}
	return d.Store.UpsertDoctor(ctx, doc)
}

func TestDoctorListingRepairedOnLogin(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	flaky := &flakyDirectory{Store: f.store}
	tokens, err := utils.NewTokenIssuer("test-secret", 15*time.Minute, nil)
	require.NoError(t, err)
	mgr := NewSessionManager(flaky, tokens, time.Hour, logger.Discard(), nil)

	s, err := mgr.Register(ctx, RegisterInput{Email: "house@hospital.com", Password: "testpass123", Role: "doctor"})
	require.NoError(t, err, "a directory failure must not fail registration")

	_, err = f.store.DoctorByID(ctx, s.UserID)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = mgr.Authenticate(ctx, "house@hospital.com", "testpass123")
	require.NoError(t, err)

	doc, err := f.store.DoctorByID(ctx, s.UserID)
	require.NoError(t, err)
	assert.Equal(t, "house", doc.Name)
}
