package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
	"github.com/senorian3/lumio-backend-sub001/internal/infra/security"
	"github.com/senorian3/lumio-backend-sub001/internal/repository"
)

type authFixture struct {
	service  *AuthService
	users    *fakeUserRepository
	sessions *fakeSessionRepository
	cache    *fakeTokenVersionCache
	events   *fakePublisher
	issuer   *security.TokenIssuer
	clock    *testClock
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	issuer, err := security.NewTokenIssuer("access-secret", "refresh-secret", "lumio-test", 15*time.Minute, 720*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	issuer.WithClock(clock.Now)

	users := newFakeUserRepository()
	sessions := newFakeSessionRepository()
	cache := newFakeTokenVersionCache()
	events := &fakePublisher{}

	service := NewAuthService(users, sessions, cache, issuer, events, 10*time.Minute, nil)
	service.WithClock(clock.Now)

	return &authFixture{
		service:  service,
		users:    users,
		sessions: sessions,
		cache:    cache,
		events:   events,
		issuer:   issuer,
		clock:    clock,
	}
}

func (f *authFixture) registerAndLogin(t *testing.T, device DeviceInfo) TokenPair {
	t.Helper()

	if _, err := f.service.Register(context.Background(), "alice", "alice@example.com", "s3cret-pass"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	pair, err := f.service.Login(context.Background(), "alice@example.com", "s3cret-pass", device)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return pair
}

func (f *authFixture) userID(t *testing.T) string {
	t.Helper()
	user, err := f.users.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	return user.ID
}

func expectUnauthorizedField(t *testing.T, err error, field string) {
	t.Helper()

	unauthorized, ok := AsUnauthorized(err)
	if !ok {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if unauthorized.Field != field {
		t.Fatalf("expected field %q, got %q", field, unauthorized.Field)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.service.Register(ctx, "alice", "Alice@Example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if user.PasswordHash != "" {
		t.Fatal("expected password hash stripped from the returned user")
	}

	if _, err := f.service.Register(ctx, "alice2", "alice@example.com", "other-pass"); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}

	keys := f.events.routingKeys()
	if len(keys) != 1 || keys[0] != domain.EventUserCreated {
		t.Fatalf("expected single %s event, got %v", domain.EventUserCreated, keys)
	}
}

type duplicateUserRepository struct {
	*fakeUserRepository
}

func (r *duplicateUserRepository) Create(context.Context, domain.User) error {
	return repository.ErrDuplicate
}

func TestRegisterRacedDuplicateMapsToUserAlreadyExists(t *testing.T) {
	f := newAuthFixture(t)

	// The email lookup sees nothing, but the insert loses the race and trips the
	// unique constraint. The caller still gets the conflict error, not a 500.
	f.service.users = &duplicateUserRepository{fakeUserRepository: f.users}

	if _, err := f.service.Register(context.Background(), "alice", "alice@example.com", "s3cret-pass"); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}

	if keys := f.events.routingKeys(); len(keys) != 0 {
		t.Fatalf("expected no events for a failed registration, got %v", keys)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	if _, err := f.service.Register(ctx, "alice", "alice@example.com", "s3cret-pass"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	device := DeviceInfo{DeviceID: "device-1", DeviceName: "pixel"}
	if _, err := f.service.Login(ctx, "alice@example.com", "wrong", device); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.service.Login(ctx, "nobody@example.com", "wrong", device); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestLoginSameDeviceRotatesSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	device := DeviceInfo{DeviceID: "device-1", DeviceName: "pixel", IP: "203.0.113.7"}

	first := f.registerAndLogin(t, device)
	if first.TokenVersion != 1 {
		t.Fatalf("expected fresh session at version 1, got %d", first.TokenVersion)
	}

	f.clock.Advance(time.Minute)

	second, err := f.service.Login(ctx, "alice@example.com", "s3cret-pass", device)
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}

	if second.SessionID != first.SessionID {
		t.Fatal("expected the same session to be reused for the same device")
	}
	if second.TokenVersion != 2 {
		t.Fatalf("expected version 2 after re-login, got %d", second.TokenVersion)
	}
	if len(f.sessions.sessions) != 1 {
		t.Fatalf("expected exactly one session, got %d", len(f.sessions.sessions))
	}
}

func TestLoginSecondDeviceCreatesSeparateSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	first := f.registerAndLogin(t, DeviceInfo{DeviceID: "device-1"})
	second, err := f.service.Login(ctx, "alice@example.com", "s3cret-pass", DeviceInfo{DeviceID: "device-2"})
	if err != nil {
		t.Fatalf("Login on second device: %v", err)
	}

	if second.SessionID == first.SessionID {
		t.Fatal("expected a distinct session per device")
	}
	if second.TokenVersion != 1 {
		t.Fatalf("expected fresh session at version 1, got %d", second.TokenVersion)
	}
}

func TestRefreshBumpsVersionAndKillsOldPair(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	device := DeviceInfo{DeviceID: "device-1", DeviceName: "pixel"}

	first := f.registerAndLogin(t, device)

	f.clock.Advance(time.Minute)

	second, err := f.service.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.TokenVersion != first.TokenVersion+1 {
		t.Fatalf("expected version %d, got %d", first.TokenVersion+1, second.TokenVersion)
	}

	// Replaying the already-exchanged refresh token must fail: its expiry no
	// longer matches the rotated session.
	_, err = f.service.Refresh(ctx, first.RefreshToken)
	expectUnauthorizedField(t, err, FieldSession)

	// The pre-rotation access token is stale as well.
	_, err = f.service.ValidateAccess(ctx, first.AccessToken)
	expectUnauthorizedField(t, err, FieldTokenVersion)

	// The new pair still works.
	access, err := f.service.ValidateAccess(ctx, second.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess on fresh token: %v", err)
	}
	if access.TokenVersion != second.TokenVersion {
		t.Fatalf("expected version %d in access context, got %d", second.TokenVersion, access.TokenVersion)
	}
}

func TestRefreshGarbageToken(t *testing.T) {
	f := newAuthFixture(t)

	if _, err := f.service.Refresh(context.Background(), "not-a-jwt"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	pair := f.registerAndLogin(t, DeviceInfo{DeviceID: "device-1"})

	f.clock.Advance(721 * time.Hour)

	if _, err := f.service.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrExpiredRefreshToken) {
		t.Fatalf("expected ErrExpiredRefreshToken, got %v", err)
	}
}

type conflictingSessionRepository struct {
	*fakeSessionRepository
}

func (r *conflictingSessionRepository) Rotate(context.Context, string, time.Time, time.Time, int64) (*domain.Session, error) {
	return nil, repository.ErrVersionConflict
}

func TestRefreshConcurrentRotationConflict(t *testing.T) {
	f := newAuthFixture(t)
	pair := f.registerAndLogin(t, DeviceInfo{DeviceID: "device-1"})

	f.service.sessions = &conflictingSessionRepository{fakeSessionRepository: f.sessions}

	_, err := f.service.Refresh(context.Background(), pair.RefreshToken)
	expectUnauthorizedField(t, err, FieldTokenVersion)
}

func TestValidateAccessGuardChain(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	pair := f.registerAndLogin(t, DeviceInfo{DeviceID: "device-1"})

	_, err := f.service.ValidateAccess(ctx, "garbage")
	expectUnauthorizedField(t, err, FieldAccessToken)

	// Account gone.
	delete(f.users.users, f.userID(t))
	_, err = f.service.ValidateAccess(ctx, pair.AccessToken)
	expectUnauthorizedField(t, err, FieldUser)
}

func TestValidateAccessSessionRevoked(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	pair := f.registerAndLogin(t, DeviceInfo{DeviceID: "device-1"})

	if err := f.sessions.Delete(ctx, f.userID(t), "device-1", pair.SessionID, f.clock.Now()); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err := f.service.ValidateAccess(ctx, pair.AccessToken)
	expectUnauthorizedField(t, err, FieldSession)
}

func TestValidateAccessExpiredSession(t *testing.T) {
	f := newAuthFixture(t)
	pair := f.registerAndLogin(t, DeviceInfo{DeviceID: "device-1"})

	// Past the refresh window the session itself is dead, regardless of what the
	// access token says. Reissue the access token at the later clock so the
	// session check is the one that fires.
	f.clock.Advance(721 * time.Hour)
	access, err := f.issuer.IssueAccessToken(f.userID(t), "device-1", pair.TokenVersion)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	_, err = f.service.ValidateAccess(context.Background(), access)
	expectUnauthorizedField(t, err, FieldSession)
}

func TestValidateAccessCacheMissFallsBackToStore(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	pair := f.registerAndLogin(t, DeviceInfo{DeviceID: "device-1"})

	// Simulate a cold cache.
	delete(f.cache.versions, pair.SessionID)

	access, err := f.service.ValidateAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if access.SessionID != pair.SessionID {
		t.Fatalf("expected session %s, got %s", pair.SessionID, access.SessionID)
	}

	// The guard repopulates the cache from the store.
	version, err := f.cache.GetTokenVersion(ctx, pair.SessionID)
	if err != nil {
		t.Fatalf("GetTokenVersion after fallback: %v", err)
	}
	if version != pair.TokenVersion {
		t.Fatalf("expected cached version %d, got %d", pair.TokenVersion, version)
	}
}
