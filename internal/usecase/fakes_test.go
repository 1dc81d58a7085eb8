package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
	"github.com/senorian3/lumio-backend-sub001/internal/core/port"
	"github.com/senorian3/lumio-backend-sub001/internal/repository"
)

type fakeSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newFakeSessionRepository(sessions ...domain.Session) *fakeSessionRepository {
	repo := &fakeSessionRepository{sessions: make(map[string]*domain.Session)}
	for i := range sessions {
		copy := sessions[i]
		if copy.TokenVersion <= 0 {
			copy.TokenVersion = 1
		}
		repo.sessions[copy.ID] = &copy
	}
	return repo
}

func (f *fakeSessionRepository) Find(_ context.Context, filter domain.SessionFilter) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var newest *domain.Session
	for _, session := range f.sessions {
		if session.DeletedAt != nil {
			continue
		}
		if filter.UserID != "" && session.UserID != filter.UserID {
			continue
		}
		if filter.DeviceID != "" && session.DeviceID != filter.DeviceID {
			continue
		}
		if filter.DeviceName != "" && session.DeviceName != filter.DeviceName {
			continue
		}
		if newest == nil || session.CreatedAt.After(newest.CreatedAt) {
			newest = session
		}
	}

	if newest == nil {
		return nil, repository.ErrNotFound
	}
	copy := *newest
	return &copy, nil
}

func (f *fakeSessionRepository) GetByID(_ context.Context, sessionID string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[sessionID]
	if !ok || session.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	copy := *session
	return &copy, nil
}

func (f *fakeSessionRepository) Create(_ context.Context, session domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if session.TokenVersion <= 0 {
		session.TokenVersion = 1
	}
	copy := session
	f.sessions[session.ID] = &copy
	return nil
}

func (f *fakeSessionRepository) Rotate(_ context.Context, sessionID string, issuedAt, expiresAt time.Time, fromVersion int64) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[sessionID]
	if !ok || session.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	if session.TokenVersion != fromVersion {
		return nil, repository.ErrVersionConflict
	}

	session.CreatedAt = issuedAt
	session.ExpiresAt = expiresAt
	session.TokenVersion = fromVersion + 1

	copy := *session
	return &copy, nil
}

func (f *fakeSessionRepository) Delete(_ context.Context, userID, deviceID, sessionID string, deletedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[sessionID]
	if !ok || session.DeletedAt != nil || session.UserID != userID || session.DeviceID != deviceID {
		return repository.ErrNotFound
	}
	at := deletedAt
	session.DeletedAt = &at
	return nil
}

func (f *fakeSessionRepository) DeleteAllExceptCurrent(_ context.Context, userID, currentSessionID string, deletedAt time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	revoked := 0
	for _, session := range f.sessions {
		if session.UserID != userID || session.ID == currentSessionID || session.DeletedAt != nil {
			continue
		}
		at := deletedAt
		session.DeletedAt = &at
		revoked++
	}
	return revoked, nil
}

func (f *fakeSessionRepository) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	purged := 0
	for id, session := range f.sessions {
		if session.UserID != userID {
			continue
		}
		delete(f.sessions, id)
		purged++
	}
	return purged, nil
}

func (f *fakeSessionRepository) ListActiveByUser(_ context.Context, userID string) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	result := make([]domain.Session, 0)
	for _, session := range f.sessions {
		if session.UserID != userID || !session.IsActive(now) {
			continue
		}
		result = append(result, *session)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

type fakeUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepository(users ...domain.User) *fakeUserRepository {
	repo := &fakeUserRepository{users: make(map[string]*domain.User)}
	for i := range users {
		copy := users[i]
		repo.users[copy.ID] = &copy
	}
	return repo
}

func (f *fakeUserRepository) GetByID(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

func (f *fakeUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, user := range f.users {
		if user.Email == email {
			copy := *user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepository) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, user := range f.users {
		if user.Email == identifier || user.Username == identifier {
			copy := *user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepository) Create(_ context.Context, user domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	copy := user
	f.users[user.ID] = &copy
	return nil
}

func (f *fakeUserRepository) UpdateAvatar(_ context.Context, userID, avatarURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	url := avatarURL
	user.AvatarURL = &url
	return nil
}

type fakeIdentityRepository struct {
	mu         sync.Mutex
	identities []domain.OAuthIdentity
}

func (f *fakeIdentityRepository) GetByProvider(_ context.Context, provider, externalID string) (*domain.OAuthIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.identities {
		if f.identities[i].Provider == provider && f.identities[i].ExternalID == externalID {
			copy := f.identities[i]
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeIdentityRepository) Create(_ context.Context, identity domain.OAuthIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.identities = append(f.identities, identity)
	return nil
}

type fakeTokenVersionCache struct {
	mu       sync.Mutex
	versions map[string]int64
	getErr   error
}

func newFakeTokenVersionCache() *fakeTokenVersionCache {
	return &fakeTokenVersionCache{versions: make(map[string]int64)}
}

func (f *fakeTokenVersionCache) GetTokenVersion(_ context.Context, sessionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return 0, f.getErr
	}
	version, ok := f.versions[sessionID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return version, nil
}

func (f *fakeTokenVersionCache) SetTokenVersion(_ context.Context, sessionID string, version int64, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.versions[sessionID] = version
	return nil
}

func (f *fakeTokenVersionCache) DropTokenVersion(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.versions, sessionID)
	return nil
}

type publishedEvent struct {
	routingKey string
	userEvent  *domain.UserEvent
	postEvent  *domain.PostEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) PublishUserEvent(_ context.Context, routingKey string, event domain.UserEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, publishedEvent{routingKey: routingKey, userEvent: &event})
	return nil
}

func (f *fakePublisher) PublishPostEvent(_ context.Context, pattern string, event domain.PostEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, publishedEvent{routingKey: pattern, postEvent: &event})
	return nil
}

func (f *fakePublisher) routingKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.events))
	for _, event := range f.events {
		keys = append(keys, event.routingKey)
	}
	return keys
}

type fakePaymentRepository struct {
	mu       sync.Mutex
	payments map[int64]*domain.Payment
	nextID   int64
}

func newFakePaymentRepository(payments ...domain.Payment) *fakePaymentRepository {
	repo := &fakePaymentRepository{payments: make(map[int64]*domain.Payment), nextID: 1}
	for i := range payments {
		copy := payments[i]
		repo.payments[copy.ID] = &copy
		if copy.ID >= repo.nextID {
			repo.nextID = copy.ID + 1
		}
	}
	return repo
}

func (f *fakePaymentRepository) Create(_ context.Context, payment domain.Payment) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	payment.ID = f.nextID
	f.nextID++
	if payment.Status == "" {
		payment.Status = domain.PaymentStatusPending
	}
	copy := payment
	f.payments[payment.ID] = &copy
	return payment.ID, nil
}

func (f *fakePaymentRepository) GetByID(_ context.Context, paymentID int64) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	payment, ok := f.payments[paymentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *payment
	return &copy, nil
}

func (f *fakePaymentRepository) GetBySubscriptionID(_ context.Context, subscriptionID string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, payment := range f.payments {
		if payment.SubscriptionID != nil && *payment.SubscriptionID == subscriptionID {
			copy := *payment
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakePaymentRepository) MarkSuccessful(_ context.Context, paymentID int64, subscriptionID string, period domain.BillingPeriod) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	payment, ok := f.payments[paymentID]
	if !ok {
		return repository.ErrNotFound
	}
	payment.Status = domain.PaymentStatusSuccessful
	sub := subscriptionID
	payment.SubscriptionID = &sub
	start, end, next := period.Start, period.End, period.NextPayment
	payment.PeriodStart = &start
	payment.PeriodEnd = &end
	payment.NextPaymentDate = &next
	return nil
}

func (f *fakePaymentRepository) RollPeriod(_ context.Context, paymentID int64, period domain.BillingPeriod) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	payment, ok := f.payments[paymentID]
	if !ok {
		return repository.ErrNotFound
	}
	start, end, next := period.Start, period.End, period.NextPayment
	payment.PeriodStart = &start
	payment.PeriodEnd = &end
	payment.NextPaymentDate = &next
	return nil
}

func (f *fakePaymentRepository) Cancel(_ context.Context, paymentID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	payment, ok := f.payments[paymentID]
	if !ok {
		return repository.ErrNotFound
	}
	payment.Status = domain.PaymentStatusCancelled
	return nil
}

func (f *fakePaymentRepository) SetPaymentsURL(_ context.Context, paymentID int64, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	payment, ok := f.payments[paymentID]
	if !ok {
		return repository.ErrNotFound
	}
	u := url
	payment.PaymentsURL = &u
	return nil
}

func (f *fakePaymentRepository) ListAutoRenewing(_ context.Context, profileID string, excludePaymentID int64) ([]domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]domain.Payment, 0)
	for _, payment := range f.payments {
		if payment.ProfileID != profileID || payment.ID == excludePaymentID {
			continue
		}
		if !payment.AutoRenews() {
			continue
		}
		result = append(result, *payment)
	}
	return result, nil
}

func (f *fakePaymentRepository) get(paymentID int64) domain.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.payments[paymentID]
}

type fakeBillingProvider struct {
	mu sync.Mutex

	checkoutURL string
	checkoutErr error
	period      domain.BillingPeriod
	periodErr   error
	disableErr  error
	event       domain.WebhookEvent
	verifyErr   error

	disabled  []string
	checkouts []port.CheckoutParams
}

func (f *fakeBillingProvider) CreateCheckoutSession(_ context.Context, params port.CheckoutParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.checkouts = append(f.checkouts, params)
	if f.checkoutErr != nil {
		return "", f.checkoutErr
	}
	return f.checkoutURL, nil
}

func (f *fakeBillingProvider) GetBillingPeriod(_ context.Context, _ string) (domain.BillingPeriod, error) {
	if f.periodErr != nil {
		return domain.BillingPeriod{}, f.periodErr
	}
	return f.period, nil
}

func (f *fakeBillingProvider) DisableAutoRenewal(_ context.Context, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disabled = append(f.disabled, subscriptionID)
	return f.disableErr
}

func (f *fakeBillingProvider) VerifyWebhook(_ []byte, _ string) (domain.WebhookEvent, error) {
	if f.verifyErr != nil {
		return domain.WebhookEvent{}, f.verifyErr
	}
	return f.event, nil
}

type rpcCall struct {
	pattern string
	timeout time.Duration
}

type fakeRPCClient struct {
	mu    sync.Mutex
	reply []byte
	err   error
	calls []rpcCall
}

func (f *fakeRPCClient) Request(_ context.Context, pattern string, _ any, timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, rpcCall{pattern: pattern, timeout: timeout})
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

type fakePostRepository struct {
	mu    sync.Mutex
	posts map[string]*domain.Post
}

func newFakePostRepository(posts ...domain.Post) *fakePostRepository {
	repo := &fakePostRepository{posts: make(map[string]*domain.Post)}
	for i := range posts {
		copy := posts[i]
		repo.posts[copy.ID] = &copy
	}
	return repo
}

func (f *fakePostRepository) Create(_ context.Context, post domain.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	copy := post
	f.posts[post.ID] = &copy
	return nil
}

func (f *fakePostRepository) GetByID(_ context.Context, postID string) (*domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	post, ok := f.posts[postID]
	if !ok || post.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	copy := *post
	return &copy, nil
}

func (f *fakePostRepository) ListByAuthor(_ context.Context, authorID string, _ int) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]domain.Post, 0)
	for _, post := range f.posts {
		if post.AuthorID == authorID && post.DeletedAt == nil {
			result = append(result, *post)
		}
	}
	return result, nil
}

func (f *fakePostRepository) Delete(_ context.Context, authorID, postID string, deletedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	post, ok := f.posts[postID]
	if !ok || post.DeletedAt != nil || post.AuthorID != authorID {
		return repository.ErrNotFound
	}
	at := deletedAt
	post.DeletedAt = &at
	return nil
}

func (f *fakePostRepository) AttachFile(_ context.Context, postID, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	post, ok := f.posts[postID]
	if !ok || post.DeletedAt != nil {
		return repository.ErrNotFound
	}
	for _, existing := range post.FileIDs {
		if existing == fileID {
			return nil
		}
	}
	post.FileIDs = append(post.FileIDs, fileID)
	return nil
}

func (f *fakePostRepository) DetachFile(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, post := range f.posts {
		kept := post.FileIDs[:0]
		for _, existing := range post.FileIDs {
			if existing != fileID {
				kept = append(kept, existing)
			}
		}
		post.FileIDs = kept
	}
	return nil
}
