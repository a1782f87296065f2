package accounts_test

import (
	"context"
	"html"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dbfixture"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/mailer"
	"github.com/goliatone/go-accounts/persistence"
	"github.com/goliatone/go-accounts/signedlink"
)

const (
	testAppURL  = "http://api.test"
	testSiteURL = "http://site.test"
)

var (
	adaID   = uuid.MustParse("6f1d7a0e-3c1b-4c55-9b7e-1a2b3c4d5e01")
	graceID = uuid.MustParse("6f1d7a0e-3c1b-4c55-9b7e-1a2b3c4d5e02")
	alanID  = uuid.MustParse("6f1d7a0e-3c1b-4c55-9b7e-1a2b3c4d5e03")
)

// MockStatusStore implements accounts.StatusStore
type MockStatusStore struct {
	mock.Mock
}

func (m *MockStatusStore) UpdateStatus(ctx context.Context, id uuid.UUID, status accounts.UserStatus, opts ...accounts.StatusUpdateOption) (*accounts.User, error) {
	args := m.Called(ctx, id, status, opts)
	if u := args.Get(0); u != nil {
		return u.(*accounts.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockMailer implements accounts.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg mailer.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type testConfig struct {
	activationTTL time.Duration
	singleUse     bool
}

func (c testConfig) GetAppURL() string                { return testAppURL }
func (c testConfig) GetSiteURL() string               { return testSiteURL }
func (c testConfig) GetActivationTTL() time.Duration  { return c.activationTTL }
func (c testConfig) GetEmailChangeTTL() time.Duration { return 24 * time.Hour }
func (c testConfig) GetSingleUseLinks() bool          { return c.singleUse }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingObserver keeps every observation
type recordingObserver struct {
	mu      sync.Mutex
	issued  []accounts.LinkKind
	checked []string
	sent    []string
}

func (o *recordingObserver) LinkIssued(kind accounts.LinkKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.issued = append(o.issued, kind)
}

func (o *recordingObserver) LinkChecked(kind accounts.LinkKind, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.checked = append(o.checked, string(kind)+":"+result)
}

func (o *recordingObserver) NotificationDelivered(ch accounts.Channel, typ string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.sent = append(o.sent, string(ch)+":"+typ+":"+result)
}

type testEnv struct {
	db       *bun.DB
	repo     accounts.RepositoryManager
	mail     *mailer.MemoryTransport
	clock    *testClock
	observer *recordingObserver
	links    *accounts.SignedLinks
	notifier *accounts.Notifier
	deps     accounts.Dependencies
	handlers accounts.Handlers
}

type envOption func(*testConfig)

func withSingleUseLinks() envOption {
	return func(c *testConfig) { c.singleUse = true }
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := persistence.Open(ctx, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = accounts.Migrate(ctx, db)
	require.NoError(t, err)

	db.RegisterModel((*accounts.User)(nil), (*accounts.Follow)(nil))
	fixture := dbfixture.New(db)
	require.NoError(t, fixture.Load(ctx, os.DirFS("testdata"), "fixtures.yml"))

	return db
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := testConfig{activationTTL: 24 * time.Hour}
	for _, opt := range opts {
		opt(&cfg)
	}

	db := newTestDB(t)
	clock := &testClock{now: time.Now()}

	signer, err := signedlink.New([]byte("0123456789abcdef0123456789abcdef"), signedlink.WithClock(clock.Now))
	require.NoError(t, err)

	renderer, err := mailer.NewRenderer()
	require.NoError(t, err)

	transport := mailer.NewMemoryTransport()
	observer := &recordingObserver{}
	repo := accounts.NewRepositoryManager(db)
	links := accounts.NewSignedLinks(signer, cfg, accounts.WithLinkObserver(observer))
	notifier := accounts.NewNotifier(repo.Notifications(),
		mailer.New(renderer, transport, "no-reply@example.com"),
		accounts.WithNotifierLogger(accounts.DiscardLogger()),
		accounts.WithNotifierObserver(observer),
	)
	activity := accounts.NewActivityRecorder(repo.Activities())

	deps := accounts.Dependencies{
		Repo:     repo,
		Links:    links,
		Notifier: notifier,
		States:   accounts.NewUserStateMachine(repo.Users(), accounts.WithStateMachineActivitySink(activity)),
		Activity: activity,
		Hasher:   accounts.BcryptHasher{},
		Config:   cfg,
		Logger:   accounts.DiscardLogger(),
	}

	return &testEnv{
		db:       db,
		repo:     repo,
		mail:     transport,
		clock:    clock,
		observer: observer,
		links:    links,
		notifier: notifier,
		deps:     deps,
		handlers: accounts.NewHandlers(deps),
	}
}

func (e *testEnv) user(t *testing.T, id uuid.UUID) *accounts.User {
	t.Helper()
	u, err := e.repo.Users().FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

var hrefRe = regexp.MustCompile(`href="([^"]+)"`)

// mailedLink returns the first link of the last mail sent to address.
func (e *testEnv) mailedLink(t *testing.T, address string) string {
	t.Helper()
	sent := e.mail.SentTo(address)
	require.NotEmpty(t, sent, "no mail sent to %s", address)

	m := hrefRe.FindStringSubmatch(sent[len(sent)-1].HTML)
	require.Len(t, m, 2, "mail has no link")
	return html.UnescapeString(m[1])
}

func rawQueryOf(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.RawQuery
}

// MockActivitySink implements accounts.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event accounts.ActivityEvent) error {
	return m.Called(ctx, event).Error(0)
}
