package campaign

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"log/slog"

	"github.com/threadcast/threadcast/internal/models"
	"github.com/threadcast/threadcast/internal/results"
	"github.com/threadcast/threadcast/internal/store"
	"github.com/threadcast/threadcast/internal/threads"
)

func init() {
	// Keep test runs fast.
	repeatIntervalUnit = time.Millisecond
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePoster records publish attempts and tracks how many run concurrently.
type fakePoster struct {
	mu          sync.Mutex
	attempts    []string // "accountUserID:postKind"
	proxyIP     string
	proxyErr    error
	postErr     error
	delay       time.Duration
	inFlight    int32
	maxInFlight int32
}

func (p *fakePoster) record(creds threads.Credentials, kind string) (string, error) {
	cur := atomic.AddInt32(&p.inFlight, 1)
	defer atomic.AddInt32(&p.inFlight, -1)
	for {
		max := atomic.LoadInt32(&p.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&p.maxInFlight, max, cur) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	p.attempts = append(p.attempts, creds.UserID+":"+kind)
	p.mu.Unlock()

	if p.postErr != nil {
		return "", p.postErr
	}
	return "remote-" + creds.UserID, nil
}

func (p *fakePoster) PostText(ctx context.Context, creds threads.Credentials, text string) (string, error) {
	return p.record(creds, "text")
}
func (p *fakePoster) PostImage(ctx context.Context, creds threads.Credentials, text, imageURL string) (string, error) {
	return p.record(creds, "image")
}
func (p *fakePoster) PostImageCarousel(ctx context.Context, creds threads.Credentials, text string, imageURLs []string) (string, error) {
	return p.record(creds, "carousel")
}
func (p *fakePoster) PostVideo(ctx context.Context, creds threads.Credentials, text, videoURL string) (string, error) {
	return p.record(creds, "video")
}
func (p *fakePoster) PostMixedCarousel(ctx context.Context, creds threads.Credentials, text string, items []models.MediaItem) (string, error) {
	return p.record(creds, "mixed")
}
func (p *fakePoster) ResolvePermalink(ctx context.Context, creds threads.Credentials, postID string) (string, error) {
	return "", fmt.Errorf("lookup disabled")
}
func (p *fakePoster) CheckProxyIP(ctx context.Context, proxy models.Proxy) (string, error) {
	return p.proxyIP, p.proxyErr
}

func (p *fakePoster) attemptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.attempts)
}

// memorySink is an in-memory ResultSink.
type memorySink struct {
	mu      sync.Mutex
	records []results.Result
	flushes int
}

func (s *memorySink) Record(r results.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

func (s *memorySink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *memorySink) failures() []results.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []results.Result
	for _, r := range s.records {
		if !r.Succeeded {
			out = append(out, r)
		}
	}
	return out
}

func apiAccount(n int) models.Account {
	return models.Account{
		ID:          fmt.Sprintf("a-%d", n),
		Username:    fmt.Sprintf("user%d", n),
		APIIdentity: fmt.Sprintf("178%d", n),
		APIToken:    fmt.Sprintf("tok-%d", n),
		Selected:    true,
	}
}

func textPost(id, title string, repeat int) models.Post {
	return models.Post{
		ID:          id,
		Title:       title,
		Body:        "hello world",
		Content:     models.PostContent{Kind: models.ContentText},
		Status:      models.PostStatusWaiting,
		RepeatCount: repeat,
	}
}

type harness struct {
	executor *Executor
	store    *store.Store
	poster   *fakePoster
	sink     *memorySink
	progress []string
}

func newHarness(t *testing.T, accounts []models.Account, posts []models.Post, settings models.CampaignSettings) *harness {
	t.Helper()
	st, err := store.New(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("store.New returned error: %v", err)
	}
	if err := st.SaveAccounts(accounts); err != nil {
		t.Fatalf("seed accounts: %v", err)
	}
	if err := st.SavePosts(posts); err != nil {
		t.Fatalf("seed posts: %v", err)
	}
	if err := st.SaveSettings(settings); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	h := &harness{store: st, poster: &fakePoster{}, sink: &memorySink{}}
	h.executor = NewExecutor(st, h.poster, h.sink, func(postID string, done, total int) {
		h.progress = append(h.progress, fmt.Sprintf("%s:%d/%d", postID, done, total))
	}, discardLogger())
	return h
}

func TestRunSequentialRepeatCycles(t *testing.T) {
	accounts := []models.Account{apiAccount(1), apiAccount(2), apiAccount(3)}
	posts := []models.Post{textPost("p-1", "Launch", 2)}
	settings := models.DefaultCampaignSettings()
	settings.RepeatIntervalMinutes = 1

	h := newHarness(t, accounts, posts, settings)
	if err := h.executor.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// 3 accounts x 2 cycles
	if got := h.poster.attemptCount(); got != 6 {
		t.Fatalf("attempts = %d, want 6", got)
	}
	if len(h.progress) != 2 {
		t.Fatalf("progress events = %v, want 2 entries", h.progress)
	}
	if h.progress[0] != "p-1:1/2" || h.progress[1] != "p-1:2/2" {
		t.Fatalf("unexpected progress %v", h.progress)
	}
	if h.sink.flushes != 2 {
		t.Fatalf("flushes = %d, want one per cycle", h.sink.flushes)
	}

	got, err := h.store.LoadPosts()
	if err != nil {
		t.Fatalf("LoadPosts returned error: %v", err)
	}
	if got[0].Status != models.PostStatusCompleted {
		t.Fatalf("post status = %q, want completed", got[0].Status)
	}
	if got[0].RepeatProgress != 0 {
		t.Fatalf("repeat progress = %d, want reset to 0", got[0].RepeatProgress)
	}
	if got[0].StatusLabel != "done" {
		t.Fatalf("status label = %q, want done", got[0].StatusLabel)
	}
}

func TestRunSingleCycleWhenRepeatDisabled(t *testing.T) {
	accounts := []models.Account{apiAccount(1), apiAccount(2)}
	posts := []models.Post{textPost("p-1", "Once", 3)}
	settings := models.DefaultCampaignSettings() // interval 0, repetition off

	h := newHarness(t, accounts, posts, settings)
	if err := h.executor.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// One cycle through both accounts, the repeat count notwithstanding.
	if got := h.poster.attemptCount(); got != 2 {
		t.Fatalf("attempts = %d, want 2", got)
	}
	if len(h.progress) != 1 || h.progress[0] != "p-1:1/1" {
		t.Fatalf("unexpected progress %v", h.progress)
	}

	got, err := h.store.LoadPosts()
	if err != nil {
		t.Fatalf("LoadPosts returned error: %v", err)
	}
	if got[0].Status != models.PostStatusCompleted {
		t.Fatalf("post status = %q, want completed", got[0].Status)
	}
}

func TestRunWaitsBetweenPosts(t *testing.T) {
	old := repeatIntervalUnit
	repeatIntervalUnit = time.Hour
	defer func() { repeatIntervalUnit = old }()

	accounts := []models.Account{apiAccount(1)}
	posts := []models.Post{
		textPost("p-1", "First", 1),
		textPost("p-2", "Second", 1),
	}
	settings := models.DefaultCampaignSettings()
	settings.RepeatIntervalMinutes = 1

	h := newHarness(t, accounts, posts, settings)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.executor.Run(ctx) }()

	// The first post completes, then the run parks in the interval before the
	// second post.
	deadline := time.Now().Add(2 * time.Second)
	for h.poster.attemptCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if got := h.poster.attemptCount(); got != 1 {
		t.Fatalf("attempts = %d, want 1 while waiting between posts", got)
	}

	cancel()
	if err := <-done; err == nil {
		t.Fatal("expected error from cancelled run")
	}

	got, err := h.store.LoadPosts()
	if err != nil {
		t.Fatalf("LoadPosts returned error: %v", err)
	}
	if got[0].Status != models.PostStatusCompleted {
		t.Fatalf("first post status = %q, want completed", got[0].Status)
	}
	if got[1].Status == models.PostStatusCompleted {
		t.Fatal("second post must not run before the interval elapses")
	}
}

func TestRunReportsAccountOutcomes(t *testing.T) {
	blank := models.Account{ID: "a-0", Username: "blank", Selected: true}
	accounts := []models.Account{blank, apiAccount(1)}
	posts := []models.Post{textPost("p-1", "Roster", 1)}

	h := newHarness(t, accounts, posts, models.DefaultCampaignSettings())
	if err := h.executor.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	got, err := h.store.LoadAccounts()
	if err != nil {
		t.Fatalf("LoadAccounts returned error: %v", err)
	}
	if got[0].Status != models.AccountStatusFailed {
		t.Fatalf("blank account status = %q, want failed", got[0].Status)
	}
	if got[0].StatusLabel != "missing API credentials" {
		t.Fatalf("blank account label = %q", got[0].StatusLabel)
	}
	if got[1].Status != models.AccountStatusCompleted {
		t.Fatalf("posting account status = %q, want completed", got[1].Status)
	}
	if got[1].StatusLabel != "posted" {
		t.Fatalf("posting account label = %q", got[1].StatusLabel)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	accounts := make([]models.Account, 8)
	for i := range accounts {
		accounts[i] = apiAccount(i)
	}
	posts := []models.Post{textPost("p-1", "Wide", 1)}
	settings := models.DefaultCampaignSettings()
	settings.ConcurrencyLimit = 3

	h := newHarness(t, accounts, posts, settings)
	h.poster.delay = 20 * time.Millisecond

	if err := h.executor.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := h.poster.attemptCount(); got != 8 {
		t.Fatalf("attempts = %d, want 8", got)
	}
	if max := atomic.LoadInt32(&h.poster.maxInFlight); max > 3 {
		t.Fatalf("max in-flight = %d, exceeds limit 3", max)
	}
}

func TestRunProxyMismatchFailsAccountWithoutPosting(t *testing.T) {
	withProxy := apiAccount(1)
	withProxy.Proxy = models.Proxy{Host: "203.0.113.7", Port: "8080"}
	accounts := []models.Account{withProxy, apiAccount(2)}
	posts := []models.Post{textPost("p-1", "Checked", 1)}

	h := newHarness(t, accounts, posts, models.DefaultCampaignSettings())
	h.poster.proxyIP = "198.51.100.9" // differs from configured host

	if err := h.executor.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// Only the proxyless account posted.
	if got := h.poster.attemptCount(); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
	failures := h.sink.failures()
	if len(failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(failures))
	}
	if failures[0].AccountID != "a-1" {
		t.Fatalf("failed account = %s, want a-1", failures[0].AccountID)
	}
}

func TestRunSkipsAccountsWithoutCredentials(t *testing.T) {
	blank := models.Account{ID: "a-0", Username: "blank", Selected: true}
	accounts := []models.Account{blank, apiAccount(1)}
	posts := []models.Post{textPost("p-1", "Creds", 1)}

	h := newHarness(t, accounts, posts, models.DefaultCampaignSettings())
	if err := h.executor.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := h.poster.attemptCount(); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
	failures := h.sink.failures()
	if len(failures) != 1 || failures[0].Message != "missing API credentials" {
		t.Fatalf("unexpected failures %v", failures)
	}
}

func TestRunMidCyclePersistsOnlyFullCycles(t *testing.T) {
	accounts := []models.Account{apiAccount(1), apiAccount(2)}
	posts := []models.Post{textPost("p-1", "Interrupted", 3)}
	settings := models.DefaultCampaignSettings()
	settings.RepeatIntervalMinutes = 1

	h := newHarness(t, accounts, posts, settings)
	h.poster.delay = 30 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.executor.Run(ctx) }()

	// Let the first cycle complete and cancel during a later one.
	time.Sleep(70 * time.Millisecond)
	cancel()

	if err := <-done; err == nil {
		t.Fatal("expected error from cancelled run")
	}

	got, err := h.store.LoadPosts()
	if err != nil {
		t.Fatalf("LoadPosts returned error: %v", err)
	}
	// Progress must equal a whole number of completed cycles, never a
	// partial one, and the post must still need work.
	if got[0].RepeatProgress >= 3 {
		t.Fatalf("repeat progress = %d, run should not have finished", got[0].RepeatProgress)
	}
	if got[0].Status == models.PostStatusCompleted {
		t.Fatal("post must not complete after cancellation")
	}
}

func TestRunAutoDeleteSweepsCompletedPosts(t *testing.T) {
	accounts := []models.Account{apiAccount(1)}
	posts := []models.Post{
		textPost("p-1", "Gone", 1),
		textPost("p-2", "Stays", 0),
	}
	posts[1].Status = models.PostStatusCompleted // nothing to do

	settings := models.DefaultCampaignSettings()
	settings.AutoDeleteCompleted = true

	h := newHarness(t, accounts, posts, settings)
	if err := h.executor.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	got, err := h.store.LoadPosts()
	if err != nil {
		t.Fatalf("LoadPosts returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 post after sweep, got %d", len(got))
	}
	if got[0].ID != "p-2" {
		t.Fatalf("surviving post = %s, want p-2", got[0].ID)
	}
}

func TestRunFailedAttemptRecordedAndRunContinues(t *testing.T) {
	accounts := []models.Account{apiAccount(1), apiAccount(2)}
	posts := []models.Post{textPost("p-1", "Flaky", 1)}

	h := newHarness(t, accounts, posts, models.DefaultCampaignSettings())
	h.poster.postErr = fmt.Errorf("rate limited")

	if err := h.executor.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := h.poster.attemptCount(); got != 2 {
		t.Fatalf("attempts = %d, want 2", got)
	}
	if failures := h.sink.failures(); len(failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(failures))
	}

	got, err := h.store.LoadPosts()
	if err != nil {
		t.Fatalf("LoadPosts returned error: %v", err)
	}
	// Attempt failures do not block cycle completion.
	if got[0].Status != models.PostStatusCompleted {
		t.Fatalf("post status = %q, want completed", got[0].Status)
	}
}

func TestRunRequiresSelectedAccounts(t *testing.T) {
	unselected := apiAccount(1)
	unselected.Selected = false

	h := newHarness(t, []models.Account{unselected}, []models.Post{textPost("p-1", "Empty", 1)}, models.DefaultCampaignSettings())
	if err := h.executor.Run(context.Background()); err == nil {
		t.Fatal("expected error when no accounts are selected")
	}
}

func TestFallbackPermalinkUsedWhenLookupFails(t *testing.T) {
	accounts := []models.Account{apiAccount(1)}
	posts := []models.Post{textPost("p-1", "Link", 1)}

	h := newHarness(t, accounts, posts, models.DefaultCampaignSettings())
	if err := h.executor.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	if len(h.sink.records) != 1 {
		t.Fatalf("records = %d, want 1", len(h.sink.records))
	}
	want := threads.FallbackPermalink("remote-1781")
	if h.sink.records[0].Permalink != want {
		t.Fatalf("permalink = %q, want %q", h.sink.records[0].Permalink, want)
	}
}
