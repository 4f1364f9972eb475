// Package campaign publishes the post backlog across the account roster via
// the Graph API, honoring per-post repeat cycles and the configured
// concurrency limit.
package campaign

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/threadcast/threadcast/internal/models"
	"github.com/threadcast/threadcast/internal/results"
	"github.com/threadcast/threadcast/internal/store"
	"github.com/threadcast/threadcast/internal/threads"
)

// Poster is the Graph API surface the executor needs.
type Poster interface {
	PostText(ctx context.Context, creds threads.Credentials, text string) (string, error)
	PostImage(ctx context.Context, creds threads.Credentials, text, imageURL string) (string, error)
	PostImageCarousel(ctx context.Context, creds threads.Credentials, text string, imageURLs []string) (string, error)
	PostVideo(ctx context.Context, creds threads.Credentials, text, videoURL string) (string, error)
	PostMixedCarousel(ctx context.Context, creds threads.Credentials, text string, items []models.MediaItem) (string, error)
	ResolvePermalink(ctx context.Context, creds threads.Credentials, postID string) (string, error)
	CheckProxyIP(ctx context.Context, proxy models.Proxy) (string, error)
}

// ResultSink collects per-attempt outcomes. Flush is called at every cycle
// boundary so a crash loses at most one cycle of results.
type ResultSink interface {
	Record(result results.Result)
	Flush() error
}

// ProgressFunc observes cycle completions.
type ProgressFunc func(postID string, done, total int)

var repeatIntervalUnit = time.Minute

// Executor runs the post backlog once: every post that still needs work gets
// its remaining repeat cycles, each cycle posting through every selected
// account.
type Executor struct {
	store    *store.Store
	poster   Poster
	sink     ResultSink
	logger   *slog.Logger
	progress ProgressFunc
}

// NewExecutor wires the executor. progress may be nil.
func NewExecutor(st *store.Store, poster Poster, sink ResultSink, progress ProgressFunc, logger *slog.Logger) *Executor {
	return &Executor{
		store:    st,
		poster:   poster,
		sink:     sink,
		logger:   logger,
		progress: progress,
	}
}

// Run executes the backlog in order. Posts and results are persisted at cycle
// boundaries only, so an interrupted cycle is repeated in full on the next
// run rather than half-applied. The final sweep drops soft-deleted posts.
func (e *Executor) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("campaign run panicked: %v", r)
			e.logger.Error("campaign run panicked", "panic", r)
		}
		if finErr := e.finalize(); finErr != nil && err == nil {
			err = finErr
		}
	}()

	settings, err := e.store.LoadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	posts, err := e.store.LoadPosts()
	if err != nil {
		return fmt.Errorf("load posts: %w", err)
	}
	accounts, err := e.store.LoadAccounts()
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	selected := selectedAccounts(accounts)
	if len(selected) == 0 {
		return fmt.Errorf("no accounts selected for posting")
	}

	ranPost := false
	for i := range posts {
		if !posts[i].NeedsWork() {
			continue
		}
		if ranPost && settings.RepeatEnabled() {
			wait := time.Duration(settings.RepeatIntervalMinutes) * repeatIntervalUnit
			e.logger.Info("waiting before next post", "wait", wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
		}
		if err := e.runPost(ctx, &posts[i], selected, settings, posts); err != nil {
			return err
		}
		ranPost = true
	}
	return nil
}

func (e *Executor) runPost(ctx context.Context, post *models.Post, accounts []models.Account, settings models.CampaignSettings, all []models.Post) error {
	// With repetition disabled every post runs exactly one cycle, whatever
	// its configured repeat count.
	total := post.RepeatCount
	if total < 1 || !settings.RepeatEnabled() {
		total = 1
	}

	post.Status = models.PostStatusRunning
	for cycle := post.RepeatProgress; cycle < total; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.runCycle(ctx, post, accounts, settings.ConcurrencyLimit)

		if err := ctx.Err(); err != nil {
			// The cycle was cut short; leave progress untouched so it
			// reruns in full next time.
			return err
		}

		post.RepeatProgress = cycle + 1
		post.StatusLabel = fmt.Sprintf("%d/%d posted", cycle+1, total)
		if err := e.store.SavePosts(all); err != nil {
			return fmt.Errorf("persist cycle progress: %w", err)
		}
		if err := e.sink.Flush(); err != nil {
			e.logger.Warn("failed to flush results", "post", post.Title, "error", err)
		}
		if e.progress != nil {
			e.progress(post.ID, cycle+1, total)
		}

		if cycle+1 < total && settings.RepeatEnabled() {
			wait := time.Duration(settings.RepeatIntervalMinutes) * repeatIntervalUnit
			e.logger.Info("waiting before next cycle",
				"post", post.Title, "wait", wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
		}
	}

	post.Status = models.PostStatusCompleted
	post.StatusLabel = "done"
	post.RepeatProgress = 0
	if settings.AutoDeleteCompleted {
		post.Deleted = true
	}
	if err := e.store.SavePosts(all); err != nil {
		return fmt.Errorf("persist post completion: %w", err)
	}
	return nil
}

// runCycle posts once through every account. With a limit of 1 the accounts
// run strictly in roster order; otherwise they run in bounded parallel.
// Individual account failures are recorded, never propagated: one bad account
// must not stall the rest of the cycle.
func (e *Executor) runCycle(ctx context.Context, post *models.Post, accounts []models.Account, limit int) {
	if limit <= 1 {
		for _, acct := range accounts {
			if ctx.Err() != nil {
				return
			}
			e.sink.Record(e.postAs(ctx, acct, post))
		}
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	resultCh := make(chan results.Result, len(accounts))
	for _, acct := range accounts {
		acct := acct
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			resultCh <- e.postAs(gctx, acct, post)
			return nil
		})
	}
	_ = g.Wait()
	close(resultCh)
	for res := range resultCh {
		e.sink.Record(res)
	}
}

// postAs publishes the post through one account and reports the outcome,
// mirroring it onto the roster so the panel shows which account a cycle is
// working through.
func (e *Executor) postAs(ctx context.Context, acct models.Account, post *models.Post) results.Result {
	e.setAccountStatus(acct.ID, models.AccountStatusRunning, "posting")

	res := e.attempt(ctx, acct, post)
	if res.Succeeded {
		e.setAccountStatus(acct.ID, models.AccountStatusCompleted, "posted")
	} else {
		e.setAccountStatus(acct.ID, models.AccountStatusFailed, res.Message)
	}
	return res
}

func (e *Executor) attempt(ctx context.Context, acct models.Account, post *models.Post) results.Result {
	res := results.Result{
		PostID:      post.ID,
		PostTitle:   post.Title,
		AccountID:   acct.ID,
		AccountName: acct.DisplayName(),
		Timestamp:   time.Now(),
	}

	if !acct.HasAPICredentials() {
		res.Message = "missing API credentials"
		return res
	}

	creds := threads.Credentials{
		UserID: acct.APIIdentity,
		Token:  acct.APIToken,
		Proxy:  acct.Proxy,
	}

	if acct.Proxy.IsConfigured() {
		ip, err := e.poster.CheckProxyIP(ctx, acct.Proxy)
		if err != nil {
			res.Message = fmt.Sprintf("proxy check failed: %v", err)
			return res
		}
		if ip != acct.Proxy.Host {
			res.Message = fmt.Sprintf("proxy exit IP %s does not match configured %s", ip, acct.Proxy.Host)
			e.logger.Warn("proxy mismatch, account skipped",
				"account", acct.DisplayName(), "got", ip, "want", acct.Proxy.Host)
			return res
		}
	}

	postID, err := e.dispatch(ctx, creds, post)
	if err != nil {
		res.Message = err.Error()
		e.logger.Warn("post attempt failed",
			"account", acct.DisplayName(), "post", post.Title, "error", err)
		return res
	}

	res.Succeeded = true
	res.RemoteID = postID
	res.Permalink = e.permalink(ctx, creds, postID)
	e.logger.Info("post published",
		"account", acct.DisplayName(), "post", post.Title, "remote_id", postID)
	return res
}

func (e *Executor) dispatch(ctx context.Context, creds threads.Credentials, post *models.Post) (string, error) {
	content := post.Content
	switch content.Kind {
	case models.ContentText:
		return e.poster.PostText(ctx, creds, post.Body)
	case models.ContentImage:
		return e.poster.PostImage(ctx, creds, post.Body, content.ImageURL)
	case models.ContentImageCarousel:
		return e.poster.PostImageCarousel(ctx, creds, post.Body, content.ImageURLs)
	case models.ContentVideo:
		return e.poster.PostVideo(ctx, creds, post.Body, content.VideoURL)
	case models.ContentMixedCarousel:
		return e.poster.PostMixedCarousel(ctx, creds, post.Body, content.Items)
	default:
		return "", fmt.Errorf("post has unknown content kind %q", content.Kind)
	}
}

func (e *Executor) permalink(ctx context.Context, creds threads.Credentials, postID string) string {
	link, err := e.poster.ResolvePermalink(ctx, creds, postID)
	if err != nil {
		e.logger.Debug("permalink lookup failed, using fallback",
			"remote_id", postID, "error", err)
		return threads.FallbackPermalink(postID)
	}
	return link
}

// setAccountStatus updates the roster entry for the account. Best effort: a
// failed status write never aborts the cycle.
func (e *Executor) setAccountStatus(accountID string, status models.AccountStatus, label string) {
	accounts, err := e.store.LoadAccounts()
	if err != nil {
		e.logger.Warn("failed to load accounts for status update",
			"account_id", accountID, "error", err)
		return
	}
	for i := range accounts {
		if accounts[i].ID == accountID {
			accounts[i].SetStatus(status, label)
			break
		}
	}
	if err := e.store.SaveAccounts(accounts); err != nil {
		e.logger.Warn("failed to save account status",
			"account_id", accountID, "error", err)
	}
}

// finalize sweeps soft-deleted posts out of the backlog. It runs even when
// the campaign aborts so a deleted post never resurfaces.
func (e *Executor) finalize() error {
	posts, err := e.store.LoadPosts()
	if err != nil {
		return fmt.Errorf("load posts for sweep: %w", err)
	}

	kept := posts[:0]
	removed := 0
	for _, p := range posts {
		if p.Deleted {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	if removed == 0 {
		return nil
	}

	if err := e.store.SavePosts(kept); err != nil {
		return fmt.Errorf("persist swept posts: %w", err)
	}
	e.logger.Info("swept deleted posts", "removed", removed)
	return nil
}

func selectedAccounts(accounts []models.Account) []models.Account {
	out := make([]models.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.Selected {
			out = append(out, a)
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
