package browser

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/threadcast/threadcast/internal/config"
	"github.com/threadcast/threadcast/internal/models"
)

const (
	threadsHome   = "https://www.threads.com/"
	threadsLogin  = "https://www.threads.com/login"
	threadsSearch = "https://www.threads.com/search?q="

	selLoginForm    = `input[autocomplete="username"]`
	selPasswordBox  = `input[type="password"]`
	selLoginSubmit  = `div[role="button"]`
	selComposer     = `div[aria-label="Create a thread"]`
	selTargetLink   = `a[href^="/@"]`
	selFollowBtn    = `div[role="button"][aria-label="Follow"]`
	selLikeBtn      = `div[role="button"] svg[aria-label="Like"]`
	selRepostBtn    = `div[role="button"] svg[aria-label="Repost"]`
	selReplyBtn     = `div[role="button"] svg[aria-label="Reply"]`
	selReplyBox     = `div[contenteditable="true"]`
	selReplySubmit  = `div[role="button"][aria-label="Post"]`
	probeTimeout    = 5 * time.Second
	scrollAttempts  = 5
	scrollSettle    = 2 * time.Second
)

type rodOpener struct {
	cfg    config.BrowserConfig
	logger *slog.Logger
}

func newRodOpener(cfg config.BrowserConfig, logger *slog.Logger) *rodOpener {
	return &rodOpener{cfg: cfg, logger: logger}
}

// Open launches Chrome with a per-account profile so cookies survive between
// runs, wires the account proxy in at the browser level, and lands on the
// Threads home page.
func (o *rodOpener) Open(ctx context.Context, account models.Account) (Session, error) {
	profile := filepath.Join(o.cfg.ProfileDir, profileKey(account))

	launch := launcher.New().
		Headless(o.cfg.Headless).
		UserDataDir(profile)
	if account.Proxy.IsConfigured() {
		launch = launch.Proxy(account.Proxy.ServerAddr())
	}

	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	if account.Proxy.Username != "" {
		go func() {
			_ = browser.HandleAuth(account.Proxy.Username, account.Proxy.Password)()
		}()
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: threadsHome})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := page.Timeout(o.cfg.NavTimeout).WaitLoad(); err != nil {
		o.logger.Warn("home page load timed out",
			"account", account.DisplayName(), "error", err)
	}

	return &rodSession{
		browser: browser,
		page:    page,
		account: account,
		cfg:     o.cfg,
		logger:  o.logger,
	}, nil
}

func profileKey(account models.Account) string {
	sum := md5.Sum([]byte(account.Username + ":" + account.Credential))
	return fmt.Sprintf("%x", sum)
}

type rodSession struct {
	browser *rod.Browser
	page    *rod.Page
	account models.Account
	cfg     config.BrowserConfig
	logger  *slog.Logger

	cursor int
}

// IsLoginRequired probes the current page for either the login form or the
// feed composer. Seeing neither is reported as an error so the caller can
// treat an unreadable page however its policy dictates.
func (s *rodSession) IsLoginRequired(ctx context.Context) (bool, error) {
	page := s.page.Context(ctx)

	if has, _, err := page.Timeout(probeTimeout).Has(selLoginForm); err == nil && has {
		return true, nil
	}
	if has, _, err := page.Timeout(probeTimeout).Has(selComposer); err == nil && has {
		return false, nil
	}
	return false, fmt.Errorf("page state is ambiguous for %s", s.account.DisplayName())
}

// Login fills the login form with the account credentials and waits for the
// feed to appear.
func (s *rodSession) Login(ctx context.Context) error {
	page := s.page.Context(ctx)

	if err := page.Timeout(s.cfg.NavTimeout).Navigate(threadsLogin); err != nil {
		return fmt.Errorf("navigate to login: %w", err)
	}

	userBox, err := page.Timeout(s.cfg.NavTimeout).Element(selLoginForm)
	if err != nil {
		return fmt.Errorf("login form not found: %w", err)
	}
	if err := userBox.Input(s.account.Username); err != nil {
		return fmt.Errorf("enter username: %w", err)
	}

	passBox, err := page.Element(selPasswordBox)
	if err != nil {
		return fmt.Errorf("password box not found: %w", err)
	}
	if err := passBox.Input(s.account.Credential); err != nil {
		return fmt.Errorf("enter password: %w", err)
	}
	if err := passBox.Type(input.Enter); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	if _, err := page.Timeout(s.cfg.NavTimeout).Element(selComposer); err != nil {
		return fmt.Errorf("feed did not appear after login: %w", err)
	}

	s.logger.Info("logged in", "account", s.account.DisplayName())
	return nil
}

// Search opens the result feed for the query and resets the scan cursor, so
// NextTarget walks search results instead of the home feed.
func (s *rodSession) Search(ctx context.Context, query string) error {
	page := s.page.Context(ctx)

	if err := page.Timeout(s.cfg.NavTimeout).Navigate(threadsSearch + url.QueryEscape(query)); err != nil {
		return fmt.Errorf("open search for %q: %w", query, err)
	}
	if err := page.Timeout(s.cfg.NavTimeout).WaitLoad(); err != nil {
		return fmt.Errorf("search results for %q did not load: %w", query, err)
	}
	s.cursor = 0
	return nil
}

// Seek fast-forwards the scan cursor so a restarted run does not touch
// targets it already processed.
func (s *rodSession) Seek(ctx context.Context, index int) error {
	if index < 0 {
		return fmt.Errorf("negative seek index %d", index)
	}
	for s.cursor < index {
		if _, err := s.NextTarget(ctx); err != nil {
			return fmt.Errorf("seek to %d: %w", index, err)
		}
	}
	return nil
}

// NextTarget returns the account link under the cursor, scrolling the feed
// until enough links have rendered.
func (s *rodSession) NextTarget(ctx context.Context) (Target, error) {
	page := s.page.Context(ctx)

	for attempt := 0; ; attempt++ {
		els, err := page.Elements(selTargetLink)
		if err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		if s.cursor < len(els) {
			el := els[s.cursor]
			s.cursor++
			return &rodTarget{el: el}, nil
		}
		if attempt >= scrollAttempts {
			return nil, fmt.Errorf("no target at index %d after %d scrolls", s.cursor, attempt)
		}
		if err := page.Mouse.Scroll(0, 1200, 3); err != nil {
			return nil, fmt.Errorf("scroll feed: %w", err)
		}
		if err := sleepCtx(ctx, scrollSettle); err != nil {
			return nil, err
		}
	}
}

// Act performs one engagement action against the target's profile.
func (s *rodSession) Act(ctx context.Context, target Target, kind models.ActionKind, comment string) error {
	handle, err := target.Handle()
	if err != nil {
		return fmt.Errorf("resolve target handle: %w", err)
	}

	page := s.page.Context(ctx)
	if err := page.Timeout(s.cfg.NavTimeout).Navigate(threadsHome + "@" + handle); err != nil {
		return fmt.Errorf("open profile @%s: %w", handle, err)
	}
	if err := page.Timeout(s.cfg.NavTimeout).WaitLoad(); err != nil {
		return fmt.Errorf("profile @%s did not load: %w", handle, err)
	}

	switch kind {
	case models.ActionFollow:
		return s.clickFirst(page, selFollowBtn, "follow", handle)
	case models.ActionLike:
		return s.clickFirst(page, selLikeBtn, "like", handle)
	case models.ActionRepost:
		return s.clickFirst(page, selRepostBtn, "repost", handle)
	case models.ActionComment:
		return s.reply(page, handle, comment)
	default:
		return fmt.Errorf("unknown action kind %q", kind)
	}
}

func (s *rodSession) clickFirst(page *rod.Page, selector, action, handle string) error {
	el, err := page.Timeout(probeTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("%s button not found on @%s: %w", action, handle, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("%s @%s: %w", action, handle, err)
	}
	return nil
}

func (s *rodSession) reply(page *rod.Page, handle, comment string) error {
	if err := s.clickFirst(page, selReplyBtn, "reply", handle); err != nil {
		return err
	}
	box, err := page.Timeout(probeTimeout).Element(selReplyBox)
	if err != nil {
		return fmt.Errorf("reply box not found on @%s: %w", handle, err)
	}
	if err := box.Input(comment); err != nil {
		return fmt.Errorf("enter comment on @%s: %w", handle, err)
	}
	return s.clickFirst(page, selReplySubmit, "post reply", handle)
}

func (s *rodSession) Close() error {
	return s.browser.Close()
}

type rodTarget struct {
	el *rod.Element
}

// Handle extracts the username from the link's href. The element may have
// detached by the time we read it, which surfaces as an error.
func (t *rodTarget) Handle() (string, error) {
	href, err := t.el.Attribute("href")
	if err != nil {
		return "", fmt.Errorf("read target href: %w", err)
	}
	if href == nil || !strings.HasPrefix(*href, "/@") {
		return "", fmt.Errorf("target link has no usable href")
	}
	handle := strings.TrimPrefix(*href, "/@")
	if idx := strings.IndexByte(handle, '/'); idx >= 0 {
		handle = handle[:idx]
	}
	if handle == "" {
		return "", fmt.Errorf("target link resolved to empty handle")
	}
	return handle, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
