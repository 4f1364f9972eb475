package browser

import (
	"context"
	"io"
	"testing"

	"log/slog"

	"github.com/threadcast/threadcast/internal/models"
)

type fakeSession struct {
	closed bool
}

func (f *fakeSession) IsLoginRequired(ctx context.Context) (bool, error) { return false, nil }
func (f *fakeSession) Login(ctx context.Context) error                   { return nil }
func (f *fakeSession) Search(ctx context.Context, query string) error    { return nil }
func (f *fakeSession) Seek(ctx context.Context, index int) error         { return nil }
func (f *fakeSession) NextTarget(ctx context.Context) (Target, error)    { return nil, nil }
func (f *fakeSession) Act(ctx context.Context, target Target, kind models.ActionKind, comment string) error {
	return nil
}
func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

type fakeOpener struct {
	opened []*fakeSession
}

func (o *fakeOpener) Open(ctx context.Context, account models.Account) (Session, error) {
	s := &fakeSession{}
	o.opened = append(o.opened, s)
	return s, nil
}

func newTestManager() (*Manager, *fakeOpener) {
	opener := &fakeOpener{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(opener, logger), opener
}

func TestManagerTracksActiveSessions(t *testing.T) {
	m, _ := newTestManager()

	acct := models.Account{ID: "a-1", Username: "alpha"}
	if _, err := m.Open(context.Background(), acct); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	active := m.Active()
	if len(active) != 1 || active[0] != "a-1" {
		t.Fatalf("Active() = %v, want [a-1]", active)
	}

	if err := m.Close("a-1"); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if len(m.Active()) != 0 {
		t.Fatal("expected no active sessions after Close")
	}
}

func TestManagerReopenClosesStaleSession(t *testing.T) {
	m, opener := newTestManager()

	acct := models.Account{ID: "a-1", Username: "alpha"}
	if _, err := m.Open(context.Background(), acct); err != nil {
		t.Fatalf("first Open returned error: %v", err)
	}
	if _, err := m.Open(context.Background(), acct); err != nil {
		t.Fatalf("second Open returned error: %v", err)
	}

	if len(opener.opened) != 2 {
		t.Fatalf("expected 2 sessions opened, got %d", len(opener.opened))
	}
	if !opener.opened[0].closed {
		t.Fatal("expected first session to be closed on reopen")
	}
	if opener.opened[1].closed {
		t.Fatal("second session should still be live")
	}
}

func TestManagerCloseAll(t *testing.T) {
	m, opener := newTestManager()

	for _, id := range []string{"a-1", "a-2", "a-3"} {
		if _, err := m.Open(context.Background(), models.Account{ID: id}); err != nil {
			t.Fatalf("Open(%s) returned error: %v", id, err)
		}
	}

	m.CloseAll()

	if len(m.Active()) != 0 {
		t.Fatal("expected no active sessions after CloseAll")
	}
	for i, s := range opener.opened {
		if !s.closed {
			t.Fatalf("session %d not closed", i)
		}
	}
}

func TestManagerCloseUnknownAccountIsNoop(t *testing.T) {
	m, _ := newTestManager()
	if err := m.Close("missing"); err != nil {
		t.Fatalf("Close of unknown account returned error: %v", err)
	}
}
