package engage

import (
	"testing"
	"time"

	"github.com/threadcast/threadcast/internal/models"
)

func waitForStatus(t *testing.T, r *Runner, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(r.Running()) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("runner did not reach %d active runs in time", want)
}

func TestRunnerStartRejectsDuplicate(t *testing.T) {
	// A run long enough that it is still active when the duplicate start
	// arrives; StopAll cancels it at the end.
	sup, st, _ := newSupervisorHarness(t, &stubSession{targets: makeTargets(100000)})
	runner := NewRunner(sup, st, discardLogger())
	defer runner.StopAll()

	acct := models.Account{ID: "a-1", Username: "alpha"}
	if err := runner.Start(acct, baseParams(100000)); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := runner.Start(acct, baseParams(100000)); err == nil {
		t.Fatal("expected duplicate start to be rejected")
	}
}

func TestRunnerMarksCompletion(t *testing.T) {
	sup, st, _ := newSupervisorHarness(t, &stubSession{targets: makeTargets(2)})
	runner := NewRunner(sup, st, discardLogger())

	accounts, err := st.LoadAccounts()
	if err != nil {
		t.Fatalf("LoadAccounts returned error: %v", err)
	}
	acct := accounts[0]

	if err := runner.Start(acct, baseParams(2)); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitForStatus(t, runner, 0)

	accounts, _ = st.LoadAccounts()
	if accounts[0].Status != models.AccountStatusCompleted {
		t.Fatalf("account status = %q, want completed", accounts[0].Status)
	}
}

func TestRunnerStopAllCancelsRuns(t *testing.T) {
	// Sessions that never run out of targets keep the run alive until the
	// operator stops it.
	sup, st, _ := newSupervisorHarness(t, &stubSession{targets: makeTargets(100000)})
	runner := NewRunner(sup, st, discardLogger())

	accounts, err := st.LoadAccounts()
	if err != nil {
		t.Fatalf("LoadAccounts returned error: %v", err)
	}
	acct := accounts[0]

	params := baseParams(100000)
	if err := runner.Start(acct, params); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	waitForStatus(t, runner, 1)

	runner.StopAll()

	if n := len(runner.Running()); n != 0 {
		t.Fatalf("expected no active runs after StopAll, got %d", n)
	}
	accounts, _ = st.LoadAccounts()
	if accounts[0].Status != models.AccountStatusIdle {
		t.Fatalf("account status = %q, want idle after stop", accounts[0].Status)
	}
}

func TestRunnerStopOneKeepsBatchRunning(t *testing.T) {
	sup, st, _ := newSupervisorHarness(t,
		&stubSession{targets: makeTargets(100000)},
		&stubSession{targets: makeTargets(100000)})
	runner := NewRunner(sup, st, discardLogger())
	defer runner.StopAll()

	accounts, err := st.LoadAccounts()
	if err != nil {
		t.Fatalf("LoadAccounts returned error: %v", err)
	}
	batch := accounts[:2]

	if err := runner.StartAll(batch, baseParams(100000), 2); err != nil {
		t.Fatalf("StartAll returned error: %v", err)
	}
	waitForStatus(t, runner, 2)

	runner.Stop(batch[0].ID)
	waitForStatus(t, runner, 1)

	remaining := runner.Running()
	if len(remaining) != 1 || remaining[0] != batch[1].ID {
		t.Fatalf("running = %v, want [%s]", remaining, batch[1].ID)
	}
}

func TestRunnerStartAllBoundsConcurrency(t *testing.T) {
	sup, st, _ := newSupervisorHarness(t)
	runner := NewRunner(sup, st, discardLogger())

	accounts, err := st.LoadAccounts()
	if err != nil {
		t.Fatalf("LoadAccounts returned error: %v", err)
	}
	batch := accounts[:3]

	if err := runner.StartAll(batch, baseParams(2), 1); err != nil {
		t.Fatalf("StartAll returned error: %v", err)
	}
	waitForStatus(t, runner, 0)

	accounts, _ = st.LoadAccounts()
	for i := 0; i < 3; i++ {
		if accounts[i].Status != models.AccountStatusCompleted {
			t.Fatalf("account %d status = %q, want completed", i, accounts[i].Status)
		}
	}
}
