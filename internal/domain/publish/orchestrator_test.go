package publish

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"autopost-server-go/internal/domain/account"
	"autopost-server-go/internal/domain/eventbus"
	"autopost-server-go/internal/domain/generation"
	"autopost-server-go/internal/domain/media"
	"autopost-server-go/internal/domain/schedule"
	"autopost-server-go/internal/domain/social"
	"autopost-server-go/internal/platform/errors"
	"autopost-server-go/internal/platform/logging"
)

type fakeLister struct {
	creds []account.Credential
}

func (f *fakeLister) List() ([]account.Credential, error) { return f.creds, nil }

type fakeSessions struct {
	failFor     map[string]error
	obtainCalls int
}

func (f *fakeSessions) Obtain(_ context.Context, username, password string) (*social.Session, error) {
	f.obtainCalls++
	if err, ok := f.failFor[username]; ok {
		return nil, err
	}
	return &social.Session{Username: username, Token: "tok"}, nil
}

type fakeGenerator struct {
	dir      *media.Dir
	fail     bool
	runs     int
	produced []*media.Artifact
}

func (f *fakeGenerator) Run(_ context.Context, topic string) (*generation.Result, error) {
	f.runs++
	if f.fail {
		return nil, fmt.Errorf("generation down")
	}
	art, err := f.dir.Write([]byte("image"), "jpg")
	if err != nil {
		return nil, err
	}
	f.produced = append(f.produced, art)
	return &generation.Result{
		Description: generation.TextResult{Text: "desc"},
		Caption:     generation.TextResult{Text: "caption"},
		Artifact:    art,
	}, nil
}

type fakeUploader struct {
	failFor map[string]bool
	calls   int
}

func (f *fakeUploader) Publish(_ context.Context, sess *social.Session, post social.Post) (string, error) {
	f.calls++
	if f.failFor[sess.Username] {
		return "", fmt.Errorf("upload rejected")
	}
	return "media-" + sess.Username, nil
}

func newTestLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.New(logging.Config{Level: "error", Dir: t.TempDir(), Filename: "test.log"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func dueCred(username string) account.Credential {
	return account.Credential{
		Username:        username,
		Password:        "pw",
		StartTime:       schedule.TimeOfDay{Hour: 9},
		IntervalMinutes: 60,
	}
}

// fixedNow lands exactly one interval after the start time, so every
// dueCred account is due.
var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	orch     *Orchestrator
	sessions *fakeSessions
	gen      *fakeGenerator
	uploader *fakeUploader
	dir      *media.Dir
}

func newFixture(t *testing.T, creds []account.Credential) *fixture {
	t.Helper()
	dir, err := media.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("new dir: %v", err)
	}
	sessions := &fakeSessions{failFor: map[string]error{}}
	gen := &fakeGenerator{dir: dir}
	uploader := &fakeUploader{failFor: map[string]bool{}}
	orch := NewOrchestrator(
		&fakeLister{creds: creds},
		sessions, gen, uploader, dir,
		eventbus.New(), newTestLogger(t),
		Options{Now: func() time.Time { return fixedNow }},
	)
	return &fixture{orch: orch, sessions: sessions, gen: gen, uploader: uploader, dir: dir}
}

func statusOf(t *testing.T, cycle *CycleResult, username string) AccountStatus {
	t.Helper()
	for _, res := range cycle.Results {
		if res.Username == username {
			return res.Status
		}
	}
	t.Fatalf("no result for %s", username)
	return ""
}

func TestRunCycle_PublishesDueAccounts(t *testing.T) {
	f := newFixture(t, []account.Credential{dueCred("alice"), dueCred("bob")})

	cycle, err := f.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if got := statusOf(t, cycle, "alice"); got != StatusPublished {
		t.Errorf("alice = %s", got)
	}
	if got := statusOf(t, cycle, "bob"); got != StatusPublished {
		t.Errorf("bob = %s", got)
	}
	for _, art := range f.gen.produced {
		if _, err := os.Stat(art.Path); !os.IsNotExist(err) {
			t.Errorf("artifact %s not cleaned up", art.Path)
		}
	}
}

func TestRunCycle_SkipsAccountsNotDue(t *testing.T) {
	notDue := dueCred("carol")
	notDue.IntervalMinutes = 45 // 60 elapsed minutes is not a multiple of 45
	f := newFixture(t, []account.Credential{notDue})

	cycle, err := f.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if got := statusOf(t, cycle, "carol"); got != StatusSkipped {
		t.Errorf("carol = %s", got)
	}
	if f.sessions.obtainCalls != 0 {
		t.Errorf("obtain calls = %d, want 0", f.sessions.obtainCalls)
	}
}

func TestRunCycle_FailuresDoNotStopTheWalk(t *testing.T) {
	f := newFixture(t, []account.Credential{dueCred("alice"), dueCred("bob"), dueCred("carol")})
	f.sessions.failFor["bob"] = fmt.Errorf("gateway down")

	cycle, err := f.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if got := statusOf(t, cycle, "bob"); got != StatusAuthFailed {
		t.Errorf("bob = %s", got)
	}
	if got := statusOf(t, cycle, "alice"); got != StatusPublished {
		t.Errorf("alice = %s", got)
	}
	if got := statusOf(t, cycle, "carol"); got != StatusPublished {
		t.Errorf("carol = %s", got)
	}
}

func TestRunCycle_ChallengeReportedAfterGeneration(t *testing.T) {
	f := newFixture(t, []account.Credential{dueCred("alice")})
	f.sessions.failFor["alice"] = errors.New(errors.KindChallenge, "session.login", "verification required")

	cycle, err := f.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if got := statusOf(t, cycle, "alice"); got != StatusChallengeRequired {
		t.Errorf("alice = %s", got)
	}
	if f.gen.runs != 1 {
		t.Errorf("generator ran %d times, want 1", f.gen.runs)
	}
	if len(f.gen.produced) != 1 {
		t.Fatalf("produced = %d artifacts", len(f.gen.produced))
	}
	if _, err := os.Stat(f.gen.produced[0].Path); !os.IsNotExist(err) {
		t.Error("artifact not removed after challenge")
	}
}

func TestRunCycle_GeneratesBeforeSessionStep(t *testing.T) {
	f := newFixture(t, []account.Credential{dueCred("alice")})
	f.sessions.failFor["alice"] = fmt.Errorf("gateway down")

	cycle, err := f.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if got := statusOf(t, cycle, "alice"); got != StatusAuthFailed {
		t.Errorf("alice = %s", got)
	}
	if f.gen.runs != 1 {
		t.Errorf("generator ran %d times, want 1", f.gen.runs)
	}
	if len(f.gen.produced) != 1 {
		t.Fatalf("produced = %d artifacts", len(f.gen.produced))
	}
	if _, err := os.Stat(f.gen.produced[0].Path); !os.IsNotExist(err) {
		t.Error("artifact not removed after auth failure")
	}
}

func TestRunCycle_GenerationFailure(t *testing.T) {
	f := newFixture(t, []account.Credential{dueCred("alice")})
	f.gen.fail = true

	cycle, err := f.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if got := statusOf(t, cycle, "alice"); got != StatusGenerationFailed {
		t.Errorf("alice = %s", got)
	}
	if f.sessions.obtainCalls != 0 {
		t.Errorf("obtain calls = %d, want 0", f.sessions.obtainCalls)
	}
	if f.uploader.calls != 0 {
		t.Errorf("uploader called %d times, want 0", f.uploader.calls)
	}
}

func TestRunCycle_UploadFailureStillCleansArtifact(t *testing.T) {
	f := newFixture(t, []account.Credential{dueCred("alice")})
	f.uploader.failFor["alice"] = true

	cycle, err := f.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if got := statusOf(t, cycle, "alice"); got != StatusPublishFailed {
		t.Errorf("alice = %s", got)
	}
	if len(f.gen.produced) != 1 {
		t.Fatalf("produced = %d artifacts", len(f.gen.produced))
	}
	if _, err := os.Stat(f.gen.produced[0].Path); !os.IsNotExist(err) {
		t.Error("artifact not removed after failed upload")
	}
}

func TestRunCycle_InvalidScheduleIsConfigError(t *testing.T) {
	bad := dueCred("alice")
	bad.IntervalMinutes = 0
	f := newFixture(t, []account.Credential{bad, dueCred("bob")})

	cycle, err := f.orch.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if got := statusOf(t, cycle, "alice"); got != StatusConfigError {
		t.Errorf("alice = %s", got)
	}
	if got := statusOf(t, cycle, "bob"); got != StatusPublished {
		t.Errorf("bob = %s", got)
	}
}

func TestLastResult(t *testing.T) {
	f := newFixture(t, []account.Credential{dueCred("alice")})

	if _, ok := f.orch.LastResult(); ok {
		t.Fatal("result before any cycle")
	}
	if _, err := f.orch.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	last, ok := f.orch.LastResult()
	if !ok || len(last.Results) != 1 {
		t.Fatalf("last = %+v, %v", last, ok)
	}
}
