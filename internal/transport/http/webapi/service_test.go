package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"autopost-server-go/internal/domain/account"
	"autopost-server-go/internal/domain/challenge"
	"autopost-server-go/internal/domain/eventbus"
	"autopost-server-go/internal/domain/generation"
	"autopost-server-go/internal/domain/media"
	"autopost-server-go/internal/domain/publish"
	"autopost-server-go/internal/domain/session"
	sessionstore "autopost-server-go/internal/domain/session/store"
	"autopost-server-go/internal/domain/social"
	"autopost-server-go/internal/domain/task"
	"autopost-server-go/internal/platform/config"
	"autopost-server-go/internal/platform/logging"
	"autopost-server-go/internal/platform/storage"
	httptransport "autopost-server-go/internal/transport/http"
)

type stubClient struct {
	challengeFor map[string]bool
}

func (f *stubClient) Authenticate(_ context.Context, username, password string) (*social.Session, *social.Challenge, error) {
	if f.challengeFor[username] {
		return nil, &social.Challenge{Username: username, Token: "ch"}, nil
	}
	if password == "" {
		return nil, nil, fmt.Errorf("bad credentials")
	}
	return &social.Session{Username: username, Token: "tok"}, nil, nil
}

func (f *stubClient) Resume(_ context.Context, state []byte) (*social.Session, error) {
	return nil, social.ErrSessionExpired
}

func (f *stubClient) Export(sess *social.Session) ([]byte, error) {
	return json.Marshal(sess)
}

func (f *stubClient) VerifyChallenge(_ context.Context, ch *social.Challenge, code string) (*social.Session, error) {
	if code != "123456" {
		return nil, fmt.Errorf("wrong code")
	}
	return &social.Session{Username: ch.Username, Token: "verified"}, nil
}

func (f *stubClient) Publish(_ context.Context, sess *social.Session, post social.Post) (string, error) {
	return "media-" + sess.Username, nil
}

func (f *stubClient) AccountInfo(_ context.Context, _ *social.Session, username string) (*social.AccountInfo, error) {
	return &social.AccountInfo{Username: username, Followers: 42, Posts: 7}, nil
}

func (f *stubClient) UserMedias(_ context.Context, _ *social.Session, username string, amount int) ([]social.Media, error) {
	return []social.Media{
		{ID: "m1", Likes: 3, Views: 20, Comments: 1},
		{ID: "m2", Likes: 5, Comments: 2},
	}, nil
}

func (f *stubClient) MediaInfo(_ context.Context, _ *social.Session, mediaID string) (*social.Media, error) {
	return &social.Media{ID: mediaID, Likes: 9}, nil
}

func (f *stubClient) MediaComments(_ context.Context, _ *social.Session, mediaID string, amount int) ([]social.Comment, error) {
	return []social.Comment{{ID: "c1", Text: "nice"}}, nil
}

func (f *stubClient) Comment(_ context.Context, _ *social.Session, mediaID, text string) (string, error) {
	return "c-new", nil
}

func (f *stubClient) ReplyComment(_ context.Context, _ *social.Session, mediaID, commentID, text string) (string, error) {
	return "c-reply", nil
}

type stubGenerator struct {
	dir *media.Dir
}

func (g *stubGenerator) Run(_ context.Context, topic string) (*generation.Result, error) {
	art, err := g.dir.Write([]byte("img"), "jpg")
	if err != nil {
		return nil, err
	}
	return &generation.Result{
		Description: generation.TextResult{Text: "d"},
		Caption:     generation.TextResult{Text: "c"},
		Artifact:    art,
	}, nil
}

type harness struct {
	engine     *gin.Engine
	cfg        *config.Config
	accounts   *account.Repository
	registry   *challenge.Registry
	dispatcher *task.Dispatcher
	client     *stubClient
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, err := logging.New(logging.Config{Level: "error", Dir: t.TempDir(), Filename: "test.log"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })

	cfg := config.DefaultConfig()
	cfg.Server.Token = "test-token"
	cfg.Server.JWTSecret = "test-secret"

	db, err := storage.OpenTestDatabase()
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	repo := account.NewRepository(db)

	client := &stubClient{challengeFor: map[string]bool{}}
	registry := challenge.NewRegistry()
	sessions := sessionstore.NewMemory()
	manager := session.NewManager(client, sessions, registry, logger)
	verifier := challenge.NewVerifier(client, registry, sessions, logger)

	dir, err := media.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("new dir: %v", err)
	}
	fixedNow := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	orch := publish.NewOrchestrator(repo, manager, &stubGenerator{dir: dir}, client,
		dir, eventbus.New(), logger, publish.Options{Now: func() time.Time { return fixedNow }})
	dispatcher := task.NewDispatcher(logger)

	svc, err := NewService(Dependencies{
		Config:       cfg,
		Logger:       logger,
		Accounts:     repo,
		Sessions:     manager,
		Registry:     registry,
		Verifier:     verifier,
		Client:       client,
		Orchestrator: orch,
		Dispatcher:   dispatcher,
		MediaDir:     dir,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	router, err := httptransport.Build(httptransport.Options{
		Config:         cfg,
		Logger:         logger,
		AuthMiddleware: svc.AuthMiddleware(),
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	if err := svc.Register(context.Background(), router.API, router.Secured); err != nil {
		t.Fatalf("register: %v", err)
	}

	return &harness{
		engine:     router.Engine,
		cfg:        cfg,
		accounts:   repo,
		registry:   registry,
		dispatcher: dispatcher,
		client:     client,
	}
}

func (h *harness) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("AuthorToken", h.cfg.Server.Token)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/accounts", nil, false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without token = %d", rec.Code)
	}

	rec = h.do(t, http.MethodGet, "/api/accounts", nil, true)
	if rec.Code != http.StatusOK {
		t.Errorf("with token = %d: %s", rec.Code, rec.Body)
	}
}

func TestAccountAddAndList(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/accounts", account.Input{
		Username:  "alice",
		Password:  "pw",
		StartTime: "09:00",
		Interval:  "1:00",
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("add = %d: %s", rec.Code, rec.Body)
	}

	rec = h.do(t, http.MethodGet, "/api/accounts", nil, true)
	var resp struct {
		Data []accountView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Username != "alice" {
		t.Errorf("list = %+v", resp.Data)
	}
	if resp.Data[0].IntervalMinutes != 60 {
		t.Errorf("interval = %d", resp.Data[0].IntervalMinutes)
	}
}

func TestAccountAddRejectsBadSchedule(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/accounts", account.Input{
		Username:  "alice",
		Password:  "pw",
		StartTime: "09:00",
		Interval:  "0:00",
	}, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("add = %d", rec.Code)
	}
}

func TestLoginIssuesToken(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/login", loginRequest{Username: "alice", Password: "pw"}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data.Token == "" {
		t.Fatal("no token issued")
	}

	// The JWT works for secured routes.
	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Data.Token)
	rec2 := httptest.NewRecorder()
	h.engine.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Errorf("jwt request = %d", rec2.Code)
	}
}

func TestLoginChallengeFlow(t *testing.T) {
	h := newHarness(t)
	h.client.challengeFor["bob"] = true

	rec := h.do(t, http.MethodPost, "/api/login", loginRequest{Username: "bob", Password: "pw"}, false)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("login = %d: %s", rec.Code, rec.Body)
	}
	if _, ok := h.registry.Resolve("bob"); !ok {
		t.Fatal("challenge not registered")
	}

	rec = h.do(t, http.MethodPost, "/api/verify", verifyRequest{Username: "bob", Code: "999999"}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad code = %d", rec.Code)
	}

	rec = h.do(t, http.MethodPost, "/api/verify", verifyRequest{Username: "bob", Code: "123456"}, false)
	if rec.Code != http.StatusOK {
		t.Errorf("verify = %d: %s", rec.Code, rec.Body)
	}
}

func TestVerifyWithoutPendingChallenge(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/verify", verifyRequest{Username: "ghost", Code: "123456"}, false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("verify = %d", rec.Code)
	}
}

func TestPublishRunAndResults(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/publish/results", nil, true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("results before cycle = %d", rec.Code)
	}

	h.do(t, http.MethodPost, "/api/accounts", account.Input{
		Username:  "alice",
		Password:  "pw",
		StartTime: "09:00",
		Interval:  "1:00",
	}, true)

	rec = h.do(t, http.MethodPost, "/api/publish/run", nil, true)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("run = %d: %s", rec.Code, rec.Body)
	}
	h.dispatcher.Wait()

	rec = h.do(t, http.MethodGet, "/api/publish/results", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("results = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Data publish.CycleResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data.Results) != 1 || resp.Data.Results[0].Status != publish.StatusPublished {
		t.Errorf("cycle = %+v", resp.Data)
	}
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/api/accounts", account.Input{
		Username:  "alice",
		Password:  "pw",
		StartTime: "09:00",
		Interval:  "1:00",
	}, true)

	rec := h.do(t, http.MethodPost, "/api/stats", statsRequest{Username: "alice"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Data struct {
			TotalLikes    int `json:"total_likes"`
			TotalViews    int `json:"total_views"`
			TotalComments int `json:"total_comments"`
			TotalPosts    int `json:"total_posts"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data.TotalLikes != 8 {
		t.Errorf("total likes = %d, want 8", resp.Data.TotalLikes)
	}
	if resp.Data.TotalViews != 20 {
		t.Errorf("total views = %d, want 20", resp.Data.TotalViews)
	}
	if resp.Data.TotalComments != 3 {
		t.Errorf("total comments = %d, want 3", resp.Data.TotalComments)
	}
	if resp.Data.TotalPosts != 2 {
		t.Errorf("total posts = %d, want 2", resp.Data.TotalPosts)
	}
}

func TestDashboardAggregates(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/api/accounts", account.Input{
		Username:  "alice",
		Password:  "pw",
		StartTime: "09:00",
		Interval:  "1:00",
	}, true)

	rec := h.do(t, http.MethodPost, "/api/dashboard", dashboardRequest{Username: "alice"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Data struct {
			TotalLikes    int `json:"total_likes"`
			TotalComments int `json:"total_comments"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data.TotalLikes != 8 || resp.Data.TotalComments != 3 {
		t.Errorf("totals = %+v", resp.Data)
	}
}

func TestImageProxyRejectsRelativeURL(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/image/not-a-url", nil, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("proxy = %d", rec.Code)
	}
}

func TestAuthTokenRoundTrip(t *testing.T) {
	at := NewAuthToken("secret")
	token, err := at.GenerateToken("alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	ok, username, err := at.VerifyToken(token)
	if err != nil || !ok || username != "alice" {
		t.Fatalf("verify = %v %q %v", ok, username, err)
	}

	other := NewAuthToken("different")
	if ok, _, _ := other.VerifyToken(token); ok {
		t.Error("token verified with wrong secret")
	}
}
