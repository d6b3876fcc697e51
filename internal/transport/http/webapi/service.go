// Package webapi exposes the operator-facing HTTP endpoints: account
// management, login and verification, manual publish triggers and media
// queries.
package webapi

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"autopost-server-go/internal/domain/account"
	"autopost-server-go/internal/domain/challenge"
	"autopost-server-go/internal/domain/media"
	"autopost-server-go/internal/domain/publish"
	"autopost-server-go/internal/domain/session"
	"autopost-server-go/internal/domain/social"
	"autopost-server-go/internal/domain/task"
	"autopost-server-go/internal/platform/config"
	"autopost-server-go/internal/platform/errors"
	"autopost-server-go/internal/platform/logging"
	httptransport "autopost-server-go/internal/transport/http"
)

// Service wires HTTP handlers to the domain.
type Service struct {
	config     *config.Config
	logger     *logging.Logger
	accounts   *account.Repository
	sessions   *session.Manager
	registry   *challenge.Registry
	verifier   *challenge.Verifier
	client     social.Client
	orch       *publish.Orchestrator
	dispatcher *task.Dispatcher
	dir        *media.Dir
	token      *AuthToken
	proxy      *http.Client
}

// Dependencies carries everything the service needs.
type Dependencies struct {
	Config       *config.Config
	Logger       *logging.Logger
	Accounts     *account.Repository
	Sessions     *session.Manager
	Registry     *challenge.Registry
	Verifier     *challenge.Verifier
	Client       social.Client
	Orchestrator *publish.Orchestrator
	Dispatcher   *task.Dispatcher
	MediaDir     *media.Dir
}

// NewService creates the WebAPI transport layer.
func NewService(deps Dependencies) (*Service, error) {
	const op errors.Op = "webapi.NewService"
	if deps.Config == nil {
		return nil, errors.New(errors.KindConfig, op, "config is required")
	}
	if deps.Logger == nil {
		return nil, errors.New(errors.KindConfig, op, "logger is required")
	}
	return &Service{
		config:     deps.Config,
		logger:     deps.Logger,
		accounts:   deps.Accounts,
		sessions:   deps.Sessions,
		registry:   deps.Registry,
		verifier:   deps.Verifier,
		client:     deps.Client,
		orch:       deps.Orchestrator,
		dispatcher: deps.Dispatcher,
		dir:        deps.MediaDir,
		token:      NewAuthToken(deps.Config.Server.JWTSecret),
		proxy:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Register mounts the routes. Login and verification stay public; the rest
// requires the operator token.
func (s *Service) Register(ctx context.Context, api, secured *gin.RouterGroup) error {
	api.POST("/login", s.handleLogin)
	api.POST("/verify", s.handleVerify)

	secured.POST("/accounts", s.handleAccountAdd)
	secured.GET("/accounts", s.handleAccountList)
	secured.DELETE("/accounts/:username", s.handleAccountDelete)
	secured.GET("/challenges", s.handleChallengeList)

	secured.POST("/publish/run", s.handlePublishRun)
	secured.GET("/publish/results", s.handlePublishResults)
	secured.POST("/upload", s.handleUpload)

	secured.POST("/stats", s.handleStats)
	secured.POST("/dashboard", s.handleDashboard)

	secured.POST("/media/info", s.handleMediaInfo)
	secured.POST("/media/comments", s.handleMediaComments)
	secured.POST("/media/comment", s.handleComment)
	secured.POST("/media/reply", s.handleReplyComment)

	secured.GET("/image/*url", s.handleImageProxy)

	s.logger.InfoTag("HTTP", "webapi routes registered")
	return nil
}

// AuthMiddleware accepts either the static operator token in AuthorToken
// or a Bearer JWT issued by the login endpoint.
func (s *Service) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apikey := c.GetHeader("AuthorToken")
		if apikey != "" {
			if apikey != s.config.Server.Token {
				httptransport.RespondError(c, http.StatusUnauthorized, "invalid API token", nil)
				c.Abort()
				return
			}
			c.Next()
			return
		}

		token := c.GetHeader("Authorization")
		if strings.HasPrefix(token, "Bearer ") {
			token = token[7:]
		}
		if token == "" {
			httptransport.RespondError(c, http.StatusUnauthorized, "missing auth token", nil)
			c.Abort()
			return
		}
		ok, username, err := s.token.VerifyToken(token)
		if err != nil || !ok {
			httptransport.RespondError(c, http.StatusUnauthorized, "invalid auth token", nil)
			c.Abort()
			return
		}
		c.Set("username", username)
		c.Next()
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password"`
}

func (s *Service) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	sess, err := s.sessions.Obtain(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.IsKind(err, errors.KindChallenge) {
			httptransport.RespondSuccess(c, http.StatusAccepted, gin.H{
				"username":           req.Username,
				"challenge_required": true,
			}, "verification required")
			return
		}
		httptransport.RespondError(c, http.StatusUnauthorized, err.Error(), nil)
		return
	}

	token, err := s.token.GenerateToken(sess.Username)
	if err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, "issue token", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"username": sess.Username,
		"token":    token,
	}, "logged in")
}

type verifyRequest struct {
	Username string `json:"username" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

func (s *Service) handleVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	if err := s.verifier.Verify(c.Request.Context(), req.Username, req.Code); err != nil {
		if stderrors.Is(err, challenge.ErrNoPending) {
			httptransport.RespondError(c, http.StatusNotFound, err.Error(), nil)
			return
		}
		httptransport.RespondError(c, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"username": req.Username}, "verified")
}

func (s *Service) handleAccountAdd(c *gin.Context) {
	var in account.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	cred, err := account.ParseInput(in)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := s.accounts.Upsert(cred); err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"username": cred.Username}, "account saved")
}

type accountView struct {
	Username        string `json:"username"`
	StartTime       string `json:"start_time"`
	IntervalMinutes int    `json:"interval_minutes"`
}

func (s *Service) handleAccountList(c *gin.Context) {
	creds, err := s.accounts.List()
	if err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	views := make([]accountView, 0, len(creds))
	for _, cred := range creds {
		views = append(views, accountView{
			Username:        cred.Username,
			StartTime:       cred.StartTime.String(),
			IntervalMinutes: cred.IntervalMinutes,
		})
	}
	httptransport.RespondSuccess(c, http.StatusOK, views, "")
}

func (s *Service) handleAccountDelete(c *gin.Context) {
	username := c.Param("username")
	if err := s.accounts.Delete(username); err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"username": username}, "account removed")
}

func (s *Service) handleChallengeList(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, s.registry.List(), "")
}

func (s *Service) handlePublishRun(c *gin.Context) {
	err := s.dispatcher.TryGo(context.WithoutCancel(c.Request.Context()), "manual-cycle",
		func(ctx context.Context) {
			if _, err := s.orch.RunCycle(ctx); err != nil {
				s.logger.Error("manual publish cycle failed: %v", err)
			}
		})
	if err != nil {
		httptransport.RespondError(c, http.StatusConflict, err.Error(), nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusAccepted, nil, "publish cycle started")
}

func (s *Service) handlePublishResults(c *gin.Context) {
	last, ok := s.orch.LastResult()
	if !ok {
		httptransport.RespondError(c, http.StatusNotFound, "no cycle has run yet", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, last, "")
}

// handleUpload publishes an operator supplied image immediately, outside
// the scheduled cycles.
func (s *Service) handleUpload(c *gin.Context) {
	username := c.PostForm("username")
	caption := c.PostForm("caption")
	if username == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "username is required", nil)
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "image file is required", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "read image", nil)
		return
	}
	format := strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	if res := media.NewValidator(0).Validate(data, format); !res.IsValid {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid image payload", nil)
		return
	}

	art, err := s.dir.Write(data, format)
	if err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	defer s.dir.Remove(art)

	cred, err := s.accounts.Get(username)
	if err != nil {
		httptransport.RespondError(c, http.StatusNotFound, err.Error(), nil)
		return
	}
	sess, err := s.sessions.Obtain(c.Request.Context(), cred.Username, cred.Password)
	if err != nil {
		httptransport.RespondError(c, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	mediaID, err := s.client.Publish(c.Request.Context(), sess, social.Post{
		Caption:   caption,
		ImagePath: art.Path,
	})
	if err != nil {
		httptransport.RespondError(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"media_id": mediaID}, "published")
}

type statsRequest struct {
	Username string `json:"username" binding:"required"`
	Target   string `json:"target"`
}

// statsMediaAmount bounds how many recent medias the totals cover.
const statsMediaAmount = 50

func (s *Service) handleStats(c *gin.Context) {
	var req statsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	target := req.Target
	if target == "" {
		target = req.Username
	}

	sess, err := s.obtainFor(c, req.Username)
	if err != nil {
		return
	}
	medias, err := s.client.UserMedias(c.Request.Context(), sess, target, statsMediaAmount)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	totalLikes, totalViews, totalComments := 0, 0, 0
	for _, m := range medias {
		totalLikes += m.Likes
		totalViews += m.Views
		totalComments += m.Comments
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"total_likes":    totalLikes,
		"total_views":    totalViews,
		"total_comments": totalComments,
		"total_posts":    len(medias),
	}, "")
}

type dashboardRequest struct {
	Username string `json:"username" binding:"required"`
	Amount   int    `json:"amount"`
}

func (s *Service) handleDashboard(c *gin.Context) {
	var req dashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	amount := req.Amount
	if amount <= 0 {
		amount = 12
	}

	sess, err := s.obtainFor(c, req.Username)
	if err != nil {
		return
	}
	info, err := s.client.AccountInfo(c.Request.Context(), sess, req.Username)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	medias, err := s.client.UserMedias(c.Request.Context(), sess, req.Username, amount)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	totalLikes, totalComments := 0, 0
	for _, m := range medias {
		totalLikes += m.Likes
		totalComments += m.Comments
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"account":        info,
		"medias":         medias,
		"total_likes":    totalLikes,
		"total_comments": totalComments,
	}, "")
}

type mediaRequest struct {
	Username  string `json:"username" binding:"required"`
	MediaID   string `json:"media_id" binding:"required"`
	CommentID string `json:"comment_id"`
	Text      string `json:"text"`
	Amount    int    `json:"amount"`
}

func (s *Service) handleMediaInfo(c *gin.Context) {
	var req mediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	sess, err := s.obtainFor(c, req.Username)
	if err != nil {
		return
	}
	info, err := s.client.MediaInfo(c.Request.Context(), sess, req.MediaID)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, info, "")
}

func (s *Service) handleMediaComments(c *gin.Context) {
	var req mediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	amount := req.Amount
	if amount <= 0 {
		amount = 20
	}
	sess, err := s.obtainFor(c, req.Username)
	if err != nil {
		return
	}
	comments, err := s.client.MediaComments(c.Request.Context(), sess, req.MediaID, amount)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, comments, "")
}

func (s *Service) handleComment(c *gin.Context) {
	var req mediaRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	sess, err := s.obtainFor(c, req.Username)
	if err != nil {
		return
	}
	id, err := s.client.Comment(c.Request.Context(), sess, req.MediaID, req.Text)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"comment_id": id}, "comment posted")
}

func (s *Service) handleReplyComment(c *gin.Context) {
	var req mediaRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" || req.CommentID == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	sess, err := s.obtainFor(c, req.Username)
	if err != nil {
		return
	}
	id, err := s.client.ReplyComment(c.Request.Context(), sess, req.MediaID, req.CommentID, req.Text)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"comment_id": id}, "reply posted")
}

// handleImageProxy fetches a remote image so browser clients avoid mixed
// content and CORS problems with platform CDN hosts.
func (s *Service) handleImageProxy(c *gin.Context) {
	raw := strings.TrimPrefix(c.Param("url"), "/")
	if c.Request.URL.RawQuery != "" {
		raw += "?" + c.Request.URL.RawQuery
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		httptransport.RespondError(c, http.StatusBadRequest, "url must be absolute", nil)
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, raw, nil)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid url", nil)
		return
	}
	resp, err := s.proxy.Do(req)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		httptransport.RespondError(c, http.StatusBadGateway, "upstream returned non-200", nil)
		return
	}
	c.DataFromReader(http.StatusOK, resp.ContentLength,
		resp.Header.Get("Content-Type"), resp.Body, nil)
}

// obtainFor resolves a session for the account using its stored
// credential, writing the HTTP error itself on failure.
func (s *Service) obtainFor(c *gin.Context, username string) (*social.Session, error) {
	cred, err := s.accounts.Get(username)
	password := ""
	if err == nil {
		password = cred.Password
	}
	sess, err := s.sessions.Obtain(c.Request.Context(), username, password)
	if err != nil {
		if errors.IsKind(err, errors.KindChallenge) {
			httptransport.RespondError(c, http.StatusConflict, err.Error(), nil)
			return nil, err
		}
		httptransport.RespondError(c, http.StatusUnauthorized, err.Error(), nil)
		return nil, err
	}
	return sess, nil
}
