package social

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"autopost-server-go/internal/platform/errors"
)

// Gateway talks to the platform gateway service over JSON HTTP. One gateway
// instance is shared by all accounts; per-account state travels in the
// request bodies.
type Gateway struct {
	baseURL string
	client  *http.Client
}

func NewGateway(baseURL string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type authResponse struct {
	Status    string          `json:"status"`
	Session   json.RawMessage `json:"session"`
	UserID    string          `json:"user_id"`
	Token     string          `json:"token"`
	ExpiresAt int64           `json:"expires_at"`
	Challenge *struct {
		Token   string `json:"token"`
		Contact string `json:"contact"`
	} `json:"challenge"`
	Message string `json:"message"`
}

func (g *Gateway) Authenticate(ctx context.Context, username, password string) (*Session, *Challenge, error) {
	const op errors.Op = "social.Authenticate"
	var out authResponse
	err := g.postJSON(ctx, "/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.KindTransport, op, "login request")
	}
	switch out.Status {
	case "ok":
		return sessionFrom(username, &out), nil, nil
	case "challenge_required":
		if out.Challenge == nil {
			return nil, nil, errors.New(errors.KindChallenge, op, "challenge response without token")
		}
		return nil, &Challenge{
			Username:  username,
			Token:     out.Challenge.Token,
			Contact:   out.Challenge.Contact,
			CreatedAt: time.Now(),
		}, nil
	case "bad_credentials":
		return nil, nil, errors.New(errors.KindAuth, op, "invalid username or password")
	default:
		return nil, nil, errors.New(errors.KindAuth, op,
			fmt.Sprintf("login failed: %s", out.Message))
	}
}

func (g *Gateway) Resume(ctx context.Context, state []byte) (*Session, error) {
	const op errors.Op = "social.Resume"
	var out authResponse
	err := g.postJSON(ctx, "/auth/resume", map[string]json.RawMessage{
		"session": state,
	}, &out)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, op, "resume request")
	}
	switch out.Status {
	case "ok":
		sess := sessionFrom("", &out)
		return sess, nil
	case "expired", "invalid_session":
		return nil, ErrSessionExpired
	default:
		return nil, errors.New(errors.KindAuth, op,
			fmt.Sprintf("resume failed: %s", out.Message))
	}
}

func (g *Gateway) Export(sess *Session) ([]byte, error) {
	const op errors.Op = "social.Export"
	if sess == nil {
		return nil, errors.New(errors.KindAuth, op, "no session to export")
	}
	return json.Marshal(map[string]any{
		"username":   sess.Username,
		"user_id":    sess.UserID,
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt.Unix(),
	})
}

func (g *Gateway) VerifyChallenge(ctx context.Context, ch *Challenge, code string) (*Session, error) {
	const op errors.Op = "social.VerifyChallenge"
	if ch == nil {
		return nil, errors.New(errors.KindChallenge, op, "no challenge to verify")
	}
	var out authResponse
	err := g.postJSON(ctx, "/auth/verify", map[string]string{
		"username": ch.Username,
		"token":    ch.Token,
		"code":     code,
	}, &out)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, op, "verify request")
	}
	if out.Status != "ok" {
		return nil, errors.New(errors.KindVerify, op,
			fmt.Sprintf("verification rejected: %s", out.Message))
	}
	return sessionFrom(ch.Username, &out), nil
}

// Publish uploads the image and caption as multipart form data and returns
// the platform media id.
func (g *Gateway) Publish(ctx context.Context, sess *Session, post Post) (string, error) {
	const op errors.Op = "social.Publish"
	if sess == nil {
		return "", errors.New(errors.KindAuth, op, "no active session")
	}

	file, err := os.Open(post.ImagePath)
	if err != nil {
		return "", errors.Wrap(err, errors.KindPublish, op, "open image")
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filepath.Base(post.ImagePath))
	if err != nil {
		return "", errors.Wrap(err, errors.KindPublish, op, "build form")
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", errors.Wrap(err, errors.KindPublish, op, "copy image")
	}
	if err := writer.WriteField("caption", post.Caption); err != nil {
		return "", errors.Wrap(err, errors.KindPublish, op, "write caption")
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrap(err, errors.KindPublish, op, "finish form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/media/upload", &body)
	if err != nil {
		return "", errors.Wrap(err, errors.KindPublish, op, "build request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	g.setAuth(req, sess)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.KindTransport, op, "upload request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", errors.New(errors.KindPublish, op,
			fmt.Sprintf("upload returned %d: %s", resp.StatusCode, string(data)))
	}

	var out struct {
		MediaID string `json:"media_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, errors.KindPublish, op, "decode response")
	}
	return out.MediaID, nil
}

func (g *Gateway) AccountInfo(ctx context.Context, sess *Session, username string) (*AccountInfo, error) {
	const op errors.Op = "social.AccountInfo"
	var out AccountInfo
	err := g.sessionPost(ctx, sess, "/users/info", map[string]string{
		"username": username,
	}, &out)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, op, "account info")
	}
	return &out, nil
}

func (g *Gateway) UserMedias(ctx context.Context, sess *Session, username string, amount int) ([]Media, error) {
	const op errors.Op = "social.UserMedias"
	var out struct {
		Medias []Media `json:"medias"`
	}
	err := g.sessionPost(ctx, sess, "/users/medias", map[string]any{
		"username": username,
		"amount":   amount,
	}, &out)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, op, "user medias")
	}
	return out.Medias, nil
}

func (g *Gateway) MediaInfo(ctx context.Context, sess *Session, mediaID string) (*Media, error) {
	const op errors.Op = "social.MediaInfo"
	var out Media
	err := g.sessionPost(ctx, sess, "/media/info", map[string]string{
		"media_id": mediaID,
	}, &out)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, op, "media info")
	}
	return &out, nil
}

func (g *Gateway) MediaComments(ctx context.Context, sess *Session, mediaID string, amount int) ([]Comment, error) {
	const op errors.Op = "social.MediaComments"
	var out struct {
		Comments []Comment `json:"comments"`
	}
	err := g.sessionPost(ctx, sess, "/media/comments", map[string]any{
		"media_id": mediaID,
		"amount":   amount,
	}, &out)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, op, "media comments")
	}
	return out.Comments, nil
}

func (g *Gateway) Comment(ctx context.Context, sess *Session, mediaID, text string) (string, error) {
	const op errors.Op = "social.Comment"
	var out struct {
		CommentID string `json:"comment_id"`
	}
	err := g.sessionPost(ctx, sess, "/media/comment", map[string]string{
		"media_id": mediaID,
		"text":     text,
	}, &out)
	if err != nil {
		return "", errors.Wrap(err, errors.KindTransport, op, "comment")
	}
	return out.CommentID, nil
}

func (g *Gateway) ReplyComment(ctx context.Context, sess *Session, mediaID, commentID, text string) (string, error) {
	const op errors.Op = "social.ReplyComment"
	var out struct {
		CommentID string `json:"comment_id"`
	}
	err := g.sessionPost(ctx, sess, "/media/comment", map[string]string{
		"media_id":   mediaID,
		"comment_id": commentID,
		"text":       text,
	}, &out)
	if err != nil {
		return "", errors.Wrap(err, errors.KindTransport, op, "reply comment")
	}
	return out.CommentID, nil
}

func (g *Gateway) sessionPost(ctx context.Context, sess *Session, path string, payload any, out any) error {
	if sess == nil {
		return errors.New(errors.KindAuth, errors.Op("social.sessionPost"), "no active session")
	}
	return g.doJSON(ctx, path, payload, out, sess)
}

func (g *Gateway) postJSON(ctx context.Context, path string, payload any, out any) error {
	return g.doJSON(ctx, path, payload, out, nil)
}

func (g *Gateway) doJSON(ctx context.Context, path string, payload any, out any, sess *Session) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if sess != nil {
		g.setAuth(req, sess)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *Gateway) setAuth(req *http.Request, sess *Session) {
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	req.Header.Set("X-Account", base64.StdEncoding.EncodeToString([]byte(sess.Username)))
}

func sessionFrom(username string, out *authResponse) *Session {
	sess := &Session{
		Username: username,
		UserID:   out.UserID,
		Token:    out.Token,
	}
	if out.ExpiresAt > 0 {
		sess.ExpiresAt = time.Unix(out.ExpiresAt, 0)
	}
	if len(out.Session) > 0 {
		var embedded struct {
			Username string `json:"username"`
		}
		if json.Unmarshal(out.Session, &embedded) == nil && embedded.Username != "" {
			sess.Username = embedded.Username
		}
	}
	return sess
}
