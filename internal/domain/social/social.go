// Package social abstracts the posting platform: authentication, session
// resume/export, challenge verification, publishing and the media query
// operations the web API exposes.
package social

import (
	"context"
	"errors"
	"time"
)

// ErrSessionExpired reports that a resumed session was rejected by the
// platform and must be re-established with credentials.
var ErrSessionExpired = errors.New("social: session expired")

// Session is a live authenticated handle for one account.
type Session struct {
	Username  string
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// Challenge carries the platform's verification demand for a login attempt.
// The token is opaque and must be echoed back on verification.
type Challenge struct {
	Username  string
	Token     string
	Contact   string
	CreatedAt time.Time
}

// Post is the content of one publish call.
type Post struct {
	Caption   string
	ImagePath string
}

// AccountInfo is the public profile summary for a user.
type AccountInfo struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	Followers int    `json:"followers"`
	Following int    `json:"following"`
	Posts     int    `json:"posts"`
}

// Media is one published item as reported by the platform.
type Media struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Caption  string `json:"caption"`
	Likes    int    `json:"likes"`
	Views    int    `json:"views"`
	Comments int    `json:"comments"`
	TakenAt  int64  `json:"taken_at"`
}

// Comment is one comment on a media item.
type Comment struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

// Client is the platform gateway. Authenticate returns a non-nil Challenge
// when the platform demands verification before a session can be issued; in
// that case the session is nil and the error is nil.
type Client interface {
	Authenticate(ctx context.Context, username, password string) (*Session, *Challenge, error)
	Resume(ctx context.Context, state []byte) (*Session, error)
	Export(sess *Session) ([]byte, error)
	VerifyChallenge(ctx context.Context, ch *Challenge, code string) (*Session, error)

	Publish(ctx context.Context, sess *Session, post Post) (string, error)

	AccountInfo(ctx context.Context, sess *Session, username string) (*AccountInfo, error)
	UserMedias(ctx context.Context, sess *Session, username string, amount int) ([]Media, error)
	MediaInfo(ctx context.Context, sess *Session, mediaID string) (*Media, error)
	MediaComments(ctx context.Context, sess *Session, mediaID string, amount int) ([]Comment, error)
	Comment(ctx context.Context, sess *Session, mediaID, text string) (string, error)
	ReplyComment(ctx context.Context, sess *Session, mediaID, commentID, text string) (string, error)
}
