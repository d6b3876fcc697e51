// Package session owns the lifecycle of platform sessions: cached reuse,
// credential re-authentication and challenge hand-off.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"autopost-server-go/internal/domain/challenge"
	"autopost-server-go/internal/domain/session/store"
	"autopost-server-go/internal/domain/social"
	"autopost-server-go/internal/platform/errors"
	"autopost-server-go/internal/platform/logging"
)

// Manager hands out live sessions, reusing persisted state whenever the
// platform still accepts it. One lock per username keeps concurrent Obtain
// calls for the same account from racing on the stored record.
type Manager struct {
	client     social.Client
	sessions   store.Store
	challenges *challenge.Registry
	logger     *logging.Logger

	mutex sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(client social.Client, sessions store.Store, challenges *challenge.Registry, logger *logging.Logger) *Manager {
	return &Manager{
		client:     client,
		sessions:   sessions,
		challenges: challenges,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(username string) *sync.Mutex {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if lock, ok := m.locks[username]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	m.locks[username] = lock
	return lock
}

// Obtain returns a live session for the account. A persisted session is
// resumed first; only when the platform rejects it as expired does the
// manager fall back to credential login. An empty password is acceptable as
// long as a resumable session exists.
func (m *Manager) Obtain(ctx context.Context, username, password string) (*social.Session, error) {
	const op errors.Op = "session.Obtain"

	lock := m.lockFor(username)
	lock.Lock()
	defer lock.Unlock()

	rec, err := m.sessions.Get(ctx, username)
	switch {
	case err == nil:
		sess, resumeErr := m.client.Resume(ctx, rec.State)
		if resumeErr == nil {
			m.logger.Debug("reusing stored session for %s", username)
			if sess.Username == "" {
				sess.Username = username
			}
			return sess, nil
		}
		if !stderrors.Is(resumeErr, social.ErrSessionExpired) {
			// Ambiguous failure: the session may still be valid, so the
			// record stays in place for the next attempt.
			return nil, errors.Wrap(resumeErr, errors.KindAuth, op,
				fmt.Sprintf("resume session for %s", username))
		}
		m.logger.Info("stored session for %s expired, logging in again", username)
		if err := m.sessions.Delete(ctx, username); err != nil {
			return nil, errors.Wrap(err, errors.KindStorage, op, "drop expired session")
		}
	case stderrors.Is(err, store.ErrNotFound):
		// Fall through to credential login.
	default:
		return nil, errors.Wrap(err, errors.KindStorage, op, "load session record")
	}

	if password == "" {
		return nil, errors.New(errors.KindAuth, op,
			fmt.Sprintf("no credential available for %s", username))
	}
	return m.login(ctx, username, password)
}

func (m *Manager) login(ctx context.Context, username, password string) (*social.Session, error) {
	const op errors.Op = "session.login"

	sess, ch, err := m.client.Authenticate(ctx, username, password)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindAuth, op,
			fmt.Sprintf("authenticate %s", username))
	}
	if ch != nil {
		m.challenges.Register(ch)
		m.logger.Warn("login for %s requires verification, challenge registered", username)
		return nil, errors.New(errors.KindChallenge, op,
			fmt.Sprintf("verification required for %s", username))
	}
	if sess.Username == "" {
		sess.Username = username
	}

	state, err := m.client.Export(sess)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStorage, op, "export session")
	}
	rec := store.Record{
		Username:      username,
		State:         state,
		SchemaVersion: store.SchemaVersion,
		UpdatedAt:     time.Now(),
	}
	if err := m.sessions.Put(ctx, rec); err != nil {
		return nil, errors.Wrap(err, errors.KindStorage, op, "persist session")
	}
	m.logger.Info("fresh session stored for %s", username)
	return sess, nil
}

// Invalidate drops the persisted session for the account.
func (m *Manager) Invalidate(ctx context.Context, username string) error {
	lock := m.lockFor(username)
	lock.Lock()
	defer lock.Unlock()
	return m.sessions.Delete(ctx, username)
}
