package challenge

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"autopost-server-go/internal/domain/session/store"
	"autopost-server-go/internal/domain/social"
	"autopost-server-go/internal/platform/errors"
	"autopost-server-go/internal/platform/logging"
)

// ErrNoPending reports a verification attempt for an account that has no
// registered challenge.
var ErrNoPending = stderrors.New("no pending challenge")

// Verifier completes pending challenges against the platform and persists
// the resulting session so the next publish cycle can reuse it.
type Verifier struct {
	client   social.Client
	registry *Registry
	sessions store.Store
	logger   *logging.Logger
}

func NewVerifier(client social.Client, registry *Registry, sessions store.Store, logger *logging.Logger) *Verifier {
	return &Verifier{
		client:   client,
		registry: registry,
		sessions: sessions,
		logger:   logger,
	}
}

// Verify submits the code for the account's pending challenge. On success
// the new session is persisted and the challenge removed. On failure the
// challenge stays registered so the operator can retry with another code.
func (v *Verifier) Verify(ctx context.Context, username, code string) error {
	const op errors.Op = "challenge.Verify"

	ch, ok := v.registry.Resolve(username)
	if !ok {
		return errors.Wrap(fmt.Errorf("%w for %q", ErrNoPending, username),
			errors.KindVerify, op, "resolve pending challenge")
	}

	sess, err := v.client.VerifyChallenge(ctx, ch, code)
	if err != nil {
		v.logger.Warn("challenge verification failed for %s: %v", username, err)
		return errors.Wrap(err, errors.KindVerify, op, "submit code")
	}

	state, err := v.client.Export(sess)
	if err != nil {
		return errors.Wrap(err, errors.KindStorage, op, "export session")
	}
	rec := store.Record{
		Username:      username,
		State:         state,
		SchemaVersion: store.SchemaVersion,
		UpdatedAt:     time.Now(),
	}
	if err := v.sessions.Put(ctx, rec); err != nil {
		return errors.Wrap(err, errors.KindStorage, op, "persist session")
	}

	v.registry.Remove(username)
	v.logger.Info("challenge for %s verified, session stored", username)
	return nil
}
