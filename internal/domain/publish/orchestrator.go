// Package publish walks all configured accounts once per cycle, decides
// which are due and carries a post from generation to upload.
package publish

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
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

// AccountStatus classifies the outcome of one account in a cycle.
type AccountStatus string

const (
	StatusSkipped           AccountStatus = "skipped"
	StatusPublished         AccountStatus = "published"
	StatusConfigError       AccountStatus = "config_error"
	StatusAuthFailed        AccountStatus = "auth_failed"
	StatusChallengeRequired AccountStatus = "challenge_required"
	StatusGenerationFailed  AccountStatus = "generation_failed"
	StatusPublishFailed     AccountStatus = "publish_failed"
)

// AccountResult is the outcome of one account's turn in a cycle.
type AccountResult struct {
	Username string        `json:"username"`
	Status   AccountStatus `json:"status"`
	MediaID  string        `json:"media_id,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// CycleResult summarizes one full pass over the accounts.
type CycleResult struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Results    []AccountResult `json:"results"`
}

// Lister provides the accounts to walk.
type Lister interface {
	List() ([]account.Credential, error)
}

// SessionProvider hands out live sessions.
type SessionProvider interface {
	Obtain(ctx context.Context, username, password string) (*social.Session, error)
}

// Generator produces the content of one post.
type Generator interface {
	Run(ctx context.Context, topic string) (*generation.Result, error)
}

// Uploader publishes a post on the platform.
type Uploader interface {
	Publish(ctx context.Context, sess *social.Session, post social.Post) (string, error)
}

var defaultTopics = []string{
	"morning coffee rituals",
	"city lights after rain",
	"weekend hiking trails",
	"cozy reading corners",
	"street food discoveries",
	"minimalist workspaces",
	"sunset over the sea",
	"houseplants and slow living",
}

// Orchestrator runs publish cycles sequentially over all accounts. One
// account's failure never stops the walk; every generated artifact is
// removed before the cycle moves on.
type Orchestrator struct {
	accounts  Lister
	sessions  SessionProvider
	generator Generator
	uploader  Uploader
	dir       *media.Dir
	bus       *eventbus.Bus
	logger    *logging.Logger

	topics []string
	now    func() time.Time
	rng    *rand.Rand

	mutex sync.RWMutex
	last  *CycleResult
}

// Options tunes the orchestrator. Zero values select production settings.
type Options struct {
	Topics []string
	// Now overrides the clock for schedule evaluation.
	Now func() time.Time
}

func NewOrchestrator(
	accounts Lister,
	sessions SessionProvider,
	generator Generator,
	uploader Uploader,
	dir *media.Dir,
	bus *eventbus.Bus,
	logger *logging.Logger,
	opts Options,
) *Orchestrator {
	topics := opts.Topics
	if len(topics) == 0 {
		topics = defaultTopics
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		accounts:  accounts,
		sessions:  sessions,
		generator: generator,
		uploader:  uploader,
		dir:       dir,
		bus:       bus,
		logger:    logger,
		topics:    topics,
		now:       now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RunCycle walks every account once. The returned result is also kept for
// later inspection via LastResult.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleResult, error) {
	const op errors.Op = "publish.RunCycle"

	creds, err := o.accounts.List()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindStorage, op, "list accounts")
	}

	cycle := &CycleResult{StartedAt: o.now()}
	published, skipped, failed := 0, 0, 0

	for _, cred := range creds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := o.runAccount(ctx, cred)
		cycle.Results = append(cycle.Results, res)
		switch res.Status {
		case StatusPublished:
			published++
		case StatusSkipped:
			skipped++
		default:
			failed++
		}
	}
	cycle.FinishedAt = o.now()

	o.mutex.Lock()
	o.last = cycle
	o.mutex.Unlock()

	o.bus.Publish(eventbus.EventCycleCompleted, eventbus.CycleEventData{
		Accounts:  len(creds),
		Published: published,
		Skipped:   skipped,
		Failed:    failed,
	})
	return cycle, nil
}

func (o *Orchestrator) runAccount(ctx context.Context, cred account.Credential) (res AccountResult) {
	res = AccountResult{Username: cred.Username}

	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusPublishFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			o.logger.Error("account %s panicked: %v", cred.Username, r)
		}
	}()

	due, err := schedule.IsDue(cred.StartTime, cred.IntervalMinutes, o.now())
	if err != nil {
		res.Status = StatusConfigError
		res.Error = err.Error()
		o.logger.Error("schedule for %s is invalid: %v", cred.Username, err)
		return res
	}
	if !due {
		res.Status = StatusSkipped
		return res
	}
	o.logger.Info("account %s is due, starting publish", cred.Username)

	topic := o.topics[o.rng.Intn(len(o.topics))]
	content, err := o.generator.Run(ctx, topic)
	if err != nil {
		res.Status = StatusGenerationFailed
		res.Error = err.Error()
		o.bus.Publish(eventbus.EventPostFailed, eventbus.PostEventData{
			Username: cred.Username,
			Reason:   res.Error,
		})
		return res
	}
	// The artifact never outlives the attempt, published or not.
	defer func() {
		if err := o.dir.Remove(content.Artifact); err != nil {
			o.logger.Warn("cleanup for %s: %v", cred.Username, err)
		}
	}()

	sess, err := o.sessions.Obtain(ctx, cred.Username, cred.Password)
	if err != nil {
		if errors.IsKind(err, errors.KindChallenge) {
			res.Status = StatusChallengeRequired
			res.Error = err.Error()
			o.bus.Publish(eventbus.EventAuthChallenge, eventbus.ChallengeEventData{
				Username: cred.Username,
			})
			return res
		}
		res.Status = StatusAuthFailed
		res.Error = err.Error()
		return res
	}

	mediaID, err := o.uploader.Publish(ctx, sess, social.Post{
		Caption:   content.Caption.Text,
		ImagePath: content.Artifact.Path,
	})
	if err != nil {
		res.Status = StatusPublishFailed
		res.Error = err.Error()
		o.bus.Publish(eventbus.EventPostFailed, eventbus.PostEventData{
			Username: cred.Username,
			Reason:   res.Error,
		})
		return res
	}

	res.Status = StatusPublished
	res.MediaID = mediaID
	o.bus.Publish(eventbus.EventPostPublished, eventbus.PostEventData{
		Username: cred.Username,
		MediaID:  mediaID,
		Caption:  content.Caption.Text,
	})
	return res
}

// LastResult returns the most recent cycle outcome, if any.
func (o *Orchestrator) LastResult() (*CycleResult, bool) {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	if o.last == nil {
		return nil, false
	}
	return o.last, true
}
