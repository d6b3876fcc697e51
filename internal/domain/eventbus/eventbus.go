// Package eventbus distributes publish-cycle events to in-process
// subscribers. Each server owns its Bus instance; nothing is global.
package eventbus

import (
	evbus "github.com/asaskevich/EventBus"

	"autopost-server-go/internal/platform/logging"
)

// Bus wraps the underlying event bus with typed topic constants.
type Bus struct {
	bus evbus.Bus
}

func New() *Bus {
	return &Bus{bus: evbus.New()}
}

func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

func (b *Bus) SubscribeAsync(topic string, fn interface{}) error {
	return b.bus.SubscribeAsync(topic, fn, false)
}

func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// WaitAsync blocks until all async handlers have finished.
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}

// AttachLogger subscribes a logging handler to every lifecycle topic.
func (b *Bus) AttachLogger(logger *logging.Logger) {
	_ = b.SubscribeAsync(EventPostPublished, func(data PostEventData) {
		logger.InfoTag("publish", "posted for %s media=%s", data.Username, data.MediaID)
	})
	_ = b.SubscribeAsync(EventPostFailed, func(data PostEventData) {
		logger.WarnTag("publish", "post for %s failed: %s", data.Username, data.Reason)
	})
	_ = b.SubscribeAsync(EventAuthChallenge, func(data ChallengeEventData) {
		logger.WarnTag("auth", "account %s needs verification", data.Username)
	})
	_ = b.SubscribeAsync(EventCycleCompleted, func(data CycleEventData) {
		logger.InfoTag("cycle", "cycle done: %d accounts, %d published, %d failed",
			data.Accounts, data.Published, data.Failed)
	})
}
