package task

import (
	"context"
	"testing"

	"autopost-server-go/internal/platform/logging"
)

func newTestLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.New(logging.Config{Level: "error", Dir: t.TempDir(), Filename: "test.log"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestDispatcher_RunsJob(t *testing.T) {
	d := NewDispatcher(newTestLogger(t))

	done := make(chan struct{})
	err := d.TryGo(context.Background(), "cycle", func(context.Context) {
		close(done)
	})
	if err != nil {
		t.Fatalf("TryGo: %v", err)
	}
	<-done
	d.Wait()
}

func TestDispatcher_RejectsOverlappingJob(t *testing.T) {
	d := NewDispatcher(newTestLogger(t))

	release := make(chan struct{})
	started := make(chan struct{})
	if err := d.TryGo(context.Background(), "first", func(context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("first TryGo: %v", err)
	}
	<-started

	if err := d.TryGo(context.Background(), "second", func(context.Context) {}); err == nil {
		t.Error("second job accepted while first is running")
	}

	close(release)
	d.Wait()

	// A finished dispatcher accepts work again.
	if err := d.TryGo(context.Background(), "third", func(context.Context) {}); err != nil {
		t.Errorf("third TryGo: %v", err)
	}
	d.Wait()
}
