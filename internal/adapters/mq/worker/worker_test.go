package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/typetrack/typetrack/internal/adapters/mq/queue"
	"github.com/typetrack/typetrack/internal/adapters/mq/worker"
	"github.com/typetrack/typetrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []worker.Event
}

func (b *recordingBroadcaster) BroadcastLeaderboardUpdate(_ context.Context, e worker.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (i *countingInvalidator) Invalidate() {
	i.mu.Lock()
	i.calls++
	i.mu.Unlock()
}

func (i *countingInvalidator) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}

func eventually(check func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestWorkerPool(t *testing.T) {
	Convey("Given a pool draining a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		broadcaster := &recordingBroadcaster{}
		invalidator := &countingInvalidator{}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		pool := worker.NewPool(2, q, broadcaster, invalidator)
		pool.Start(ctx)

		Convey("When session_recorded events are enqueued", func() {
			for i := 0; i < 5; i++ {
				ok := q.Enqueue(ctx, worker.Event{
					EventID:   "e" + string(rune('0'+i)),
					Username:  "alice",
					WPM:       60,
					Accuracy:  92,
					Timestamp: time.Now(),
				})
				So(ok, ShouldBeTrue)
			}

			Convey("Then every event is broadcast and invalidates the cache", func() {
				So(eventually(func() bool { return broadcaster.count() == 5 }), ShouldBeTrue)
				So(eventually(func() bool { return invalidator.count() == 5 }), ShouldBeTrue)
			})
		})

		Convey("When stop is signalled more than once", func() {
			w := worker.New(q, broadcaster, invalidator)
			go w.Run(ctx)

			So(w.Shutdown(ctx), ShouldBeNil)

			Convey("Then repeated shutdowns and pool stops do not panic", func() {
				So(w.Shutdown(ctx), ShouldBeNil)
				So(pool.Stop, ShouldNotPanic)
				So(pool.Stop, ShouldNotPanic)
				So(func() { _ = pool.Shutdown(ctx) }, ShouldNotPanic)
			})
		})

		Convey("When the pool shuts down", func() {
			So(q.Enqueue(ctx, worker.Event{EventID: "last", Username: "bob", Timestamp: time.Now()}), ShouldBeTrue)

			err := pool.Shutdown(ctx)

			Convey("Then shutdown completes and the queued event was handled", func() {
				So(err, ShouldBeNil)
				So(broadcaster.count(), ShouldEqual, 1)
			})
		})
	})
}
