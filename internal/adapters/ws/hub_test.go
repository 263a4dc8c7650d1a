package ws

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/typetrack/typetrack/internal/domain/model"
	"github.com/typetrack/typetrack/internal/domain/typing"
	"github.com/typetrack/typetrack/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// fakeConn feeds scripted frames to readPump and records every write.
type fakeConn struct {
	in chan []byte

	mu     sync.Mutex
	writes []message
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-f.in
	if !ok {
		return 0, nil, io.EOF
	}
	return 1, data, nil
}

func (f *fakeConn) WriteJSON(v any) error {
	m, _ := v.(message)
	f.mu.Lock()
	f.writes = append(f.writes, m)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) messagesOfType(typ string) []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message
	for _, m := range f.writes {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
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

func TestHubProgressEvents(t *testing.T) {
	Convey("Given a hub with a fixed clock and one connection", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
		h := NewHub(WithClock(func() time.Time { return now }))

		conn := newFakeConn()
		c := h.attach(conn)
		done := make(chan struct{})
		go func() {
			c.readPump()
			close(done)
		}()

		Reset(func() {
			close(conn.in)
			<-done
			h.detach(c)
		})

		start := now.Add(-10 * time.Second).Format(time.RFC3339)

		Convey("When a progress event arrives", func() {
			conn.in <- []byte(`{"input":"The quack","prompt":"The quick brown fox","start_time":"` + start + `"}`)

			Convey("Then a metrics_update goes back to that connection", func() {
				So(eventually(func() bool { return len(conn.messagesOfType(eventMetricsUpdate)) == 1 }), ShouldBeTrue)

				update := conn.messagesOfType(eventMetricsUpdate)[0].Data.(typing.Update)
				So(update.WPM, ShouldEqual, 12.0)
				So(update.Accuracy, ShouldEqual, 31.58)
				So(update.Progress, ShouldEqual, 47.37)
				So(update.Errors, ShouldEqual, 3)
				So(update.Elapsed, ShouldEqual, 10)
			})
		})

		Convey("When the start time carries no zone offset", func() {
			bare := now.Add(-10 * time.Second).Format("2006-01-02T15:04:05")
			conn.in <- []byte(`{"input":"The quack","prompt":"The quick brown fox","start_time":"` + bare + `"}`)

			Convey("Then it is read as UTC and a metrics_update still flows", func() {
				So(eventually(func() bool { return len(conn.messagesOfType(eventMetricsUpdate)) == 1 }), ShouldBeTrue)

				update := conn.messagesOfType(eventMetricsUpdate)[0].Data.(typing.Update)
				So(update.Elapsed, ShouldEqual, 10)
				So(update.WPM, ShouldEqual, 12.0)
			})
		})

		Convey("When the payload is malformed", func() {
			conn.in <- []byte(`{not json`)
			conn.in <- []byte(`{"input":"The","prompt":"The quick brown fox","start_time":"` + start + `"}`)

			Convey("Then it is skipped and later events still flow", func() {
				So(eventually(func() bool { return len(conn.messagesOfType(eventMetricsUpdate)) == 1 }), ShouldBeTrue)
				So(conn.messagesOfType(eventError), ShouldBeEmpty)
			})
		})

		Convey("When the prompt or start time is missing", func() {
			conn.in <- []byte(`{"input":"abc","start_time":"` + start + `"}`)
			conn.in <- []byte(`{"input":"abc","prompt":"abc"}`)
			conn.in <- []byte(`{"input":"abc","prompt":"abc","start_time":"not-a-time"}`)

			Convey("Then no update and no error is sent", func() {
				time.Sleep(50 * time.Millisecond)
				So(conn.messagesOfType(eventMetricsUpdate), ShouldBeEmpty)
				So(conn.messagesOfType(eventError), ShouldBeEmpty)
			})
		})

		Convey("When the session has not started yet", func() {
			future := now.Add(5 * time.Second).Format(time.RFC3339)
			conn.in <- []byte(`{"input":"abc","prompt":"abc","start_time":"` + future + `"}`)

			Convey("Then nothing is broadcast for it", func() {
				time.Sleep(50 * time.Millisecond)
				So(conn.messagesOfType(eventMetricsUpdate), ShouldBeEmpty)
			})
		})
	})
}

func TestHubBroadcast(t *testing.T) {
	Convey("Given a hub with several connections", t, func() {
		h := NewHub()

		conns := make([]*fakeConn, 3)
		clients := make([]*client, 3)
		for i := range conns {
			conns[i] = newFakeConn()
			clients[i] = h.attach(conns[i])
		}

		Reset(func() {
			for _, c := range clients {
				h.detach(c)
			}
		})

		So(h.ConnectionCount(), ShouldEqual, 3)

		Convey("When a session is recorded", func() {
			ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			h.BroadcastLeaderboardUpdate(context.Background(), model.SessionRecorded{
				EventID:   "e1",
				Username:  "alice",
				WPM:       72.5,
				Accuracy:  96.2,
				Timestamp: ts,
			})

			Convey("Then every connection receives the leaderboard_update", func() {
				for _, conn := range conns {
					got := conn
					So(eventually(func() bool { return len(got.messagesOfType(eventLeaderboardUpdate)) == 1 }), ShouldBeTrue)

					payload := got.messagesOfType(eventLeaderboardUpdate)[0].Data.(leaderboardPayload)
					So(payload.User, ShouldEqual, "alice")
					So(payload.WPM, ShouldEqual, 72.5)
					So(payload.Accuracy, ShouldEqual, 96.2)
					So(payload.Timestamp, ShouldEqual, ts)
				}
			})
		})

		Convey("When one connection detaches", func() {
			h.detach(clients[0])

			Convey("Then it leaves the registry and is closed", func() {
				So(h.ConnectionCount(), ShouldEqual, 2)
				conns[0].mu.Lock()
				closed := conns[0].closed
				conns[0].mu.Unlock()
				So(closed, ShouldBeTrue)

				Convey("And detaching again is harmless", func() {
					h.detach(clients[0])
					So(h.ConnectionCount(), ShouldEqual, 2)
				})
			})
		})
	})
}
