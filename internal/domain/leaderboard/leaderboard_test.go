package leaderboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/typetrack/typetrack/internal/adapters/cache"
	"github.com/typetrack/typetrack/internal/adapters/repository"
	"github.com/typetrack/typetrack/internal/domain/leaderboard"
	"github.com/typetrack/typetrack/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeSource counts queries so tests can tell cache hits from recomputes.
type fakeSource struct {
	rows    []repository.RankedAggregate
	queries int
}

func (f *fakeSource) TopAggregates(_ context.Context, n int) ([]repository.RankedAggregate, error) {
	f.queries++
	if n > len(f.rows) {
		n = len(f.rows)
	}
	return f.rows[:n], nil
}

func ranked(username string, wpm float64) repository.RankedAggregate {
	return repository.RankedAggregate{
		Aggregate: model.Aggregate{
			UserID:       username,
			BestWPM:      wpm,
			BestAccuracy: 95,
			TotalTests:   3,
			UpdatedAt:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		Username: username,
	}
}

func TestCacheTop(t *testing.T) {
	Convey("Given a leaderboard cache over a counting source", t, func() {
		src := &fakeSource{rows: []repository.RankedAggregate{
			ranked("alice", 90),
			ranked("carol", 80),
			ranked("bob", 70),
		}}
		lb := leaderboard.New(src, cache.NewMemory())
		ctx := context.Background()

		Convey("When the top view is requested", func() {
			entries, err := lb.Top(ctx, 3)
			So(err, ShouldBeNil)

			Convey("Then ranks are assigned in order", func() {
				So(entries, ShouldHaveLength, 3)
				So(entries[0].Rank, ShouldEqual, 1)
				So(entries[0].Username, ShouldEqual, "alice")
				So(entries[2].Rank, ShouldEqual, 3)
				So(entries[2].Username, ShouldEqual, "bob")
			})

			Convey("And a second identical request is served from cache", func() {
				again, err := lb.Top(ctx, 3)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, entries)
				So(src.queries, ShouldEqual, 1)
			})

			Convey("And a different size is a distinct cached view", func() {
				two, err := lb.Top(ctx, 2)
				So(err, ShouldBeNil)
				So(two, ShouldHaveLength, 2)
				So(src.queries, ShouldEqual, 2)
			})

			Convey("And invalidation forces recomputation", func() {
				src.rows[0] = ranked("alice", 120)
				lb.Invalidate()

				fresh, err := lb.Top(ctx, 3)
				So(err, ShouldBeNil)
				So(fresh[0].BestWPM, ShouldEqual, 120.0)
				So(src.queries, ShouldEqual, 2)
			})
		})

		Convey("When the board is empty", func() {
			empty := leaderboard.New(&fakeSource{}, cache.NewMemory())
			entries, err := empty.Top(ctx, 10)

			Convey("Then the result is an empty slice, not an error", func() {
				So(err, ShouldBeNil)
				So(entries, ShouldNotBeNil)
				So(entries, ShouldHaveLength, 0)
			})
		})

		Convey("When the TTL elapses without an invalidation", func() {
			now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
			backend := cache.NewMemory(cache.WithClock(func() time.Time { return now }))
			ttl := leaderboard.New(src, backend, leaderboard.WithTTL(30*time.Second))

			_, err := ttl.Top(ctx, 3)
			So(err, ShouldBeNil)
			So(src.queries, ShouldEqual, 1)

			now = now.Add(31 * time.Second)
			_, err = ttl.Top(ctx, 3)
			So(err, ShouldBeNil)

			Convey("Then the view is recomputed", func() {
				So(src.queries, ShouldEqual, 2)
			})
		})
	})
}
