package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/typetrack/typetrack/internal/adapters/repository"
	"github.com/typetrack/typetrack/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func openStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	store, err := repository.Open(filepath.Join(t.TempDir(), "typetrack.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func session(userID string, wpm, accuracy, timeTaken float64) model.Session {
	return model.Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		WPM:         wpm,
		Accuracy:    accuracy,
		Difficulty:  model.DifficultyMedium,
		TimeTaken:   timeTaken,
		CompletedAt: time.Now().UTC(),
	}
}

func TestSQLiteStore_Users(t *testing.T) {
	Convey("Given an open store", t, func() {
		store := openStore(t)
		ctx := context.Background()

		Convey("When a user is created", func() {
			u := model.User{ID: "u1", Username: "alice", Active: true}
			So(store.CreateUser(ctx, u), ShouldBeNil)

			Convey("Then it can be read back", func() {
				got, err := store.UserByID(ctx, "u1")
				So(err, ShouldBeNil)
				So(got.Username, ShouldEqual, "alice")
				So(got.Active, ShouldBeTrue)
			})

			Convey("And a duplicate username is rejected", func() {
				err := store.CreateUser(ctx, model.User{ID: "u2", Username: "alice", Active: true})
				So(errors.Is(err, repository.ErrDuplicate), ShouldBeTrue)
			})

			Convey("And deactivation is persisted", func() {
				So(store.SetUserActive(ctx, "u1", false), ShouldBeNil)
				got, err := store.UserByID(ctx, "u1")
				So(err, ShouldBeNil)
				So(got.Active, ShouldBeFalse)
			})
		})

		Convey("When reading an unknown user", func() {
			_, err := store.UserByID(ctx, "ghost")

			Convey("Then it reports not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestSQLiteStore_Fold(t *testing.T) {
	Convey("Given a store with one user", t, func() {
		store := openStore(t)
		ctx := context.Background()
		So(store.CreateUser(ctx, model.User{ID: "u1", Username: "alice", Active: true}), ShouldBeNil)

		Convey("When the first session is recorded", func() {
			agg, err := store.RecordSession(ctx, session("u1", 60, 85, 120))
			So(err, ShouldBeNil)

			Convey("Then the aggregate is seeded from the session", func() {
				So(agg.BestWPM, ShouldEqual, 60.0)
				So(agg.BestAccuracy, ShouldEqual, 85.0)
				So(agg.TotalTests, ShouldEqual, 1)
				So(agg.TotalTime, ShouldEqual, 120.0)
			})

			Convey("And a slower but more accurate second session merges monotonically", func() {
				agg2, err := store.RecordSession(ctx, session("u1", 55, 90, 100))
				So(err, ShouldBeNil)
				So(agg2.BestWPM, ShouldEqual, 60.0)
				So(agg2.BestAccuracy, ShouldEqual, 90.0)
				So(agg2.TotalTests, ShouldEqual, 2)
				So(agg2.TotalTime, ShouldEqual, 220.0)
			})

			Convey("And the aggregate survives a fresh read", func() {
				got, err := store.Aggregate(ctx, "u1")
				So(err, ShouldBeNil)
				So(got.BestWPM, ShouldEqual, 60.0)
				So(got.TotalTests, ShouldEqual, 1)
			})
		})

		Convey("When many sessions fold concurrently for the same user", func() {
			const n = 20
			var wg sync.WaitGroup
			wg.Add(n)
			for i := 0; i < n; i++ {
				go func(wpm float64) {
					defer wg.Done()
					_, _ = store.RecordSession(ctx, session("u1", wpm, 80, 10))
				}(float64(30 + i))
			}
			wg.Wait()

			Convey("Then total_tests counts every fold and best_wpm is the max", func() {
				agg, err := store.Aggregate(ctx, "u1")
				So(err, ShouldBeNil)
				So(agg.TotalTests, ShouldEqual, n)
				So(agg.BestWPM, ShouldEqual, 49.0)
				So(agg.TotalTime, ShouldEqual, float64(n*10))
			})
		})

		Convey("When no session was ever folded", func() {
			_, err := store.Aggregate(ctx, "u1")

			Convey("Then the aggregate is absent", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestSQLiteStore_Sessions(t *testing.T) {
	Convey("Given a store with mixed-difficulty history", t, func() {
		store := openStore(t)
		ctx := context.Background()
		So(store.CreateUser(ctx, model.User{ID: "u1", Username: "alice", Active: true}), ShouldBeNil)

		base := time.Now().UTC().Add(-time.Hour)
		difficulties := []string{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard,
			model.DifficultyMedium, model.DifficultyEasy}
		for i, d := range difficulties {
			s := session("u1", float64(40+i), 90, 60)
			s.Difficulty = d
			s.CompletedAt = base.Add(time.Duration(i) * time.Minute)
			_, err := store.RecordSession(ctx, s)
			So(err, ShouldBeNil)
		}

		Convey("When listing without a filter", func() {
			got, err := store.Sessions(ctx, "u1", repository.SessionFilter{Limit: 10})
			So(err, ShouldBeNil)

			Convey("Then all sessions come back newest first", func() {
				So(got, ShouldHaveLength, 5)
				So(got[0].WPM, ShouldEqual, 44.0)
				So(got[4].WPM, ShouldEqual, 40.0)
			})
		})

		Convey("When filtering by difficulty", func() {
			got, err := store.Sessions(ctx, "u1", repository.SessionFilter{Limit: 10, Difficulty: model.DifficultyMedium})
			So(err, ShouldBeNil)

			Convey("Then only matching sessions come back", func() {
				So(got, ShouldHaveLength, 2)
				for _, s := range got {
					So(s.Difficulty, ShouldEqual, model.DifficultyMedium)
				}
			})
		})

		Convey("When the limit is smaller than the history", func() {
			got, err := store.Sessions(ctx, "u1", repository.SessionFilter{Limit: 2})
			So(err, ShouldBeNil)

			Convey("Then only the most recent sessions come back", func() {
				So(got, ShouldHaveLength, 2)
				So(got[0].WPM, ShouldEqual, 44.0)
			})
		})

		Convey("When the user has no sessions", func() {
			got, err := store.Sessions(ctx, "nobody", repository.SessionFilter{Limit: 10})

			Convey("Then the result is empty, not an error", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 0)
			})
		})
	})
}

func TestSQLiteStore_TopAggregates(t *testing.T) {
	Convey("Given a store with several users", t, func() {
		store := openStore(t)
		ctx := context.Background()

		users := []struct {
			id, name string
			wpm      float64
		}{
			{"u1", "alice", 90},
			{"u2", "bob", 70},
			{"u3", "carol", 80},
		}
		for _, u := range users {
			So(store.CreateUser(ctx, model.User{ID: u.id, Username: u.name, Active: true}), ShouldBeNil)
			_, err := store.RecordSession(ctx, session(u.id, u.wpm, 90, 60))
			So(err, ShouldBeNil)
		}

		Convey("When reading the top aggregates", func() {
			top, err := store.TopAggregates(ctx, 10)
			So(err, ShouldBeNil)

			Convey("Then they are ordered by best WPM descending", func() {
				So(top, ShouldHaveLength, 3)
				So(top[0].Username, ShouldEqual, "alice")
				So(top[1].Username, ShouldEqual, "carol")
				So(top[2].Username, ShouldEqual, "bob")
			})
		})

		Convey("When two users tie on best WPM", func() {
			So(store.CreateUser(ctx, model.User{ID: "u4", Username: "dave", Active: true}), ShouldBeNil)
			// dave reaches 90 after alice did
			_, err := store.RecordSession(ctx, session("u4", 90, 95, 60))
			So(err, ShouldBeNil)

			top, err := store.TopAggregates(ctx, 10)
			So(err, ShouldBeNil)

			Convey("Then the earlier achiever ranks higher", func() {
				So(top[0].Username, ShouldEqual, "alice")
				So(top[1].Username, ShouldEqual, "dave")
			})
		})

		Convey("When a user is deactivated", func() {
			So(store.SetUserActive(ctx, "u1", false), ShouldBeNil)

			top, err := store.TopAggregates(ctx, 10)
			So(err, ShouldBeNil)

			Convey("Then they are excluded from the ranking", func() {
				So(top, ShouldHaveLength, 2)
				So(top[0].Username, ShouldEqual, "carol")
			})
		})

		Convey("When n caps the result", func() {
			top, err := store.TopAggregates(ctx, 1)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 1)
		})

		Convey("And Count tracks users with aggregates", func() {
			So(store.Count(ctx), ShouldEqual, 3)
		})
	})
}
