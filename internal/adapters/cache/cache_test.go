package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/typetrack/typetrack/internal/adapters/cache"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryCache(t *testing.T) {
	Convey("Given an in-process cache with a controllable clock", t, func() {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		c := cache.NewMemory(cache.WithClock(func() time.Time { return now }))
		ctx := context.Background()

		Convey("When a value is stored", func() {
			c.Set(ctx, "k", []byte("v"), 10*time.Second)

			Convey("Then it is readable before expiry", func() {
				got, ok := c.Get(ctx, "k")
				So(ok, ShouldBeTrue)
				So(string(got), ShouldEqual, "v")
			})

			Convey("And it disappears after the TTL elapses", func() {
				now = now.Add(11 * time.Second)
				_, ok := c.Get(ctx, "k")
				So(ok, ShouldBeFalse)
			})

			Convey("And a fresh Set refreshes the expiry", func() {
				now = now.Add(9 * time.Second)
				c.Set(ctx, "k", []byte("v2"), 10*time.Second)
				now = now.Add(5 * time.Second)
				got, ok := c.Get(ctx, "k")
				So(ok, ShouldBeTrue)
				So(string(got), ShouldEqual, "v2")
			})
		})

		Convey("When a value is stored with a non-positive TTL", func() {
			c.Set(ctx, "k", []byte("v"), 0)

			Convey("Then the default TTL applies", func() {
				now = now.Add(cache.DefaultTTL - time.Second)
				_, ok := c.Get(ctx, "k")
				So(ok, ShouldBeTrue)

				now = now.Add(2 * time.Second)
				_, ok = c.Get(ctx, "k")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When reading a key that was never written", func() {
			Convey("Then it is a plain miss", func() {
				_, ok := c.Get(ctx, "absent")
				So(ok, ShouldBeFalse)
			})
		})
	})
}
