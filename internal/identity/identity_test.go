package identity_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/typetrack/typetrack/internal/domain/model"
	"github.com/typetrack/typetrack/internal/identity"
)

type userTable map[string]model.User

func (t userTable) UserByID(_ context.Context, id string) (model.User, error) {
	u, ok := t[id]
	if !ok {
		return model.User{}, errors.New("no such row")
	}
	return u, nil
}

func TestStoreResolver(t *testing.T) {
	Convey("Given a resolver over a token table and a user store", t, func() {
		verifier := identity.NewStaticVerifier()
		verifier.Issue("tok-alice", "u1")
		verifier.Issue("tok-ghost", "u404")
		verifier.Issue("tok-carol", "u2")

		users := userTable{
			"u1": {ID: "u1", Username: "alice", Active: true},
			"u2": {ID: "u2", Username: "carol", Active: false},
		}
		resolver := identity.NewStoreResolver(verifier, users)
		ctx := context.Background()

		Convey("When a valid token for an active user is resolved", func() {
			user, err := resolver.Resolve(ctx, "tok-alice")

			Convey("Then the identity comes back", func() {
				So(err, ShouldBeNil)
				So(user.ID, ShouldEqual, "u1")
				So(user.Username, ShouldEqual, "alice")
			})
		})

		Convey("When the token is unknown", func() {
			_, err := resolver.Resolve(ctx, "tok-nobody")
			So(errors.Is(err, identity.ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When the token maps to a missing user", func() {
			_, err := resolver.Resolve(ctx, "tok-ghost")
			So(errors.Is(err, identity.ErrUserUnknown), ShouldBeTrue)
		})

		Convey("When the user is deactivated", func() {
			_, err := resolver.Resolve(ctx, "tok-carol")
			So(errors.Is(err, identity.ErrUserDisabled), ShouldBeTrue)
		})

		Convey("When a token is re-issued to another user", func() {
			verifier.Issue("tok-alice", "u2")
			_, err := resolver.Resolve(ctx, "tok-alice")
			So(errors.Is(err, identity.ErrUserDisabled), ShouldBeTrue)
		})
	})
}
