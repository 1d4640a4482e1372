package auth

import (
	"context"

	"worksafety/core/store"
)

// Actor is the identity a core operation runs on behalf of.
type Actor struct {
	UserID int64
	Email  string
	Roles  []string
}

func ActorFromSession(sr *store.SessionRecord) Actor {
	if sr == nil {
		return Actor{}
	}
	return Actor{UserID: sr.UserID, Email: sr.Email, Roles: sr.Roles}
}

func ActorFromUser(u *store.User) Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{UserID: u.ID, Email: u.Email, Roles: u.Roles()}
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	sr, ok := ctx.Value(SessionContextKey).(*store.SessionRecord)
	if !ok || sr == nil {
		return Actor{}, false
	}
	return ActorFromSession(sr), true
}
