package auth

import (
	"context"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
)

// Returns nil if the token is unknown or its user no longer exists.
func UserBySession(ctx context.Context, conn db.ConnOrTx, sessions SessionStore, token string) (*models.User, error) {
	userID, ok, err := sessions.SessionUserID(ctx, token)
	if err != nil || !ok {
		return nil, err
	}
	return FetchUser(ctx, conn, userID)
}

/*
Turns the credential presented with a request into the calling user.

A nil credential fails with KindNoSession. A credential that does not lead to
a user fails with KindUserNotLoggedIn.
*/
func ResolveCaller(ctx context.Context, credential *string, sessions SessionStore, conn db.ConnOrTx) (*models.User, error) {
	if credential == nil {
		return nil, oops.Fail(oops.KindNoSession)
	}

	user, err := UserBySession(ctx, conn, sessions, *credential)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, oops.Fail(oops.KindUserNotLoggedIn)
	}
	return user, nil
}

// Like ResolveCaller, but anonymous callers get a nil user instead of an
// error.
func OptionalCaller(ctx context.Context, credential *string, sessions SessionStore, conn db.ConnOrTx) (*models.User, error) {
	user, err := ResolveCaller(ctx, credential, sessions, conn)
	switch oops.KindOf(err) {
	case oops.KindNoSession, oops.KindUserNotLoggedIn:
		return nil, nil
	}
	return user, err
}
