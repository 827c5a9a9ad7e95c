package auth

import (
	"context"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/models"
)

/*
Checks a user name and hex-encoded password and opens a new session.

Returns a nil user, without an error, if the name is unknown or the password
does not match.
*/
func SignOn(
	ctx context.Context,
	conn, passConn db.ConnOrTx,
	sessions SessionStore,
	tokens *TokenSource,
	userName, passHex string,
) (*models.User, string, error) {
	token := tokens.NewToken()

	user, err := FindUser(ctx, conn, userName)
	if err != nil || user == nil {
		return nil, "", err
	}

	ok, err := VerifyUserPassword(ctx, passConn, user, passHex)
	if err != nil || !ok {
		return nil, "", err
	}

	if err := sessions.SaveSession(ctx, user.ID, token); err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// Returns false if the name is already taken.
func SignUp(ctx context.Context, conn, passConn db.ConnOrTx, userName, passHex string) (bool, error) {
	existing, err := FindUser(ctx, conn, userName)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	if err := SaveUser(ctx, conn, userName); err != nil {
		return false, err
	}

	user, err := FindUser(ctx, conn, userName)
	if err != nil {
		return false, err
	}

	if err := SaveUserPassword(ctx, passConn, user, passHex); err != nil {
		return false, err
	}

	return true, nil
}

// With no credential there is nothing to list.
func ListSessions(ctx context.Context, sessions SessionStore, current *string) ([]models.UserSession, error) {
	if current == nil {
		return []models.UserSession{}, nil
	}
	return sessions.ListSessions(ctx, *current)
}

// Removes one of the caller's sessions and returns the ones left.
func RemoveSession(ctx context.Context, sessions SessionStore, current, other string) ([]models.UserSession, error) {
	if err := sessions.RemoveSession(ctx, current, other); err != nil {
		return nil, err
	}
	return sessions.ListSessions(ctx, current)
}

func RemoveAllSessions(ctx context.Context, sessions SessionStore, current string) error {
	return sessions.RemoveAllSessions(ctx, current)
}

// Ends the current session, or every session of the user with removeAll.
// Without a credential this does nothing.
func Logout(ctx context.Context, sessions SessionStore, current *string, removeAll bool) error {
	if current == nil {
		return nil
	}
	if removeAll {
		return sessions.RemoveAllSessions(ctx, *current)
	}
	return sessions.RemoveSession(ctx, *current, *current)
}
