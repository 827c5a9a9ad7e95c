package auth

import (
	"context"
	"errors"
	"time"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/jobs"
	"git.handmade.network/hmn/forumwiki/src/logging"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
)

/*
Where session tokens live. A user may hold any number of sessions at once.

Every method that takes a "current" token acts on behalf of the user who owns
that token, and does nothing if the token is unknown.
*/
type SessionStore interface {
	// Inserts the session, replacing any existing session with the same token.
	SaveSession(ctx context.Context, userID int, token string) error
	SessionUserID(ctx context.Context, token string) (userID int, ok bool, err error)
	// Every session of the user owning token, including token itself.
	ListSessions(ctx context.Context, token string) ([]models.UserSession, error)
	// Removes other, but only if it belongs to the same user as current.
	RemoveSession(ctx context.Context, current, other string) error
	RemoveAllSessions(ctx context.Context, current string) error
}

// Session access by user instead of by token, for admin tools.
type UserSessionAdmin interface {
	UserSessions(ctx context.Context, userID int) ([]models.UserSession, error)
	RemoveUserSessions(ctx context.Context, userID int) (int64, error)
}

// Stores sessions in the sessions schema. A zero TTL means sessions never
// expire.
type PgSessionStore struct {
	Conn db.ConnOrTx
	TTL  time.Duration
}

var _ SessionStore = &PgSessionStore{}
var _ UserSessionAdmin = &PgSessionStore{}

func (s *PgSessionStore) SaveSession(ctx context.Context, userID int, token string) error {
	now := time.Now().UTC()
	var expiresAt *time.Time
	if s.TTL > 0 {
		exp := now.Add(s.TTL)
		expiresAt = &exp
	}

	_, err := s.Conn.Exec(ctx,
		`
		INSERT INTO sessions.user_session (user_session, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_session) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
		`,
		token, userID, now, expiresAt,
	)
	if err != nil {
		return oops.New(err, "failed to save session")
	}
	return nil
}

func (s *PgSessionStore) SessionUserID(ctx context.Context, token string) (int, bool, error) {
	userID, err := db.QueryOneScalar[int](ctx, s.Conn,
		`
		SELECT user_id
		FROM sessions.user_session
		WHERE
			user_session = $1
			AND (expires_at IS NULL OR expires_at > $2)
		`,
		token, time.Now(),
	)
	if errors.Is(err, db.NotFound) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, oops.New(err, "failed to look up session")
	}
	return userID, true, nil
}

func (s *PgSessionStore) ListSessions(ctx context.Context, token string) ([]models.UserSession, error) {
	tokens, err := db.QueryScalar[string](ctx, s.Conn,
		`
		SELECT user_session
		FROM sessions.user_session
		WHERE
			user_id = (SELECT user_id FROM sessions.user_session WHERE user_session = $1)
			AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at
		`,
		token, time.Now(),
	)
	if err != nil {
		return nil, oops.New(err, "failed to list sessions")
	}

	result := make([]models.UserSession, 0, len(tokens))
	for _, t := range tokens {
		result = append(result, models.UserSession{Session: t})
	}
	return result, nil
}

func (s *PgSessionStore) RemoveSession(ctx context.Context, current, other string) error {
	_, err := s.Conn.Exec(ctx,
		`
		DELETE FROM sessions.user_session
		WHERE
			user_id = (SELECT user_id FROM sessions.user_session WHERE user_session = $1)
			AND user_session = $2
		`,
		current, other,
	)
	if err != nil {
		return oops.New(err, "failed to remove session")
	}
	return nil
}

func (s *PgSessionStore) RemoveAllSessions(ctx context.Context, current string) error {
	_, err := s.Conn.Exec(ctx,
		`
		DELETE FROM sessions.user_session
		WHERE user_id = (SELECT user_id FROM sessions.user_session WHERE user_session = $1)
		`,
		current,
	)
	if err != nil {
		return oops.New(err, "failed to remove sessions")
	}
	return nil
}

func (s *PgSessionStore) UserSessions(ctx context.Context, userID int) ([]models.UserSession, error) {
	sessions, err := db.Query[models.UserSession](ctx, s.Conn,
		`
		SELECT $columns
		FROM sessions.user_session
		WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at
		`,
		userID, time.Now(),
	)
	if err != nil {
		return nil, oops.New(err, "failed to list sessions of user")
	}

	result := make([]models.UserSession, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, *session)
	}
	return result, nil
}

func (s *PgSessionStore) RemoveUserSessions(ctx context.Context, userID int) (int64, error) {
	tag, err := s.Conn.Exec(ctx, `DELETE FROM sessions.user_session WHERE user_id = $1`, userID)
	if err != nil {
		return 0, oops.New(err, "failed to remove sessions of user")
	}
	return tag.RowsAffected(), nil
}

func DeleteExpiredSessions(ctx context.Context, conn db.ConnOrTx) (int64, error) {
	tag, err := conn.Exec(ctx, "DELETE FROM sessions.user_session WHERE expires_at <= CURRENT_TIMESTAMP")
	if err != nil {
		return 0, oops.New(err, "failed to delete expired sessions")
	}

	return tag.RowsAffected(), nil
}

func PeriodicallyDeleteExpiredSessions(conn db.ConnOrTx) *jobs.Job {
	return jobs.Periodic("delete expired sessions", time.Minute, func(ctx context.Context) error {
		n, err := DeleteExpiredSessions(ctx, conn)
		if err != nil {
			return err
		}
		if n > 0 {
			logging.ExtractLogger(ctx).Info().Int64("num deleted sessions", n).Msg("Deleted expired sessions")
		}
		return nil
	})
}
