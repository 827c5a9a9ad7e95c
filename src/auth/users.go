package auth

import (
	"context"
	"encoding/hex"
	"errors"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/logging"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
)

// Returns nil if no user has that name.
func FindUser(ctx context.Context, conn db.ConnOrTx, name string) (*models.User, error) {
	user, err := db.QueryOne[models.User](ctx, conn, `SELECT $columns FROM app_user WHERE name = $1`, name)
	if errors.Is(err, db.NotFound) {
		return nil, nil
	} else if err != nil {
		return nil, oops.New(err, "failed to look up user by name")
	}
	return user, nil
}

// Returns nil if there is no user with that id.
func FetchUser(ctx context.Context, conn db.ConnOrTx, id int) (*models.User, error) {
	user, err := db.QueryOne[models.User](ctx, conn, `SELECT $columns FROM app_user WHERE id = $1`, id)
	if errors.Is(err, db.NotFound) {
		return nil, nil
	} else if err != nil {
		return nil, oops.New(err, "failed to fetch user")
	}
	return user, nil
}

// Fails with KindCreate if the name is taken.
func SaveUser(ctx context.Context, conn db.ConnOrTx, name string) error {
	tag, err := conn.Exec(ctx, `INSERT INTO app_user (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return oops.New(err, "failed to save user")
	}
	if tag.RowsAffected() == 0 {
		return oops.Fail(oops.KindCreate)
	}
	return nil
}

/*
Checks a hex-encoded password against the stored hash. Malformed hex, a
missing credential row, and an unreadable hash all count as a mismatch.

Hashes in an outdated format are replaced by a fresh Argon2id hash after a
successful check.
*/
func VerifyUserPassword(ctx context.Context, passConn db.ConnOrTx, user *models.User, passHex string) (bool, error) {
	password, err := hex.DecodeString(passHex)
	if err != nil {
		return false, nil
	}

	stored, err := db.QueryOneScalar[string](ctx, passConn, `SELECT password FROM credentials.user_pass WHERE user_id = $1`, user.ID)
	if errors.Is(err, db.NotFound) {
		return false, nil
	} else if err != nil {
		return false, oops.New(err, "failed to fetch password hash")
	}

	hashed, err := ParsePasswordString(stored)
	if err != nil {
		return false, nil
	}

	ok, err := CheckPassword(password, hashed)
	if err != nil {
		logging.ExtractLogger(ctx).Warn().Err(err).Int("user", user.ID).Msg("unusable password hash")
		return false, nil
	}

	if ok && hashed.IsOutdated() {
		if err := storePassword(ctx, passConn, user, HashPassword(password)); err != nil {
			logging.ExtractLogger(ctx).Error().Err(err).Int("user", user.ID).Msg("failed to upgrade password hash")
		}
	}

	return ok, nil
}

// Stores a new hash for a hex-encoded password. Malformed hex fails with
// KindInvalidPass.
func SaveUserPassword(ctx context.Context, passConn db.ConnOrTx, user *models.User, passHex string) error {
	password, err := hex.DecodeString(passHex)
	if err != nil {
		return oops.Fail(oops.KindInvalidPass)
	}
	return storePassword(ctx, passConn, user, HashPassword(password))
}

func storePassword(ctx context.Context, passConn db.ConnOrTx, user *models.User, hp HashedPassword) error {
	_, err := passConn.Exec(ctx,
		`
		INSERT INTO credentials.user_pass (user_id, password)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET password = EXCLUDED.password
		`,
		user.ID,
		hp.String(),
	)
	if err != nil {
		return oops.New(err, "failed to save password")
	}
	return nil
}
