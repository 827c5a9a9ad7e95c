package forum

import (
	"context"
	"errors"
	"time"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"git.handmade.network/hmn/forumwiki/src/utils"
	"github.com/jackc/pgx/v5"
)

/*
Appends a message to a thread and returns its id, which is one more than the
thread's previous message. The thread row stays locked until the message is
committed, so concurrent posts to the same thread queue up behind each other
while posts to other threads go ahead.

Fails with KindThreadNotFound if the thread does not exist or is deleted.
*/
func PostMessage(ctx context.Context, conn db.ConnOrTx, in models.NewMessage, author *models.User) (int, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, oops.New(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	seq, err := db.QueryOneScalar[int](ctx, tx,
		`
		SELECT message_seq
		FROM thread
		WHERE id = $1 AND NOT deleted
		FOR UPDATE
		`,
		in.ThreadID,
	)
	if errors.Is(err, db.NotFound) {
		return 0, oops.Fail(oops.KindThreadNotFound)
	} else if err != nil {
		return 0, oops.New(err, "failed to read message sequence")
	}

	next := seq + 1
	now := time.Now()

	if err := insertMessage(ctx, tx, in.ThreadID, next, author, in.Message, now); err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE thread SET update_time = $2, message_seq = $3 WHERE id = $1`,
		in.ThreadID,
		now,
		next,
	)
	if err != nil {
		return 0, oops.New(err, "failed to bump thread")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, oops.New(err, "failed to commit message")
	}

	return next, nil
}

func insertMessage(ctx context.Context, tx pgx.Tx, threadID, messageID int, author *models.User, content string, now time.Time) error {
	contentID, err := db.QueryOneScalar[int](ctx, tx, `INSERT INTO message_content (content) VALUES ($1) RETURNING id`, content)
	if err != nil {
		return oops.New(err, "failed to insert message content")
	}

	_, err = tx.Exec(ctx,
		`
		INSERT INTO message (thread_id, id, user_id, create_time, update_time, content_id)
		VALUES ($1, $2, $3, $4, $4, $5)
		`,
		threadID,
		messageID,
		author.ID,
		now,
		contentID,
	)
	if err != nil {
		return oops.New(err, "failed to insert message")
	}
	return nil
}

/*
Replaces the content of a message. The content is written first and the edit
time second, and only the second step checks that the editor wrote the
message. Either step touching no rows fails with KindMessageNotFound, and
nothing is saved.
*/
func UpdateMessage(ctx context.Context, conn db.ConnOrTx, in models.MessageEdit, editor *models.User) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return oops.New(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`
		UPDATE message_content
		SET content = $3
		FROM message
		WHERE
			message.thread_id = $1
			AND message.id = $2
			AND message_content.id = message.content_id
		`,
		in.ThreadID,
		in.MessageID,
		in.Message,
	)
	if err != nil {
		return oops.New(err, "failed to update message content")
	}
	if tag.RowsAffected() == 0 {
		return oops.Fail(oops.KindMessageNotFound)
	}

	tag, err = tx.Exec(ctx,
		`
		UPDATE message
		SET update_time = $4
		WHERE thread_id = $1 AND id = $2 AND user_id = $3
		`,
		in.ThreadID,
		in.MessageID,
		editor.ID,
		time.Now(),
	)
	if err != nil {
		return oops.New(err, "failed to update message")
	}
	if tag.RowsAffected() == 0 {
		return oops.Fail(oops.KindMessageNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.New(err, "failed to commit message edit")
	}
	return nil
}

// Fetches one page of a thread's messages in id order. Pages are 1-based.
func ListMessages(ctx context.Context, conn db.ConnOrTx, threadID int, page int) ([]*models.Message, error) {
	var qb db.QueryBuilder
	qb.Add(
		`
		SELECT $columns{m}
		FROM
			(
				SELECT
					message.id,
					message.thread_id,
					message.user_id,
					message.create_time,
					message.update_time,
					message_content.content
				FROM
					message
					JOIN message_content ON message_content.id = message.content_id
				WHERE message.thread_id = $?
			) AS m
			JOIN app_user AS m_author ON m_author.id = m.user_id
		ORDER BY m.id
		LIMIT $?
		`,
		threadID,
		MessagesPerPage,
	)
	if offset := utils.PageOffset(page, MessagesPerPage); offset > 0 {
		qb.Add(`OFFSET $?`, offset)
	}

	messages, err := db.Query[models.Message](ctx, conn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to fetch messages")
	}
	return messages, nil
}

// Fetches a thread with one page of its messages. Returns nil if the thread
// does not exist or has been deleted, like FetchThread.
func MessagesPage(ctx context.Context, conn db.ConnOrTx, threadID int, page int) (*models.MessagesPage, error) {
	thread, err := FetchThread(ctx, conn, threadID)
	if err != nil || thread == nil {
		return nil, err
	}
	messages, err := ListMessages(ctx, conn, threadID, page)
	if err != nil {
		return nil, err
	}
	return &models.MessagesPage{Thread: thread, Messages: messages}, nil
}
