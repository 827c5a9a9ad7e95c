package forum

import (
	"context"
	"errors"
	"time"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/logging"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"git.handmade.network/hmn/forumwiki/src/utils"
)

/*
Creates a thread and its first message, which always gets id 1. Fails with
KindCreate if the subsection does not exist or is deleted. Returns the id of
the new thread.
*/
func CreateThread(ctx context.Context, conn db.ConnOrTx, in models.NewThread, author *models.User) (int, error) {
	tx, err := db.BeginExclusive(ctx, conn, "thread")
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	nameID, err := db.QueryOneScalar[int](ctx, tx, `INSERT INTO thread_name (name) VALUES ($1) RETURNING id`, in.Name)
	if err != nil {
		return 0, oops.New(err, "failed to insert thread name")
	}

	threadID, err := db.QueryOneScalar[int](ctx, tx,
		`
		INSERT INTO thread (subsection_id, name_id, author_id, create_time, update_time, message_seq)
		SELECT subsection.id, $2, $3, $4, $4, 1
		FROM
			subsection
			JOIN section ON section.id = subsection.section_id
		WHERE
			subsection.id = $1
			AND NOT subsection.deleted
			AND NOT section.deleted
		RETURNING id
		`,
		in.SubSectionID,
		nameID,
		author.ID,
		now,
	)
	if errors.Is(err, db.NotFound) {
		return 0, oops.Fail(oops.KindCreate)
	} else if err != nil {
		return 0, oops.New(err, "failed to insert thread")
	}

	if err := insertMessage(ctx, tx, threadID, 1, author, in.Message, now); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, oops.New(err, "failed to commit new thread")
	}

	logging.ExtractLogger(ctx).Debug().
		Int("thread", threadID).
		Int("subsection", in.SubSectionID).
		Msg("created thread")

	return threadID, nil
}

/*
This query produces one row per thread, named t, along with t_author and
t_last_user, so that models.Thread can be read out of it with $columns{t}.
The placeholder is filled in with a WHERE clause.
*/
const threadsQuery = `
	SELECT $columns{t}
	FROM
		(
			SELECT
				thread.id,
				thread.subsection_id,
				thread_name.name,
				thread.author_id,
				thread.create_time,
				thread.update_time,
				(SELECT count(*) FROM message WHERE message.thread_id = thread.id) AS total_messages,
				last_message.id AS last_message_id,
				last_message.user_id AS last_user_id,
				last_message.create_time AS last_message_time
			FROM
				thread
				JOIN thread_name ON thread_name.id = thread.name_id
				JOIN subsection ON subsection.id = thread.subsection_id
				JOIN section ON section.id = subsection.section_id
				JOIN LATERAL (
					SELECT id, user_id, create_time
					FROM message
					WHERE message.thread_id = thread.id
					ORDER BY id DESC
					LIMIT 1
				) AS last_message ON TRUE
`

const threadsQueryJoins = `
		) AS t
		JOIN app_user AS t_author ON t_author.id = t.author_id
		JOIN app_user AS t_last_user ON t_last_user.id = t.last_user_id
`

func addThreadFilter(qb *db.QueryBuilder, q models.ThreadsQuery) {
	qb.Add(`WHERE NOT thread.deleted`)
	switch q.Type {
	case models.ThreadsBySection:
		qb.Add(`AND subsection.section_id = $? AND NOT subsection.deleted AND NOT section.deleted`, q.ID)
	case models.ThreadsBySubSection:
		qb.Add(`AND thread.subsection_id = $? AND NOT subsection.deleted AND NOT section.deleted`, q.ID)
	}
}

/*
Fetches one page of threads, most recently updated first. Posting a message
bumps a thread to the top. Pages are 1-based.
*/
func ListThreads(ctx context.Context, conn db.ConnOrTx, q models.ThreadsQuery, page int) ([]*models.Thread, error) {
	var qb db.QueryBuilder
	qb.Add(threadsQuery)
	addThreadFilter(&qb, q)
	qb.Add(threadsQueryJoins)
	qb.Add(`ORDER BY t.update_time DESC, t.id DESC`)
	qb.Add(`LIMIT $?`, ThreadsPerPage)
	if offset := utils.PageOffset(page, ThreadsPerPage); offset > 0 {
		qb.Add(`OFFSET $?`, offset)
	}

	threads, err := db.Query[models.Thread](ctx, conn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to fetch threads")
	}
	return threads, nil
}

// Counts the threads ListThreads would page through.
func CountThreads(ctx context.Context, conn db.ConnOrTx, q models.ThreadsQuery) (int, error) {
	var qb db.QueryBuilder
	qb.Add(
		`
		SELECT count(*)
		FROM
			thread
			JOIN subsection ON subsection.id = thread.subsection_id
			JOIN section ON section.id = subsection.section_id
		`,
	)
	addThreadFilter(&qb, q)

	count, err := db.QueryOneScalar[int](ctx, conn, qb.String(), qb.Args()...)
	if err != nil {
		return 0, oops.New(err, "failed to count threads")
	}
	return count, nil
}

// Lists a page of threads together with the total count.
func ThreadsPage(ctx context.Context, conn db.ConnOrTx, q models.ThreadsQuery, page int) (*models.ThreadsPage, error) {
	threads, err := ListThreads(ctx, conn, q, page)
	if err != nil {
		return nil, err
	}
	count, err := CountThreads(ctx, conn, q)
	if err != nil {
		return nil, err
	}
	return &models.ThreadsPage{Threads: threads, Count: count}, nil
}

// Returns nil if the thread does not exist or has been deleted. Deleted
// threads stay hidden here too, so MessagesPage cannot reach their messages.
func FetchThread(ctx context.Context, conn db.ConnOrTx, threadID int) (*models.Thread, error) {
	var qb db.QueryBuilder
	qb.Add(threadsQuery)
	qb.Add(`WHERE thread.id = $? AND NOT thread.deleted`, threadID)
	qb.Add(threadsQueryJoins)

	thread, err := db.QueryOne[models.Thread](ctx, conn, qb.String(), qb.Args()...)
	if errors.Is(err, db.NotFound) {
		return nil, nil
	} else if err != nil {
		return nil, oops.New(err, "failed to fetch thread")
	}
	return thread, nil
}

// Soft delete. Deleting a missing thread does nothing.
func DeleteThread(ctx context.Context, conn db.ConnOrTx, threadID int) error {
	_, err := conn.Exec(ctx, `UPDATE thread SET deleted = TRUE WHERE id = $1`, threadID)
	if err != nil {
		return oops.New(err, "failed to delete thread")
	}
	return nil
}

func MoveThread(ctx context.Context, conn db.ConnOrTx, threadID, subsectionID int) error {
	tag, err := conn.Exec(ctx, `UPDATE thread SET subsection_id = $2 WHERE id = $1`, threadID, subsectionID)
	if err != nil {
		return oops.New(err, "failed to move thread")
	}
	if tag.RowsAffected() == 0 {
		return oops.Fail(oops.KindThreadNotFound)
	}
	return nil
}

func RenameThread(ctx context.Context, conn db.ConnOrTx, threadID int, name string) error {
	tag, err := conn.Exec(ctx,
		`
		UPDATE thread_name
		SET name = $2
		FROM thread
		WHERE thread.id = $1 AND thread_name.id = thread.name_id
		`,
		threadID,
		name,
	)
	if err != nil {
		return oops.New(err, "failed to rename thread")
	}
	if tag.RowsAffected() == 0 {
		return oops.Fail(oops.KindThreadNotFound)
	}
	return nil
}
