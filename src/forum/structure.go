/*
Package forum stores the forum: sections, subsections, threads, and the
messages in them.

Message ids are allocated per thread from the thread's message_seq counter, so
every thread numbers its messages 1, 2, 3 and so on with no gaps. Everything
that allocates an id runs in a transaction that holds a lock for the whole
read-increment-write sequence.
*/
package forum

import (
	"context"
	"errors"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
)

const (
	ThreadsPerPage  = 50
	MessagesPerPage = 50
)

/*
Fetches every visible section and subsection. A subsection is hidden when it or
its section is deleted. The page sizes are included so clients don't have to
hardcode them.
*/
func ForumStructure(ctx context.Context, conn db.ConnOrTx) (*models.ForumStructure, error) {
	sections, err := db.Query[models.Section](ctx, conn,
		`
		---- Fetch sections
		SELECT $columns
		FROM section
		WHERE NOT deleted
		ORDER BY id
		`,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch sections")
	}

	subsections, err := db.Query[models.SubSection](ctx, conn,
		`
		---- Fetch subsections
		SELECT $columns{subsection}
		FROM
			subsection
			JOIN section ON section.id = subsection.section_id
		WHERE
			NOT subsection.deleted
			AND NOT section.deleted
		ORDER BY subsection.id
		`,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch subsections")
	}

	res := &models.ForumStructure{
		Sections:        make([]models.Section, 0, len(sections)),
		SubSections:     make([]models.SubSection, 0, len(subsections)),
		ThreadsPerPage:  ThreadsPerPage,
		MessagesPerPage: MessagesPerPage,
	}
	for _, s := range sections {
		res.Sections = append(res.Sections, *s)
	}
	for _, s := range subsections {
		res.SubSections = append(res.SubSections, *s)
	}
	return res, nil
}

func CreateSection(ctx context.Context, conn db.ConnOrTx, name string) (int, error) {
	id, err := db.QueryOneScalar[int](ctx, conn, `INSERT INTO section (name) VALUES ($1) RETURNING id`, name)
	if err != nil {
		return 0, oops.New(err, "failed to create section")
	}
	return id, nil
}

// Fails with KindCreate if the section does not exist or is deleted.
func CreateSubsection(ctx context.Context, conn db.ConnOrTx, sectionID int, name string) (int, error) {
	id, err := db.QueryOneScalar[int](ctx, conn,
		`
		INSERT INTO subsection (section_id, name)
		SELECT id, $2 FROM section WHERE id = $1 AND NOT deleted
		RETURNING id
		`,
		sectionID,
		name,
	)
	if errors.Is(err, db.NotFound) {
		return 0, oops.Fail(oops.KindCreate)
	} else if err != nil {
		return 0, oops.New(err, "failed to create subsection")
	}
	return id, nil
}

func RenameSection(ctx context.Context, conn db.ConnOrTx, sectionID int, name string) error {
	tag, err := conn.Exec(ctx, `UPDATE section SET name = $2 WHERE id = $1`, sectionID, name)
	if err != nil {
		return oops.New(err, "failed to rename section")
	}
	if tag.RowsAffected() == 0 {
		return oops.Fail(oops.KindSectionNotFound)
	}
	return nil
}

func RenameSubsection(ctx context.Context, conn db.ConnOrTx, subsectionID int, name string) error {
	tag, err := conn.Exec(ctx, `UPDATE subsection SET name = $2 WHERE id = $1`, subsectionID, name)
	if err != nil {
		return oops.New(err, "failed to rename subsection")
	}
	if tag.RowsAffected() == 0 {
		return oops.Fail(oops.KindSubsectionNotFound)
	}
	return nil
}

// Moves a subsection into another section. Fails with KindSubsectionNotFound
// if the subsection is missing; an unknown target section is a foreign key
// violation and comes back as an infrastructure error.
func MoveSubsection(ctx context.Context, conn db.ConnOrTx, subsectionID, sectionID int) error {
	tag, err := conn.Exec(ctx, `UPDATE subsection SET section_id = $2 WHERE id = $1`, subsectionID, sectionID)
	if err != nil {
		return oops.New(err, "failed to move subsection")
	}
	if tag.RowsAffected() == 0 {
		return oops.Fail(oops.KindSubsectionNotFound)
	}
	return nil
}

// Soft delete. Deleting a missing section does nothing.
func DeleteSection(ctx context.Context, conn db.ConnOrTx, sectionID int) error {
	_, err := conn.Exec(ctx, `UPDATE section SET deleted = TRUE WHERE id = $1`, sectionID)
	if err != nil {
		return oops.New(err, "failed to delete section")
	}
	return nil
}

// Soft delete. Deleting a missing subsection does nothing.
func DeleteSubsection(ctx context.Context, conn db.ConnOrTx, subsectionID int) error {
	_, err := conn.Exec(ctx, `UPDATE subsection SET deleted = TRUE WHERE id = $1`, subsectionID)
	if err != nil {
		return oops.New(err, "failed to delete subsection")
	}
	return nil
}
