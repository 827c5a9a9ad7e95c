/*
This package contains lowish-level APIs for making database queries to our Postgres database. It streamlines the process of mapping query results to Go types, while allowing you to write arbitrary SQL queries.

The primary functions are Query and QueryIterator. See the function documentation for detailed usage.

Query syntax

This package allows a few small extensions to SQL syntax to streamline the interaction between Go and Postgres.

Arguments can be provided using placeholders like $1, $2, etc. All arguments will be safely escaped and mapped from their Go type to the correct Postgres type. (This is a direct proxy to pgx.)

	threadIDs, err := db.QueryScalar[int](ctx, conn,
		`
		SELECT id
		FROM thread
		WHERE
			subsection_id = ANY($1)
			AND deleted = $2
		`,
		[]int{1, 2},
		false,
	)

(This also demonstrates a useful tip: if you want to use a slice in your query, use Postgres arrays instead of IN.)

To query multiple columns at once, you may use a struct type with `db:"column_name"` tags, and the special $columns placeholder:

	type Section struct {
		ID   int    `db:"id"`
		Name string `db:"name"`
	}
	sections, err := db.Query[Section](ctx, conn, `SELECT $columns FROM section`)
	// Resulting query:
	// SELECT id, name FROM section

Sometimes a table name prefix is required on each column to disambiguate between column names, especially when performing a JOIN. In those situations, you can include the prefix in the $columns placeholder like $columns{prefix}. Nested structs add their own tag to the prefix, joined with an underscore:

	type Message struct {
		ID     int    `db:"id"`
		Author User   `db:"author"`
	}
	messages, err := db.Query[Message](ctx, conn, `
		SELECT $columns{m}
		FROM
			message AS m
			JOIN app_user AS m_author ON m_author.id = m.user_id
	`)
	// Resulting query:
	// SELECT m.id, m_author.id, m_author.name FROM ...

Columns that may be NULL should be mapped to pointer fields. Custom types whose underlying kind is an integer, string, or bool (like `type Visibility string`) are converted automatically.
*/
package db
