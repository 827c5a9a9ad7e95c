package migrations

import (
	"context"
	"time"

	"git.handmade.network/hmn/forumwiki/src/migration/types"
	"github.com/jackc/pgx/v5"
)

func init() {
	registerMigration(Initial{})
}

type Initial struct{}

func (m Initial) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
}

func (m Initial) Name() string {
	return "Initial"
}

func (m Initial) Description() string {
	return "Creates the forum, wiki, credential, and session tables"
}

func (m Initial) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		CREATE TABLE app_user (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE
		);

		CREATE TABLE section (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			deleted BOOLEAN NOT NULL DEFAULT FALSE
		);

		CREATE TABLE subsection (
			id SERIAL PRIMARY KEY,
			section_id INT NOT NULL REFERENCES section (id),
			name VARCHAR(255) NOT NULL,
			deleted BOOLEAN NOT NULL DEFAULT FALSE
		);

		CREATE TABLE thread_name (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('simple', name)) STORED
		);
		CREATE INDEX thread_name_tsv ON thread_name USING GIN (tsv);

		CREATE TABLE thread (
			id SERIAL PRIMARY KEY,
			subsection_id INT NOT NULL REFERENCES subsection (id),
			name_id INT NOT NULL REFERENCES thread_name (id),
			author_id INT NOT NULL REFERENCES app_user (id),
			create_time TIMESTAMP WITH TIME ZONE NOT NULL,
			update_time TIMESTAMP WITH TIME ZONE NOT NULL,
			message_seq INT NOT NULL,
			deleted BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX thread_update_time ON thread (update_time DESC) WHERE NOT deleted;

		CREATE TABLE message_content (
			id SERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('simple', content)) STORED
		);
		CREATE INDEX message_content_tsv ON message_content USING GIN (tsv);

		CREATE TABLE message (
			thread_id INT NOT NULL REFERENCES thread (id),
			id INT NOT NULL,
			user_id INT NOT NULL REFERENCES app_user (id),
			create_time TIMESTAMP WITH TIME ZONE NOT NULL,
			update_time TIMESTAMP WITH TIME ZONE,
			content_id INT NOT NULL REFERENCES message_content (id),
			PRIMARY KEY (thread_id, id)
		);

		CREATE TABLE article_content (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			content TEXT NOT NULL,
			tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('simple', name || ' ' || content)) STORED
		);
		CREATE INDEX article_content_tsv ON article_content USING GIN (tsv);

		CREATE TABLE article (
			id INT NOT NULL,
			version INT NOT NULL,
			path TEXT NOT NULL,
			content_id INT REFERENCES article_content (id) ON DELETE SET NULL,
			user_id INT NOT NULL REFERENCES app_user (id),
			create_time TIMESTAMP WITH TIME ZONE NOT NULL,
			active BOOLEAN NOT NULL,
			visibility VARCHAR(16) NOT NULL CHECK (visibility IN ('public', 'private')),
			name TEXT,
			content TEXT,
			PRIMARY KEY (id, version)
		);
		CREATE UNIQUE INDEX article_one_active ON article (id) WHERE active;

		CREATE TABLE article_comment_content (
			id SERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('simple', content)) STORED
		);
		CREATE INDEX article_comment_content_tsv ON article_comment_content USING GIN (tsv);

		CREATE TABLE article_comment (
			article_id INT NOT NULL,
			id INT NOT NULL,
			article_version INT NOT NULL,
			user_id INT NOT NULL REFERENCES app_user (id),
			create_time TIMESTAMP WITH TIME ZONE NOT NULL,
			update_time TIMESTAMP WITH TIME ZONE,
			content_id INT NOT NULL REFERENCES article_comment_content (id),
			PRIMARY KEY (article_id, id)
		);

		CREATE TABLE favorite_article (
			user_id INT NOT NULL REFERENCES app_user (id),
			article_id INT NOT NULL,
			PRIMARY KEY (user_id, article_id)
		);

		CREATE TABLE uploaded_file (
			id VARCHAR(64) PRIMARY KEY,
			user_id INT NOT NULL REFERENCES app_user (id),
			file_name VARCHAR(64) NOT NULL,
			mime VARCHAR(255) NOT NULL,
			orig_file_name TEXT NOT NULL
		);

		CREATE SCHEMA credentials;
		CREATE TABLE credentials.user_pass (
			user_id INT PRIMARY KEY,
			password VARCHAR(255) NOT NULL
		);

		CREATE SCHEMA sessions;
		CREATE TABLE sessions.user_session (
			user_session VARCHAR(64) PRIMARY KEY,
			user_id INT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			expires_at TIMESTAMP WITH TIME ZONE
		);
		CREATE INDEX user_session_user_id ON sessions.user_session (user_id);
	`)
	return err
}

func (m Initial) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		DROP SCHEMA sessions CASCADE;
		DROP SCHEMA credentials CASCADE;

		DROP TABLE uploaded_file;
		DROP TABLE favorite_article;
		DROP TABLE article_comment;
		DROP TABLE article_comment_content;
		DROP TABLE article;
		DROP TABLE article_content;
		DROP TABLE message;
		DROP TABLE message_content;
		DROP TABLE thread;
		DROP TABLE thread_name;
		DROP TABLE subsection;
		DROP TABLE section;
		DROP TABLE app_user;
	`)
	return err
}
