/*
Package files stores uploaded files.

File bytes are kept in a BlobStore under the hex SHA-256 of their content, so
identical uploads are stored once. Clients never see the hash: every upload
gets its own opaque id in the uploaded_file table, which maps back to the hash
along with the original name and mime type.
*/
package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/logging"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"git.handmade.network/hmn/forumwiki/src/utils"
)

const (
	DefaultMime     = "application/octet-stream"
	DefaultFileName = "file"
)

/*
Builds the public id of an upload from the uploader, the upload time (UTC, to
the millisecond), and the file's position within its batch:

	u12f20261014T093005123i0
*/
func FileID(userID int, t time.Time, ordinal int) string {
	t = t.UTC()
	return fmt.Sprintf("u%df%04d%02d%02dT%02d%02d%02d%03di%d",
		userID,
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
		t.Nanosecond()/int(time.Millisecond),
		ordinal,
	)
}

// Maps a new file id to stored content and returns the id.
func RegisterFile(ctx context.Context, conn db.ConnOrTx, contentHash, mime, originalName string, uploader *models.User, ordinal int) (string, error) {
	id := FileID(uploader.ID, time.Now(), ordinal)

	_, err := conn.Exec(ctx,
		`
		INSERT INTO uploaded_file (id, user_id, file_name, mime, orig_file_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			file_name = EXCLUDED.file_name,
			mime = EXCLUDED.mime,
			orig_file_name = EXCLUDED.orig_file_name
		`,
		id,
		uploader.ID,
		contentHash,
		mime,
		originalName,
	)
	if err != nil {
		return "", oops.New(err, "failed to save file mapping")
	}
	return id, nil
}

// Fails with KindFileNotFound for unknown ids.
func ResolveFile(ctx context.Context, conn db.ConnOrTx, id string) (*models.UploadedFileWithLocation, error) {
	type fileRow struct {
		ID         string `db:"id"`
		FileName   string `db:"orig_file_name"`
		Mime       string `db:"mime"`
		StoredName string `db:"file_name"`
	}

	row, err := db.QueryOne[fileRow](ctx, conn, `SELECT $columns FROM uploaded_file WHERE id = $1`, id)
	if errors.Is(err, db.NotFound) {
		return nil, oops.Fail(oops.KindFileNotFound)
	} else if err != nil {
		return nil, oops.New(err, "failed to fetch file mapping")
	}

	return &models.UploadedFileWithLocation{
		File: models.UploadedFile{
			ID:       row.ID,
			FileName: row.FileName,
			Mime:     row.Mime,
		},
		StoredName: row.StoredName,
	}, nil
}

type Upload struct {
	Content  []byte
	FileName string
	Mime     string
}

/*
Stores a batch of uploads and registers an id for each one. Missing mime types
and names get defaults. Content that is already stored is not written again.
*/
func StoreUploads(ctx context.Context, conn db.ConnOrTx, blobs BlobStore, uploader *models.User, uploads []Upload) ([]models.UploadedFile, error) {
	result := make([]models.UploadedFile, 0, len(uploads))

	for i, upload := range uploads {
		sum := sha256.Sum256(upload.Content)
		hash := hex.EncodeToString(sum[:])
		mime := utils.OrDefault(upload.Mime, DefaultMime)
		name := utils.OrDefault(upload.FileName, DefaultFileName)

		exists, err := blobs.Exists(ctx, hash)
		if err != nil {
			return nil, err
		}
		if !exists {
			if err := blobs.Put(ctx, hash, upload.Content, mime); err != nil {
				return nil, err
			}
		}

		id, err := RegisterFile(ctx, conn, hash, mime, name, uploader, i)
		if err != nil {
			return nil, err
		}

		logging.ExtractLogger(ctx).Debug().
			Str("id", id).
			Str("hash", hash).
			Int("size", len(upload.Content)).
			Msg("stored upload")

		result = append(result, models.UploadedFile{
			ID:       id,
			FileName: name,
			Mime:     mime,
		})
	}

	return result, nil
}

// Looks up a file by id and opens its content. The caller must close the
// reader.
func Open(ctx context.Context, conn db.ConnOrTx, blobs BlobStore, id string) (*models.UploadedFileWithLocation, io.ReadCloser, error) {
	file, err := ResolveFile(ctx, conn, id)
	if err != nil {
		return nil, nil, err
	}
	content, err := blobs.Open(ctx, file.StoredName)
	if err != nil {
		return nil, nil, err
	}
	return file, content, nil
}

var REIllegalFilenameChars = regexp.MustCompile(`[^\w\-.]`)

func SanitizeFilename(filename string) string {
	if filename == "" {
		return "unnamed"
	}
	return REIllegalFilenameChars.ReplaceAllString(filename, "_")
}

/*
Returns a Content-Disposition header value for serving the file. Images are
shown inline and anything else is downloaded. The name is given both in
RFC 5987 form and as a plain ASCII fallback:

	attachment; filename*=UTF-8''na%C3%AFve.txt; filename="na_ve.txt"
*/
func ContentDisposition(file models.UploadedFile) string {
	disposition := "attachment"
	if strings.HasPrefix(file.Mime, "image/") {
		disposition = "inline"
	}
	return fmt.Sprintf(`%s; filename*=UTF-8''%s; filename="%s"`,
		disposition,
		encodeExtValue(file.FileName),
		SanitizeFilename(file.FileName),
	)
}

// Percent-encodes everything outside the RFC 5987 attr-char set.
func encodeExtValue(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xF])
		}
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
