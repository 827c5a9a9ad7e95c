package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"git.handmade.network/hmn/forumwiki/src/config"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"git.handmade.network/hmn/forumwiki/src/s3local"
	"git.handmade.network/hmn/forumwiki/src/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileID(t *testing.T) {
	ts := time.Date(2026, 3, 7, 9, 5, 4, 12_345_678, time.UTC)
	assert.Equal(t, "u12f20260307T090504012i0", FileID(12, ts, 0))
	assert.Equal(t, "u1f20260307T090504012i3", FileID(1, ts, 3))

	est := time.FixedZone("EST", -5*60*60)
	assert.Equal(t, "u1f20260307T090504012i0", FileID(1, ts.In(est), 0), "ids are always in UTC")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "cool_filename.txt.wow", SanitizeFilename("cool filename.txt.wow"))
	assert.Equal(t, "newlines_aretotallylegal", SanitizeFilename("newlines\naretotallylegal"))
	assert.Equal(t, "unnamed", SanitizeFilename(""))
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t,
		`inline; filename*=UTF-8''cat.png; filename="cat.png"`,
		ContentDisposition(models.UploadedFile{FileName: "cat.png", Mime: "image/png"}),
	)
	assert.Equal(t,
		`attachment; filename*=UTF-8''na%C3%AFve%20notes.txt; filename="na_ve_notes.txt"`,
		ContentDisposition(models.UploadedFile{FileName: "naïve notes.txt", Mime: "text/plain"}),
	)
	assert.Equal(t,
		`attachment; filename*=UTF-8''%22quoted%22; filename="_quoted_"`,
		ContentDisposition(models.UploadedFile{FileName: `"quoted"`, Mime: DefaultMime}),
	)
}

func testBlobStore(t *testing.T, blobs BlobStore) {
	ctx := context.Background()

	exists, err := blobs.Exists(ctx, "abc")
	require.Nil(t, err)
	assert.False(t, exists)

	_, err = blobs.Open(ctx, "abc")
	assert.Equal(t, oops.KindFileNotFound, oops.KindOf(err))

	require.Nil(t, blobs.Put(ctx, "abc", []byte("hello"), "text/plain"))
	require.Nil(t, blobs.Put(ctx, "abc", []byte("hello"), "text/plain"), "writing twice is harmless")

	exists, err = blobs.Exists(ctx, "abc")
	require.Nil(t, err)
	assert.True(t, exists)

	r, err := blobs.Open(ctx, "abc")
	require.Nil(t, err)
	defer r.Close()
	content, err := io.ReadAll(r)
	require.Nil(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestLocalBlobStore(t *testing.T) {
	testBlobStore(t, &LocalBlobStore{Dir: t.TempDir() + "/files"})
}

func TestS3BlobStore(t *testing.T) {
	s, err := s3local.New(t.TempDir())
	require.NoError(t, err)
	srv := httptest.NewServer(s)
	defer srv.Close()

	blobs, err := NewS3BlobStore(context.Background(), config.FilesConfig{
		Backend:    config.FilesInS3,
		S3Endpoint: srv.URL,
		S3Region:   "dummy-region",
		S3Bucket:   "forumwiki-test",
		S3Key:      "dummy",
		S3Secret:   "dummy",
	})
	require.NoError(t, err)

	testBlobStore(t, blobs)
}

func TestStoreUploads(t *testing.T) {
	conn := testdb.Open(t)
	ctx := context.Background()
	uploader := &models.User{ID: testdb.CreateUser(t, conn, "alice"), Name: "alice"}
	blobs := &LocalBlobStore{Dir: t.TempDir()}

	stored, err := StoreUploads(ctx, conn, blobs, uploader, []Upload{
		{Content: []byte("one"), FileName: "one.txt", Mime: "text/plain"},
		{Content: []byte("one")},
		{Content: []byte("\x89PNG"), FileName: "pic.png", Mime: "image/png"},
	})
	require.Nil(t, err)
	require.Len(t, stored, 3)

	assert.Equal(t, "one.txt", stored[0].FileName)
	assert.Equal(t, DefaultFileName, stored[1].FileName)
	assert.Equal(t, DefaultMime, stored[1].Mime)
	assert.NotEqual(t, stored[0].ID, stored[1].ID)
	assert.Regexp(t, `^u\d+f\d{8}T\d{9}i0$`, stored[0].ID)
	assert.Regexp(t, `i2$`, stored[2].ID)

	sum := sha256.Sum256([]byte("one"))
	hash := hex.EncodeToString(sum[:])

	file, content, err := Open(ctx, conn, blobs, stored[1].ID)
	require.Nil(t, err)
	defer content.Close()
	assert.Equal(t, hash, file.StoredName)
	assert.Equal(t, stored[1], file.File)
	b, err := io.ReadAll(content)
	require.Nil(t, err)
	assert.Equal(t, "one", string(b))

	first, err := ResolveFile(ctx, conn, stored[0].ID)
	require.Nil(t, err)
	assert.Equal(t, hash, first.StoredName, "identical content shares storage")

	_, err = ResolveFile(ctx, conn, "u1f20000101T000000000i0")
	assert.Equal(t, oops.KindFileNotFound, oops.KindOf(err))
}
