/*
Package s3local is a tiny S3-compatible server that keeps buckets as
directories on disk. It understands just enough of the API for the files
package: creating buckets and putting, heading, and getting objects, all with
path-style URLs. Requests are not authenticated.

It exists for local development and tests.
*/
package s3local

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"git.handmade.network/hmn/forumwiki/src/logging"
)

type Server struct {
	Dir string
}

func New(dir string) (*Server, error) {
	if err := os.MkdirAll(dir, fs.ModePerm); err != nil {
		return nil, err
	}
	return &Server{Dir: dir}, nil
}

type errorResponse struct {
	XMLName  xml.Name `xml:"Error"`
	Code     string   `xml:"Code"`
	Message  string   `xml:"Message"`
	Resource string   `xml:"Resource"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	io.WriteString(w, xml.Header)
	xml.NewEncoder(w).Encode(errorResponse{
		Code:     code,
		Message:  message,
		Resource: r.URL.Path,
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key := bucketKey(r)
	logging.Debug().
		Str("method", r.Method).
		Str("bucket", bucket).
		Str("key", key).
		Msg("s3 request")

	if bucket == "" || bucket == "." || bucket == ".." {
		writeError(w, r, http.StatusBadRequest, "InvalidBucketName", "bad bucket name")
		return
	}
	if key == "." || key == ".." {
		writeError(w, r, http.StatusBadRequest, "InvalidArgument", "bad key")
		return
	}

	bucketDir := filepath.Join(s.Dir, bucket)
	if key == "" {
		switch r.Method {
		case http.MethodPut:
			if err := os.MkdirAll(bucketDir, fs.ModePerm); err != nil {
				writeError(w, r, http.StatusInternalServerError, "InternalError", err.Error())
				return
			}
			w.Header().Set("Location", fmt.Sprintf("/%s", bucket))
			w.WriteHeader(http.StatusOK)
		case http.MethodHead:
			if !dirExists(bucketDir) {
				writeError(w, r, http.StatusNotFound, "NoSuchBucket", "bucket does not exist")
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			writeError(w, r, http.StatusNotImplemented, "NotImplemented", "unsupported bucket operation")
		}
		return
	}

	if !dirExists(bucketDir) {
		writeError(w, r, http.StatusNotFound, "NoSuchBucket", "bucket does not exist")
		return
	}
	objectPath := filepath.Join(bucketDir, key)

	switch r.Method {
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "IncompleteBody", err.Error())
			return
		}
		if err := os.WriteFile(objectPath, body, 0o644); err != nil {
			writeError(w, r, http.StatusInternalServerError, "InternalError", err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		info, err := os.Stat(objectPath)
		if errors.Is(err, fs.ErrNotExist) {
			if r.Method == http.MethodHead {
				// HEAD errors have no body, and clients go by the status.
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeError(w, r, http.StatusNotFound, "NoSuchKey", "object does not exist")
			return
		} else if err != nil {
			writeError(w, r, http.StatusInternalServerError, "InternalError", err.Error())
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(info.Size()))
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		f, err := os.Open(objectPath)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "InternalError", err.Error())
			return
		}
		defer f.Close()
		io.Copy(w, f)
	default:
		writeError(w, r, http.StatusNotImplemented, "NotImplemented", "unsupported object operation")
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Keys with slashes are flattened into single file names.
func bucketKey(r *http.Request) (string, string) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	slashIdx := strings.IndexByte(path, '/')
	if slashIdx == -1 {
		return path, ""
	}
	return path[:slashIdx], strings.ReplaceAll(path[slashIdx+1:], "/", "~")
}
