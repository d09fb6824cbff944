package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"blind-book-reader/internal/artifact"
	"blind-book-reader/internal/catalog"
)

// uploadResp is the JSON response returned after a successful upload.
type uploadResp struct {
	Message string `json:"message"`
}

const uploadSuccessMessage = "Book uploaded successfully"

// maxNameAttempts bounds the retries when two uploads of the same
// filename land in the same millisecond.
const maxNameAttempts = 5

// uploadHandler handles POST /upload multipart requests.
//
// The file part is streamed straight into the artifact store under
// "<unixMillis>-<filename>"; title and author are plain form fields and
// may arrive before or after the file. Once the file is stored a record
// is appended to the catalog.
//
// Form fields: file (required), title, author
// Response: {"message": "Book uploaded successfully"}
func (s *Server) uploadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid := RequestIDFromContext(r.Context())

		if s.maxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
		}

		mr, err := r.MultipartReader()
		if err != nil {
			s.metrics.RecordUploadError()
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		var (
			rec      catalog.Record
			stored   bool
			size     int64
			origName string
		)

		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				s.metrics.RecordUploadError()
				if isMaxBytes(err) {
					writeError(w, http.StatusRequestEntityTooLarge, "file too large")
					return
				}
				writeError(w, http.StatusBadRequest, "invalid multipart form")
				return
			}

			switch part.FormName() {
			case "title", "author":
				value, err := io.ReadAll(part)
				_ = part.Close()
				if err != nil {
					s.metrics.RecordUploadError()
					if stored {
						s.logger.Warn("upload aborted after file stored",
							zap.String("rid", rid),
							zap.String("file", rec.File),
							zap.String("field", part.FormName()),
							zap.Error(err))
					}
					if isMaxBytes(err) {
						writeError(w, http.StatusRequestEntityTooLarge, "file too large")
						return
					}
					writeError(w, http.StatusBadRequest, "invalid multipart form")
					return
				}
				if part.FormName() == "title" {
					rec.Title = string(value)
				} else {
					rec.Author = string(value)
				}

			case "file":
				if stored || part.FileName() == "" {
					// Only the first file part counts.
					_ = part.Close()
					continue
				}
				origName = part.FileName()
				name, n, err := s.storeFile(r, part, origName, part.Header.Get("Content-Type"))
				_ = part.Close()
				if err != nil {
					s.metrics.RecordUploadError()
					if isMaxBytes(err) {
						writeError(w, http.StatusRequestEntityTooLarge, "file too large")
						return
					}
					s.logger.Error("store upload failed",
						zap.String("rid", rid),
						zap.String("filename", origName),
						zap.Error(err))
					writeError(w, http.StatusInternalServerError, "failed to store file")
					return
				}
				rec.File = name
				size = n
				stored = true

			default:
				_ = part.Close()
			}
		}

		if !stored {
			s.metrics.RecordUploadError()
			writeError(w, http.StatusBadRequest, "missing file")
			return
		}

		if err := s.catalog.Append(r.Context(), rec); err != nil {
			s.metrics.RecordUploadError()
			// The stored file stays; it is unreferenced but harmless.
			s.logger.Error("catalog append failed",
				zap.String("rid", rid),
				zap.String("file", rec.File),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to record upload")
			return
		}

		s.metrics.RecordUpload(size, time.Since(start))
		s.logger.Info("book uploaded",
			zap.String("rid", rid),
			zap.String("title", rec.Title),
			zap.String("author", rec.Author),
			zap.String("file", rec.File),
			zap.String("size", humanize.Bytes(uint64(size))))

		writeJSON(w, http.StatusOK, uploadResp{Message: uploadSuccessMessage})
	})
}

// storeFile writes body under a fresh timestamped name, moving to the next
// millisecond if the name is already taken. Stores reject a taken name
// before consuming body, so retrying is safe.
func (s *Server) storeFile(r *http.Request, body io.Reader, origName, contentType string) (string, int64, error) {
	now := s.now()
	var lastErr error
	for i := 0; i < maxNameAttempts; i++ {
		name := artifact.StoredName(now.Add(time.Duration(i)*time.Millisecond), origName)
		n, err := s.artifacts.Put(r.Context(), name, body, contentType)
		if errors.Is(err, artifact.ErrExists) {
			lastErr = err
			continue
		}
		if err != nil {
			return "", n, err
		}
		return name, n, nil
	}
	return "", 0, lastErr
}

func isMaxBytes(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
