package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/motorcraft/backend-configurator/internal/common"
)

// BodyLimit caps request payload size before JSON decoding runs. Configurator
// writes carry small DTOs, so anything past Max bytes is rejected with the
// same error envelope the rest of the API uses.
type BodyLimit struct {
	Max int64
}

func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			tooLarge(w)
			return
		}

		body, ok, err := b.buffer(r.Body)
		switch {
		case err != nil:
			common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid request body", nil)
			return
		case !ok:
			tooLarge(w)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		next.ServeHTTP(w, r)
	})
}

// buffer drains the body up to one byte past the limit. Chunked requests
// declare ContentLength -1, so overflow can only be seen by reading.
func (b BodyLimit) buffer(rc io.ReadCloser) ([]byte, bool, error) {
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, b.Max+1))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}
	return data, int64(len(data)) <= b.Max, nil
}

func tooLarge(w http.ResponseWriter) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body exceeds the allowed size", nil)
}
