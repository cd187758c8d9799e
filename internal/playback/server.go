package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/edulearn/lesson-video/internal/logging"
)

var ErrFileNotFound = errors.New("video file not found")

const localCacheControl = "public, max-age=3600"

// LocalServer serves files from the videos sandbox honouring a single byte range.
// Bytes are streamed from disk with seek + copy; nothing is buffered whole.
type LocalServer struct {
	sandbox *Sandbox
	logger  *slog.Logger
}

func NewLocalServer(sandbox *Sandbox, logger *slog.Logger) *LocalServer {
	return &LocalServer{sandbox: sandbox, logger: logging.OrDiscard(logger)}
}

// Serve writes the file named by videoURL. It returns ErrPathEscape or
// ErrFileNotFound without writing anything so the caller can choose the error
// body; an unsatisfiable range is answered here with a 416.
func (s *LocalServer) Serve(w http.ResponseWriter, r *http.Request, videoURL string) error {
	filePath, err := s.sandbox.Resolve(videoURL)
	if err != nil {
		s.logger.Warn("rejected video path", "path", videoURL)
		return err
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		return ErrFileNotFound
	}

	size := stat.Size()
	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", MimeFor(filePath))

	parsedRange, err := ParseRange(r.Header.Get("Range"), size)
	if errors.Is(err, ErrUnsatisfiable) {
		h.Del("Content-Type")
		h.Set("Content-Range", UnsatisfiedRange(size))
		h.Set("Content-Length", "0")
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	if errors.Is(err, ErrInvalidRange) {
		s.logger.Debug("ignoring malformed range header", "range", r.Header.Get("Range"))
		parsedRange = nil
	}

	if parsedRange == nil {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		h.Set("Cache-Control", localCacheControl)
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			s.copy(w, file, size)
		}
		return nil
	}

	h.Set("Content-Length", strconv.FormatInt(parsedRange.ContentLength(), 10))
	h.Set("Content-Range", parsedRange.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := file.Seek(parsedRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	s.copy(w, file, parsedRange.ContentLength())
	return nil
}

// copy errors after the header is written mean the client went away.
func (s *LocalServer) copy(w io.Writer, r io.Reader, n int64) {
	if _, err := io.CopyN(w, r, n); err != nil {
		s.logger.Debug("video copy interrupted", "error", err)
	}
}
