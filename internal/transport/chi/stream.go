package chi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/kailas-cloud/billsearch/internal/domain"
)

// Stream terminators. A streamed answer ends with exactly one of them: the sources
// marker on success, or the error marker when generation failed after text was sent.
const (
	SourcesMarker = "\n||SOURCES||"
	ErrorMarker   = "\n||ERROR||"
)

// generationTokensHeader is sent as a trailer on streams, since usage is known only at the end.
const generationTokensHeader = "X-Generation-Tokens"

// streamWriter commits the response on the first delta, so failures before any
// text is generated still get a JSON error reply.
type streamWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	usage   *domain.RequestUsage
	started bool
}

func newStreamWriter(w http.ResponseWriter, usage *domain.RequestUsage) *streamWriter {
	return &streamWriter{w: w, rc: http.NewResponseController(w), usage: usage}
}

func (s *streamWriter) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	h.Set("Trailer", generationTokensHeader)
	setUsageHeaders(s.w, s.usage)
	s.w.WriteHeader(http.StatusOK)
}

func (s *streamWriter) write(delta string) error {
	s.start()
	if _, err := io.WriteString(s.w, delta); err != nil {
		return fmt.Errorf("write delta: %w", err)
	}
	_ = s.rc.Flush()
	return nil
}

func (s *streamWriter) finish(sources []SearchHit) error {
	s.start()
	payload, err := json.Marshal(sourcesPayload{Sources: sources})
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	return s.terminate(SourcesMarker, payload)
}

// fail ends a committed stream with the error kind, so partial text is never
// mistaken for a complete answer.
func (s *streamWriter) fail(r errorReply) error {
	s.start()
	payload, err := json.Marshal(ErrorResponse{Kind: r.kind, Message: r.message})
	if err != nil {
		return fmt.Errorf("marshal stream error: %w", err)
	}
	return s.terminate(ErrorMarker, payload)
}

func (s *streamWriter) terminate(marker string, payload []byte) error {
	if _, err := io.WriteString(s.w, marker+string(payload)); err != nil {
		return fmt.Errorf("write stream terminator: %w", err)
	}
	if s.usage != nil && s.usage.Generated {
		s.w.Header().Set(generationTokensHeader, strconv.Itoa(s.usage.GenerationTokens))
	}
	_ = s.rc.Flush()
	return nil
}
