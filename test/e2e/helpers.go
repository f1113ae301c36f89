package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/assay-dev/assay/pkg/engine"
	"github.com/assay-dev/assay/pkg/models"
)

// Frame is one parsed server-sent event.
type Frame struct {
	Event string
	Data  string
}

// DonePayload mirrors the terminal "done" frame body.
type DonePayload struct {
	Status models.RunStatus       `json:"status"`
	Result *models.AnalysisResult `json:"result"`
}

// ErrorPayload mirrors the terminal "error" frame body.
type ErrorPayload struct {
	Code    engine.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// Stream is a live SSE subscription.
type Stream struct {
	resp   *http.Response
	frames chan Frame
	errs   chan error
}

// openStream starts reading SSE frames from a streaming response.
func openStream(resp *http.Response) *Stream {
	s := &Stream{
		resp:   resp,
		frames: make(chan Frame, 64),
		errs:   make(chan error, 1),
	}
	go func() {
		defer close(s.frames)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var current Frame
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				current.Event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				current.Data = strings.TrimPrefix(line, "data: ")
			case line == "":
				if current.Event != "" {
					s.frames <- current
				}
				current = Frame{}
			}
		}
		if err := scanner.Err(); err != nil {
			s.errs <- err
		}
	}()
	return s
}

// Next returns the next frame, failing the test after the timeout.
func (s *Stream) Next(t *testing.T, timeout time.Duration) Frame {
	t.Helper()
	select {
	case f, ok := <-s.frames:
		require.True(t, ok, "stream closed before the expected frame")
		return f
	case <-time.After(timeout):
		t.Fatal("timed out waiting for SSE frame")
		return Frame{}
	}
}

// Collect drains the stream to its end and returns all remaining frames.
func (s *Stream) Collect(t *testing.T, timeout time.Duration) []Frame {
	t.Helper()
	var frames []Frame
	deadline := time.After(timeout)
	for {
		select {
		case f, ok := <-s.frames:
			if !ok {
				return frames
			}
			frames = append(frames, f)
		case <-deadline:
			t.Fatal("timed out draining SSE stream")
		}
	}
}

// Close abandons the stream, simulating a client disconnect.
func (s *Stream) Close() {
	s.resp.Body.Close()
}

func events(frames []Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Event)
	}
	return out
}

func decodeFrame(t *testing.T, f Frame, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(f.Data), out))
}

// StartPipeline posts /pipeline/start and returns the live stream.
func (app *TestApp) StartPipeline(t *testing.T, body map[string]any) *Stream {
	t.Helper()
	return app.postStream(t, "/pipeline/start", body)
}

// ResumePipeline posts /pipeline/resume and returns the live stream.
func (app *TestApp) ResumePipeline(t *testing.T, body map[string]any) *Stream {
	t.Helper()
	return app.postStream(t, "/pipeline/resume", body)
}

func (app *TestApp) postStream(t *testing.T, path string, body map[string]any) *Stream {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(app.BaseURL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	t.Cleanup(func() { resp.Body.Close() })
	return openStream(resp)
}

// RunToCompletion starts a pipeline and returns all frames plus the decoded
// terminal payload.
func (app *TestApp) RunToCompletion(t *testing.T, problem string) ([]Frame, DonePayload) {
	t.Helper()
	stream := app.StartPipeline(t, map[string]any{"problem": problem})
	frames := stream.Collect(t, 15*time.Second)
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	require.Equal(t, "done", last.Event)
	var done DonePayload
	decodeFrame(t, last, &done)
	return frames, done
}
