package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assay-dev/assay/pkg/engine"
	"github.com/assay-dev/assay/pkg/models"
)

// donePayload is the body of the terminal "done" SSE frame.
type donePayload struct {
	Status models.RunStatus       `json:"status"`
	Result *models.AnalysisResult `json:"result,omitempty"`
}

// errorPayload is the body of the terminal "error" SSE frame.
type errorPayload struct {
	Code    engine.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// streamRun writes the run's event stream as SSE until the run settles, then
// appends a terminal "done" or "error" frame. A client disconnect detaches the
// subscriber and cancels the run.
func (s *Server) streamRun(c *gin.Context, run *engine.Run) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache, no-transform")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		s.logger.Error("Response writer does not support streaming", "run_id", run.ID())
		return
	}

	sendFrame := func(event string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("Failed to marshal SSE payload",
				"run_id", run.ID(), "event", event, "error", err)
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			run.Unsubscribe()
			if s.manager.Cancel(run.ID()) {
				s.logger.Info("Client disconnected, run cancelled", "run_id", run.ID())
			}
			return

		case ev, open := <-run.Events():
			if !open {
				// Stream drained; wait for the orchestrator to finish so the
				// result is visible, then close out the stream.
				<-run.Done()
				s.sendTerminal(sendFrame, run)
				return
			}
			sendFrame(string(ev.Type), ev)
		}
	}
}

// sendTerminal emits the final SSE frame once the run has settled.
func (s *Server) sendTerminal(sendFrame func(string, any), run *engine.Run) {
	status := run.Status()
	if status.Status == models.RunFailed {
		code := engine.CodeUnknown
		message := "pipeline failed"
		if n := len(status.Errors); n > 0 {
			code = status.Errors[n-1].Code
			message = status.Errors[n-1].Message
		}
		sendFrame("error", errorPayload{Code: code, Message: message})
		return
	}
	sendFrame("done", donePayload{Status: status.Status, Result: run.Result()})
}
