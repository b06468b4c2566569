package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/lunara/reportmesh/report"
)

type generateRequest struct {
	Prompt          string `json:"prompt"`
	ForceNewSession bool   `json:"force_new_session,omitempty"`
}

// handleGenerate streams one turn as server-sent events. The blocks the
// turn produced are appended to the report before the done frame goes out.
func (h *handlers) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	var req generateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		writeInvalidRequest(w, "prompt is required")
		return
	}

	ctx := r.Context()

	if _, err := h.reports.Get(ctx, id); err != nil {
		writeMappedError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errorCodeInternal, "streaming is unsupported by response writer")
		return
	}

	userID := h.userID(r)
	forceNew := h.switched(userID, id) || req.ForceNewSession

	logger := h.opts.Logger
	logger.Info("http.generate.started", "report_id", id, "user_id", userID, "force_new_session", forceNew)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	stream := h.engine.Generate(ctx, report.GenerateRequest{
		UserID:          userID,
		ScopeID:         strconv.FormatInt(id, 10),
		Prompt:          req.Prompt,
		ForceNewSession: forceNew,
	})

	for ev := range stream {
		if ev.Type == report.OutputDone && len(ev.Blocks) > 0 {
			if _, err := h.reports.AppendBlocks(ctx, id, ev.Blocks); err != nil {
				logger.Error("http.generate.save_failed", "report_id", id, "error", err.Error())

				_ = writeSSE(w, flusher, report.OutputEvent{Type: report.OutputError, Message: fmt.Sprintf("failed to save blocks: %v", err)})
			}
		}

		// Write failures are ignored; the stream is drained so the turn can
		// release its session.
		_ = writeSSE(w, flusher, ev)
	}
}

func writeSSE(w io.Writer, flusher http.Flusher, ev report.OutputEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}

	flusher.Flush()

	return nil
}
