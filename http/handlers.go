package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"node.town/hark/db"
	"node.town/hark/snd"
	"node.town/hark/stt"
	"node.town/hark/transcription"
)

type transcriptResponse struct {
	ID         string    `json:"id,omitempty"`
	Source     string    `json:"source"`
	Model      string    `json:"model,omitempty"`
	Device     string    `json:"device,omitempty"`
	Frames     int       `json:"frames"`
	Tokens     int       `json:"tokens"`
	Degenerate int       `json:"degenerate"`
	Text       string    `json:"text"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ElapsedMS  int64     `json:"elapsed_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

func newTranscriptResponse(t db.Transcript) transcriptResponse {
	return transcriptResponse{
		ID:         t.ID,
		Source:     t.Source,
		Model:      t.Model,
		Device:     t.Device,
		Frames:     t.Frames,
		Tokens:     t.Tokens,
		Degenerate: t.Degenerate,
		Text:       t.Text,
		Status:     t.Status,
		Error:      t.Error,
		ElapsedMS:  t.Elapsed.Milliseconds(),
		CreatedAt:  t.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps a session failure to an HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, transcription.ErrInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, transcription.ErrEngine), errors.Is(err, transcription.ErrDecode):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// archiveSession stores the outcome and returns the row as saved. A
// failure to archive is logged, not returned; the transcript itself is
// still good.
func (s *Server) archiveSession(ctx context.Context, source string, params stt.Params, res transcription.Result, runErr error) db.Transcript {
	t := db.Record(source, params, res, runErr)
	if s.archive == nil {
		return t
	}
	id, err := s.archive.Save(ctx, t)
	if err != nil {
		s.logger.Error("archive transcript", "source", source, "error", err)
		return t
	}
	t.ID = id
	return t
}

func inputError(err error) error {
	return &transcription.Error{Stage: transcription.ErrInput, Frame: -1, Err: err}
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart field \"audio\": "+err.Error())
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "hark-*"+filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.Remove(tmp.Name())
	_, err = io.Copy(tmp, file)
	tmp.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	var tr transcription.Transcript
	sess := s.sessions(&tr)

	wave, err := snd.Load(r.Context(), tmp.Name())
	if err != nil {
		err = inputError(err)
		t := s.archiveSession(r.Context(), header.Filename, sess.Params, transcription.Result{}, err)
		writeJSON(w, statusFor(err), newTranscriptResponse(t))
		return
	}

	res, runErr := sess.Run(r.Context(), wave)
	t := s.archiveSession(r.Context(), header.Filename, sess.Params, res, runErr)
	writeJSON(w, statusFor(runErr), newTranscriptResponse(t))
}

func (s *Server) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "no archive configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 500)
	}

	ts, err := s.archive.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]transcriptResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, newTranscriptResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "no archive configured")
		return
	}
	t, err := s.archive.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newTranscriptResponse(t))
}
