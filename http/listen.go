package http

import (
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"node.town/hark/snd"
	"node.town/hark/transcription"
)

// Messages sent on /listen: one Word per fragment, then a Marker when the
// stream is done or an Error when the session failed.
type listenMessage struct {
	Type      string  `json:"type"`
	Text      string  `json:"text,omitempty"`
	StartTime float64 `json:"start_time,omitempty"`
	ID        string  `json:"id,omitempty"`
	Message   string  `json:"message,omitempty"`
}

type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) WriteFragment(f transcription.Fragment) error {
	return s.send(listenMessage{Type: "Word", Text: f.Text, StartTime: f.StartTime})
}

func (s *wsSink) send(m listenMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(m)
}

func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("file")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing file parameter")
		return
	}
	path := filepath.Join(s.audioDir, filepath.Base(name))

	wave, err := snd.Load(r.Context(), path)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	sink := &wsSink{conn: conn}
	sess := s.sessions(sink)
	res, runErr := sess.Run(r.Context(), wave)
	t := s.archiveSession(r.Context(), filepath.Base(name), sess.Params, res, runErr)

	final := listenMessage{Type: "Marker", ID: t.ID}
	if runErr != nil {
		final = listenMessage{Type: "Error", ID: t.ID, Message: runErr.Error()}
	}
	if err := sink.send(final); err != nil {
		s.logger.Warn("send final message", "error", err)
		return
	}
	sink.mu.Lock()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	sink.mu.Unlock()
}
