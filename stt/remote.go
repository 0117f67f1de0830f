package stt

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// RemoteEngine talks the step protocol to a recognizer server over a
// websocket, one connection per decoder.
type RemoteEngine struct {
	URL    string
	APIKey string
	// Timeout bounds each reply; zero waits forever.
	Timeout time.Duration
}

func (e *RemoteEngine) NewDecoder(ctx context.Context, params Params) (Decoder, error) {
	header := http.Header{}
	if e.APIKey != "" {
		header.Set("kyutai-api-key", e.APIKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, e.URL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", e.URL, err)
	}

	t := &wsTransport{conn: conn, timeout: e.Timeout}
	t.stop = context.AfterFunc(ctx, func() { conn.Close() })

	dec, err := handshake(t, params)
	if err != nil {
		t.close()
		return nil, err
	}
	return dec, nil
}

type wsTransport struct {
	conn    *websocket.Conn
	timeout time.Duration
	stop    func() bool
}

func (w *wsTransport) send(m message) error {
	return w.conn.WriteJSON(m)
}

func (w *wsTransport) recv() (message, error) {
	var m message
	if w.timeout > 0 {
		w.conn.SetReadDeadline(time.Now().Add(w.timeout))
	}
	if err := w.conn.ReadJSON(&m); err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return m, fmt.Errorf("engine closed the connection: %w", err)
		}
		return m, err
	}
	return m, nil
}

func (w *wsTransport) close() error {
	if w.stop != nil {
		w.stop()
	}
	w.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return w.conn.Close()
}
