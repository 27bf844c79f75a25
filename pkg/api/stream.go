package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Stream is a live websocket connection to one conversation.
type Stream struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	once    sync.Once
}

// StreamEvents opens a websocket that replays events after latestEventID
// and then pushes new ones as they happen. Pass -1 to receive everything.
func (c *Client) StreamEvents(ctx context.Context, conversationID string, latestEventID int64) (*Stream, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/conversations/" + url.PathEscape(conversationID)
	u.RawQuery = url.Values{"latest_event_id": {strconv.FormatInt(latestEventID, 10)}}.Encode()

	header := http.Header{}
	header.Set("X-Request-ID", uuid.NewString())
	if c.config.APIKey != "" {
		header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.httpClient.Timeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing stream: %w", &StatusError{Status: resp.StatusCode, Body: resp.Status})
		}
		return nil, fmt.Errorf("dialing stream: %w", err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks until the server sends the next event frame.
func (s *Stream) Next() (json.RawMessage, error) {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("reading stream: %w", err)
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		return json.RawMessage(data), nil
	}
}

// Send pushes a user message over the socket.
func (s *Stream) Send(msg Message) error {
	data, err := json.Marshal(msg.action())
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing stream: %w", err)
	}
	return nil
}

// Close shuts the connection down. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// IsClosed reports whether err means the stream ended normally.
func IsClosed(err error) bool {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
}
