package agent

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the session needs; tests substitute a
// fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session is one open conversational session. Reads are single-consumer
// (the bridge's agent pump); writes may come from both pumps, so they are
// serialized here — gorilla/websocket allows at most one concurrent writer.
type Session struct {
	conn Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func NewSession(conn Conn) *Session {
	return &Session{conn: conn}
}

// SendInitiation sends the single configuration handshake. Must be the first
// message on the session.
func (s *Session) SendInitiation(p InitiationPayload) error {
	if p.Type == "" {
		p.Type = "conversation_initiation_client_data"
	}
	return s.writeJSON(p)
}

// SendAudioChunk forwards one base64 telephony audio frame to the agent.
func (s *Session) SendAudioChunk(payloadB64 string) error {
	return s.writeJSON(userAudioChunk{UserAudioChunk: payloadB64})
}

// SendPong answers a provider keep-alive ping, echoing its event id. The
// provider drops idle sessions that fail to answer.
func (s *Session) SendPong(eventID int64) error {
	return s.writeJSON(pongMessage{Type: "pong", EventID: eventID})
}

// Read blocks for the next provider message and decodes it.
func (s *Session) Read() (ServerMessage, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return ServerMessage{}, err
	}
	return DecodeServerMessage(data)
}

// Close is idempotent; closing an already-closed session is a no-op.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *Session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
