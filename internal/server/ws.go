package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/casechat/casechat/internal/chat"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame is the outgoing WebSocket message format.
type wsFrame struct {
	Type       string        `json:"type"` // "token", "sources", "done" or "error"
	Content    string        `json:"content,omitempty"`
	SourceDocs []chat.Source `json:"sourceDocs,omitempty"`
}

// handleWebSocket answers each incoming {question, history} message with
// token frames, a sources frame on success and a final done frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendFrame(conn, wsFrame{Type: "error", Content: msgNoQuestion})
			continue
		}
		q, ok := req.query()
		if !ok {
			s.sendFrame(conn, wsFrame{Type: "error", Content: msgNoQuestion})
			continue
		}

		if !s.streamAnswer(r.Context(), conn, q) {
			return
		}
	}
}

// streamAnswer reports false once the connection can no longer be written.
func (s *Server) streamAnswer(parent context.Context, conn *websocket.Conn, q chat.Query) bool {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	for ev := range s.chat.Stream(ctx, q) {
		var frame wsFrame
		switch {
		case ev.Err != nil:
			log.Printf("server: chat: %v", ev.Err)
			frame = wsFrame{Type: "error", Content: "failed to generate an answer"}
		case ev.Result != nil:
			frame = wsFrame{Type: "sources", SourceDocs: ev.Result.SourceDocuments}
		default:
			frame = wsFrame{Type: "token", Content: ev.Token}
		}
		if !s.sendFrame(conn, frame) {
			return false
		}
	}
	return s.sendFrame(conn, wsFrame{Type: "done"})
}

func (s *Server) sendFrame(conn *websocket.Conn, frame wsFrame) bool {
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("server: websocket write: %v", err)
		return false
	}
	return true
}
