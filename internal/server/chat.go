package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/casechat/casechat/internal/chat"
)

// msgNoQuestion is returned when a request carries no usable question.
const msgNoQuestion = "请求中没有问题"

// chatRequest is the body of POST /api/chat and of each WebSocket message.
// History is a list of [question, answer] pairs, oldest first.
type chatRequest struct {
	Question string     `json:"question"`
	History  [][]string `json:"history"`
}

// query validates the request. Malformed history pairs are skipped.
func (req chatRequest) query() (chat.Query, bool) {
	question, err := chat.NormalizeQuestion(req.Question)
	if err != nil {
		return chat.Query{}, false
	}
	q := chat.Query{Question: question}
	for _, pair := range req.History {
		if len(pair) != 2 {
			continue
		}
		q.History = append(q.History, chat.Turn{Question: pair[0], Answer: pair[1]})
	}
	return q, true
}

// handleChat streams an answer as server-sent events:
//
//	data: {"data":""}
//	data: {"data":"<token>"}          one per token
//	data: {"sourceDocs":[...]}         on success only
//	data: done                          always last
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": msgNoQuestion})
		return
	}
	q, ok := req.query()
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": msgNoQuestion})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sse := &eventWriter{w: w, flusher: flusher}
	sse.send(map[string]string{"data": ""})

	for ev := range s.chat.Stream(r.Context(), q) {
		switch {
		case ev.Err != nil:
			log.Printf("server: chat: %v", ev.Err)
		case ev.Result != nil:
			sse.send(map[string]any{"sourceDocs": ev.Result.SourceDocuments})
		default:
			sse.send(map[string]string{"data": ev.Token})
		}
	}

	sse.done()
}

// eventWriter writes SSE frames, flushing after each. Write errors mean the
// client went away; the request context cancels the chain in that case.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (e *eventWriter) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("server: encoding event: %v", err)
		return
	}
	fmt.Fprintf(e.w, "data: %s\n\n", b)
	e.flusher.Flush()
}

func (e *eventWriter) done() {
	fmt.Fprint(e.w, "data: done\n\n")
	e.flusher.Flush()
}
