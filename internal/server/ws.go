package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ayusman/signbridge/internal/gesture"
	"github.com/ayusman/signbridge/internal/server/api"
	"github.com/ayusman/signbridge/internal/store"
)

const writeWait = 5 * time.Second

// maxMessageSize bounds a /ws message: a base64 frame of MaxFrameBytes plus
// the JSON envelope.
var maxMessageSize = int64(base64.StdEncoding.EncodedLen(api.MaxFrameBytes)) + 1024

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Message types accepted and produced on /ws.
const (
	MsgVideoFrame    = "video_frame"
	MsgVideoAnalysis = "video_analysis"
	MsgReset         = "reset"
)

// ClientMessage is a message sent by a /ws client.
type ClientMessage struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// AnalysisMessage is the reply to a video frame.
type AnalysisMessage struct {
	Type    string  `json:"type"`
	Gesture string  `json:"gesture"`
	Source  string  `json:"source"`
	Score   float32 `json:"score,omitempty"`
	Window  int     `json:"window"`
	Session string  `json:"session"`
}

type errorMessage struct {
	Error string `json:"error"`
}

// StreamSocket labels frames sent over a websocket. Every connection gets its
// own session and window.
type StreamSocket struct {
	sessions *gesture.Sessions
	recorder *api.Recorder
	log      logs.Log
}

// NewStreamSocket creates a StreamSocket. recorder may be nil.
func NewStreamSocket(sessions *gesture.Sessions, recorder *api.Recorder, log logs.Log) *StreamSocket {
	return &StreamSocket{sessions: sessions, recorder: recorder, log: log}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *StreamSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	id := uuid.New().String()
	h.sessions.Get(id)
	h.recorder.Open(id, store.SourceWS)
	h.log.Infof("Client connected, session %v", id)

	defer func() {
		h.sessions.Close(id)
		h.recorder.Close(id)
		h.log.Infof("Client disconnected, session %v", id)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if !h.send(conn, errorMessage{Error: "invalid message"}) {
				return
			}
			continue
		}

		rec := h.recognizer(id)

		var reply any
		switch msg.Type {
		case MsgVideoFrame:
			// Bad base64 decodes to nothing and is labelled INVALID_FRAME
			frame, _ := api.DecodeFrame(msg.Payload)
			res := rec.Recognize(frame)
			h.recorder.Observe(id, res)
			reply = AnalysisMessage{
				Type:    MsgVideoAnalysis,
				Gesture: string(res.Label),
				Source:  string(res.Source),
				Score:   res.Score,
				Window:  res.Window,
				Session: id,
			}
		case MsgReset:
			rec.Reset()
			reply = map[string]string{"type": MsgReset, "session": id}
		default:
			reply = errorMessage{Error: "unknown type"}
		}

		if !h.send(conn, reply) {
			return
		}
	}
}

// recognizer returns the connection's recognizer. A session dropped for
// idleness is recreated with an empty window and reopened in the recorder.
func (h *StreamSocket) recognizer(id string) *gesture.Recognizer {
	if _, ok := h.sessions.Lookup(id); !ok {
		h.recorder.Open(id, store.SourceWS)
	}
	return h.sessions.Get(id)
}

func (h *StreamSocket) send(conn *websocket.Conn, v any) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(v); err != nil {
		h.log.Debugf("websocket write error: %v", err)
		return false
	}
	return true
}

// Hub broadcasts live events to every /ws/live client.
type Hub struct {
	log     logs.Log
	clients map[*websocket.Conn]*hubClient
	mu      sync.Mutex
}

// hubClient queues events for one listener. Its writer goroutine is the only
// writer on the connection.
type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// hubQueue is the number of events buffered per listener. Events published
// while the queue is full are dropped for that listener.
const hubQueue = 16

// hubReadLimit bounds messages from listeners, which are only expected to
// send control frames.
const hubReadLimit = 4096

// NewHub creates an empty Hub.
func NewHub(log logs.Log) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*websocket.Conn]*hubClient),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(hubReadLimit)

	c := &hubClient{conn: conn, send: make(chan []byte, hubQueue)}
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()

	go h.writeLoop(c)
	defer h.remove(c)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debugf("Dropping live listener: %v", err)
			// Unblocks the read loop, which removes the client
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.conn]; ok {
		delete(h.clients, c.conn)
		close(c.send)
	}
}

// Clients returns the number of connected listeners.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues v as JSON for every listener without waiting for delivery.
// A listener whose queue is full misses the event.
func (h *Hub) Publish(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.Errorf("Failed to encode live event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}
