package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/session"
	"github.com/riteshshukladev/MCP-Agent-for-X/pkg/utils"
)

const (
	// MessagesPath receives JSON-RPC requests for an open stream.
	MessagesPath = "/messages"

	maxMessageSize    = 1 << 20
	defaultKeepalive  = 25 * time.Second
	notificationQueue = 16
	noTransportForSID = "No transport found for sessionId"
)

// Handler serves the stream endpoints and the request side channel. Every
// request is answered by the MCP server on the stream of the session it was
// posted for.
type Handler struct {
	sessions  *session.Manager
	server    *server.MCPServer
	clients   sync.Map // session id -> *clientSession
	keepalive time.Duration
	upgrader  websocket.Upgrader
}

// New creates the handler.
func New(sessions *session.Manager, srv *server.MCPServer) *Handler {
	return &Handler{
		sessions:  sessions,
		server:    srv,
		keepalive: defaultKeepalive,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// SetKeepalive overrides the keepalive interval; non-positive disables it.
func (h *Handler) SetKeepalive(d time.Duration) {
	h.keepalive = d
}

// RegisterRoutes mounts the handler on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sse", h.handleSSE)
	r.Get("/ws", h.handleWebSocket)
	r.Post(MessagesPath, h.handleMessage)
}

// EndpointFor returns the side-channel path for a session.
func EndpointFor(sessionID string) string {
	return MessagesPath + "?sessionId=" + url.QueryEscape(sessionID)
}

func (h *Handler) keepaliveTicks() (<-chan time.Time, func()) {
	if h.keepalive <= 0 {
		return nil, func() {}
	}
	ticker := time.NewTicker(h.keepalive)
	return ticker.C, ticker.Stop
}

// clientSession is the MCP server's view of one open stream.
type clientSession struct {
	id            string
	notifications chan mcp.JSONRPCNotification
	initialized   atomic.Bool
}

func (c *clientSession) SessionID() string { return c.id }

func (c *clientSession) NotificationChannel() chan<- mcp.JSONRPCNotification {
	return c.notifications
}

func (c *clientSession) Initialize() { c.initialized.Store(true) }

func (c *clientSession) Initialized() bool { return c.initialized.Load() }

// attach registers sess with the MCP server and forwards server notifications
// onto the stream until the session closes. The returned func detaches it.
func (h *Handler) attach(ctx context.Context, sess *session.Session) func() {
	cs := &clientSession{id: sess.ID, notifications: make(chan mcp.JSONRPCNotification, notificationQueue)}
	if err := h.server.RegisterSession(ctx, cs); err != nil {
		log.Printf("[mcp] register session=%s: %v", sess.ID, err)
	}
	h.clients.Store(sess.ID, cs)

	go func() {
		for {
			select {
			case <-sess.Done():
				return
			case n := <-cs.notifications:
				h.send(sess, n)
			}
		}
	}()

	return func() {
		h.clients.Delete(sess.ID)
		h.server.UnregisterSession(context.WithoutCancel(ctx), sess.ID)
	}
}

func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	sess := h.sessions.Open()
	defer h.sessions.Close(sess.ID)

	ctx := r.Context()
	detach := h.attach(ctx, sess)
	defer detach()

	log.Printf("[sse] opened stream for session=%s", sess.ID)

	if err := utils.SendSSERaw(w, flusher, "endpoint", EndpointFor(sess.ID)); err != nil {
		log.Printf("[sse] failed to send endpoint for session=%s: %v", sess.ID, err)
		return
	}

	ticks, stop := h.keepaliveTicks()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] client closed stream for session=%s", sess.ID)
			return
		case <-sess.Done():
			log.Printf("[sse] session=%s closed", sess.ID)
			return
		case msg := <-sess.Events():
			if err := utils.SendSSERaw(w, flusher, "message", string(msg)); err != nil {
				log.Printf("[sse] write failed for session=%s: %v", sess.ID, err)
				return
			}
		case <-ticks:
			if err := utils.SendSSEComment(w, flusher, "keepalive"); err != nil {
				log.Printf("[sse] keepalive failed for session=%s: %v", sess.ID, err)
				return
			}
		}
	}
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Lookup(r.URL.Query().Get("sessionId"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, noTransportForSID)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusBadRequest, "message too large")
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "failed to read message")
		return
	}

	if err := validateMessage(body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondText(w, http.StatusAccepted, "Accepted")

	// The response travels on the stream, not in this reply.
	go h.deliver(context.WithoutCancel(r.Context()), sess, body)
}

// validateMessage rejects bodies that are not a JSON-RPC 2.0 request or
// notification before they are acknowledged.
func validateMessage(data []byte) error {
	var envelope struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return errors.New("invalid JSON-RPC message")
	}
	if envelope.JSONRPC != mcp.JSONRPC_VERSION || envelope.Method == "" {
		return errors.New("invalid JSON-RPC request")
	}
	return nil
}

// deliver runs body through the MCP server and queues any response on the
// session's stream.
func (h *Handler) deliver(ctx context.Context, sess *session.Session, body []byte) {
	if cs, ok := h.clients.Load(sess.ID); ok {
		ctx = h.server.WithContext(ctx, cs.(*clientSession))
	}

	resp := h.server.HandleMessage(ctx, body)
	if resp == nil {
		return
	}
	h.send(sess, resp)
}

func (h *Handler) send(sess *session.Session, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[mcp] failed to encode message for session=%s: %v", sess.ID, err)
		return
	}
	if err := sess.Send(data); err != nil {
		log.Printf("[mcp] dropping message for session=%s: %v", sess.ID, err)
	}
}

type endpointFrame struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess := h.sessions.Open()
	defer h.sessions.Close(sess.ID)

	ctx := context.WithoutCancel(r.Context())
	detach := h.attach(ctx, sess)
	defer detach()

	log.Printf("[ws] opened stream for session=%s", sess.ID)

	if err := conn.WriteJSON(endpointFrame{Event: "endpoint", Data: EndpointFor(sess.ID)}); err != nil {
		log.Printf("[ws] failed to send endpoint for session=%s: %v", sess.ID, err)
		return
	}

	conn.SetReadLimit(maxMessageSize)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, sess)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error for session=%s: %v", sess.ID, err)
			}
			break
		}
		// Malformed frames are answered by the server with a JSON-RPC error.
		go h.deliver(ctx, sess, data)
	}

	h.sessions.Close(sess.ID)
	<-writerDone
	log.Printf("[ws] closed stream for session=%s", sess.ID)
}

func (h *Handler) writeLoop(conn *websocket.Conn, sess *session.Session) {
	ticks, stop := h.keepaliveTicks()
	defer stop()

	for {
		select {
		case <-sess.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case msg := <-sess.Events():
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[ws] write failed for session=%s: %v", sess.ID, err)
				h.sessions.Close(sess.ID)
				conn.Close()
				return
			}
		case <-ticks:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				h.sessions.Close(sess.ID)
				conn.Close()
				return
			}
		}
	}
}
