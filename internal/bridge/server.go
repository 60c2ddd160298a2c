// Package bridge exposes the engine to browser content scripts over a local
// WebSocket speaking a small JSON-RPC dialect.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"snip-go/internal/engine"
	"snip-go/internal/library"
	"snip-go/internal/macro"
	"snip-go/internal/snip"
	"snip-go/internal/tree"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

// Library is the snippet set the bridge serves. *library.Service satisfies
// it.
type Library interface {
	Snippet(name string) *tree.Snippet
	Snippets() []*tree.Snippet
	Search(text string) []tree.Node
	AddSnippet(name string, body tree.Body, folder string) (*tree.Snippet, error)
	Save() (bool, error)
}

// Server is the HTTP + WebSocket bridge. RPC calls from every connection
// run one at a time.
type Server struct {
	lib      Library
	expander *macro.Expander
	cfg      engine.Config
	clock    snip.Clock
	ids      snip.IDGenerator
	logger   snip.Logger
	saver    *library.Saver
	origins  []string
	onChange func()

	upgrader websocket.Upgrader

	callMu sync.Mutex

	mu      sync.Mutex
	clients []*wsClient
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type rpcRequest struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     any       `json:"id"`
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type notification struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l snip.Logger) Option { return func(s *Server) { s.logger = l } }

// WithClock sets the clock handed to engine sessions.
func WithClock(c snip.Clock) Option { return func(s *Server) { s.clock = c } }

// WithIDGenerator sets the generator for engine session IDs.
func WithIDGenerator(g snip.IDGenerator) Option { return func(s *Server) { s.ids = g } }

// WithAllowedOrigins restricts which page or extension origins may connect.
// With none, only browser extensions and clients sending no Origin are
// accepted.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithOnChange registers a callback run after a call changes the library.
func WithOnChange(fn func()) Option { return func(s *Server) { s.onChange = fn } }

// NewServer creates a bridge over lib.
func NewServer(lib Library, expander *macro.Expander, cfg engine.Config, opts ...Option) *Server {
	s := &Server{
		lib:      lib,
		expander: expander,
		cfg:      cfg,
		clock:    snip.RealClock{},
		ids:      snip.UUIDGenerator{},
		logger:   snip.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.saver = library.NewSaver(lib, s.logger)
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.origins) == 0 {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Scheme == "chrome-extension" || u.Scheme == "moz-extension"
	}
	for _, o := range s.origins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/ws" {
		http.NotFound(w, r)
		return
	}
	s.handleWebSocket(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then waits for
// pending saves.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("bridge listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("bridge: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("bridge shutdown", "error", err)
	}
	s.closeClients()
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("bridge: %w", err)
	}
	return s.Flush(shutdownCtx)
}

// Flush waits for background saves started by "add".
func (s *Server) Flush(ctx context.Context) error {
	return s.saver.Flush(ctx)
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		c.conn.Close()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "origin", r.Header.Get("Origin"), "error", err)
		return
	}
	client := &wsClient{conn: conn}
	s.mu.Lock()
	s.clients = append(s.clients, client)
	s.mu.Unlock()
	s.logger.Debug("bridge client connected", "remote", r.RemoteAddr)

	defer func() {
		conn.Close()
		s.mu.Lock()
		for i, c := range s.clients {
			if c == client {
				s.clients = append(s.clients[:i], s.clients[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req rpcRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			_ = client.write(rpcResponse{Error: &rpcError{Code: codeParseError, Message: err.Error()}})
			continue
		}
		resp := s.handleRPC(r.Context(), req)
		if err := client.write(resp); err != nil {
			return
		}
	}
}

// Broadcast sends a notification to all connected clients.
func (s *Server) Broadcast(method string, params any) {
	s.mu.Lock()
	clients := append([]*wsClient(nil), s.clients...)
	s.mu.Unlock()

	for _, c := range clients {
		_ = c.write(notification{Method: method, Params: params})
	}
}

func (s *Server) handleRPC(ctx context.Context, req rpcRequest) rpcResponse {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	var (
		result any
		err    error
	)
	switch req.Method {
	case "expand":
		result, err = s.rpcExpand(ctx, req.Params)
	case "trigger":
		result, err = s.rpcTrigger(ctx, req.Params)
	case "suggest":
		result, err = s.rpcSuggest(req.Params)
	case "search":
		result, err = s.rpcSearch(req.Params)
	case "list":
		result, err = s.rpcList()
	case "add":
		result, err = s.rpcAdd(req.Params)
	default:
		return rpcResponse{
			ID:    req.ID,
			Error: &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)},
		}
	}
	if err != nil {
		code := codeServerError
		var pe *paramsError
		if errors.As(err, &pe) {
			code = codeInvalidParams
		}
		s.logger.Debug("rpc failed", "method", req.Method, "error", err)
		return rpcResponse{ID: req.ID, Error: &rpcError{Code: code, Message: err.Error()}}
	}
	return rpcResponse{ID: req.ID, Result: result}
}
