package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"nftmarket/journal"
	"nftmarket/native/market"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

const authTokenEnv = "NFTMARKET_RPC_TOKEN"

// moduleMetrics is the slice of the observability registry the server needs.
type moduleMetrics interface {
	ObserveRequest(method, outcome string, duration time.Duration)
	ObserveError(method, code string)
}

// RateLimit configures the per-client request budget for the RPC endpoint.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type Server struct {
	engine  *market.Engine
	journal *journal.Journal
	metrics moduleMetrics

	// engineMu serialises logical operations: the engine assumes one
	// operation completes fully before the next begins, so concurrent HTTP
	// requests must queue here rather than trip the reentrancy guard.
	engineMu sync.Mutex

	authToken string

	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

// NewServer constructs the JSON-RPC server for the marketplace engine. The
// journal is optional; when present the market_events method serves from it.
// The bearer token protecting mutating methods is read from the
// NFTMARKET_RPC_TOKEN environment variable.
func NewServer(engine *market.Engine, jrnl *journal.Journal, limit RateLimit, metrics moduleMetrics) *Server {
	token := strings.TrimSpace(os.Getenv(authTokenEnv))
	return &Server{
		engine:    engine,
		journal:   jrnl,
		metrics:   metrics,
		authToken: token,
		limit:     limit,
		visitors:  make(map[string]*rate.Limiter),
	}
}

// Handler returns the HTTP handler serving the RPC endpoint, health check and
// metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "rpc auth token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "bearer token required"}
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid token"}
	}
	return nil
}

func (s *Server) allow(r *http.Request) bool {
	if s.limit.RequestsPerMinute <= 0 {
		return true
	}
	identifier := clientID(r)
	s.mu.Lock()
	limiter, ok := s.visitors[identifier]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.limit.RequestsPerMinute/60.0), s.limit.Burst)
		s.visitors[identifier] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if !s.allow(r) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "market_listItem":
		s.authenticated(w, r, req, s.handleMarketListItem)
	case "market_buyItem":
		s.authenticated(w, r, req, s.handleMarketBuyItem)
	case "market_cancelListing":
		s.authenticated(w, r, req, s.handleMarketCancelListing)
	case "market_updateListing":
		s.authenticated(w, r, req, s.handleMarketUpdateListing)
	case "market_withdrawProceeds":
		s.authenticated(w, r, req, s.handleMarketWithdrawProceeds)
	case "market_getListing":
		s.instrumented(req.Method, w, r, req, s.handleMarketGetListing)
	case "market_getProceeds":
		s.instrumented(req.Method, w, r, req, s.handleMarketGetProceeds)
	case "market_events":
		s.instrumented(req.Method, w, r, req, s.handleMarketEvents)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) authenticated(w http.ResponseWriter, r *http.Request, req *RPCRequest, next handlerFunc) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	s.instrumented(req.Method, w, r, req, next)
}

func (s *Server) instrumented(method string, w http.ResponseWriter, r *http.Request, req *RPCRequest, next handlerFunc) {
	if s.metrics == nil {
		next(w, r, req)
		return
	}
	start := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	next(recorder, r, req)
	outcome := "ok"
	if recorder.status >= http.StatusBadRequest {
		outcome = "error"
	}
	s.metrics.ObserveRequest(method, outcome, time.Since(start))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
