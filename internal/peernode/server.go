package peernode

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/klingon-exchange/lamportledger/internal/config"
	"github.com/klingon-exchange/lamportledger/internal/ledger"
	"github.com/klingon-exchange/lamportledger/pkg/logging"
)

// Server exposes an Engine over the peer HTTP/JSON wire schema,
// plus the supplemented /ui/state and /events endpoints.
type Server struct {
	engine *Engine
	cfg    *config.Config
	log    *logging.Logger
	hub    *Hub
	mux    *http.ServeMux
}

// NewServer wires every peer route to handlers bound to engine.
func NewServer(engine *Engine, cfg *config.Config, log *logging.Logger, hub *Hub) *Server {
	if log == nil {
		log = logging.Default()
	}
	s := &Server{engine: engine, cfg: cfg, log: log.Component("http"), hub: hub, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /transfer-request", s.handleTransferRequest)
	s.mux.HandleFunc("POST /transfer-finish", s.handleTransferFinish)
	s.mux.HandleFunc("POST /register", s.handleRegisterNotify)
	s.mux.HandleFunc("GET /exit/{client_id}", s.handleExit)
	s.mux.HandleFunc("GET /ui/state", s.handleUIState)
	if hub != nil {
		s.mux.HandleFunc("GET /events", hub.ServeHTTP)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// transferDelay sleeps the configured propagation delay, or returns
// immediately if ctx is canceled first (e.g. a client that gave up).
func (s *Server) transferDelay(r *http.Request) {
	delay := 3 * time.Second
	if s.cfg != nil {
		delay = s.cfg.TransferDelay
	}
	if delay <= 0 {
		return
	}
	select {
	case <-time.After(delay):
	case <-r.Context().Done():
	}
}

func (s *Server) handleTransferRequest(w http.ResponseWriter, r *http.Request) {
	var tx ledger.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transaction body"})
		return
	}

	// Propagation-delay simulation happens before the lock is taken: the
	// delay models network latency, not a held resource.
	s.transferDelay(r)

	s.engine.OnRequest(tx)
	writeJSON(w, http.StatusOK, map[string]string{"result": "success"})
}

func (s *Server) handleTransferFinish(w http.ResponseWriter, r *http.Request) {
	var tx ledger.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transaction body"})
		return
	}

	s.transferDelay(r)

	s.engine.OnRelease(tx)
	writeJSON(w, http.StatusOK, map[string]string{"result": "success"})
}

type registerNotifyRequest struct {
	ClientID   int    `json:"client_id"`
	ClientAddr string `json:"client_addr"`
}

func (s *Server) handleRegisterNotify(w http.ResponseWriter, r *http.Request) {
	var body registerNotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	s.engine.AddPeer(body.ClientID, body.ClientAddr)
	s.log.Info("peer join notification received", "peer", body.ClientID, "addr", body.ClientAddr)
	writeJSON(w, http.StatusOK, map[string]string{"result": "success"})
}

func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("client_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid client_id"})
		return
	}
	s.engine.RemovePeer(id)
	writeJSON(w, http.StatusOK, map[string]string{"result": "success"})
}

// uiState is the read-only snapshot returned by /ui/state: id, clock,
// queue contents, and the (previous_hash, hash) pair of every ledger
// block, for any external poller.
type uiState struct {
	ID      int               `json:"id"`
	Clock   uint64            `json:"clock"`
	Sending []ledger.Tuple    `json:"sending_queue"`
	Message []ledger.Tuple    `json:"message_queue"`
	Ledger  []ledger.LinkPair `json:"ledger"`
}

func (s *Server) handleUIState(w http.ResponseWriter, r *http.Request) {
	s.engine.mu.Lock()
	sending := make([]ledger.Tuple, 0)
	for _, tx := range s.engine.sending.Items() {
		sending = append(sending, tx.ToTuple())
	}
	message := make([]ledger.Tuple, 0)
	for _, tx := range s.engine.message.Items() {
		message = append(message, tx.ToTuple())
	}
	s.engine.mu.Unlock()

	state := uiState{
		ID:      s.engine.ID(),
		Clock:   s.engine.Clock(),
		Sending: sending,
		Message: message,
		Ledger:  s.engine.Chain().LinkPairs(),
	}
	writeJSON(w, http.StatusOK, state)
}
