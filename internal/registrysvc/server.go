package registrysvc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/klingon-exchange/lamportledger/internal/errs"
	"github.com/klingon-exchange/lamportledger/internal/ledger"
	"github.com/klingon-exchange/lamportledger/pkg/logging"
)

// Server exposes a Registry over the HTTP/JSON wire schema.
type Server struct {
	registry *Registry
	log      *logging.Logger
	mux      *http.ServeMux
}

// NewServer wires every registry route to handlers bound to registry.
func NewServer(registry *Registry, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	s := &Server{registry: registry, log: log.Component("http"), mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /register", s.handleRegister)
	s.mux.HandleFunc("POST /register-confirm", s.handleRegisterConfirm)
	s.mux.HandleFunc("GET /balance/{client_id}", s.handleBalance)
	s.mux.HandleFunc("POST /transfer", s.handleTransfer)
	s.mux.HandleFunc("GET /exit/{client_id}", s.handleExit)

	return s
}

// ServeHTTP implements http.Handler, applying permissive CORS for any
// external tooling (dashboards, debuggers) polling the registry directly.
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

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	id, others, serverAddr, err := s.registry.Register()
	if err != nil {
		s.log.Error("register failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"client_id":     id,
		"other_clients": others,
		"server_addr":   serverAddr,
	})
}

type registerConfirmRequest struct {
	ClientID   int    `json:"client_id"`
	ClientAddr string `json:"client_addr"`
}

func (s *Server) handleRegisterConfirm(w http.ResponseWriter, r *http.Request) {
	var body registerConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := s.registry.RegisterConfirm(body.ClientID, body.ClientAddr); err != nil {
		if errors.Is(err, errs.ErrUnknownAccount) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "success"})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("client_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid client_id"})
		return
	}
	balance, err := s.registry.Balance(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"balance": balance})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var tx ledger.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"result": "fail", "reason": "invalid transaction body"})
		return
	}

	err := s.registry.Transfer(tx)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"result": "success"})
	case errors.Is(err, errs.ErrUnknownAccount):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": strings.TrimSpace(err.Error())})
	case errors.Is(err, errs.ErrInsufficientBalance):
		writeJSON(w, http.StatusOK, map[string]string{"result": "fail", "reason": "insufficient balance"})
	case errors.Is(err, errs.ErrInvalidTransfer):
		writeJSON(w, http.StatusBadRequest, map[string]string{"result": "fail", "reason": "invalid transfer"})
	default:
		s.log.Error("transfer failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"result": "failure", "reason": err.Error()})
	}
}

func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("client_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid client_id"})
		return
	}
	if err := s.registry.Exit(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "success"})
}
