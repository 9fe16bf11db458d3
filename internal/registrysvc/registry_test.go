package registrysvc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klingon-exchange/lamportledger/internal/ledger"
	"github.com/klingon-exchange/lamportledger/internal/storage"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := storage.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, "127.0.0.1:9000", nil)
}

func TestRegisterAllocatesMonotonicIDs(t *testing.T) {
	r := newTestRegistry(t)

	id1, _, addr, err := r.Register()
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id1 != 1 {
		t.Fatalf("first registered id = %d, want 1", id1)
	}
	if addr != "127.0.0.1:9000" {
		t.Fatalf("server addr = %q, want 127.0.0.1:9000", addr)
	}

	id2, others, _, err := r.Register()
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id2 != 2 {
		t.Fatalf("second registered id = %d, want 2", id2)
	}
	if len(others) != 0 {
		t.Fatalf("second Register should see no confirmed peer addrs yet, got %v", others)
	}

	balance, err := r.Balance(id1)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != initialBalance {
		t.Fatalf("initial balance = %v, want %v", balance, initialBalance)
	}
}

func TestTransferMovesBalance(t *testing.T) {
	r := newTestRegistry(t)
	id1, _, _, _ := r.Register()
	id2, _, _, _ := r.Register()

	tx := ledger.New(id1, id2, 4.0, 1)
	if err := r.Transfer(tx); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	b1, _ := r.Balance(id1)
	b2, _ := r.Balance(id2)
	if b1 != 6.0 || b2 != 14.0 {
		t.Fatalf("balances after transfer = (%v, %v), want (6, 14)", b1, b2)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	r := newTestRegistry(t)
	id1, _, _, _ := r.Register()
	id2, _, _, _ := r.Register()

	tx := ledger.New(id1, id2, 100.0, 1)
	err := r.Transfer(tx)
	if err == nil {
		t.Fatalf("expected insufficient balance error")
	}
	if !strings.Contains(err.Error(), "insufficient balance") {
		t.Fatalf("Transfer error = %v, want insufficient balance", err)
	}
}

func TestTransferUnknownAccount(t *testing.T) {
	r := newTestRegistry(t)
	id1, _, _, _ := r.Register()

	tx := ledger.New(id1, 999, 1.0, 1)
	err := r.Transfer(tx)
	if err == nil {
		t.Fatalf("expected unknown account error")
	}
}

func TestExitRetainsAccount(t *testing.T) {
	r := newTestRegistry(t)
	id1, _, _, _ := r.Register()

	if err := r.Exit(id1); err != nil {
		t.Fatalf("Exit: %v", err)
	}
	balance, err := r.Balance(id1)
	if err != nil {
		t.Fatalf("Balance after exit: %v", err)
	}
	if balance != initialBalance {
		t.Fatalf("balance after exit = %v, want unchanged %v", balance, initialBalance)
	}
}

func TestServerRegisterAndBalanceRoutes(t *testing.T) {
	store, err := storage.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := New(store, "127.0.0.1:9000", nil)
	server := NewServer(registry, nil)
	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)

	regResp, err := http.Get(ts.URL + "/register")
	if err != nil {
		t.Fatalf("GET /register: %v", err)
	}
	var reg struct {
		ClientID     int            `json:"client_id"`
		OtherClients map[int]string `json:"other_clients"`
	}
	if err := json.NewDecoder(regResp.Body).Decode(&reg); err != nil {
		t.Fatalf("decoding register response: %v", err)
	}
	regResp.Body.Close()
	if reg.ClientID != 1 {
		t.Fatalf("client_id = %d, want 1", reg.ClientID)
	}

	balResp, err := http.Get(ts.URL + "/balance/1")
	if err != nil {
		t.Fatalf("GET /balance/1: %v", err)
	}
	defer balResp.Body.Close()
	if balResp.StatusCode != http.StatusOK {
		t.Fatalf("balance status = %d, want 200", balResp.StatusCode)
	}

	notFound, err := http.Get(ts.URL + "/balance/42")
	if err != nil {
		t.Fatalf("GET /balance/42: %v", err)
	}
	notFound.Body.Close()
	if notFound.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown balance status = %d, want 404", notFound.StatusCode)
	}
}
