package peernode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/klingon-exchange/lamportledger/internal/errs"
	"github.com/klingon-exchange/lamportledger/internal/ledger"
)

// Transfer-path RPCs get 5s, shutdown RPCs get 2s.
const (
	transferRPCTimeout = 5 * time.Second
	shutdownRPCTimeout = 2 * time.Second
)

// transport issues outbound HTTP/JSON RPCs to peers and the registry. Each
// call carries its own deadline and a fresh X-Request-Id header; the id is
// not written to either side's logs.
type transport struct {
	client *http.Client
}

func newTransport() *transport {
	return &transport{client: &http.Client{}}
}

func (t *transport) postJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("peernode: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("peernode: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("peernode: %s: %w", url, errs.ErrProtocolTimeout)
		}
		return nil, fmt.Errorf("peernode: posting to %s: %w", url, err)
	}
	return resp, nil
}

func (t *transport) getJSON(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("peernode: building request: %w", err)
	}
	req.Header.Set("X-Request-Id", uuid.New().String())

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("peernode: %s: %w", url, errs.ErrProtocolTimeout)
		}
		return nil, fmt.Errorf("peernode: getting %s: %w", url, err)
	}
	return resp, nil
}

type resultResponse struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// SendRequest broadcasts tx as a request message (the Lamport mutual
// exclusion "request" phase) to the peer at addr, and reports whether it
// replied success within the transfer deadline.
func (t *transport) SendRequest(ctx context.Context, addr string, tx ledger.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, transferRPCTimeout)
	defer cancel()

	resp, err := t.postJSON(ctx, "http://"+addr+"/transfer-request", tx)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body resultResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK || body.Result != "success" {
		return fmt.Errorf("peernode: request to %s: %w", addr, errs.ErrProtocolTimeout)
	}
	return nil
}

// SendRelease broadcasts tx as a release message (the "release" phase)
// carrying its final status.
func (t *transport) SendRelease(ctx context.Context, addr string, tx ledger.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, transferRPCTimeout)
	defer cancel()

	resp, err := t.postJSON(ctx, "http://"+addr+"/transfer-finish", tx)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// SendRegisterNotify posts the new-peer join notification to addr.
// Failure to reach addr is a MembershipStale condition, not a fatal
// error.
func (t *transport) SendRegisterNotify(ctx context.Context, addr string, clientID int, clientAddr string) error {
	ctx, cancel := context.WithTimeout(ctx, transferRPCTimeout)
	defer cancel()

	resp, err := t.postJSON(ctx, "http://"+addr+"/register", map[string]any{
		"client_id":   clientID,
		"client_addr": clientAddr,
	})
	if err != nil {
		return fmt.Errorf("peernode: register-notify %s: %w", addr, errs.ErrMembershipStale)
	}
	defer resp.Body.Close()
	return nil
}

// SendExitNotify posts the exit notification to addr, best-effort with a
// short deadline.
func (t *transport) SendExitNotify(ctx context.Context, addr string, clientID int) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownRPCTimeout)
	defer cancel()

	resp, err := t.getJSON(ctx, "http://"+addr+"/exit/"+strconv.Itoa(clientID))
	if err != nil {
		return fmt.Errorf("peernode: exit-notify %s: %w", addr, errs.ErrMembershipStale)
	}
	defer resp.Body.Close()
	return nil
}

// RegistryTransport talks to the Registry's HTTP surface.
type RegistryTransport struct {
	t    *transport
	addr string
}

// NewRegistryTransport returns a client for the registry at addr.
func NewRegistryTransport(addr string) *RegistryTransport {
	return &RegistryTransport{t: newTransport(), addr: addr}
}

// Register calls GET /register.
func (r *RegistryTransport) Register(ctx context.Context) (clientID int, otherClients map[int]string, serverAddr string, err error) {
	ctx, cancel := context.WithTimeout(ctx, transferRPCTimeout)
	defer cancel()

	resp, err := r.t.getJSON(ctx, "http://"+r.addr+"/register")
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()

	var body struct {
		ClientID     int            `json:"client_id"`
		OtherClients map[int]string `json:"other_clients"`
		ServerAddr   string         `json:"server_addr"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, nil, "", fmt.Errorf("peernode: decoding register response: %w", err)
	}
	return body.ClientID, body.OtherClients, body.ServerAddr, nil
}

// RegisterConfirm calls POST /register-confirm.
func (r *RegistryTransport) RegisterConfirm(ctx context.Context, clientID int, clientAddr string) error {
	ctx, cancel := context.WithTimeout(ctx, transferRPCTimeout)
	defer cancel()

	resp, err := r.t.postJSON(ctx, "http://"+r.addr+"/register-confirm", map[string]any{
		"client_id":   clientID,
		"client_addr": clientAddr,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// Balance calls GET /balance/{client_id}.
func (r *RegistryTransport) Balance(ctx context.Context, clientID int) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, transferRPCTimeout)
	defer cancel()

	resp, err := r.t.getJSON(ctx, "http://"+r.addr+"/balance/"+strconv.Itoa(clientID))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("peernode: balance %d: %w", clientID, errs.ErrUnknownAccount)
	}

	var body struct {
		Balance float64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("peernode: decoding balance response: %w", err)
	}
	return body.Balance, nil
}

// Exit calls GET /exit/{client_id} on the registry, best-effort with a
// short deadline.
func (r *RegistryTransport) Exit(ctx context.Context, clientID int) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownRPCTimeout)
	defer cancel()

	resp, err := r.t.getJSON(ctx, "http://"+r.addr+"/exit/"+strconv.Itoa(clientID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// Transfer calls POST /transfer and reports the registry's success/ABORT
// outcome. err is non-nil only for transport-level failures (timeout,
// unknown account); an insufficiency is reported via ok=false, not err.
func (r *RegistryTransport) Transfer(ctx context.Context, tx ledger.Transaction) (ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, transferRPCTimeout)
	defer cancel()

	resp, err := r.t.postJSON(ctx, "http://"+r.addr+"/transfer", tx)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		var body resultResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return false, fmt.Errorf("peernode: transfer: %w", errs.ErrUnknownAccount)
	}

	var body resultResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("peernode: decoding transfer response: %w", err)
	}
	return body.Result == "success", nil
}
