// Package registrysvc implements the Registry: peer identity
// allocation, the reachable-peer directory, and the sole place account
// balances change.
package registrysvc

import (
	"fmt"
	"time"

	"github.com/klingon-exchange/lamportledger/internal/errs"
	"github.com/klingon-exchange/lamportledger/internal/ledger"
	"github.com/klingon-exchange/lamportledger/internal/storage"
	"github.com/klingon-exchange/lamportledger/pkg/logging"
)

// initialBalance is credited to every newly registered account.
const initialBalance = 10.0

// timestampLayout mirrors ledger.Now's format for recent_access_time.
const timestampLayout = "2006-01-02T15:04:05"

func now() string {
	return time.Now().Format(timestampLayout)
}

// Account is the Registry-only view of a peer's account: id, balance, and
// recent access time. The balance endpoint returns only the balance, not
// this type.
type Account struct {
	ID               int     `json:"id"`
	Balance          float64 `json:"balance"`
	RecentAccessTime string  `json:"recent_access_time"`
}

// Registry is the single authoritative balance and address-directory
// service. It is backed by internal/storage, whose single connection
// mutex serializes each storage call; a transfer's balance check and
// update run together under that mutex inside ApplyTransfer, so there is
// no second mutex here. Register's id allocation and account creation are
// separate storage calls, not one critical section.
type Registry struct {
	store      *storage.Storage
	serverAddr string
	log        *logging.Logger
}

// New returns a Registry backed by store, advertising serverAddr to
// joining peers.
func New(store *storage.Storage, serverAddr string, log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Default()
	}
	return &Registry{store: store, serverAddr: serverAddr, log: log.Component("registry")}
}

// Register allocates the next monotonic id, creates its account at the
// initial balance, and returns the existing peer-address map (before this
// registration) plus the registry's own address.
func (r *Registry) Register() (id int, otherClients map[int]string, serverAddr string, err error) {
	otherClients, err = r.store.PeerAddrs()
	if err != nil {
		return 0, nil, "", fmt.Errorf("registrysvc: listing peers: %w", err)
	}

	id, err = r.store.NextAccountID()
	if err != nil {
		return 0, nil, "", fmt.Errorf("registrysvc: allocating id: %w", err)
	}
	if err := r.store.CreateAccount(id, initialBalance, now()); err != nil {
		return 0, nil, "", fmt.Errorf("registrysvc: creating account %d: %w", id, err)
	}

	r.log.Info("peer registered", "id", id, "balance", initialBalance)
	return id, otherClients, r.serverAddr, nil
}

// RegisterConfirm stores the reachable address for an already-registered
// client id.
func (r *Registry) RegisterConfirm(clientID int, clientAddr string) error {
	exists, err := r.store.AccountExists(clientID)
	if err != nil {
		return fmt.Errorf("registrysvc: checking account %d: %w", clientID, err)
	}
	if !exists {
		return fmt.Errorf("registrysvc: register-confirm for %d: %w", clientID, errs.ErrUnknownAccount)
	}
	if err := r.store.SetPeerAddr(clientID, clientAddr); err != nil {
		return fmt.Errorf("registrysvc: storing address for %d: %w", clientID, err)
	}
	r.log.Info("peer address confirmed", "id", clientID, "addr", clientAddr)
	return nil
}

// Balance returns the current balance of clientID.
func (r *Registry) Balance(clientID int) (float64, error) {
	balance, err := r.store.Balance(clientID)
	if err != nil {
		return 0, fmt.Errorf("registrysvc: balance %d: %w", clientID, errs.ErrUnknownAccount)
	}
	return balance, nil
}

// Transfer applies tx's amount from tx.SenderID to tx.RecipientID. It is
// the only place balances change. The caller (the peer ordering engine)
// is trusted to have already cleared the mutual-exclusion protocol; this
// method performs its own sufficiency check as a safety net, it does not
// re-derive order.
func (r *Registry) Transfer(tx ledger.Transaction) error {
	if tx.Amount < 0 {
		return fmt.Errorf("registrysvc: transfer amount %v: %w", tx.Amount, errs.ErrInvalidTransfer)
	}

	senderExists, err := r.store.AccountExists(tx.SenderID)
	if err != nil {
		return fmt.Errorf("registrysvc: checking sender %d: %w", tx.SenderID, err)
	}
	recipientExists, err := r.store.AccountExists(tx.RecipientID)
	if err != nil {
		return fmt.Errorf("registrysvc: checking recipient %d: %w", tx.RecipientID, err)
	}
	if !senderExists || !recipientExists {
		return fmt.Errorf("registrysvc: transfer %d->%d: %w", tx.SenderID, tx.RecipientID, errs.ErrUnknownAccount)
	}

	if err := r.store.ApplyTransfer(tx.SenderID, tx.RecipientID, tx.Amount, now()); err != nil {
		if err == storage.ErrInsufficientFunds {
			return fmt.Errorf("registrysvc: transfer %d->%d: %w", tx.SenderID, tx.RecipientID, errs.ErrInsufficientBalance)
		}
		return fmt.Errorf("registrysvc: applying transfer: %w", err)
	}

	r.log.Info("transfer applied", "sender", tx.SenderID, "recipient", tx.RecipientID, "amount", tx.Amount)
	return nil
}

// Exit removes clientID's reachable address. The account itself, and its
// balance, is retained.
func (r *Registry) Exit(clientID int) error {
	if err := r.store.RemovePeerAddr(clientID); err != nil {
		return fmt.Errorf("registrysvc: removing address for %d: %w", clientID, err)
	}
	r.log.Info("peer exited", "id", clientID)
	return nil
}
