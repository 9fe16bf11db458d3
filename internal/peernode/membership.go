// membership.go implements the join sequence. The exit sequence
// is Engine.Shutdown in engine.go; both are best-effort and not ordered
// via Lamport (an accepted limitation: a peer that misses a join
// notification will not participate in mutual exclusion for that peer's
// transactions until it learns of it some other way).
package peernode

import (
	"context"
	"fmt"

	"github.com/klingon-exchange/lamportledger/internal/errs"
	"github.com/klingon-exchange/lamportledger/pkg/logging"
)

// RegisterWithRegistry is join step 1: allocate an id and learn the
// current peer-address map and the registry's own address. Callers use
// the returned id to compute their advertised address (base port plus id)
// before calling ConfirmAndNotify.
func RegisterWithRegistry(ctx context.Context, registryAddr string) (id int, otherClients map[int]string, serverAddr string, err error) {
	registry := NewRegistryTransport(registryAddr)
	id, otherClients, serverAddr, err = registry.Register(ctx)
	if err != nil {
		return 0, nil, "", fmt.Errorf("peernode: registering: %w", err)
	}
	if serverAddr == "" {
		serverAddr = registryAddr
	}
	return id, otherClients, serverAddr, nil
}

// ConfirmAndNotify is join steps 2-3: tell the registry this peer's
// public address, then best-effort-notify every already-known peer so
// they can perform step 4 (insert (id, addr) into their own other-clients
// map, via Engine.AddPeer on the receiving end's /register handler).
func ConfirmAndNotify(ctx context.Context, registryAddr string, id int, publicAddr string, otherClients map[int]string, log *logging.Logger) error {
	if log == nil {
		log = logging.Default()
	}
	membershipLog := log.Component("membership")

	registry := NewRegistryTransport(registryAddr)
	if err := registry.RegisterConfirm(ctx, id, publicAddr); err != nil {
		return fmt.Errorf("peernode: confirming address: %w", err)
	}

	rpc := newTransport()
	for peerID, addr := range otherClients {
		if err := rpc.SendRegisterNotify(ctx, addr, id, publicAddr); err != nil {
			membershipLog.Warn("register notify failed", "peer", peerID, "err", errs.ErrMembershipStale)
		}
	}

	membershipLog.Info("joined", "id", id, "known_peers", len(otherClients))
	return nil
}
