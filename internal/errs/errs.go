// Package errs defines the sentinel error kinds shared by the registry and
// peer engine, checked with errors.Is/errors.As rather than string matching.
package errs

import "fmt"

// Sentinel errors for the five kinds of failure this system distinguishes.
// Callers wrap these with fmt.Errorf("...: %w", ErrX) to attach context
// while keeping errors.Is matching intact.
var (
	// ErrProtocolTimeout: a peer RPC exceeded its deadline. The transfer
	// does not commit.
	ErrProtocolTimeout = fmt.Errorf("protocol timeout")

	// ErrUnknownAccount: the registry does not know the sender or recipient.
	ErrUnknownAccount = fmt.Errorf("unknown account")

	// ErrInsufficientBalance: the registry's balance check failed, or a
	// peer's commit-time read showed insufficiency.
	ErrInsufficientBalance = fmt.Errorf("insufficient balance")

	// ErrInvalidTransfer: amount < 0 or sender_id == recipient_id.
	ErrInvalidTransfer = fmt.Errorf("invalid transfer")

	// ErrMembershipStale: a register/exit notification could not reach a
	// peer. Logged only; never fails the originating operation.
	ErrMembershipStale = fmt.Errorf("membership notification stale")
)
