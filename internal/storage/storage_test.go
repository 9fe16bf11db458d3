package storage

import "testing"

func openTest(t *testing.T) *Storage {
	t.Helper()
	// Each test gets its own named in-memory database so tests don't
	// interfere with each other via the shared-cache namespace.
	s, err := Open("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNextAccountIDStartsAtOne(t *testing.T) {
	s := openTest(t)
	id, err := s.NextAccountID()
	if err != nil {
		t.Fatalf("NextAccountID: %v", err)
	}
	if id != 1 {
		t.Fatalf("NextAccountID = %d, want 1", id)
	}
}

func TestNextAccountIDIsMonotonic(t *testing.T) {
	s := openTest(t)
	if err := s.CreateAccount(1, 10.0, "t0"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	id, err := s.NextAccountID()
	if err != nil {
		t.Fatalf("NextAccountID: %v", err)
	}
	if id != 2 {
		t.Fatalf("NextAccountID = %d, want 2", id)
	}
}

func TestBalanceUnknownAccount(t *testing.T) {
	s := openTest(t)
	if _, err := s.Balance(42); err == nil {
		t.Fatalf("Balance on unknown account should error")
	}
}

func TestApplyTransferMovesBalance(t *testing.T) {
	s := openTest(t)
	if err := s.CreateAccount(1, 10.0, "t0"); err != nil {
		t.Fatalf("CreateAccount(1): %v", err)
	}
	if err := s.CreateAccount(2, 10.0, "t0"); err != nil {
		t.Fatalf("CreateAccount(2): %v", err)
	}

	if err := s.ApplyTransfer(1, 2, 4.0, "t1"); err != nil {
		t.Fatalf("ApplyTransfer: %v", err)
	}

	b1, err := s.Balance(1)
	if err != nil {
		t.Fatalf("Balance(1): %v", err)
	}
	b2, err := s.Balance(2)
	if err != nil {
		t.Fatalf("Balance(2): %v", err)
	}
	if b1 != 6.0 || b2 != 14.0 {
		t.Fatalf("balances after transfer = (%v, %v), want (6, 14)", b1, b2)
	}
}

func TestApplyTransferInsufficientFunds(t *testing.T) {
	s := openTest(t)
	if err := s.CreateAccount(1, 10.0, "t0"); err != nil {
		t.Fatalf("CreateAccount(1): %v", err)
	}
	if err := s.CreateAccount(2, 10.0, "t0"); err != nil {
		t.Fatalf("CreateAccount(2): %v", err)
	}

	if err := s.ApplyTransfer(1, 2, 100.0, "t1"); err != ErrInsufficientFunds {
		t.Fatalf("ApplyTransfer err = %v, want ErrInsufficientFunds", err)
	}

	b1, _ := s.Balance(1)
	if b1 != 10.0 {
		t.Fatalf("sender balance changed on a failed transfer: %v", b1)
	}
}

func TestPeerAddrLifecycle(t *testing.T) {
	s := openTest(t)
	if err := s.SetPeerAddr(1, "10.0.0.1:9101"); err != nil {
		t.Fatalf("SetPeerAddr: %v", err)
	}
	addrs, err := s.PeerAddrs()
	if err != nil {
		t.Fatalf("PeerAddrs: %v", err)
	}
	if addrs[1] != "10.0.0.1:9101" {
		t.Fatalf("PeerAddrs = %v, want entry for id 1", addrs)
	}

	if err := s.RemovePeerAddr(1); err != nil {
		t.Fatalf("RemovePeerAddr: %v", err)
	}
	addrs, err = s.PeerAddrs()
	if err != nil {
		t.Fatalf("PeerAddrs after remove: %v", err)
	}
	if _, ok := addrs[1]; ok {
		t.Fatalf("peer addr for 1 should be gone after RemovePeerAddr")
	}
}

func TestAccountExists(t *testing.T) {
	s := openTest(t)
	if ok, err := s.AccountExists(1); err != nil || ok {
		t.Fatalf("AccountExists before create = (%v, %v), want (false, nil)", ok, err)
	}
	if err := s.CreateAccount(1, 10.0, "t0"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if ok, err := s.AccountExists(1); err != nil || !ok {
		t.Fatalf("AccountExists after create = (%v, %v), want (true, nil)", ok, err)
	}
}
