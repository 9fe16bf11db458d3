package queue

import (
	"testing"

	"github.com/klingon-exchange/lamportledger/internal/ledger"
)

func TestSendingFIFOOrder(t *testing.T) {
	s := NewSending()
	a := ledger.New(1, 2, 1.0, 1)
	b := ledger.New(1, 3, 2.0, 5)
	s.Push(a)
	s.Push(b)

	head, ok := s.Head()
	if !ok || !head.Equal(a) {
		t.Fatalf("Head = %+v, want %+v", head, a)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}

	popped := s.PopHead()
	if !popped.Equal(a) {
		t.Fatalf("PopHead = %+v, want %+v", popped, a)
	}
	head, ok = s.Head()
	if !ok || !head.Equal(b) {
		t.Fatalf("Head after pop = %+v, want %+v", head, b)
	}
}

func TestSendingHeadEmpty(t *testing.T) {
	s := NewSending()
	if _, ok := s.Head(); ok {
		t.Fatalf("Head on empty queue should report false")
	}
}

func TestSendingUpdateHeadPreservesIdentity(t *testing.T) {
	s := NewSending()
	tx := ledger.New(1, 2, 1.0, 1)
	s.Push(tx)

	tx.NumReplies = 3
	s.UpdateHead(tx)

	head, _ := s.Head()
	if head.NumReplies != 3 {
		t.Fatalf("UpdateHead did not persist NumReplies, got %d", head.NumReplies)
	}
}

func TestSendingUpdateHeadRejectsMismatch(t *testing.T) {
	s := NewSending()
	s.Push(ledger.New(1, 2, 1.0, 1))

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on mismatched UpdateHead")
		}
	}()
	s.UpdateHead(ledger.New(9, 9, 9.0, 9))
}

func TestMessageInsertMaintainsLamportOrder(t *testing.T) {
	m := NewMessage()
	m.Insert(ledger.New(2, 9, 1.0, 5))
	m.Insert(ledger.New(1, 9, 1.0, 2))
	m.Insert(ledger.New(3, 9, 1.0, 8))

	items := m.Items()
	if len(items) != 3 {
		t.Fatalf("Len = %d, want 3", len(items))
	}
	for i := 1; i < len(items); i++ {
		if !items[i-1].Less(items[i]) {
			t.Fatalf("items not in Lamport order: %+v", items)
		}
	}
}

func TestMessageInsertTieBreaksBySenderID(t *testing.T) {
	m := NewMessage()
	m.Insert(ledger.New(2, 9, 1.0, 3))
	m.Insert(ledger.New(1, 9, 1.0, 3))

	items := m.Items()
	if items[0].SenderID != 1 || items[1].SenderID != 2 {
		t.Fatalf("tie not broken by SenderID ascending: %+v", items)
	}
}

func TestMessageRemove(t *testing.T) {
	m := NewMessage()
	tx := ledger.New(1, 9, 1.0, 3)
	m.Insert(tx)
	m.Insert(ledger.New(2, 9, 1.0, 4))

	if !m.Remove(tx) {
		t.Fatalf("Remove reported false for a present transaction")
	}
	if m.Len() != 1 {
		t.Fatalf("Len after Remove = %d, want 1", m.Len())
	}
	if m.Remove(tx) {
		t.Fatalf("Remove reported true for an already-removed transaction")
	}
}

func TestMessageHeadEmpty(t *testing.T) {
	m := NewMessage()
	if _, ok := m.Head(); ok {
		t.Fatalf("Head on empty message queue should report false")
	}
}
