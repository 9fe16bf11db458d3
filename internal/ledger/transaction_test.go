package ledger

import "testing"

func TestTransactionEqualIgnoresStatusAndReplies(t *testing.T) {
	a := New(1, 2, 5.0, 3)
	b := a
	b.Status = StatusSuccess
	b.NumReplies = 4

	if !a.Equal(b) {
		t.Fatalf("transactions differing only in Status/NumReplies should be Equal")
	}
}

func TestTransactionEqualDetectsDifference(t *testing.T) {
	a := New(1, 2, 5.0, 3)
	b := New(1, 2, 5.0, 4) // different clock
	if a.Equal(b) {
		t.Fatalf("transactions with different SenderLogicClock must not be Equal")
	}
}

func TestTransactionLessByClock(t *testing.T) {
	a := New(1, 2, 1.0, 3)
	b := New(5, 2, 1.0, 4)
	if !a.Less(b) {
		t.Fatalf("transaction with lower clock should sort first")
	}
	if b.Less(a) {
		t.Fatalf("transaction with higher clock should not sort first")
	}
}

func TestTransactionLessTieBreaksBySenderID(t *testing.T) {
	a := New(1, 9, 1.0, 3)
	b := New(2, 9, 1.0, 3)
	if !a.Less(b) {
		t.Fatalf("tied clocks should order by SenderID ascending")
	}
	if b.Less(a) {
		t.Fatalf("higher SenderID should not sort before lower SenderID on a clock tie")
	}
}

func TestNewTransactionDefaults(t *testing.T) {
	tx := New(1, 2, 7.5, 1)
	if tx.Status != StatusPending {
		t.Fatalf("new transaction status = %q, want PENDING", tx.Status)
	}
	if tx.NumReplies != 0 {
		t.Fatalf("new transaction NumReplies = %d, want 0", tx.NumReplies)
	}
	if tx.Timestamp == "" {
		t.Fatalf("new transaction Timestamp must not be empty")
	}
}

func TestToTuple(t *testing.T) {
	tx := New(1, 2, 3.5, 1)
	tuple := tx.ToTuple()
	if tuple.SenderID != 1 || tuple.RecipientID != 2 || tuple.Amount != 3.5 {
		t.Fatalf("ToTuple = %+v, want {1 2 3.5}", tuple)
	}
}
