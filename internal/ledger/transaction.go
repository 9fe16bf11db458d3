package ledger

import "time"

// Status is the lifecycle state of a Transaction.
type Status string

// Transaction statuses. PENDING is the only valid status at creation; a
// Transaction transitions to exactly one of SUCCESS or ABORT, exactly once,
// on the sender, at commit time.
const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusAbort   Status = "ABORT"
)

// timestampLayout is the wall-clock format stamped on each transaction
// (informational only, never used for ordering).
const timestampLayout = "2006-01-02T15:04:05"

// Now formats the current wall-clock time the way a freshly-created
// Transaction stamps it.
func Now() string {
	return time.Now().Format(timestampLayout)
}

// Transaction is the wire-level unit of work: a proposed transfer of amount
// from SenderID to RecipientID, tagged with the sender's Lamport clock at
// the send event. It is immutable once broadcast except for Status and
// NumReplies, both sender-local bookkeeping.
type Transaction struct {
	SenderID         int     `json:"sender_id"`
	RecipientID      int     `json:"recipient_id"`
	Amount           float64 `json:"amount"`
	SenderLogicClock uint64  `json:"sender_logic_clock"`
	Timestamp        string  `json:"timestamp"`
	Status           Status  `json:"status"`
	NumReplies       int     `json:"num_replies"`
}

// New constructs a PENDING Transaction stamped with the current time.
func New(senderID, recipientID int, amount float64, clock uint64) Transaction {
	return Transaction{
		SenderID:         senderID,
		RecipientID:      recipientID,
		Amount:           amount,
		SenderLogicClock: clock,
		Timestamp:        Now(),
		Status:           StatusPending,
		NumReplies:       0,
	}
}

// Equal implements the identity rule from the data model: two transactions
// are the same transfer if sender, recipient, amount, clock, and timestamp
// match. Status and NumReplies are sender-local bookkeeping, not identity.
func (t Transaction) Equal(other Transaction) bool {
	return t.SenderID == other.SenderID &&
		t.RecipientID == other.RecipientID &&
		t.Amount == other.Amount &&
		t.SenderLogicClock == other.SenderLogicClock &&
		t.Timestamp == other.Timestamp
}

// Less implements the Lamport total order: lexicographic on
// (SenderLogicClock, SenderID). Sender ids are unique per peer, so ties on
// clock are always resolved and the order is strict and total.
func (t Transaction) Less(other Transaction) bool {
	if t.SenderLogicClock != other.SenderLogicClock {
		return t.SenderLogicClock < other.SenderLogicClock
	}
	return t.SenderID < other.SenderID
}

// Tuple is a compact, loggable identity for a transaction, used in log
// lines and the /ui/state snapshot.
type Tuple struct {
	SenderID    int     `json:"sender_id"`
	RecipientID int     `json:"recipient_id"`
	Amount      float64 `json:"amount"`
}

// ToTuple returns the (sender, recipient, amount) identity used for logging.
func (t Transaction) ToTuple() Tuple {
	return Tuple{SenderID: t.SenderID, RecipientID: t.RecipientID, Amount: t.Amount}
}
