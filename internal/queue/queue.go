// Package queue implements the two per-peer transaction queues: the
// sending_queue (FIFO, this peer's own in-flight transfers) and the
// message_queue (always sorted in Lamport order, transactions of any
// origin currently outstanding in the ordering protocol).
package queue

import "github.com/klingon-exchange/lamportledger/internal/ledger"

// Sending is the FIFO queue of transfers this peer has originated and not
// yet completed. The sender is the only mutator.
type Sending struct {
	items []ledger.Transaction
}

// NewSending returns an empty sending queue.
func NewSending() *Sending {
	return &Sending{}
}

// Push appends tx to the tail.
func (s *Sending) Push(tx ledger.Transaction) {
	s.items = append(s.items, tx)
}

// Head returns the first transaction and true, or the zero value and false
// if the queue is empty.
func (s *Sending) Head() (ledger.Transaction, bool) {
	if len(s.items) == 0 {
		return ledger.Transaction{}, false
	}
	return s.items[0], true
}

// PopHead removes the first transaction. Callers must only call this when
// Head reports a transaction; popping an empty queue panics, since that
// indicates a commit-predicate/mutex bug rather than a recoverable error.
func (s *Sending) PopHead() ledger.Transaction {
	if len(s.items) == 0 {
		panic("queue: PopHead on empty sending queue")
	}
	head := s.items[0]
	s.items = s.items[1:]
	return head
}

// Len returns the number of outstanding transactions.
func (s *Sending) Len() int {
	return len(s.items)
}

// Items returns a snapshot of the queue contents, in FIFO order.
func (s *Sending) Items() []ledger.Transaction {
	out := make([]ledger.Transaction, len(s.items))
	copy(out, s.items)
	return out
}

// UpdateHead replaces the head transaction with tx, used to record an
// incremented num_replies without disturbing FIFO order. It panics if the
// queue is empty or tx does not identify the same transfer as the current
// head (see Transaction.Equal).
func (s *Sending) UpdateHead(tx ledger.Transaction) {
	if len(s.items) == 0 {
		panic("queue: UpdateHead on empty sending queue")
	}
	if !s.items[0].Equal(tx) {
		panic("queue: UpdateHead transaction does not match current head")
	}
	s.items[0] = tx
}

// Message is the Lamport-ordered queue of transactions (of any origin,
// including this peer's own) currently outstanding in the ordering
// protocol. Always kept sorted.
type Message struct {
	items []ledger.Transaction
}

// NewMessage returns an empty message queue.
func NewMessage() *Message {
	return &Message{}
}

// Insert adds tx and restores Lamport order.
func (m *Message) Insert(tx ledger.Transaction) {
	i := 0
	for i < len(m.items) && m.items[i].Less(tx) {
		i++
	}
	m.items = append(m.items, ledger.Transaction{})
	copy(m.items[i+1:], m.items[i:])
	m.items[i] = tx
}

// Head returns the first transaction and true, or the zero value and false
// if the queue is empty.
func (m *Message) Head() (ledger.Transaction, bool) {
	if len(m.items) == 0 {
		return ledger.Transaction{}, false
	}
	return m.items[0], true
}

// Remove deletes the first entry equal (by Transaction.Equal) to tx, and
// reports whether an entry was found and removed.
func (m *Message) Remove(tx ledger.Transaction) bool {
	for i, item := range m.items {
		if item.Equal(tx) {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of outstanding transactions.
func (m *Message) Len() int {
	return len(m.items)
}

// Items returns a snapshot of the queue contents, in Lamport order.
func (m *Message) Items() []ledger.Transaction {
	out := make([]ledger.Transaction, len(m.items))
	copy(out, m.items)
	return out
}
