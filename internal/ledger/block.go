package ledger

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/klingon-exchange/lamportledger/pkg/helpers"
)

// emptyDigest is the sentinel previous_hash of the head block: the hash
// of the empty string.
var emptyDigest = sha3.Sum256(nil)

// EmptyHash returns the hex-encoded digest of the empty string, the fixed
// previous_hash a chain's head block carries (invariant H2).
func EmptyHash() string {
	return helpers.DigestHex(emptyDigest[:])
}

// Block is one ledger entry: a committed or aborted Transaction, the hash
// of the block before it, and a forward link to the next block. The chain
// (not the block) owns sort order; Next is maintained as a convenience
// index, derived fresh on every append rather than hand-threaded.
type Block struct {
	Transaction  Transaction
	PreviousHash string
	Next         *Block
}

// canonicalMap builds the ordered-key map that HashOf serializes. Field
// order is pinned by hand (not struct reflection) so that two peers on two
// different Go versions or architectures compute byte-identical digests
// for the same committed block.
func canonicalMap(tx Transaction, previousHash string) string {
	// amount and sender_logic_clock use a stable textual encoding:
	// strconv with the smallest representation that round-trips, so
	// "4" and "4.0" don't produce different digests across peers.
	return fmt.Sprintf(
		`{"amount":%s,"num_replies":%d,"previous_hash":%q,"recipient_id":%d,"sender_id":%d,"sender_logic_clock":%d,"status":%q,"timestamp":%q}`,
		formatAmount(tx.Amount), tx.NumReplies, previousHash, tx.RecipientID, tx.SenderID,
		tx.SenderLogicClock, string(tx.Status), tx.Timestamp,
	)
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'g', -1, 64)
}

// HashOf returns the 256-bit digest of the canonical serialization of
// {transaction-as-mapping, previous_hash}, hex-encoded.
func HashOf(tx Transaction, previousHash string) string {
	sum := sha3.Sum256([]byte(canonicalMap(tx, previousHash)))
	return helpers.DigestHex(sum[:])
}

// Hash returns this block's own digest (used as the next block's
// PreviousHash).
func (b *Block) Hash() string {
	return HashOf(b.Transaction, b.PreviousHash)
}

// Chain is a per-peer, append-only, Lamport-ordered sequence of blocks.
// Append is the only mutator; blocks are never removed.
type Chain struct {
	mu     sync.RWMutex
	blocks []*Block
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// Append inserts a new block carrying tx, then restores invariants S
// (sorted by Lamport order) and H1/H2 (hash linkage) by re-sorting the
// full sequence and sweeping it front-to-back. Callers must not append the
// same transaction twice; the chain does not deduplicate.
func (c *Chain) Append(tx Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocks = append(c.blocks, &Block{Transaction: tx})
	c.resort()
}

// resort re-establishes invariants S, H1, and H2. Must be called with mu held.
func (c *Chain) resort() {
	sort.SliceStable(c.blocks, func(i, j int) bool {
		return c.blocks[i].Transaction.Less(c.blocks[j].Transaction)
	})

	if len(c.blocks) == 0 {
		return
	}

	c.blocks[0].PreviousHash = EmptyHash()
	for i := 0; i < len(c.blocks)-1; i++ {
		c.blocks[i].Next = c.blocks[i+1]
		c.blocks[i+1].PreviousHash = c.blocks[i].Hash()
	}
	c.blocks[len(c.blocks)-1].Next = nil
}

// Head returns the first block, or nil if the chain is empty.
func (c *Chain) Head() *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) == 0 {
		return nil
	}
	return c.blocks[0]
}

// Tail returns the last block, or nil if the chain is empty.
func (c *Chain) Tail() *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) == 0 {
		return nil
	}
	return c.blocks[len(c.blocks)-1]
}

// Length returns the number of blocks in the chain.
func (c *Chain) Length() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Blocks returns a snapshot slice of the chain's blocks, in order. The
// slice is a copy; mutating it does not affect the chain.
func (c *Chain) Blocks() []*Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// LinkPair is a (previous_hash, hash) pair for one block, used to compare
// whole chains for cross-peer determinism.
type LinkPair struct {
	PreviousHash string
	Hash         string
}

// LinkPairs returns the (previous_hash, hash) sequence for the whole
// chain. Two peers that have appended the same committed transactions in
// the same order produce an identical sequence.
func (c *Chain) LinkPairs() []LinkPair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]LinkPair, len(c.blocks))
	for i, b := range c.blocks {
		out[i] = LinkPair{PreviousHash: b.PreviousHash, Hash: b.Hash()}
	}
	return out
}
