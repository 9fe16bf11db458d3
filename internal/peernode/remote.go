package peernode

import "github.com/klingon-exchange/lamportledger/internal/ledger"

// OnRequest is the remote "on_request" operation. The propagation
// delay simulation happens in the HTTP handler, before this is called, so
// this method itself never sleeps.
func (e *Engine) OnRequest(tx ledger.Transaction) {
	e.mu.Lock()
	e.clock.RecvEvent(tx.SenderLogicClock)
	e.message.Insert(tx)
	e.mu.Unlock()

	e.log.Info("request received", "tx", tx.ToTuple())
	e.broadcastEvent(Event{Kind: "queue_insert", Data: tx.ToTuple()})
}

// OnRelease is the remote "on_release" operation.
func (e *Engine) OnRelease(tx ledger.Transaction) {
	e.mu.Lock()
	e.clock.RecvEvent(tx.SenderLogicClock)
	e.message.Remove(tx)
	e.chain.Append(tx)
	e.mu.Unlock()

	e.log.Info("release received", "tx", tx.ToTuple(), "status", tx.Status)
	e.broadcastEvent(Event{Kind: "ledger_append", Data: tx})
}
