// Package lsq implements the load/store queue: a fixed-capacity,
// in-order queue of memory operations that performs store-to-load
// forwarding and mediates traffic to the cache subsystem.
//
// Grounded on spec.md §4.2, reconciling the two ns-3 prototypes in
// original_source/src/MultiCoreSim/model/{src,header}/LSQ.{cc,h} (the
// "commit never erases" / cache_ack-gated removal rule is spec.md's
// normative choice; original_source's version that erases on commit,
// and the sibling top-level LSQ.cc that retires a WRITE as soon as it
// is ready rather than acked, are the rejected variants spec.md §9
// flags as bugs).
package lsq

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/salahga/oocoresim/request"
)

// HookPosAllocate fires after an entry is appended to the LSQ.
var HookPosAllocate = &sim.HookPos{Name: "LSQ Allocate"}

// HookPosForward fires when ld_fwd finds a matching store.
var HookPosForward = &sim.HookPos{Name: "LSQ Forward"}

// HookPosPush fires when an entry is handed to the cache TX channel.
var HookPosPush = &sim.HookPos{Name: "LSQ Push"}

// HookPosResponse fires when a cache response is matched to an entry.
var HookPosResponse = &sim.HookPos{Name: "LSQ Response"}

// HookPosRetire fires once per entry removed by Retire.
var HookPosRetire = &sim.HookPos{Name: "LSQ Retire"}

// HookPosUnknownResponse fires when a cache response carries a msg_id
// the LSQ does not hold. Non-fatal (spec.md §7).
var HookPosUnknownResponse = &sim.HookPos{Name: "LSQ Unknown Response"}

// Entry is one in-flight memory operation tracked by the LSQ.
type Entry struct {
	Request         request.Request
	Ready           bool
	WaitingForCache bool
	CacheAck        bool
	AllocCycle      uint64
}

// CacheChannel is the minimal interface the LSQ needs from the cache
// subsystem: a bounded outgoing FIFO of requests and a bounded incoming
// FIFO of responses, exactly the tx_fifo/rx_fifo contract of spec.md
// §4.4. akita's sim.Buffer satisfies this directly.
type CacheChannel interface {
	// CanSendRequest reports whether a request can be pushed onto
	// tx_fifo without blocking (tx_fifo.is_full() negated).
	CanSendRequest() bool
	// SendRequest pushes req onto tx_fifo. The caller must have
	// checked CanSendRequest first.
	SendRequest(req request.Request)
	// HasResponse reports whether rx_fifo is non-empty.
	HasResponse() bool
	// PopResponse dequeues and returns the front of rx_fifo. The
	// caller must have checked HasResponse first.
	PopResponse() request.Response
}

// LSQ is a fixed-capacity, in-order memory-operation queue.
type LSQ struct {
	*sim.HookableBase

	capacity int
	entries  []Entry
}

// New creates an LSQ with the given capacity. spec.md §4.2 defaults to
// 16 (an alternate configuration uses 8); callers pass it explicitly.
func New(capacity int) *LSQ {
	return &LSQ{
		HookableBase: sim.NewHookableBase(),
		capacity:     capacity,
	}
}

// Capacity returns LSQ_CAP.
func (q *LSQ) Capacity() int {
	return q.capacity
}

// CanAccept reports whether the LSQ has room for one more entry.
func (q *LSQ) CanAccept() bool {
	return len(q.entries) < q.capacity
}

// Size returns the current number of entries.
func (q *LSQ) Size() int {
	return len(q.entries)
}

// IsEmpty reports whether the LSQ holds no entries.
func (q *LSQ) IsEmpty() bool {
	return len(q.entries) == 0
}

// AllocResult reports what Allocate did, so the core driver can forward
// the right signal into the ROB without the LSQ holding a ROB reference
// (Design Notes' option (c) in spec.md §9).
type AllocResult struct {
	OK    bool
	Ready bool
}

// Allocate appends req (which must be a READ or WRITE) to the tail of
// the LSQ. A WRITE is ready immediately — stores never stall the
// front-end. A READ runs the forwarding check; if it hits, it is ready
// immediately too. Returns OK=false, making no change, if the LSQ is
// full.
func (q *LSQ) Allocate(req request.Request) AllocResult {
	if !q.CanAccept() {
		return AllocResult{OK: false}
	}

	entry := Entry{Request: req}

	if req.Op == request.Write {
		entry.Ready = true
	} else {
		entry.Ready = q.forwardLocked(req.Addr) != nil
	}

	q.entries = append(q.entries, entry)
	q.InvokeHook(sim.HookCtx{Domain: q, Pos: HookPosAllocate, Item: entry})

	return AllocResult{OK: true, Ready: entry.Ready}
}

// LdFwd searches the LSQ from youngest to oldest for a WRITE to addr.
// If found, every READ entry to that address between the matching store
// and the tail is marked ready, and their msg_ids are returned for the
// caller to commit in the ROB. Repeated calls without an intervening
// allocation are idempotent: the same boolean and the same (now empty,
// since already-ready entries are skipped) set of newly-readied ids.
func (q *LSQ) LdFwd(addr uint64) (hit bool, readiedMsgIDs []uint64) {
	storeIdx := q.forwardLocked(addr)
	if storeIdx == nil {
		return false, nil
	}

	for i := *storeIdx; i < len(q.entries); i++ {
		e := &q.entries[i]
		if e.Request.Op == request.Read && e.Request.Addr == addr && !e.Ready {
			e.Ready = true
			readiedMsgIDs = append(readiedMsgIDs, e.Request.MsgID)
			q.InvokeHook(sim.HookCtx{Domain: q, Pos: HookPosForward, Item: e.Request.MsgID})
		}
	}

	return true, readiedMsgIDs
}

// forwardLocked returns the index of the youngest WRITE to addr, or nil
// if there is none. Exact-address match only, per spec.md §4.2's
// forwarding policy (no partial overlap, no byte ranges).
func (q *LSQ) forwardLocked(addr uint64) *int {
	for i := len(q.entries) - 1; i >= 0; i-- {
		if q.entries[i].Request.Op == request.Write && q.entries[i].Request.Addr == addr {
			idx := i
			return &idx
		}
	}

	return nil
}

// Commit marks the entry with the given msg_id as ready. For a WRITE
// this records architectural commit — the cycle the ROB retired its
// paired entry — but does not remove it from the LSQ; removal waits for
// CacheAck (spec.md §4.2). It does not erase entries; erasure only ever
// happens in Retire.
func (q *LSQ) Commit(msgID uint64) {
	for i := range q.entries {
		if q.entries[i].Request.MsgID == msgID {
			q.entries[i].Ready = true
			return
		}
	}
}

// PushToCache considers only the oldest entry, enforcing FIFO ordering
// at the cache interface. If that entry has not already been handed to
// the cache, and it is a ready WRITE or a not-yet-ready READ (one that
// forwarding did not satisfy), it is sent and marked WaitingForCache.
// At most one request is sent per call. Idempotent within a cycle for
// an entry already WaitingForCache.
func (q *LSQ) PushToCache(ch CacheChannel) {
	if len(q.entries) == 0 || !ch.CanSendRequest() {
		return
	}

	head := &q.entries[0]
	if head.WaitingForCache {
		return
	}

	sendable := (head.Request.Op == request.Write && head.Ready) ||
		(head.Request.Op == request.Read && !head.Ready)
	if !sendable {
		return
	}

	ch.SendRequest(head.Request)
	head.WaitingForCache = true
	q.InvokeHook(sim.HookCtx{Domain: q, Pos: HookPosPush, Item: head.Request.MsgID})
}

// Completion describes one cache response RxFromCache matched to an
// LSQ entry, for the caller to use in its own in-flight/response-count
// bookkeeping (the LSQ itself tracks only memory-system liveness, not
// the driver's counters).
type Completion struct {
	MsgID uint64
	Op    request.OpType
}

// RxFromCache drains one response from the cache RX channel, if any,
// and applies it to the matching entry: a READ becomes ready and its
// forwarding is re-run so any younger same-address loads become ready
// too; a WRITE's CacheAck is set. Returns the completed entry (nil if
// the RX channel was empty or the response matched no held entry) and
// the msg_ids the caller should commit in the ROB (the responding
// READ, plus any loads it newly forwards to).
func (q *LSQ) RxFromCache(ch CacheChannel) (completed *Completion, readyMsgIDs []uint64) {
	if !ch.HasResponse() {
		return nil, nil
	}

	resp := ch.PopResponse()

	for i := range q.entries {
		e := &q.entries[i]
		if e.Request.MsgID != resp.MsgID {
			continue
		}

		e.WaitingForCache = false
		completed = &Completion{MsgID: e.Request.MsgID, Op: e.Request.Op}

		switch e.Request.Op {
		case request.Read:
			e.Ready = true
			readyMsgIDs = append(readyMsgIDs, e.Request.MsgID)
			q.InvokeHook(sim.HookCtx{Domain: q, Pos: HookPosResponse, Item: resp})

			if _, fwd := q.LdFwd(e.Request.Addr); len(fwd) > 0 {
				readyMsgIDs = append(readyMsgIDs, fwd...)
			}
		case request.Write:
			e.CacheAck = true
			q.InvokeHook(sim.HookCtx{Domain: q, Pos: HookPosResponse, Item: resp})
		}

		return completed, readyMsgIDs
	}

	q.InvokeHook(sim.HookCtx{Domain: q, Pos: HookPosUnknownResponse, Item: resp.MsgID})

	return nil, nil
}

// Retire scans from the head and removes entries per the per-type rule
// of spec.md §4.2: a READ is removed once Ready; a WRITE is removed
// once CacheAck. Unlike the ROB, the LSQ does not enforce strict FIFO
// removal — a ready load may drain past a still-unacked older store,
// because program-order commit is the ROB's job; the LSQ only tracks
// memory-system liveness.
func (q *LSQ) Retire() {
	kept := q.entries[:0]

	for _, e := range q.entries {
		removable := (e.Request.Op == request.Read && e.Ready) ||
			(e.Request.Op == request.Write && e.CacheAck)

		if removable {
			q.InvokeHook(sim.HookCtx{Domain: q, Pos: HookPosRetire, Item: e.Request.MsgID})
			continue
		}

		kept = append(kept, e)
	}

	q.entries = kept
}

// RemoveLastEntry pops the most recently appended entry. Used solely to
// roll back a failed paired allocation (spec.md §4.3).
func (q *LSQ) RemoveLastEntry() {
	if len(q.entries) == 0 {
		return
	}

	q.entries = q.entries[:len(q.entries)-1]
}

// Step runs the per-cycle sub-steps in the order spec.md §4.2 mandates:
// rx_from_cache, retire, push_to_cache — consuming at most one cache
// response, the literal per-cycle reading of §4.2. The core driver
// does not call this directly; it drains RxFromCache in a loop instead
// (see core.Driver), to honor §4.3's "while the cache RX channel is
// non-empty" draining language while keeping retire/push ordered
// exactly as here.
func (q *LSQ) Step(ch CacheChannel) []uint64 {
	_, ready := q.RxFromCache(ch)
	q.Retire()
	q.PushToCache(ch)

	return ready
}
