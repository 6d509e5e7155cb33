// Package rob implements the reorder buffer: a fixed-capacity,
// strictly-in-order queue of in-flight instructions that enforces
// program-order commit for a single core.
//
// Grounded on the normative rule set in spec.md §4.1, reconciling the
// several mutually-inconsistent ROB prototypes in
// original_source/src/MultiCoreSim/model/{src,header}/ROB.{cc,h} and
// original_source/ROB.{cc,h}.
package rob

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/salahga/oocoresim/request"
)

// HookPosAllocate fires after an entry is appended to the ROB.
var HookPosAllocate = &sim.HookPos{Name: "ROB Allocate"}

// HookPosCommit fires after Commit marks an entry ready.
var HookPosCommit = &sim.HookPos{Name: "ROB Commit"}

// HookPosRetire fires once per entry popped by Retire.
var HookPosRetire = &sim.HookPos{Name: "ROB Retire"}

// HookPosUnknownCommit fires when Commit is given a msg_id the ROB does
// not hold. This is the non-fatal "unknown msg_id" warning from
// spec.md §7 — observable, never fatal.
var HookPosUnknownCommit = &sim.HookPos{Name: "ROB Unknown Commit"}

// Entry is one in-flight instruction tracked by the ROB.
type Entry struct {
	Request    request.Request
	Ready      bool
	AllocCycle uint64
}

// RetiredEntry describes one entry the ROB popped during Retire, for the
// caller to act on (the core driver forwards WRITE retirements to the
// LSQ's Commit, per spec.md §4.1's "signal the LSQ that the store has
// committed architecturally").
type RetiredEntry struct {
	MsgID uint64
	Op    request.OpType
}

// ROB is a fixed-capacity, in-order instruction queue.
type ROB struct {
	*sim.HookableBase

	capacity int
	ipc      int
	entries  []Entry
}

// New creates a ROB with the given capacity and per-cycle retire width
// (IPC). Defaults from spec.md §4.1 are capacity 32, IPC 4; callers
// supply both explicitly so tests can exercise small windows.
func New(capacity, ipc int) *ROB {
	return &ROB{
		HookableBase: sim.NewHookableBase(),
		capacity:     capacity,
		ipc:          ipc,
	}
}

// Capacity returns ROB_CAP.
func (r *ROB) Capacity() int {
	return r.capacity
}

// CanAccept reports whether the ROB has room for one more entry.
func (r *ROB) CanAccept() bool {
	return len(r.entries) < r.capacity
}

// Size returns the current number of entries.
func (r *ROB) Size() int {
	return len(r.entries)
}

// IsEmpty reports whether the ROB holds no entries.
func (r *ROB) IsEmpty() bool {
	return len(r.entries) == 0
}

// Allocate appends req to the tail of the ROB. A COMPUTE entry is ready
// immediately; READ and WRITE entries start not-ready and must be
// marked by a later Commit call. Returns false, making no change, if
// the ROB is full.
func (r *ROB) Allocate(req request.Request, now uint64) bool {
	if !r.CanAccept() {
		return false
	}

	entry := Entry{
		Request:    req,
		Ready:      req.Op == request.Compute,
		AllocCycle: now,
	}
	r.entries = append(r.entries, entry)

	r.InvokeHook(sim.HookCtx{Domain: r, Pos: HookPosAllocate, Item: entry})

	return true
}

// Commit marks the entry with the given msg_id as ready. It is
// idempotent: committing an already-ready entry, or one not present at
// all, changes nothing and is not an error (spec.md §7).
func (r *ROB) Commit(msgID uint64) {
	for i := range r.entries {
		if r.entries[i].Request.MsgID == msgID {
			r.entries[i].Ready = true
			r.InvokeHook(sim.HookCtx{Domain: r, Pos: HookPosCommit, Item: msgID})

			return
		}
	}

	r.InvokeHook(sim.HookCtx{Domain: r, Pos: HookPosUnknownCommit, Item: msgID})
}

// Retire pops up to IPC ready entries from the head, stopping at the
// first entry that is not ready (strict in-order commit, spec.md §4.1).
// It returns the entries retired this call, oldest first.
func (r *ROB) Retire() []RetiredEntry {
	retired := make([]RetiredEntry, 0, r.ipc)

	for len(retired) < r.ipc && len(r.entries) > 0 {
		head := r.entries[0]
		if !head.Ready {
			break
		}

		r.entries = r.entries[1:]
		retired = append(retired, RetiredEntry{
			MsgID: head.Request.MsgID,
			Op:    head.Request.Op,
		})

		r.InvokeHook(sim.HookCtx{Domain: r, Pos: HookPosRetire, Item: head})
	}

	return retired
}

// RemoveLastEntry pops the most recently appended entry. It exists
// solely to roll back a failed paired ROB/LSQ allocation (spec.md
// §4.3) and must only be called immediately after an Allocate whose
// matching LSQ allocation failed.
func (r *ROB) RemoveLastEntry() {
	if len(r.entries) == 0 {
		return
	}

	r.entries = r.entries[:len(r.entries)-1]
}
