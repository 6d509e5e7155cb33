// Package request defines the wire types that flow between a core driver
// and the memory hierarchy: the Request a core issues and the Response
// the cache subsystem returns for it.
package request

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
)

// OpType is the kind of operation a Request represents.
type OpType int

const (
	// Compute models non-memory work. It carries no address and never
	// travels on a cache channel.
	Compute OpType = iota
	// Read is a load.
	Read
	// Write is a store.
	Write
	// Replace is reserved for cache-line replacement traffic. The core
	// driver never generates it; it exists so the wire enum matches the
	// full set a cache subsystem may emit.
	Replace
)

// String renders the op type the way the trace-line grammar spells it.
func (o OpType) String() string {
	switch o {
	case Compute:
		return "COMPUTE"
	case Read:
		return "R"
	case Write:
		return "W"
	case Replace:
		return "REPLACE"
	default:
		return fmt.Sprintf("OpType(%d)", int(o))
	}
}

// Request is the unit of work flowing from a core driver into the ROB,
// the LSQ, and (for memory ops) the cache channel. It is immutable after
// creation: every field is set once, at construction, by the core driver.
type Request struct {
	sim.MsgMeta

	MsgID      uint64
	CoreID     uint16
	Op         OpType
	Addr       uint64
	IssueCycle uint64
}

// Meta satisfies sim.Msg so a Request can travel on akita ports and
// buffers like any other simulation message.
func (r *Request) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the request with a fresh akita message ID. The
// msg_id that the ROB/LSQ key off of is untouched — it is assigned once
// by the core driver and never regenerated.
func (r *Request) Clone() sim.Msg {
	cloned := *r
	cloned.ID = sim.GetIDGenerator().Generate()

	return &cloned
}

// IsMemory reports whether the request belongs in the LSQ.
func (r *Request) IsMemory() bool {
	return r.Op == Read || r.Op == Write
}

// Response is returned by the cache subsystem for a Request it has
// finished processing. The engine matches it to in-flight state purely
// by MsgID.
type Response struct {
	sim.MsgMeta

	MsgID         uint64
	Addr          uint64
	RequestCycle  uint64
	ResponseCycle uint64
}

// Meta satisfies sim.Msg.
func (r *Response) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the response with a fresh akita message ID.
func (r *Response) Clone() sim.Msg {
	cloned := *r
	cloned.ID = sim.GetIDGenerator().Generate()

	return &cloned
}
