package memsys

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/salahga/oocoresim/request"
)

// HookPosAccess fires once per request the System resolves, carrying
// the total latency charged and which level ultimately answered it.
var HookPosAccess = &sim.HookPos{Name: "Memsys Access"}

// Outcome describes how one request was resolved, for HookPosAccess
// observers.
type Outcome struct {
	MsgID        uint64
	CoreID       uint16
	Addr         uint64
	PrivateHit   bool
	SharedHit    bool
	TotalLatency uint64
}

// coreLink is one core's attachment point: the buffers it shares the
// cache channel contract over, plus its own private cache level.
type coreLink struct {
	coreID  uint16
	tx      sim.Buffer
	rx      sim.Buffer
	private *Level
}

// deliverEvent is scheduled when a request's latency has been computed;
// when it fires, System pushes the finished Response onto the
// originating core's rx_fifo.
type deliverEvent struct {
	*sim.EventBase

	linkIdx int
	resp    request.Response
}

// System chains one private cache per core behind a shared cache
// behind DRAM — the concrete collaborator spec.md §4.4 treats as
// opaque, reachable only through the tx_fifo/rx_fifo contract. It is
// purely reactive: it does no polling and schedules no recurring
// tick, only the one-shot delivery event each accepted request needs.
// This sidesteps the need for akita's Port/NotifyRecv machinery (see
// DESIGN.md) while still routing every access through a real engine
// event rather than being delivered synchronously in the same call.
type System struct {
	*sim.HookableBase

	engine sim.Engine
	freq   sim.Freq

	privateCfg LevelConfig
	shared     *Level
	dram       *DRAM

	links []*coreLink
}

// New builds a System. freq converts the cycle latencies Level/DRAM
// report into simulated time for event scheduling.
func New(engine sim.Engine, freq sim.Freq, privateCfg, sharedCfg LevelConfig, dram *DRAM) *System {
	return &System{
		HookableBase: sim.NewHookableBase(),
		engine:       engine,
		freq:         freq,
		privateCfg:   privateCfg,
		shared:       NewLevel(sharedCfg),
		dram:         dram,
	}
}

// Attach registers a core's cache channel buffers and gives it its own
// private cache level. It returns the link index to pass to
// NotifySend whenever that core pushes a request onto tx.
func (s *System) Attach(coreID uint16, tx, rx sim.Buffer) int {
	s.links = append(s.links, &coreLink{
		coreID:  coreID,
		tx:      tx,
		rx:      rx,
		private: NewLevel(s.privateCfg),
	})

	return len(s.links) - 1
}

// NotifySend must be called immediately after the core driver pushes a
// request onto its tx buffer. It pops that request, resolves it through
// the private/shared/DRAM chain synchronously, and schedules the
// resulting Response for delivery after the accumulated latency.
func (s *System) NotifySend(linkIdx int, now sim.VTimeInSec) {
	link := s.links[linkIdx]

	raw := link.tx.Pop()
	if raw == nil {
		return
	}

	req := raw.(*request.Request)

	outcome, latencyCycles := s.resolve(link, *req)
	s.InvokeHook(sim.HookCtx{Domain: s, Pos: HookPosAccess, Item: outcome})

	delay := sim.VTimeInSec(latencyCycles) * s.freq.Period()

	resp := request.Response{
		MsgID:        req.MsgID,
		Addr:         req.Addr,
		RequestCycle: req.IssueCycle,
	}

	evt := &deliverEvent{
		EventBase: sim.NewEventBase(now+delay, s),
		linkIdx:   linkIdx,
		resp:      resp,
	}
	s.engine.Schedule(evt)
}

// resolve walks private -> shared -> DRAM, stopping at the first hit.
func (s *System) resolve(link *coreLink, req request.Request) (Outcome, uint64) {
	outcome := Outcome{MsgID: req.MsgID, CoreID: req.CoreID, Addr: req.Addr}

	privateHit, privateLatency := link.private.Access(req.Addr)
	outcome.PrivateHit = privateHit
	outcome.TotalLatency += privateLatency

	if privateHit {
		return outcome, outcome.TotalLatency
	}

	sharedHit, sharedLatency := s.shared.Access(req.Addr)
	outcome.SharedHit = sharedHit
	outcome.TotalLatency += sharedLatency

	if sharedHit {
		return outcome, outcome.TotalLatency
	}

	_, dramLatency := s.dram.Access(req.Addr)
	outcome.TotalLatency += dramLatency

	return outcome, outcome.TotalLatency
}

// Handle implements sim.Handler, delivering a resolved Response to its
// originating core's rx_fifo.
func (s *System) Handle(e sim.Event) error {
	evt, ok := e.(*deliverEvent)
	if !ok {
		return nil
	}

	link := s.links[evt.linkIdx]
	resp := evt.resp
	resp.ResponseCycle = s.freq.Cycle(evt.Time())

	r := resp
	link.rx.Push(&r)

	return nil
}
