// Package core implements the Core Driver: it reads a benchmark trace,
// allocates compute and memory requests into a rob.ROB and lsq.LSQ,
// bounds in-flight memory requests, advances the per-core clock, and
// detects termination.
//
// Grounded on CpuCoreGenerator.{cc,h}
// (original_source/src/MultiCoreSim/model/{src,header}), restructured
// around an injected akita/v4/sim.Engine the way the teacher
// (timing/core.Core) is driven by its own caller rather than owning a
// bare for loop.
package core

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/salahga/oocoresim/config"
	"github.com/salahga/oocoresim/lsq"
	"github.com/salahga/oocoresim/request"
	"github.com/salahga/oocoresim/rob"
)

// HookPosTX fires after the TX phase allocates or drains pending work.
var HookPosTX = &sim.HookPos{Name: "Driver TX"}

// HookPosRX fires once per cache response consumed.
var HookPosRX = &sim.HookPos{Name: "Driver RX"}

// HookPosDone fires exactly once, when the driver sets its done flag.
var HookPosDone = &sim.HookPos{Name: "Driver Done"}

// HookPosTraceSkip fires for each malformed trace line skipped.
var HookPosTraceSkip = &sim.HookPos{Name: "Driver Trace Skip"}

// Driver is one core's issue/commit engine.
type Driver struct {
	*sim.HookableBase

	cfg    config.CoreConfig
	engine sim.Engine
	freq   sim.Freq
	skew   sim.VTimeInSec

	rob     *rob.ROB
	lsq     *lsq.LSQ
	channel *bufferChannel
	trace   *Trace

	nextMsgID      uint64
	pendingCompute uint64
	pendingMem     *pendingMemOp
	inFlight       int
	oooWindow      int

	reqCount  uint64
	respCount uint64
	cycle     uint64
	done      bool
	started   bool

	cpuLog  *fileLogHook
	ctrlLog *fileLogHook
}

// NewDriver builds a Driver from cfg, opening its trace file. tx and
// rx are the core's side of the cache channel contract (spec.md §4.4);
// callers typically obtain them from a memsys.System. onSend, if
// non-nil, is invoked every time the driver pushes a request onto tx —
// memsys.System uses this to react without polling; pass nil against
// a channel that polls tx itself (e.g. in unit tests).
func NewDriver(cfg config.CoreConfig, engine sim.Engine, tx, rx sim.Buffer, onSend func()) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	trace, err := OpenTrace(cfg.BMFile)
	if err != nil {
		return nil, err
	}

	periodNS := cfg.DtNS
	if periodNS <= 0 {
		periodNS = 1
	}

	d := &Driver{
		HookableBase: sim.NewHookableBase(),
		cfg:          cfg,
		engine:       engine,
		freq:         sim.Freq(1e9 / periodNS),
		skew:         sim.VTimeInSec(cfg.ClkSkewNS * 1e-9),
		rob:          rob.New(cfg.ROBCapacity, cfg.ROBWidth),
		lsq:          lsq.New(cfg.LSQCapacity),
		channel:      newBufferChannel(tx, rx, onSend),
		trace:        trace,
		oooWindow:    int(cfg.OOOStages),
	}

	if cfg.LogEnable && cfg.CPUTraceFile != "" {
		hook, err := openTraceLog(cfg.CPUTraceFile)
		if err != nil {
			return nil, err
		}

		d.cpuLog = hook
		d.AcceptHook(hook)
	}

	if cfg.LogEnable && cfg.CtrlTraceFile != "" {
		hook, err := openTraceLog(cfg.CtrlTraceFile)
		if err != nil {
			return nil, err
		}

		d.ctrlLog = hook
		d.rob.AcceptHook(hook)
		d.lsq.AcceptHook(hook)
	}

	return d, nil
}

// Close releases the driver's trace log files, if any were opened, and
// the benchmark trace file itself.
func (d *Driver) Close() error {
	if d.cpuLog != nil {
		if err := d.cpuLog.close(); err != nil {
			return err
		}
	}

	if d.ctrlLog != nil {
		if err := d.ctrlLog.close(); err != nil {
			return err
		}
	}

	return d.trace.Close()
}

// CoreID returns the core this driver belongs to.
func (d *Driver) CoreID() uint16 {
	return d.cfg.CoreID
}

// Done reports whether the driver has reached termination (spec.md §6
// "exit signalling").
func (d *Driver) Done() bool {
	return d.done
}

// RequestCount and ResponseCount report the memory-request and
// memory-response counters spec.md §4.3 maintains; COMPUTE ops are
// counted in neither (P8's parenthetical), and neither is a READ that
// store-to-load forwarding satisfied at allocation, since it never
// reaches the cache.
func (d *Driver) RequestCount() uint64 {
	return d.reqCount
}

// ResponseCount is the complement of RequestCount.
func (d *Driver) ResponseCount() uint64 {
	return d.respCount
}

// Cycle returns the driver's current cycle counter.
func (d *Driver) Cycle() uint64 {
	return d.cycle
}

// Start schedules the driver's first tick, after the configured clock
// skew, on its engine. It must be called exactly once.
func (d *Driver) Start() {
	if d.started {
		return
	}

	d.started = true
	d.engine.Schedule(sim.NewEventBase(d.skew, d))
}

// Handle implements sim.Handler. Each invocation runs exactly one
// cycle of the per-cycle routine (spec.md §4.3) and, unless the driver
// has just reached termination, reschedules itself one period later.
func (d *Driver) Handle(e sim.Event) error {
	if d.done {
		return nil
	}

	d.step()

	if d.done {
		return nil
	}

	next := e.Time() + d.freq.Period()
	d.engine.Schedule(sim.NewEventBase(next, d))

	return nil
}

// step runs the ordering guarantees of spec.md §5 in the stated order:
// ROB retires first, LSQ advances second, driver TX third, driver RX
// fourth. The LSQ's rx_from_cache and the driver's own RX bookkeeping
// are merged into the LSQ-advance phase below: both ultimately drain
// the same rx_fifo, so rather than pop twice from two different call
// sites, the LSQ-advance phase drains rx_fifo fully (honoring §4.3's
// "while the cache RX channel is non-empty") and the driver updates
// its own counters from what that drain reports.
func (d *Driver) step() {
	d.cycle++

	retired := d.rob.Retire()
	for _, re := range retired {
		if re.Op == request.Write {
			d.lsq.Commit(re.MsgID)
		}
	}

	d.advanceLSQ()
	d.txPhase()
	d.checkTermination()
}

// advanceLSQ drains every response currently sitting in rx_fifo,
// applying each to the LSQ and to the driver's in-flight/response
// counters, then runs the LSQ's retire and push_to_cache sub-steps.
func (d *Driver) advanceLSQ() {
	for d.channel.HasResponse() {
		completed, ready := d.lsq.RxFromCache(d.channel)
		for _, id := range ready {
			d.rob.Commit(id)
		}

		if completed == nil {
			continue
		}

		d.inFlight--
		d.respCount++
		d.InvokeHook(sim.HookCtx{Domain: d, Pos: HookPosRX, Item: *completed})
	}

	d.lsq.Retire()
	d.lsq.PushToCache(d.channel)
}

// txPhase implements the single-issue TX branch of spec.md §4.3: drain
// a pending compute run, else read one trace line, else try the
// pending memory op's paired allocation.
func (d *Driver) txPhase() {
	switch {
	case d.pendingCompute > 0:
		d.drainCompute()
	case d.pendingMem == nil:
		d.readNextGroup()
	default:
		d.allocatePendingMem()
	}
}

// drainCompute allocates compute requests into the ROB until either
// pendingCompute reaches zero or the ROB is full, then returns without
// touching the trace or the pending memory slot this cycle.
func (d *Driver) drainCompute() {
	for d.pendingCompute > 0 && d.rob.CanAccept() {
		req := request.Request{
			MsgID:      d.allocMsgID(),
			CoreID:     d.cfg.CoreID,
			Op:         request.Compute,
			IssueCycle: d.cycle,
		}

		d.rob.Allocate(req, d.cycle)
		d.pendingCompute--

		d.InvokeHook(sim.HookCtx{Domain: d, Pos: HookPosTX, Item: req})
	}
}

// pendingMemOp stages a trace line's memory op until allocatePendingMem
// actually allocates it. It deliberately carries no msg_id: that is
// assigned at allocation time, not at trace-read time, so that the
// compute_count computes which program-order-precede this op (drained
// by drainCompute first, per txPhase's branch order) always receive
// lower msg_ids.
type pendingMemOp struct {
	Addr uint64
	Op   request.OpType
}

// readNextGroup reads one trace line, if the trace is not exhausted,
// and stages its compute count and memory op for the following cycles.
func (d *Driver) readNextGroup() {
	before := d.trace.SkippedLines()
	group, ok := d.trace.Next()

	if skipped := d.trace.SkippedLines() - before; skipped > 0 {
		d.InvokeHook(sim.HookCtx{Domain: d, Pos: HookPosTraceSkip, Item: skipped})
	}

	if !ok {
		return
	}

	d.pendingCompute = group.ComputeCount
	d.pendingMem = &pendingMemOp{Addr: group.Addr, Op: group.Op}
}

// allocatePendingMem performs the atomic paired ROB/LSQ allocation of
// spec.md §4.3: try ROB first, then LSQ, rolling the ROB back if the
// LSQ allocation fails so no orphan ROB entry (or LSQ entry without a
// ROB counterpart) can exist. The msg_id is stamped here, at actual
// allocation time, rather than when the trace line was read.
func (d *Driver) allocatePendingMem() {
	if d.pendingMem == nil {
		return
	}

	if !d.rob.CanAccept() || !d.lsq.CanAccept() || d.inFlight >= d.oooWindow {
		return
	}

	req := request.Request{
		MsgID:      d.allocMsgID(),
		CoreID:     d.cfg.CoreID,
		Op:         d.pendingMem.Op,
		Addr:       d.pendingMem.Addr,
		IssueCycle: d.cycle,
	}

	if !d.rob.Allocate(req, d.cycle) {
		return
	}

	result := d.lsq.Allocate(req)
	if !result.OK {
		d.rob.RemoveLastEntry()
		return
	}

	if result.Ready {
		d.rob.Commit(req.MsgID)
	}

	d.pendingMem = nil

	// A forwarding-hit READ is satisfied entirely within the LSQ and
	// never sent to the cache (PushToCache only sends a read that is
	// not yet ready), so it will never produce a response. Only track
	// it toward in-flight/request accounting when it will actually
	// round-trip: every WRITE (which still waits on a cache_ack), and
	// every READ that allocation did not already satisfy.
	if req.Op == request.Write || !result.Ready {
		d.inFlight++
		d.reqCount++
	}

	d.InvokeHook(sim.HookCtx{Domain: d, Pos: HookPosTX, Item: req})
}

// allocMsgID returns the next per-core monotonic msg_id. Uniqueness
// across cores is provided by pairing it with CoreID, replacing the
// source's process-wide IdGenerator (spec.md §9 "Global state").
func (d *Driver) allocMsgID() uint64 {
	d.nextMsgID++
	return d.nextMsgID
}

// checkTermination implements spec.md §4.3 step 5: done once the trace
// is exhausted, every issued memory request has a consumed response,
// and both queues are empty.
func (d *Driver) checkTermination() {
	if d.done {
		return
	}

	traceExhausted := d.pendingCompute == 0 && d.pendingMem == nil && d.trace.exhausted()
	if traceExhausted &&
		d.respCount >= d.reqCount &&
		d.rob.IsEmpty() &&
		d.lsq.IsEmpty() {
		d.done = true
		d.InvokeHook(sim.HookCtx{Domain: d, Pos: HookPosDone, Item: fmt.Sprintf(
			"core %d done at cycle %d: requests=%d responses=%d",
			d.cfg.CoreID, d.cycle, d.reqCount, d.respCount,
		)})
	}
}
