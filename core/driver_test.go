package core_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/salahga/oocoresim/config"
	"github.com/salahga/oocoresim/core"
	"github.com/salahga/oocoresim/request"
	"github.com/salahga/oocoresim/timing/memsys"
)

func TestCore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Core Suite")
}

// writeTrace writes lines to a fresh trace file under a temp dir and
// returns its path.
func writeTrace(lines ...string) string {
	dir := GinkgoT().TempDir()
	path := filepath.Join(dir, "trace.txt")

	content := ""
	for _, l := range lines {
		content += l + "\n"
	}

	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

	return path
}

// runToCompletion builds a single-core system around tracePath and runs
// the engine until the driver reports done, returning the driver for
// inspection.
func runToCompletion(tracePath string) *core.Driver {
	return runConfiguredToCompletion(tracePath, func(*config.CoreConfig) {})
}

// runConfiguredToCompletion is runToCompletion plus a hook to adjust the
// CoreConfig before the driver is built (e.g. to enable trace logging).
func runConfiguredToCompletion(tracePath string, configure func(*config.CoreConfig)) *core.Driver {
	d, engine := newTestDriver(tracePath, configure)

	d.Start()

	Expect(engine.Run()).To(Succeed())

	Expect(d.Close()).To(Succeed())

	return d
}

// newTestDriver builds a single-core system around tracePath without
// starting or running it, so a test can install hooks first.
func newTestDriver(tracePath string, configure func(*config.CoreConfig)) (*core.Driver, sim.Engine) {
	engine := sim.NewSerialEngine()
	freq := sim.GHz

	memCfg := config.DefaultMemoryConfig()
	privateCfg := memsys.LevelConfig{
		Sets: memCfg.PrivateCacheSets, Associativity: memCfg.PrivateCacheAssoc,
		BlockBytes: memCfg.PrivateCacheBlockBytes,
		HitLatency: memCfg.PrivateCacheHitLatency, MissLatency: memCfg.PrivateCacheMissLatency,
	}
	sharedCfg := memsys.LevelConfig{
		Sets: memCfg.SharedCacheSets, Associativity: memCfg.SharedCacheAssoc,
		BlockBytes: memCfg.SharedCacheBlockBytes,
		HitLatency: memCfg.SharedCacheHitLatency, MissLatency: memCfg.SharedCacheMissLatency,
	}
	dram := memsys.MakeDRAMBuilder().WithLatency(memCfg.DRAMLatencyCycles).Build()

	sys := memsys.New(engine, freq, privateCfg, sharedCfg, dram)

	coreCfg := config.DefaultCoreConfig()
	coreCfg.BMFile = tracePath
	coreCfg.CoreID = 0
	configure(&coreCfg)

	tx := sim.NewBuffer("Core0Tx", int(coreCfg.OOOStages))
	rx := sim.NewBuffer("Core0Rx", int(coreCfg.OOOStages))

	linkIdx := sys.Attach(coreCfg.CoreID, tx, rx)

	d, err := core.NewDriver(coreCfg, engine, tx, rx, func() {
		sys.NotifySend(linkIdx, engine.CurrentTime())
	})
	Expect(err).NotTo(HaveOccurred())

	return d, engine
}

// txLogHook records every request the driver allocates, in allocation
// order, for tests that need to inspect msg_id ordering.
type txLogHook struct {
	requests []request.Request
}

func (h *txLogHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != core.HookPosTX {
		return
	}

	h.requests = append(h.requests, ctx.Item.(request.Request))
}

var _ = Describe("Driver", func() {
	It("drains a compute run and its trailing memory op, then terminates", func() {
		path := writeTrace("5 0x100 R")
		// A single group still issues exactly one memory request; to
		// get a pure compute run the memory op must itself resolve and
		// retire, which it always does eventually. What this case
		// actually exercises is termination: requests == responses.
		d := runToCompletion(path)

		Expect(d.Done()).To(BeTrue())
		Expect(d.RequestCount()).To(Equal(uint64(1)))
		Expect(d.ResponseCount()).To(Equal(d.RequestCount()))
	})

	It("completes a trace of several loads and stores, one load forwarded", func() {
		// The final load to 0x100 is allocated while the store to 0x100
		// is still waiting on its cache_ack, so it forwards and never
		// round-trips: only the other three ops are counted.
		path := writeTrace(
			"2 0x100 W",
			"1 0x200 R",
			"0 0x300 W",
			"3 0x100 R",
		)
		d := runToCompletion(path)

		Expect(d.Done()).To(BeTrue())
		Expect(d.RequestCount()).To(Equal(uint64(3)))
		Expect(d.ResponseCount()).To(Equal(uint64(3)))
	})

	It("resolves a store-then-load to the same address without deadlocking", func() {
		// The load forwards from the outstanding store, so only the
		// store reaches the cache.
		path := writeTrace(
			"0 0x400 W",
			"0 0x400 R",
		)
		d := runToCompletion(path)

		Expect(d.Done()).To(BeTrue())
		Expect(d.RequestCount()).To(Equal(uint64(1)))
		Expect(d.ResponseCount()).To(Equal(uint64(1)))
	})

	It("resolves a forwarding-hit load without leaking in-flight accounting", func() {
		// The load at 0x600 is satisfied by the still-outstanding store
		// to the same address and never reaches the cache, so it must
		// not be counted toward requests/responses at all — only the
		// two stores, which do round-trip, should be. If the forwarded
		// load were still counted, responses could never catch up to
		// requests and the run below would hang instead of completing.
		path := writeTrace(
			"0 0x600 W",
			"0 0x600 R",
			"0 0x700 W",
		)
		d := runToCompletion(path)

		Expect(d.Done()).To(BeTrue())
		Expect(d.RequestCount()).To(Equal(uint64(2)))
		Expect(d.ResponseCount()).To(Equal(uint64(2)))
	})

	It("assigns msg_ids in strict program order, computes before their trailing memory op", func() {
		path := writeTrace(
			"2 0x100 W",
			"1 0x200 R",
		)

		d, engine := newTestDriver(path, func(*config.CoreConfig) {})

		hook := &txLogHook{}
		d.AcceptHook(hook)

		d.Start()
		Expect(engine.Run()).To(Succeed())
		Expect(d.Close()).To(Succeed())

		Expect(hook.requests).To(HaveLen(5))

		ids := make([]uint64, len(hook.requests))
		for i, r := range hook.requests {
			ids[i] = r.MsgID
		}
		Expect(ids).To(Equal([]uint64{1, 2, 3, 4, 5}))

		ops := make([]request.OpType, len(hook.requests))
		for i, r := range hook.requests {
			ops[i] = r.Op
		}
		Expect(ops).To(Equal([]request.OpType{
			request.Compute, request.Compute, request.Write,
			request.Compute, request.Read,
		}))
	})

	It("skips malformed lines and still terminates cleanly", func() {
		path := writeTrace(
			"1 0x100 R",
			"not a valid line",
			"1 0x200 W",
		)
		d := runToCompletion(path)

		Expect(d.Done()).To(BeTrue())
		Expect(d.RequestCount()).To(Equal(uint64(2)))
	})

	It("respects the configured in-flight window across many outstanding loads", func() {
		lines := make([]string, 0, 20)
		for i := 0; i < 20; i++ {
			lines = append(lines, "0 0x1000 R")
		}
		path := writeTrace(lines...)

		d := runToCompletion(path)

		Expect(d.Done()).To(BeTrue())
		Expect(d.RequestCount()).To(Equal(uint64(20)))
		Expect(d.ResponseCount()).To(Equal(uint64(20)))
	})

	It("errors when the config is invalid", func() {
		engine := sim.NewSerialEngine()
		cfg := config.CoreConfig{}

		tx := sim.NewBuffer("BadCoreTx", 1)
		rx := sim.NewBuffer("BadCoreRx", 1)

		_, err := core.NewDriver(cfg, engine, tx, rx, nil)
		Expect(err).To(HaveOccurred())
	})

	It("writes cpu and ctrl trace logs when log_enable is set", func() {
		dir := GinkgoT().TempDir()
		cpuLog := filepath.Join(dir, "cpu.log")
		ctrlLog := filepath.Join(dir, "ctrl.log")

		path := writeTrace("0 0x500 W", "0 0x500 R")

		d := runConfiguredToCompletion(path, func(c *config.CoreConfig) {
			c.LogEnable = true
			c.CPUTraceFile = cpuLog
			c.CtrlTraceFile = ctrlLog
		})
		Expect(d.Done()).To(BeTrue())

		cpuContent, err := os.ReadFile(cpuLog)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(cpuContent)).NotTo(BeEmpty())

		ctrlContent, err := os.ReadFile(ctrlLog)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(ctrlContent)).NotTo(BeEmpty())
	})

	It("errors when the trace file does not exist", func() {
		engine := sim.NewSerialEngine()
		cfg := config.DefaultCoreConfig()
		cfg.BMFile = "/nonexistent/trace.txt"

		tx := sim.NewBuffer("MissingCoreTx", 1)
		rx := sim.NewBuffer("MissingCoreRx", 1)

		_, err := core.NewDriver(cfg, engine, tx, rx, nil)
		Expect(err).To(HaveOccurred())
	})
})
