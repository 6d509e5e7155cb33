package memsys

// DRAM is the backing store behind the shared cache: it always
// "hits" after a fixed latency, the same simplification
// akita/v4/mem/idealmemcontroller makes for its ideal memory
// controller. That package models a full akita Component wired
// through Ports, which doesn't fit memsys.System's deliberately
// reactive, non-Component design; DRAM instead adopts its Builder
// shape directly without pulling in the Component machinery.
type DRAM struct {
	latency uint64
}

// DRAMBuilder builds a DRAM with chainable With* configuration, the
// same pattern idealmemcontroller.Builder uses.
type DRAMBuilder struct {
	latency uint64
}

// MakeDRAMBuilder returns a builder defaulted to spec.md's DRAM-level
// latency expectations for this simulator (slow relative to the
// caches, fast relative to a real DRAM part, since this model has no
// queueing or row-buffer behavior).
func MakeDRAMBuilder() DRAMBuilder {
	return DRAMBuilder{latency: 200}
}

// WithLatency sets the fixed response latency, in cycles.
func (b DRAMBuilder) WithLatency(latency uint64) DRAMBuilder {
	b.latency = latency
	return b
}

// Build returns the configured DRAM.
func (b DRAMBuilder) Build() *DRAM {
	return &DRAM{latency: b.latency}
}

// Access always hits, after the configured latency.
func (d *DRAM) Access(_ uint64) (hit bool, latency uint64) {
	return true, d.latency
}
