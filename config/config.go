// Package config loads the JSON-encoded configuration for a core driver
// and for a multi-core run, mirroring the shape of the recognized
// options enumerated in spec.md §6. It follows the teacher's own
// config-loading idiom (timing/latency.LoadConfig): plain
// encoding/json, %w-wrapped errors, no third-party config library.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// CoreConfig holds the per-core options spec.md §6 enumerates.
type CoreConfig struct {
	// BMFile is the benchmark trace path (bm_file).
	BMFile string `json:"bm_file"`
	// CPUTraceFile, if set, receives one line per driver-level event.
	CPUTraceFile string `json:"cpu_trace_file,omitempty"`
	// CtrlTraceFile, if set, receives one line per ROB/LSQ transition.
	CtrlTraceFile string `json:"ctrl_trace_file,omitempty"`
	// CoreID is this core's index, unique within a System.
	CoreID uint16 `json:"core_id"`
	// DtNS is the per-cycle advance in nanoseconds.
	DtNS float64 `json:"dt_ns"`
	// ClkSkewNS is the delay, in nanoseconds, before the first step.
	ClkSkewNS float64 `json:"clk_skew_ns"`
	// LogEnable turns on the cycle-level event hooks.
	LogEnable bool `json:"log_enable"`
	// OOOStages is ooo_stages, i.e. OOO_WINDOW: the maximum number of
	// concurrent outstanding memory requests.
	OOOStages uint32 `json:"ooo_stages"`
	// ROBCapacity is ROB_CAP. Not named in spec.md's option table but
	// needed to construct a rob.ROB; defaulted if zero.
	ROBCapacity int `json:"rob_capacity,omitempty"`
	// ROBWidth is IPC, the per-cycle retire width.
	ROBWidth int `json:"rob_width,omitempty"`
	// LSQCapacity is LSQ_CAP; spec.md §4.2 gives 16 as the default and
	// notes an alternate configuration uses 8.
	LSQCapacity int `json:"lsq_capacity,omitempty"`
}

// Defaults matching spec.md §4.1/§4.2's stated defaults.
const (
	DefaultROBCapacity = 32
	DefaultROBWidth    = 4
	DefaultLSQCapacity = 16
	DefaultOOOWindow   = 4
)

// DefaultCoreConfig returns a CoreConfig with every numeric default
// spec.md names, and an empty trace path — the caller must set BMFile.
func DefaultCoreConfig() CoreConfig {
	return CoreConfig{
		DtNS:        1.0,
		OOOStages:   DefaultOOOWindow,
		ROBCapacity: DefaultROBCapacity,
		ROBWidth:    DefaultROBWidth,
		LSQCapacity: DefaultLSQCapacity,
	}
}

// applyDefaults fills any zero-valued field that must not be zero.
func (c *CoreConfig) applyDefaults() {
	if c.ROBCapacity == 0 {
		c.ROBCapacity = DefaultROBCapacity
	}

	if c.ROBWidth == 0 {
		c.ROBWidth = DefaultROBWidth
	}

	if c.LSQCapacity == 0 {
		c.LSQCapacity = DefaultLSQCapacity
	}

	if c.OOOStages == 0 {
		c.OOOStages = DefaultOOOWindow
	}

	if c.DtNS == 0 {
		c.DtNS = 1.0
	}
}

// Validate reports whether the config describes a buildable core.
func (c *CoreConfig) Validate() error {
	if c.BMFile == "" {
		return fmt.Errorf("config: bm_file is required")
	}

	if c.DtNS <= 0 {
		return fmt.Errorf("config: dt_ns must be positive, got %f", c.DtNS)
	}

	if c.ROBCapacity <= 0 {
		return fmt.Errorf("config: rob_capacity must be positive, got %d", c.ROBCapacity)
	}

	if c.LSQCapacity <= 0 {
		return fmt.Errorf("config: lsq_capacity must be positive, got %d", c.LSQCapacity)
	}

	if c.ROBWidth <= 0 {
		return fmt.Errorf("config: rob_width must be positive, got %d", c.ROBWidth)
	}

	if c.OOOStages == 0 {
		return fmt.Errorf("config: ooo_stages must be positive")
	}

	return nil
}

// System aggregates one CoreConfig per core plus the shared
// memory-hierarchy configuration for a multi-core run.
type System struct {
	Cores  []CoreConfig `json:"cores"`
	Memory MemoryConfig `json:"memory"`
}

// MemoryConfig configures the private/shared cache and DRAM chain a
// System wires (see the memsys package).
type MemoryConfig struct {
	PrivateCacheSets        int     `json:"private_cache_sets"`
	PrivateCacheAssoc       int     `json:"private_cache_associativity"`
	PrivateCacheBlockBytes  int     `json:"private_cache_block_bytes"`
	PrivateCacheHitLatency  uint64  `json:"private_cache_hit_latency_cycles"`
	PrivateCacheMissLatency uint64  `json:"private_cache_miss_latency_cycles"`
	SharedCacheSets         int     `json:"shared_cache_sets"`
	SharedCacheAssoc        int     `json:"shared_cache_associativity"`
	SharedCacheBlockBytes   int     `json:"shared_cache_block_bytes"`
	SharedCacheHitLatency   uint64  `json:"shared_cache_hit_latency_cycles"`
	SharedCacheMissLatency  uint64  `json:"shared_cache_miss_latency_cycles"`
	DRAMLatencyCycles       uint64  `json:"dram_latency_cycles"`
}

// DefaultMemoryConfig returns a small but realistic three-level chain,
// scaled down from the teacher's Apple-M2-derived cache defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		PrivateCacheSets:        64,
		PrivateCacheAssoc:       8,
		PrivateCacheBlockBytes:  64,
		PrivateCacheHitLatency:  4,
		PrivateCacheMissLatency: 12,
		SharedCacheSets:         512,
		SharedCacheAssoc:        16,
		SharedCacheBlockBytes:   64,
		SharedCacheHitLatency:   12,
		SharedCacheMissLatency:  30,
		DRAMLatencyCycles:       200,
	}
}

// Load reads a CoreConfig from a JSON file at path and fills in
// defaults for any zero-valued field that must not be zero.
func Load(path string) (CoreConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CoreConfig{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var c CoreConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return CoreConfig{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	c.applyDefaults()

	return c, nil
}

// LoadSystem reads a System from a JSON file at path.
func LoadSystem(path string) (System, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return System{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var s System
	if err := json.Unmarshal(data, &s); err != nil {
		return System{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	for i := range s.Cores {
		s.Cores[i].applyDefaults()
	}

	if s.Memory == (MemoryConfig{}) {
		s.Memory = DefaultMemoryConfig()
	}

	return s, nil
}

// Save writes c to path as indented JSON.
func Save(path string, c CoreConfig) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}

	return nil
}
