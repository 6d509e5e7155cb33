package core

import (
	"fmt"
	"os"

	"github.com/sarchlab/akita/v4/sim"
)

// fileLogHook writes one line per invocation to an open file, the Go
// equivalent of the std::cout tracing CpuCoreGenerator.cc, ROB.cc and
// LSQ.cc sprinkle through every state transition (cpu_trace_file and
// ctrl_trace_file, spec.md §6).
type fileLogHook struct {
	f *os.File
}

// Func implements sim.Hook.
func (h *fileLogHook) Func(ctx sim.HookCtx) {
	fmt.Fprintf(h.f, "%s: %v\n", ctx.Pos.Name, ctx.Item)
}

// openTraceLog creates path for writing, truncating any existing
// content, and returns a hook ready to install via AcceptHook.
// An empty path disables logging entirely; callers must check that
// case themselves since a nil file has nothing to close.
func openTraceLog(path string) (*fileLogHook, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("core: failed to open trace log %s: %w", path, err)
	}

	return &fileLogHook{f: f}, nil
}

// close releases the underlying file handle.
func (h *fileLogHook) close() error {
	return h.f.Close()
}
