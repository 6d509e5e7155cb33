package core

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/salahga/oocoresim/request"
)

// Group is one parsed trace line: compute_count compute instructions
// followed by exactly one memory op, per spec.md §4.3's trace format.
type Group struct {
	ComputeCount uint64
	Addr         uint64
	Op           request.OpType
}

// Trace is a line-at-a-time reader over a benchmark instruction trace.
type Trace struct {
	scanner   *bufio.Scanner
	closer    io.Closer
	line      int
	skipCount int
	done      bool
}

// OpenTrace opens the trace file at path. A failure here is the fatal
// "trace open failure" of spec.md §7 — the caller should abort core
// initialization.
func OpenTrace(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("core: failed to open trace %s: %w", path, err)
	}

	return &Trace{scanner: bufio.NewScanner(f), closer: f}, nil
}

// Close releases the underlying file handle.
func (t *Trace) Close() error {
	return t.closer.Close()
}

// SkippedLines returns the number of malformed lines skipped so far.
func (t *Trace) SkippedLines() int {
	return t.skipCount
}

// Next returns the next well-formed group, skipping (and counting)
// malformed lines with a non-fatal warning per spec.md §7. ok is false
// once the file is exhausted.
func (t *Trace) Next() (group Group, ok bool) {
	for t.scanner.Scan() {
		t.line++

		text := strings.TrimSpace(t.scanner.Text())
		if text == "" {
			continue
		}

		g, err := parseGroup(text)
		if err != nil {
			t.skipCount++
			continue
		}

		return g, true
	}

	t.done = true

	return Group{}, false
}

// exhausted reports whether the previous call to Next returned false.
func (t *Trace) exhausted() bool {
	return t.done
}

// parseGroup parses one "<compute_count> <addr> <R|W>" line. The
// address is always read in base 16; an optional "0x"/"0X" prefix is
// accepted and stripped, and there is no decimal form (the sibling
// original_source revision this repo follows, rather than the older
// prototype's unconditional strtol base-16 call with no prefix
// handling).
func parseGroup(line string) (Group, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Group{}, fmt.Errorf("core: malformed trace line %q", line)
	}

	computeCount, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Group{}, fmt.Errorf("core: bad compute_count in %q: %w", line, err)
	}

	addr, err := parseAddr(fields[1])
	if err != nil {
		return Group{}, fmt.Errorf("core: bad address in %q: %w", line, err)
	}

	var op request.OpType
	switch strings.ToUpper(fields[2]) {
	case "R":
		op = request.Read
	case "W":
		op = request.Write
	default:
		return Group{}, fmt.Errorf("core: bad op %q in %q", fields[2], line)
	}

	return Group{ComputeCount: computeCount, Addr: addr, Op: op}, nil
}

// parseAddr honors an explicit "0x" prefix and otherwise assumes base
// 16, matching trace-line addresses being cache-line identifiers rather
// than decimal magnitudes.
func parseAddr(field string) (uint64, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(field, "0x"), "0X")

	return strconv.ParseUint(trimmed, 16, 64)
}
