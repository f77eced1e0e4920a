package bbuf

import (
	"strconv"
	"strings"
	"time"
)

// Defaults matching the demo firmware.
const (
	DefaultCapacity = 5
	DefaultMaxData  = 5
	DefaultTimeout  = 100 * time.Millisecond
)

// Config parameterizes a Buffer.
type Config struct {
	// Name labels logs and metrics.
	Name string
	// Capacity is the number of slots (N).
	Capacity int
	// MaxData wraps the produced value counter.
	MaxData int
	// Timeout bounds each slot reservation attempt.
	Timeout time.Duration
}

// DefaultConfig returns the configuration of the demo firmware.
func DefaultConfig() Config {
	return Config{
		Name:     "default",
		Capacity: DefaultCapacity,
		MaxData:  DefaultMaxData,
		Timeout:  DefaultTimeout,
	}
}

// Op is the kind of operation.
type Op int

// Operations.
const (
	OpProduce Op = iota
	OpConsume
)

// String implements fmt.Stringer.
func (o Op) String() string {
	switch o {
	case OpProduce:
		return "produce"
	case OpConsume:
		return "consume"
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Snapshot is a view of the buffer taken under its lock.
type Snapshot struct {
	Head     int
	Tail     int
	Size     int
	Filled   int
	Empty    int
	Contents []int
}

// String renders the contents as a bracketed, space separated list.
func (s Snapshot) String() string {
	vals := make([]string, len(s.Contents))
	for n, v := range s.Contents {
		vals[n] = strconv.Itoa(v)
	}
	return "[" + strings.Join(vals, " ") + "]"
}

// Result is the outcome of a single operation.
type Result struct {
	Op Op
	// OK is false when the reservation timed out.
	OK       bool
	Value    int
	Snapshot Snapshot
}

// Outcome names the result: produced, consumed, full or empty.
func (r Result) Outcome() string {
	switch {
	case r.Op == OpProduce && r.OK:
		return "produced"
	case r.Op == OpProduce:
		return "full"
	case r.OK:
		return "consumed"
	}
	return "empty"
}

// Stats counts operation outcomes.
type Stats struct {
	Produced uint64
	Consumed uint64
	Full     uint64
	Empty    uint64
}
