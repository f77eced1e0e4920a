// Package events carries buffer operation results to remote observers.
//
// An Event is encoded as a google.protobuf.Struct so observers can decode
// it without generated code.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/ringtask/pkg/bbuf"
)

// Kinds of events, matching bbuf.Result.Outcome.
const (
	KindProduced = "produced"
	KindConsumed = "consumed"
	KindFull     = "full"
	KindEmpty    = "empty"
)

var (
	// ErrMissingField indicates a required field is absent.
	ErrMissingField = errors.New("missing field")
)

// Event describes one completed operation.
type Event struct {
	Node     string
	Buffer   string
	Kind     string
	Value    int
	Head     int
	Tail     int
	Filled   int
	Empty    int
	Contents []int
	Time     time.Time
}

// FromResult creates an Event from an operation result.
func FromResult(node, buffer string, res bbuf.Result) *Event {
	return &Event{
		Node:     node,
		Buffer:   buffer,
		Kind:     res.Outcome(),
		Value:    res.Value,
		Head:     res.Snapshot.Head,
		Tail:     res.Snapshot.Tail,
		Filled:   res.Snapshot.Filled,
		Empty:    res.Snapshot.Empty,
		Contents: res.Snapshot.Contents,
		Time:     time.Now(),
	}
}

// OK indicates the operation got its reservation.
func (e *Event) OK() bool {
	return e.Kind == KindProduced || e.Kind == KindConsumed
}

// String formats the event for display.
func (e *Event) String() string {
	snapshot := bbuf.Snapshot{Contents: e.Contents}.String()
	if e.OK() {
		return fmt.Sprintf("%s/%s: %s %d buffer: %s", e.Node, e.Buffer, e.Kind, e.Value, snapshot)
	}
	return fmt.Sprintf("%s/%s: buffer %s buffer: %s", e.Node, e.Buffer, e.Kind, snapshot)
}

// Proto converts the event into a protobuf Struct.
func (e *Event) Proto() *structpb.Struct {
	contents := make([]*structpb.Value, len(e.Contents))
	for n, v := range e.Contents {
		contents[n] = numberValue(v)
	}
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"node":   stringValue(e.Node),
			"buffer": stringValue(e.Buffer),
			"kind":   stringValue(e.Kind),
			"value":  numberValue(e.Value),
			"head":   numberValue(e.Head),
			"tail":   numberValue(e.Tail),
			"filled": numberValue(e.Filled),
			"empty":  numberValue(e.Empty),
			"contents": {
				Kind: &structpb.Value_ListValue{ListValue: &structpb.ListValue{Values: contents}},
			},
			"time": stringValue(e.Time.UTC().Format(time.RFC3339Nano)),
		},
	}
}

// Encode encodes the event to bytes.
func (e *Event) Encode() ([]byte, error) {
	return proto.Marshal(e.Proto())
}

// Decode decodes bytes produced by Encode.
func Decode(data []byte) (*Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return FromProto(&s)
}

// FromProto converts a protobuf Struct back into an Event.
func FromProto(s *structpb.Struct) (*Event, error) {
	f := fields{s: s}
	e := &Event{
		Node:   f.str("node"),
		Buffer: f.str("buffer"),
		Kind:   f.str("kind"),
		Value:  f.num("value"),
		Head:   f.num("head"),
		Tail:   f.num("tail"),
		Filled: f.num("filled"),
		Empty:  f.num("empty"),
	}
	if list := s.GetFields()["contents"].GetListValue(); list != nil {
		e.Contents = make([]int, len(list.Values))
		for n, v := range list.Values {
			e.Contents[n] = int(v.GetNumberValue())
		}
	}
	if ts := f.str("time"); ts != "" && f.err == nil {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid time %q: %v", ts, err)
		}
		e.Time = t
	}
	if f.err != nil {
		return nil, f.err
	}
	return e, nil
}

type fields struct {
	s   *structpb.Struct
	err error
}

func (f *fields) get(name string) *structpb.Value {
	v, ok := f.s.GetFields()[name]
	if !ok && f.err == nil {
		f.err = fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	return v
}

func (f *fields) str(name string) string {
	return f.get(name).GetStringValue()
}

func (f *fields) num(name string) int {
	return int(f.get(name).GetNumberValue())
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

func numberValue(n int) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: float64(n)}}
}
