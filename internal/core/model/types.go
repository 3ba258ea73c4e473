package model

import (
	"fmt"
	"time"
)

// Endpoints holds the transport metadata parsed from a trace address line.
type Endpoints struct {
	Direction Direction
	SrcAddr   string
	SrcPort   int
	DstAddr   string
	DstPort   int
	Transport Transport
}

// Frame is one SIP message observed in a trace log together with its
// transport metadata. Frames are never modified after extraction.
type Frame struct {
	Timestamp time.Time
	Direction Direction
	SrcAddr   string
	SrcPort   int
	DstAddr   string
	DstPort   int
	Transport Transport
	Body      string
	Source    string
}

// NewFrame combines parsed endpoints with the frame timestamp and body.
func NewFrame(ts time.Time, ep Endpoints, body string) Frame {
	return Frame{
		Timestamp: ts,
		Direction: ep.Direction,
		SrcAddr:   ep.SrcAddr,
		SrcPort:   ep.SrcPort,
		DstAddr:   ep.DstAddr,
		DstPort:   ep.DstPort,
		Transport: ep.Transport,
		Body:      body,
	}
}

// Link returns the local signaling address the frame crossed: the
// destination for inbound frames and the source for outbound ones.
func (f Frame) Link() string {
	if f.Direction == DirIn {
		return f.DstAddr
	}
	return f.SrcAddr
}

func (f Frame) String() string {
	return fmt.Sprintf("%s %s %s:%d --> %s:%d (%s)",
		f.Timestamp.Format("2006-01-02 15:04:05.000000"), f.Direction,
		f.SrcAddr, f.SrcPort, f.DstAddr, f.DstPort, f.Transport)
}

// SessionOp is the kind of a session event
type SessionOp int

const (
	OpStart SessionOp = iota
	OpEnd
)

func (op SessionOp) String() string {
	if op == OpStart {
		return "start"
	}
	return "end"
}

// End reasons
const (
	ReasonFailure = "failure"
	ReasonBye     = "bye"
	ReasonCancel  = "cancel"
	ReasonEvicted = "evicted"
)

// SessionEvent is emitted by the correlator when a session starts or ends.
type SessionEvent struct {
	Op        SessionOp
	CallID    string
	Link      string
	Direction Direction
	Timestamp time.Time
	Reason    string
}

// Delta returns the counter change carried by the event.
func (e SessionEvent) Delta() int {
	if e.Op == OpStart {
		return 1
	}
	return -1
}

// CounterKey identifies one aggregated counter
type CounterKey struct {
	Link      string
	Direction Direction
}
