package model

import (
	"sort"
	"time"
)

// DialogState is the correlation state of one call attempt
type DialogState int

const (
	StateNew DialogState = iota
	StateProvisional
	StateEstablished
	StateEnding
	StateClosed
)

func (s DialogState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateProvisional:
		return "PROVISIONAL"
	case StateEstablished:
		return "ESTABLISHED"
	case StateEnding:
		return "ENDING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// DialogKey identifies a dialog within one correlator. The same Call-ID
// may cross several local links, each leg is tracked separately.
type DialogKey struct {
	Link   string
	CallID string
}

// Dialog is the correlation state kept for one Call-ID on one link.
type Dialog struct {
	CallID       string
	Link         string
	State        DialogState
	Direction    Direction
	PendingCSeqs map[int]struct{}
	Started      bool // start event emitted
	Cancelled    bool
	Created      time.Time
	LastSeen     time.Time
}

// NewDialog creates a dialog in state NEW.
func NewDialog(key DialogKey, ts time.Time) *Dialog {
	return &Dialog{
		CallID:       key.CallID,
		Link:         key.Link,
		State:        StateNew,
		PendingCSeqs: make(map[int]struct{}),
		Created:      ts,
		LastSeen:     ts,
	}
}

// Key returns the table key of the dialog.
func (d *Dialog) Key() DialogKey {
	return DialogKey{Link: d.Link, CallID: d.CallID}
}

// CSeqs returns the pending CSeq numbers in ascending order.
func (d *Dialog) CSeqs() []int {
	out := make([]int, 0, len(d.PendingCSeqs))
	for n := range d.PendingCSeqs {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
