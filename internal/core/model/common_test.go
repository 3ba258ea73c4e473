package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDirectionReverse(t *testing.T) {
	assert.Equal(t, DirOut, DirIn.Reverse())
	assert.Equal(t, DirIn, DirOut.Reverse())
}

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection(" out ")
	assert.True(t, ok)
	assert.Equal(t, DirOut, d)

	_, ok = ParseDirection("sideways")
	assert.False(t, ok)
}

func TestParseTransport(t *testing.T) {
	assert.Equal(t, TransportUDP, ParseTransport(""))
	assert.Equal(t, TransportTLS, ParseTransport("tls"))
	assert.Equal(t, Transport("SCTP"), ParseTransport("sctp"))
}

func TestFrameLink(t *testing.T) {
	in := Frame{Direction: DirIn, SrcAddr: "192.0.2.10", DstAddr: "10.0.0.1"}
	out := Frame{Direction: DirOut, SrcAddr: "10.0.0.1", DstAddr: "192.0.2.10"}

	assert.Equal(t, "10.0.0.1", in.Link())
	assert.Equal(t, "10.0.0.1", out.Link())
}

func TestNewFrameCopiesEndpoints(t *testing.T) {
	ts := time.Date(2019, 3, 8, 12, 0, 0, 0, time.UTC)
	ep := Endpoints{
		Direction: DirIn, SrcAddr: "192.0.2.10", SrcPort: 5060,
		DstAddr: "10.0.0.1", DstPort: 5061, Transport: TransportTLS,
	}
	f := NewFrame(ts, ep, "OPTIONS sip:a SIP/2.0\r\n")

	assert.Equal(t, ts, f.Timestamp)
	assert.Equal(t, 5061, f.DstPort)
	assert.Equal(t, TransportTLS, f.Transport)
	assert.Contains(t, f.String(), "192.0.2.10:5060 --> 10.0.0.1:5061 (TLS)")
}

func TestSessionEventDelta(t *testing.T) {
	assert.Equal(t, 1, SessionEvent{Op: OpStart}.Delta())
	assert.Equal(t, -1, SessionEvent{Op: OpEnd}.Delta())
	assert.Equal(t, "start", OpStart.String())
	assert.Equal(t, "end", OpEnd.String())
}

func TestDialogCSeqsSorted(t *testing.T) {
	d := NewDialog(DialogKey{Link: "10.0.0.1", CallID: "abc"}, time.Time{})
	d.PendingCSeqs[3] = struct{}{}
	d.PendingCSeqs[1] = struct{}{}

	assert.Equal(t, []int{1, 3}, d.CSeqs())
	assert.Equal(t, StateNew, d.State)
	assert.Equal(t, "NEW", d.State.String())
}
