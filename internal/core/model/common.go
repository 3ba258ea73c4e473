package model

import "strings"

// Direction of a SIP message relative to the traced element
type Direction string

const (
	DirIn  Direction = "IN"
	DirOut Direction = "OUT"
)

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	switch d {
	case DirIn:
		return DirOut
	case DirOut:
		return DirIn
	default:
		return d
	}
}

// ParseDirection accepts "IN"/"OUT" in any case and surrounding blanks.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IN":
		return DirIn, true
	case "OUT":
		return DirOut, true
	}
	return "", false
}

// Transport protocol the SIP message was carried over
type Transport string

const (
	TransportUDP Transport = "UDP"
	TransportTCP Transport = "TCP"
	TransportTLS Transport = "TLS"
)

// ParseTransport normalizes a transport token. Unknown tokens are kept
// upper-cased, an empty token defaults to UDP.
func ParseTransport(s string) Transport {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return TransportUDP
	}
	return Transport(s)
}

// SIP methods the correlator cares about
const (
	MethodInvite = "INVITE"
	MethodBye    = "BYE"
	MethodCancel = "CANCEL"
	MethodAck    = "ACK"
)
