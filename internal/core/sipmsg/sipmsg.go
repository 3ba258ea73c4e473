// Package sipmsg gives a read-only view of the few SIP header fields
// session correlation depends on. Trace logs frequently mangle messages
// (lost blank lines, wrong Content-Length, truncated bodies), so parsing
// never fails: missing fields are left at their zero value.
package sipmsg

import (
	"strconv"
	"strings"
)

// Message is the parsed start line and headers of one SIP message.
type Message struct {
	IsResponse   bool
	Method       string // request method, empty for responses
	StatusCode   int    // response status, 0 for requests
	CallID       string
	CSeqNum      int
	CSeqMethod   string
	HasToTag     bool
	ViaTransport string // transport of the top-most Via, upper-cased
}

// compact header forms
var compactNames = map[string]string{
	"i": "call-id",
	"t": "to",
	"v": "via",
}

// Parse scans the start line and header section of body. The scan stops
// at the first blank line.
func Parse(body string) Message {
	var msg Message

	first := true
	for len(body) > 0 {
		var line string
		if i := strings.IndexByte(body, '\n'); i >= 0 {
			line, body = body[:i], body[i+1:]
		} else {
			line, body = body, ""
		}
		line = strings.TrimRight(line, "\r")

		if first {
			if strings.TrimSpace(line) == "" {
				continue
			}
			first = false
			parseStartLine(line, &msg)
			continue
		}
		if strings.TrimSpace(line) == "" {
			break
		}

		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(line[:colon]))
		if long, ok := compactNames[name]; ok {
			name = long
		}
		value := strings.TrimSpace(line[colon+1:])

		switch name {
		case "call-id":
			if msg.CallID == "" {
				msg.CallID = value
			}
		case "cseq":
			msg.CSeqNum, msg.CSeqMethod = parseCSeq(value)
		case "to":
			msg.HasToTag = hasTag(value)
		case "via":
			if msg.ViaTransport == "" {
				msg.ViaTransport = viaTransport(value)
			}
		}
	}
	return msg
}

func parseStartLine(line string, msg *Message) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	if strings.HasPrefix(strings.ToUpper(fields[0]), "SIP/") {
		msg.IsResponse = true
		if len(fields) > 1 {
			msg.StatusCode, _ = strconv.Atoi(fields[1])
		}
		return
	}
	msg.Method = strings.ToUpper(fields[0])
}

// parseCSeq splits "314 INVITE". A lone token is taken as the method.
func parseCSeq(value string) (int, string) {
	fields := strings.Fields(value)
	switch len(fields) {
	case 0:
		return -1, ""
	case 1:
		return 0, strings.ToUpper(fields[0])
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		n = -1
	}
	return n, strings.ToUpper(fields[1])
}

func hasTag(value string) bool {
	// tag is a header parameter, it never appears inside the <uri>
	if end := strings.LastIndexByte(value, '>'); end >= 0 {
		value = value[end+1:]
	}
	return strings.Contains(strings.ToLower(value), "tag=")
}

// viaTransport takes the first three characters after "SIP/2.0/".
func viaTransport(value string) string {
	upper := strings.ToUpper(value)
	i := strings.Index(upper, "SIP/2.0/")
	if i < 0 {
		return ""
	}
	rest := strings.TrimSpace(upper[i+len("SIP/2.0/"):])
	if len(rest) > 3 {
		rest = rest[:3]
	}
	return strings.TrimSpace(rest)
}

// IsProvisional reports a 1xx response.
func (m Message) IsProvisional() bool {
	return m.IsResponse && m.StatusCode >= 100 && m.StatusCode < 200
}

// IsSuccess reports a 2xx response.
func (m Message) IsSuccess() bool {
	return m.IsResponse && m.StatusCode >= 200 && m.StatusCode < 300
}

// IsFailure reports a final non 2xx response.
func (m Message) IsFailure() bool {
	return m.IsResponse && m.StatusCode >= 300 && m.StatusCode < 700
}
