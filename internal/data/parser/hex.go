package parser

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/sszokoly/avaya/internal/core/model"
)

const (
	hexSentinel = "++++"
	// hex characters before the SIP payload: direction, length and the
	// encoded address block
	hexHeaderLen = 34
)

// hexExtractor reads SIP messages hex dumped into switch MST traces. A
// frame starts on a line with the 8a (IN) or 8b (OUT) marker and may
// continue over "++++" lines until the declared length is collected.
type hexExtractor struct {
	addrs *addrCache
	loc   *time.Location
	stats ExtractStats

	active   bool
	ts       time.Time
	ep       model.Endpoints
	expected int // hex characters declared, including the header
	got      int
	payload  strings.Builder
}

func isHexStart(line string) bool {
	return strings.Contains(line, "  8a ") || strings.Contains(line, "  8b ")
}

func (e *hexExtractor) Feed(line string) (model.Frame, bool) {
	if e.active {
		if i := strings.Index(line, hexSentinel); i >= 0 {
			frag := ""
			if start := i + len(hexSentinel) + 2; start < len(line) {
				frag = strings.ReplaceAll(line[start:], " ", "")
			}
			e.payload.WriteString(frag)
			e.got += len(frag)
			if e.got >= e.expected {
				return e.complete()
			}
			return model.Frame{}, false
		}
		// the rest of the message is missing, keep what was collected
		frame, ok := e.complete()
		if isHexStart(line) {
			e.start(line)
		}
		return frame, ok
	}
	if isHexStart(line) {
		if e.start(line) && e.got >= e.expected {
			return e.complete()
		}
	}
	return model.Frame{}, false
}

// start parses the first line of a frame:
//
//	20190308:063000123 ... MST  <bytes>  8a 00 0a 00 00 02 13 c4 ...
func (e *hexExtractor) start(line string) bool {
	e.active = false
	e.payload.Reset()

	ts, ok := parseHexTime(line, e.loc)
	if !ok {
		e.stats.Dropped++
		return false
	}
	_, rest, found := strings.Cut(line, "MST")
	if !found {
		e.stats.Dropped++
		return false
	}
	size, body, found := strings.Cut(strings.TrimLeft(rest, " "), "  ")
	if !found {
		e.stats.Dropped++
		return false
	}
	n, err := strconv.Atoi(strings.TrimSpace(size))
	if err != nil {
		e.stats.Dropped++
		return false
	}
	body = strings.ReplaceAll(body, " ", "")
	if len(body) < hexHeaderLen {
		e.stats.Dropped++
		return false
	}

	ep, ok := e.addrs.lookup(body[4:hexHeaderLen], parseHexAddr)
	if !ok {
		e.stats.Dropped++
		return false
	}
	if body[0:2] == "8a" {
		ep.Direction = model.DirIn
	} else {
		ep.Direction = model.DirOut
	}

	e.active = true
	e.ts = ts
	e.ep = ep
	e.expected = n * 2
	e.got = len(body)
	e.payload.WriteString(body[hexHeaderLen:])
	return true
}

func (e *hexExtractor) complete() (model.Frame, bool) {
	e.active = false
	payload := e.payload.String()
	e.payload.Reset()

	if limit := e.expected - hexHeaderLen; limit >= 0 && len(payload) > limit {
		payload = payload[:limit]
	}
	data, err := hex.DecodeString(payload)
	if err != nil && len(payload) > 0 {
		// a truncated line usually leaves half a byte behind
		data, err = hex.DecodeString(payload[:len(payload)-1])
	}
	if err != nil || len(data) == 0 {
		e.stats.Dropped++
		return model.Frame{}, false
	}

	e.stats.Frames++
	return model.NewFrame(e.ts, e.ep, string(data)), true
}

// Flush decodes what was collected of an unfinished frame, the same way a
// following non-continuation line would.
func (e *hexExtractor) Flush() (model.Frame, bool) {
	if !e.active {
		return model.Frame{}, false
	}
	return e.complete()
}

func (e *hexExtractor) Stats() ExtractStats {
	return e.stats
}

// parseHexTime reads the leading "YYYYMMDD:hhmmssmmm".
func parseHexTime(line string, loc *time.Location) (time.Time, bool) {
	if len(line) < 18 {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("20060102:150405", line[0:15], loc)
	if err != nil {
		return time.Time{}, false
	}
	ms, err := strconv.Atoi(line[15:18])
	if err != nil {
		return time.Time{}, false
	}
	return t.Add(time.Duration(ms) * time.Millisecond), true
}

// parseHexAddr decodes the 30 hex characters following the frame header:
// srcIP(4) srcPort(2) pad(1) dstIP(4) dstPort(2) pad(1) proto(1).
func parseHexAddr(h string) (model.Endpoints, bool) {
	if len(h) < 30 {
		return model.Endpoints{}, false
	}
	src, err := hexOctets(h[0:8])
	if err != nil {
		return model.Endpoints{}, false
	}
	dst, err := hexOctets(h[14:22])
	if err != nil {
		return model.Endpoints{}, false
	}
	srcPort, err := strconv.ParseUint(h[8:12], 16, 16)
	if err != nil {
		return model.Endpoints{}, false
	}
	dstPort, err := strconv.ParseUint(h[22:26], 16, 16)
	if err != nil {
		return model.Endpoints{}, false
	}
	// the transport byte is read as a decimal number
	proto, err := strconv.Atoi(h[28:30])
	if err != nil {
		return model.Endpoints{}, false
	}
	transport := model.TransportTCP
	if proto > 1 {
		transport = model.TransportTLS
	}
	return model.Endpoints{
		SrcAddr:   src,
		SrcPort:   int(srcPort),
		DstAddr:   dst,
		DstPort:   int(dstPort),
		Transport: transport,
	}, true
}
