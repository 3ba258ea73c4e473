package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sszokoly/avaya/internal/core/model"
	"github.com/sszokoly/avaya/internal/core/sipmsg"
)

// TaggedMarker starts a call control SIP message in SSYNDI logs
const TaggedMarker = "SIP MSG AT CALL CONTROL"

var taggedAddr = regexp.MustCompile(`IP:([a-fA-Fx0-9.]*):(\d+) --> ([a-fA-Fx0-9.]*):(\d+)`)

// taggedExtractor reads SSYNDI call control frames. The marker line holds
// the timestamp and direction, the body follows and an "IP:" line closes
// the frame with the addresses.
type taggedExtractor struct {
	addrs *addrCache
	loc   *time.Location
	stats ExtractStats

	active bool
	marker string
	lines  []string
}

func (e *taggedExtractor) Feed(line string) (model.Frame, bool) {
	if strings.Contains(line, TaggedMarker) {
		if e.active {
			e.stats.Dropped++
		}
		e.active = true
		e.marker = line
		e.lines = e.lines[:0]
		return model.Frame{}, false
	}
	if !e.active {
		return model.Frame{}, false
	}
	if strings.HasPrefix(line, "IP:") {
		e.active = false
		return e.complete(line)
	}
	e.lines = append(e.lines, line)
	return model.Frame{}, false
}

func (e *taggedExtractor) complete(addrLine string) (model.Frame, bool) {
	ts, dir, ok := e.parseMarker()
	if !ok {
		e.stats.Dropped++
		return model.Frame{}, false
	}
	ep, ok := e.addrs.lookup(addrLine, parseTaggedAddr)
	if !ok {
		e.stats.Dropped++
		return model.Frame{}, false
	}

	body := strings.Join(e.lines, "\n")
	ep.Direction = dir
	ep.Transport = model.ParseTransport(sipmsg.Parse(body).ViaTransport)

	e.stats.Frames++
	return model.NewFrame(ts, ep, body), true
}

// parseMarker reads the timestamp at characters 1..27 and the trailing
// direction token.
func (e *taggedExtractor) parseMarker() (time.Time, model.Direction, bool) {
	if len(e.marker) < 27 {
		return time.Time{}, "", false
	}
	ts, ok := parseTraceTime(e.marker[1:27], e.loc)
	if !ok {
		return time.Time{}, "", false
	}
	fields := strings.Fields(e.marker)
	dir, ok := model.ParseDirection(strings.Trim(fields[len(fields)-1], "[]():"))
	return ts, dir, ok
}

// Flush drops a frame whose "IP:" line never arrived.
func (e *taggedExtractor) Flush() (model.Frame, bool) {
	if e.active {
		e.active = false
		e.stats.Dropped++
	}
	return model.Frame{}, false
}

func (e *taggedExtractor) Stats() ExtractStats {
	return e.stats
}

func parseTaggedAddr(line string) (model.Endpoints, bool) {
	m := taggedAddr.FindStringSubmatch(line)
	if m == nil {
		return model.Endpoints{}, false
	}
	src, err := taggedIP(m[1])
	if err != nil {
		return model.Endpoints{}, false
	}
	dst, err := taggedIP(m[3])
	if err != nil {
		return model.Endpoints{}, false
	}
	srcPort, _ := strconv.Atoi(m[2])
	dstPort, _ := strconv.Atoi(m[4])
	return model.Endpoints{
		SrcAddr: src,
		SrcPort: srcPort,
		DstAddr: dst,
		DstPort: dstPort,
	}, true
}

// taggedIP decodes the legacy "0x0a000001" form, other forms are returned
// unchanged.
func taggedIP(s string) (string, error) {
	if !strings.HasPrefix(s, "0x") {
		return s, nil
	}
	h := s[2:]
	if len(h) > 8 {
		return "", fmt.Errorf("hex address too long: %s", s)
	}
	h = strings.Repeat("0", 8-len(h)) + h
	return hexOctets(h)
}

// hexOctets renders 8 hex characters as a dotted quad.
func hexOctets(h string) (string, error) {
	octets := make([]string, 4)
	for i := range octets {
		v, err := strconv.ParseUint(h[i*2:i*2+2], 16, 8)
		if err != nil {
			return "", err
		}
		octets[i] = strconv.FormatUint(v, 10)
	}
	return strings.Join(octets, "."), nil
}
