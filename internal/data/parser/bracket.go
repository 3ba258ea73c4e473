package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sszokoly/avaya/internal/core/model"
)

var bracketAddr = regexp.MustCompile(
	`(IN|OUT): (\[[0-9a-fA-F:.]+\]|[0-9.]+):(\d+) --> (\[[0-9a-fA-F:.]+\]|[0-9.]+):(\d+) \((\w+)\)`)

// bracketExtractor reads tracesbc_sip frames:
//
//	[03-08-2019:06.30.00.123456 ]
//	IN: 10.0.0.2:5060 --> 10.0.0.1:5060 (UDP)
//	INVITE sip:1000@10.0.0.1 SIP/2.0
//	...
//	--
type bracketExtractor struct {
	addrs *addrCache
	loc   *time.Location
	stats ExtractStats

	active bool
	header string
	lines  []string
}

func (e *bracketExtractor) Feed(line string) (model.Frame, bool) {
	if strings.HasPrefix(line, "[") {
		if e.active {
			// a start marker inside a frame abandons the frame
			e.stats.Dropped++
		}
		e.active = true
		e.header = line
		e.lines = e.lines[:0]
		return model.Frame{}, false
	}
	if !e.active {
		return model.Frame{}, false
	}
	if strings.HasPrefix(line, "--") {
		e.active = false
		return e.complete()
	}
	e.lines = append(e.lines, line)
	return model.Frame{}, false
}

func (e *bracketExtractor) complete() (model.Frame, bool) {
	if len(e.lines) == 0 {
		e.stats.Dropped++
		return model.Frame{}, false
	}

	ts, ok := parseTraceTime(bracketTime(e.header), e.loc)
	if !ok {
		e.stats.Dropped++
		return model.Frame{}, false
	}
	ep, ok := e.addrs.lookup(e.lines[0], parseBracketAddr)
	if !ok {
		e.stats.Dropped++
		return model.Frame{}, false
	}

	body := e.lines[1:]
	for len(body) > 0 && strings.TrimSpace(body[0]) == "" {
		body = body[1:]
	}
	if len(body) == 0 {
		e.stats.Dropped++
		return model.Frame{}, false
	}

	e.stats.Frames++
	return model.NewFrame(ts, ep, strings.Join(body, "\n")), true
}

// Flush drops a frame whose "--" terminator never arrived.
func (e *bracketExtractor) Flush() (model.Frame, bool) {
	if e.active {
		e.active = false
		e.stats.Dropped++
	}
	return model.Frame{}, false
}

func (e *bracketExtractor) Stats() ExtractStats {
	return e.stats
}

// bracketTime returns the text between "[" and "]", or the line minus its
// last three characters when the closing bracket is missing.
func bracketTime(header string) string {
	s := header[1:]
	if i := strings.IndexByte(s, ']'); i >= 0 {
		return s[:i]
	}
	if len(s) > 3 {
		return s[:len(s)-3]
	}
	return s
}

func parseBracketAddr(line string) (model.Endpoints, bool) {
	m := bracketAddr.FindStringSubmatch(line)
	if m == nil {
		return model.Endpoints{}, false
	}
	dir, _ := model.ParseDirection(m[1])
	srcPort, err := strconv.Atoi(m[3])
	if err != nil {
		return model.Endpoints{}, false
	}
	dstPort, err := strconv.Atoi(m[5])
	if err != nil {
		return model.Endpoints{}, false
	}
	return model.Endpoints{
		Direction: dir,
		SrcAddr:   strings.Trim(m[2], "[]"),
		SrcPort:   srcPort,
		DstAddr:   strings.Trim(m[4], "[]"),
		DstPort:   dstPort,
		Transport: model.ParseTransport(m[6]),
	}, true
}
