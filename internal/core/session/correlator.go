package session

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/sszokoly/avaya/internal/core/constants"
	"github.com/sszokoly/avaya/internal/core/model"
	"github.com/sszokoly/avaya/internal/core/sipmsg"
	"github.com/sszokoly/avaya/internal/util"
)

// CorrelatorConfig bounds the dialog table
type CorrelatorConfig struct {
	// MaxDialogs caps the number of tracked dialogs, the least recently
	// updated one is evicted first
	MaxDialogs int

	// MaxAge evicts dialogs not updated for this long, measured against
	// the newest frame timestamp seen. 0 disables age eviction.
	MaxAge time.Duration
}

// DefaultCorrelatorConfig returns the default configuration
var DefaultCorrelatorConfig = CorrelatorConfig{
	MaxDialogs: constants.DefaultMaxDialogs,
	MaxAge:     constants.DefaultMaxAge,
}

// Option adjusts a CorrelatorConfig
type Option func(*CorrelatorConfig)

// WithMaxDialogs caps the dialog table size.
func WithMaxDialogs(n int) Option {
	return func(c *CorrelatorConfig) {
		c.MaxDialogs = n
	}
}

// WithMaxAge evicts dialogs idle for longer than d in log time.
func WithMaxAge(d time.Duration) Option {
	return func(c *CorrelatorConfig) {
		c.MaxAge = d
	}
}

// CorrelatorStats counts frames the correlator could not use
type CorrelatorStats struct {
	Frames        int
	Ignored       int // not relevant for session counting
	UnknownDialog int // response without a tracked dialog
	OutOfOrder    int // response not valid in the dialog state
	Evicted       int
	Started       int
	Ended         int
}

// Correlator infers session start and end from the SIP messages of one
// log source. It is not safe for concurrent use; each source pipeline
// owns its own Correlator.
type Correlator struct {
	config  CorrelatorConfig
	dialogs *simplelru.LRU[model.DialogKey, *model.Dialog]
	newest  time.Time
	stats   CorrelatorStats

	// evicted collects the end events of dialogs dropped by the table
	// until the caller takes them
	evicted []model.SessionEvent
	// closing suppresses the eviction callback for dialogs removed on
	// their own terminal transition
	closing bool
}

// NewCorrelator creates a Correlator with an empty dialog table.
func NewCorrelator(opts ...Option) *Correlator {
	config := DefaultCorrelatorConfig
	for _, opt := range opts {
		opt(&config)
	}
	if config.MaxDialogs <= 0 {
		config.MaxDialogs = constants.DefaultMaxDialogs
	}
	c := &Correlator{config: config}
	// MaxDialogs is positive, NewLRU cannot fail
	c.dialogs, _ = simplelru.NewLRU[model.DialogKey, *model.Dialog](config.MaxDialogs, c.onEvict)
	return c
}

// Process applies one frame and returns the session events it caused,
// including those of dialogs evicted meanwhile.
func (c *Correlator) Process(f model.Frame) []model.SessionEvent {
	c.stats.Frames++
	if f.Timestamp.After(c.newest) {
		c.newest = f.Timestamp
	}

	var events []model.SessionEvent
	msg := sipmsg.Parse(f.Body)
	if msg.CallID == "" {
		c.stats.Ignored++
	} else {
		key := model.DialogKey{Link: f.Link(), CallID: msg.CallID}
		if msg.IsResponse {
			events = c.onResponse(f, msg, key)
		} else {
			events = c.onRequest(f, msg, key)
		}
	}
	return append(events, c.expire()...)
}

func (c *Correlator) onRequest(f model.Frame, msg sipmsg.Message, key model.DialogKey) []model.SessionEvent {
	switch msg.Method {
	case model.MethodInvite:
		if d, ok := c.dialogs.Get(key); ok {
			d.LastSeen = f.Timestamp
			return nil
		}
		if msg.HasToTag {
			// re-INVITE of a dialog established before we started
			c.stats.Ignored++
			return nil
		}
		d := model.NewDialog(key, f.Timestamp)
		d.Direction = f.Direction
		return c.insert(d)

	case model.MethodBye:
		d, ok := c.dialogs.Get(key)
		if !ok {
			c.stats.UnknownDialog++
			return nil
		}
		d.LastSeen = f.Timestamp
		if d.State == model.StateEstablished {
			d.State = model.StateEnding
		}
		return nil
	}
	c.stats.Ignored++
	return nil
}

func (c *Correlator) onResponse(f model.Frame, msg sipmsg.Message, key model.DialogKey) []model.SessionEvent {
	switch msg.CSeqMethod {
	case model.MethodInvite, model.MethodBye, model.MethodCancel:
	default:
		c.stats.Ignored++
		return nil
	}

	d, ok := c.dialogs.Get(key)
	if !ok {
		if msg.CSeqMethod == model.MethodInvite && msg.IsProvisional() && !msg.HasToTag {
			// the INVITE itself was not logged, its provisional response
			// without a To tag is enough
			d = model.NewDialog(key, f.Timestamp)
			d.Direction = f.Direction.Reverse()
			events := c.insert(d)
			return append(events, c.onInviteResponse(d, f, msg)...)
		}
		c.stats.UnknownDialog++
		return nil
	}
	d.LastSeen = f.Timestamp

	switch msg.CSeqMethod {
	case model.MethodInvite:
		return c.onInviteResponse(d, f, msg)
	case model.MethodBye:
		return c.onByeResponse(d, f, msg)
	default:
		return c.onCancelResponse(d, msg)
	}
}

func (c *Correlator) onInviteResponse(d *model.Dialog, f model.Frame, msg sipmsg.Message) []model.SessionEvent {
	switch {
	case msg.IsProvisional():
		switch d.State {
		case model.StateNew:
			d.State = model.StateProvisional
			d.Direction = f.Direction.Reverse()
			d.PendingCSeqs[msg.CSeqNum] = struct{}{}
			return []model.SessionEvent{c.start(d, f.Timestamp)}
		case model.StateProvisional, model.StateEnding:
			d.PendingCSeqs[msg.CSeqNum] = struct{}{}
		default:
			c.stats.OutOfOrder++
		}

	case msg.IsSuccess():
		switch d.State {
		case model.StateNew:
			// answered without a provisional response
			d.State = model.StateEstablished
			d.Direction = f.Direction.Reverse()
			return []model.SessionEvent{c.start(d, f.Timestamp)}
		case model.StateProvisional, model.StateEnding:
			// an answer racing a CANCEL wins
			d.State = model.StateEstablished
			d.Cancelled = false
		}

	case msg.IsFailure():
		switch d.State {
		case model.StateNew:
			c.discard(d)
		case model.StateEnding:
			if !d.Cancelled {
				// stray failure of an INVITE after the BYE, the BYE
				// response ends the session
				c.stats.OutOfOrder++
				return nil
			}
			return c.fail(d, f.Timestamp, msg.CSeqNum)
		case model.StateProvisional:
			return c.fail(d, f.Timestamp, msg.CSeqNum)
		default:
			c.stats.OutOfOrder++
		}
	}
	return nil
}

// fail settles one pending INVITE transaction. The dialog closes once
// none is left.
func (c *Correlator) fail(d *model.Dialog, ts time.Time, cseq int) []model.SessionEvent {
	delete(d.PendingCSeqs, cseq)
	if len(d.PendingCSeqs) > 0 {
		return nil
	}
	reason := model.ReasonFailure
	if d.Cancelled {
		reason = model.ReasonCancel
	}
	return c.close(d, ts, reason)
}

func (c *Correlator) onByeResponse(d *model.Dialog, f model.Frame, msg sipmsg.Message) []model.SessionEvent {
	if msg.IsProvisional() {
		return nil
	}
	switch d.State {
	case model.StateEnding, model.StateEstablished:
		// from ESTABLISHED the BYE request itself was not logged
		if d.Cancelled {
			c.stats.OutOfOrder++
			return nil
		}
		return c.close(d, f.Timestamp, model.ReasonBye)
	}
	c.stats.OutOfOrder++
	return nil
}

func (c *Correlator) onCancelResponse(d *model.Dialog, msg sipmsg.Message) []model.SessionEvent {
	if msg.IsSuccess() && d.State == model.StateProvisional {
		// the failure response of the INVITE closes the dialog
		d.State = model.StateEnding
		d.Cancelled = true
	}
	return nil
}

// insert adds a dialog, evicting the least recently updated one when the
// table is full.
func (c *Correlator) insert(d *model.Dialog) []model.SessionEvent {
	c.dialogs.Add(d.Key(), d)
	return c.takeEvicted()
}

// discard removes a dialog without treating it as evicted.
func (c *Correlator) discard(d *model.Dialog) {
	c.closing = true
	c.dialogs.Remove(d.Key())
	c.closing = false
}

func (c *Correlator) takeEvicted() []model.SessionEvent {
	events := c.evicted
	c.evicted = nil
	return events
}

// expire evicts dialogs idle for longer than MaxAge.
func (c *Correlator) expire() []model.SessionEvent {
	if c.config.MaxAge <= 0 {
		return nil
	}
	cutoff := c.newest.Add(-c.config.MaxAge)

	for {
		_, d, ok := c.dialogs.GetOldest()
		if !ok || !d.LastSeen.Before(cutoff) {
			return c.takeEvicted()
		}
		c.dialogs.RemoveOldest()
	}
}

// onEvict ends a dialog dropped from the table by size or age. Only
// dialogs that emitted a start produce an end event.
func (c *Correlator) onEvict(_ model.DialogKey, d *model.Dialog) {
	if c.closing {
		return
	}
	c.stats.Evicted++
	util.LogDebug("dialog evicted",
		util.Field{Key: "call_id", Value: d.CallID},
		util.Field{Key: "link", Value: d.Link},
		util.Field{Key: "state", Value: d.State.String()})
	if !d.Started {
		return
	}
	d.State = model.StateClosed
	c.stats.Ended++
	c.evicted = append(c.evicted, c.event(model.OpEnd, d, c.newest, model.ReasonEvicted))
}

func (c *Correlator) start(d *model.Dialog, ts time.Time) model.SessionEvent {
	d.Started = true
	c.stats.Started++
	return c.event(model.OpStart, d, ts, "")
}

// close discards a dialog in its terminal state.
func (c *Correlator) close(d *model.Dialog, ts time.Time, reason string) []model.SessionEvent {
	d.State = model.StateClosed
	c.discard(d)
	if !d.Started {
		return nil
	}
	c.stats.Ended++
	return []model.SessionEvent{c.event(model.OpEnd, d, ts, reason)}
}

func (c *Correlator) event(op model.SessionOp, d *model.Dialog, ts time.Time, reason string) model.SessionEvent {
	return model.SessionEvent{
		Op:        op,
		CallID:    d.CallID,
		Link:      d.Link,
		Direction: d.Direction,
		Timestamp: ts,
		Reason:    reason,
	}
}

// Len is the number of tracked dialogs.
func (c *Correlator) Len() int {
	return c.dialogs.Len()
}

// Stats returns the correlation counters.
func (c *Correlator) Stats() CorrelatorStats {
	return c.stats
}

// Dialog returns a copy of the dialog tracked for callID on link.
func (c *Correlator) Dialog(link, callID string) (model.Dialog, bool) {
	d, ok := c.dialogs.Peek(model.DialogKey{Link: link, CallID: callID})
	if !ok {
		return model.Dialog{}, false
	}
	cp := *d
	cp.PendingCSeqs = make(map[int]struct{}, len(d.PendingCSeqs))
	for k := range d.PendingCSeqs {
		cp.PendingCSeqs[k] = struct{}{}
	}
	return cp, true
}
