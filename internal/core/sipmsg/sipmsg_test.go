package sipmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const invite = "INVITE sip:1000@10.0.0.1 SIP/2.0\r\n" +
	"Via: SIP/2.0/TLS 10.0.0.2:5061;branch=z9hG4bK1\r\n" +
	"Via: SIP/2.0/UDP 10.0.0.9:5060;branch=z9hG4bK0\r\n" +
	"From: <sip:2000@10.0.0.2>;tag=abc\r\n" +
	"To: <sip:1000@10.0.0.1>\r\n" +
	"Call-ID: 1234@10.0.0.2\r\n" +
	"CSeq: 1 INVITE\r\n" +
	"Content-Length: 0\r\n" +
	"\r\n" +
	"v=0\r\n" +
	"i=should not be read\r\n"

func TestParseRequest(t *testing.T) {
	msg := Parse(invite)

	assert.False(t, msg.IsResponse)
	assert.Equal(t, "INVITE", msg.Method)
	assert.Equal(t, "1234@10.0.0.2", msg.CallID)
	assert.Equal(t, 1, msg.CSeqNum)
	assert.Equal(t, "INVITE", msg.CSeqMethod)
	assert.False(t, msg.HasToTag)
	assert.Equal(t, "TLS", msg.ViaTransport)
}

func TestParseCompactResponse(t *testing.T) {
	body := "SIP/2.0 180 Ringing\n" +
		"v: SIP/2.0/tcp 10.0.0.2:5060\n" +
		"t: <sip:1000@10.0.0.1>;TAG=xyz\n" +
		"i: abc\n" +
		"cseq: 7 invite\n"

	msg := Parse(body)

	assert.True(t, msg.IsResponse)
	assert.True(t, msg.IsProvisional())
	assert.Equal(t, 180, msg.StatusCode)
	assert.Equal(t, "abc", msg.CallID)
	assert.Equal(t, 7, msg.CSeqNum)
	assert.Equal(t, "INVITE", msg.CSeqMethod)
	assert.True(t, msg.HasToTag)
	assert.Equal(t, "TCP", msg.ViaTransport)
}

func TestParseStatusClasses(t *testing.T) {
	tests := []struct {
		status                   string
		provisional, ok, failure bool
	}{
		{"100 Trying", true, false, false},
		{"200 OK", false, true, false},
		{"302 Moved", false, false, true},
		{"486 Busy Here", false, false, true},
		{"603 Decline", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			msg := Parse("SIP/2.0 " + tt.status + "\nCSeq: 1 INVITE\n")
			assert.Equal(t, tt.provisional, msg.IsProvisional())
			assert.Equal(t, tt.ok, msg.IsSuccess())
			assert.Equal(t, tt.failure, msg.IsFailure())
		})
	}
}

func TestParseTolerant(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Message
	}{
		{name: "empty", body: "", want: Message{}},
		{name: "leading blank lines", body: "\n\nBYE sip:x SIP/2.0\nCall-ID: c1\n",
			want: Message{Method: "BYE", CallID: "c1"}},
		{name: "garbage header", body: "SIP/2.0 200 OK\nnonsense\nCSeq:\n",
			want: Message{IsResponse: true, StatusCode: 200, CSeqNum: -1}},
		{name: "lone cseq method", body: "SIP/2.0 200 OK\nCSeq: BYE\n",
			want: Message{IsResponse: true, StatusCode: 200, CSeqMethod: "BYE"}},
		{name: "tag inside uri is not a tag", body: "ACK sip:x SIP/2.0\nTo: <sip:a@b;tag=no>\n",
			want: Message{Method: "ACK"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.body))
		})
	}
}
