package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginalDestination(t *testing.T) {
	msg := InboundMessage{To: []string{" inbox@example.com ", "second@example.com"}}
	assert.Equal(t, "inbox@example.com", msg.OriginalDestination())

	empty := InboundMessage{}
	assert.Equal(t, "", empty.OriginalDestination())
}

func TestTriageTextLayout(t *testing.T) {
	msg := InboundMessage{
		From:    "customer@example.com",
		To:      []string{"inbox@example.com"},
		CC:      []string{"broker@example.com"},
		Subject: "Claim query",
		Body:    "I would like to follow up on my claim.",
	}

	text := msg.TriageText(0)
	assert.Contains(t, text, "From: customer@example.com")
	assert.Contains(t, text, "To: inbox@example.com")
	assert.Contains(t, text, "Cc: broker@example.com")
	assert.Contains(t, text, "Subject: Claim query")
	assert.Contains(t, text, "follow up on my claim")
}

func TestTriageTextTruncates(t *testing.T) {
	msg := InboundMessage{
		From:    "customer@example.com",
		To:      []string{"inbox@example.com"},
		Subject: "s",
		Body:    strings.Repeat("x", 1000),
	}

	assert.Len(t, msg.TriageText(100), 100)
	assert.Greater(t, len(msg.TriageText(0)), 1000)
}

func TestIsSystemSender(t *testing.T) {
	system := []string{
		"mailer-daemon@googlemail.com",
		"MAILER-DAEMON@googlemail.com",
		"postmaster@example.com",
		"no-reply@bank.example.com",
		"noreply@shop.example.com",
		"bounce+12345@lists.example.com",
		"Mail Delivery Subsystem <mailer-daemon@googlemail.com>",
		"system@internal.microsoftexchange.example.com",
	}
	for _, from := range system {
		msg := InboundMessage{From: from}
		assert.True(t, msg.IsSystemSender(), from)
	}

	human := []string{
		"customer@example.com",
		"daemon.fan@example.com",
		"Jo Customer <jo@example.com>",
	}
	for _, from := range human {
		msg := InboundMessage{From: from}
		assert.False(t, msg.IsSystemSender(), from)
	}
}

func TestIsMalformed(t *testing.T) {
	ok := InboundMessage{ThreadID: "<abc@mail>", Subject: "hi"}
	assert.False(t, ok.IsMalformed())

	bodyOnly := InboundMessage{ThreadID: "<abc@mail>", Body: "content"}
	assert.False(t, bodyOnly.IsMalformed())

	noThread := InboundMessage{Subject: "hi", Body: "content"}
	assert.True(t, noThread.IsMalformed())

	empty := InboundMessage{ThreadID: "<abc@mail>", Subject: "  ", Body: ""}
	assert.True(t, empty.IsMalformed())
}
