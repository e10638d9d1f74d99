package mail

import (
	"strings"
	"time"
)

// InboundMessage represents one unread email as fetched from the mailbox.
// It is immutable once fetched; the pipeline run that fetched it is the
// only owner.
type InboundMessage struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"` // Internet Message-ID, stable across re-fetches
	From       string    `json:"from"`
	To         []string  `json:"to"`
	CC         []string  `json:"cc"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	HTMLBody   string    `json:"html_body"`
	ReceivedAt time.Time `json:"received_at"`
}

// OriginalDestination returns the address the message was originally sent
// to. It is the fallback forwarding target when classification is
// unavailable or the category is unmapped.
func (m *InboundMessage) OriginalDestination() string {
	if len(m.To) == 0 {
		return ""
	}
	return strings.TrimSpace(m.To[0])
}

// TriageText collapses the message into the single text blob handed to the
// classification service: sender, recipients, subject and the full body
// with thread history.
func (m *InboundMessage) TriageText(maxLen int) string {
	parts := []string{
		"From: " + m.From,
		"To: " + strings.Join(m.To, ", "),
	}
	if len(m.CC) > 0 {
		parts = append(parts, "Cc: "+strings.Join(m.CC, ", "))
	}
	parts = append(parts, "Subject: "+m.Subject, "", m.Body)

	text := strings.Join(parts, "\n")
	if maxLen > 0 && len(text) > maxLen {
		text = text[:maxLen]
	}
	return text
}

// systemSenderPrefixes covers daemons and notification addresses whose mail
// must never be classified or forwarded.
var systemSenderPrefixes = []string{
	"mailer-daemon",
	"postmaster",
	"no-reply",
	"noreply",
	"bounce",
}

// IsSystemSender reports whether the message originates from an automated
// system address such as a bounce daemon.
func (m *InboundMessage) IsSystemSender() bool {
	from := strings.ToLower(strings.TrimSpace(m.From))
	// Strip a display name, keeping the address between angle brackets.
	if i := strings.LastIndex(from, "<"); i >= 0 {
		from = strings.TrimSuffix(from[i+1:], ">")
	}
	local := from
	if i := strings.Index(from, "@"); i > 0 {
		local = from[:i]
	}
	for _, p := range systemSenderPrefixes {
		if strings.HasPrefix(local, p) {
			return true
		}
	}
	return strings.Contains(from, "microsoftexchange")
}

// IsMalformed reports whether the message lacks the minimum content needed
// for triage: a stable thread identifier and at least a subject or a body.
func (m *InboundMessage) IsMalformed() bool {
	if strings.TrimSpace(m.ThreadID) == "" {
		return true
	}
	return strings.TrimSpace(m.Subject) == "" && strings.TrimSpace(m.Body) == ""
}
