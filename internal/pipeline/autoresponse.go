package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"mail-triage-go/internal/mail"
	"mail-triage-go/internal/routing"
	"mail-triage-go/internal/triage"
)

// Auto-response outcomes recorded on the processing record.
const (
	AutoResponseSent    = "sent"
	AutoResponseSkipped = "skipped"
)

// deptNames maps a triage category to the team name quoted in the
// acknowledgement sent back to the customer.
var deptNames = map[string]string{
	triage.CategoryAssist:          "Assist",
	triage.CategoryBadService:      "Customer Care",
	triage.CategoryVehicleTracking: "Vehicle Tracking",
	triage.CategoryRetentions:      "Retentions",
	triage.CategoryAmendments:      "Amendments",
	triage.CategoryClaims:          "Claims",
	triage.CategoryRefundRequest:   "Refunds",
	triage.CategoryOnlineApp:       "Online Support",
	triage.CategoryQuoteRequest:    "Sales",
	triage.CategoryDocumentRequest: "Policy Services",
}

// sendAutoResponse acknowledges receipt to the sender once the forward has
// succeeded. Only intervention routes are acknowledged: a fallback to the
// original destination means nobody picked the message up yet, and an
// acknowledgement would promise handling we cannot vouch for.
func (p *Processor) sendAutoResponse(ctx context.Context, account string, msg mail.InboundMessage, decision routing.Decision) string {
	if !p.autoRespond || !decision.Intervention {
		return AutoResponseSkipped
	}

	dept, ok := deptNames[strings.ToLower(decision.Category)]
	if !ok {
		return AutoResponseSkipped
	}

	subject := fmt.Sprintf("Re: %s - received by our %s team", msg.Subject, dept)
	body := fmt.Sprintf(
		"Thank you for contacting us.\r\n\r\n"+
			"Your email has been received and routed to our %s team, "+
			"who will be in touch shortly.\r\n\r\n"+
			"This is an automated acknowledgement; please do not reply to it.\r\n",
		dept)

	if err := p.provider.Reply(ctx, account, msg, subject, body); err != nil {
		logrus.Warnf("Auto-response to %s failed: %v", msg.From, err)
		return "error: " + err.Error()
	}
	return AutoResponseSent
}
