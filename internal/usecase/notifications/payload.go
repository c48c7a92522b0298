package notifications

import (
	"fmt"
	"strings"

	"github.com/frclabs/reportcenter/internal/entity"
)

// BuildAlertPayload renders a triggered alert into the channel-agnostic
// payload the dispatcher fans out.
func BuildAlertPayload(h *entity.AlertHistory) *entity.AlertPayload {
	message := fmt.Sprintf("Alert rule %q triggered with %d events in the last %s.",
		h.RuleName, h.EventCount, h.Details.TimeWindow)

	return &entity.AlertPayload{
		Title:    fmt.Sprintf("[%s] %s", strings.ToUpper(h.Severity), h.RuleName),
		Message:  message,
		Severity: h.Severity,
		Details:  h.Details,
	}
}

// RenderText flattens a payload into the plain-text body used for email.
func RenderText(p *entity.AlertPayload) string {
	var b strings.Builder

	b.WriteString(p.Message)
	b.WriteString("\n")

	if p.Details.EventCount > 0 {
		fmt.Fprintf(&b, "\nEvents: %d", p.Details.EventCount)
	}
	if p.Details.TimeWindow != "" {
		fmt.Fprintf(&b, "\nTime window: %s", p.Details.TimeWindow)
	}

	if len(p.Details.TopIPs) > 0 {
		b.WriteString("\n\nTop source IPs:\n")
		for _, ip := range p.Details.TopIPs {
			fmt.Fprintf(&b, "  %s (%d events)\n", ip.IP, ip.Count)
		}
	}
	if len(p.Details.Servers) > 0 {
		fmt.Fprintf(&b, "\nAffected servers: %s\n", strings.Join(p.Details.Servers, ", "))
	}
	if len(p.Details.Countries) > 0 {
		b.WriteString("\nCountries:\n")
		for _, c := range p.Details.Countries {
			name := c.CountryName
			if name == "" {
				name = c.CountryCode
			}
			fmt.Fprintf(&b, "  %s (%d events)\n", name, c.Count)
		}
	}
	if len(p.Details.Filters) > 0 {
		b.WriteString("\nActive filters:\n")
		for k, v := range p.Details.Filters {
			fmt.Fprintf(&b, "  %s = %s\n", k, v)
		}
	}

	return b.String()
}
