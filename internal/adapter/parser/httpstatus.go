package parser

import "github.com/frclabs/reportcenter/internal/entity"

// actionSeverityForStatus maps an HTTP response status to the normalized
// action and severity used by the HTTP-sourced parsers.
func actionSeverityForStatus(status int) (action, severity string) {
	switch {
	case status >= 500:
		return entity.ActionDeny, entity.SeverityHigh
	case status == 403:
		return entity.ActionDeny, entity.SeverityMedium
	case status == 429:
		return entity.ActionRateLimit, entity.SeverityMedium
	case status >= 400:
		return entity.ActionDeny, entity.SeverityLow
	default:
		return entity.ActionAllow, entity.SeverityLow
	}
}
