package domain

import (
	"strings"
	"time"
)

// naive timestamps from the gateway are business-local wall clock
var naiveSettlementLayouts = []string{
	SettlementTimeLayout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseSettlementTime parses the gateway's cdc_transaction_datetime. Naive values are
// read as UTC+7 wall clock; values with an offset are honoured. It returns the
// local time and its UTC instant.
func ParseSettlementTime(raw string) (local time.Time, utc time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.In(BusinessZone), t.UTC(), true
	}
	for _, layout := range naiveSettlementLayouts {
		if t, err := time.ParseInLocation(layout, raw, BusinessZone); err == nil {
			return t, t.UTC(), true
		}
	}
	return time.Time{}, time.Time{}, false
}
