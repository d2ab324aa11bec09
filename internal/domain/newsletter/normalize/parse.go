package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
)

// Spreadsheet serial days count from 1899-12-30. That epoch absorbs the
// phantom 1900-02-29 of the reference format, so serials from March 1900 on
// land on the same calendar day the spreadsheet shows.
var serialEpoch = time.Date(1899, time.December, 30, 12, 0, 0, 0, time.UTC)

// maxSerial is 9999-12-31 in serial days
const maxSerial = 2958465

// ParseCount parses an integer count, tolerating thousands separators and a
// fractional part. Empty cells, error markers like #DIV/0! and negative
// values are reported as not ok.
func ParseCount(s string) (int64, bool) {
	s = cleanNumber(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, false
		}
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return int64(math.Round(f)), true
}

// ParsePercent parses a rate into the 0-100 scale. "45.2%" is taken as
// written; a bare number with magnitude <= 1 is a fraction and is scaled by
// 100. Empty and non-numeric cells yield nil.
func ParsePercent(s string) *float64 {
	s = strings.TrimSpace(s)
	explicit := strings.HasSuffix(s, "%")
	s = cleanNumber(strings.TrimSuffix(s, "%"))
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if explicit {
		return &f
	}
	v := Percent(f)
	return &v
}

// Percent scales a fractional rate to 0-100. Values above 1 are assumed to
// already be percentages.
func Percent(f float64) float64 {
	if math.Abs(f) <= 1 {
		return math.Round(f*100*1e9) / 1e9
	}
	return f
}

// monthLayouts are the month-only labels growth sheets use. They resolve to
// the first of the month.
var monthLayouts = []string{
	"Jan 2006",
	"January 2006",
	"Jan-2006",
	"January-2006",
	"Jan, 2006",
	"January, 2006",
}

// ParseDate parses a spreadsheet serial day number or a free-text date.
// A bare four-digit number is a year and resolves to January 1.
// Serial dates are pinned to 12:00 UTC so no timezone moves the calendar day.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if y, ok := parseYear(s); ok {
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 1 || f > maxSerial {
			return time.Time{}, false
		}
		return SerialDate(f), true
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func parseYear(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	y, _ := strconv.Atoi(s)
	return y, y >= 1000
}

// SerialDate converts a spreadsheet serial day number to noon UTC of that day
func SerialDate(serial float64) time.Time {
	return serialEpoch.AddDate(0, 0, int(math.Floor(serial)))
}

// Row builds a canonical post from one raw row. It returns false when the row
// has no parseable date.
func Row(cells []string, idx ColumnIndex) (entity.Post, bool) {
	date, ok := ParseDate(idx.Get(cells, FieldDate))
	if !ok {
		return entity.Post{}, false
	}

	p := entity.Post{
		ID:              idx.Get(cells, FieldID),
		Date:            date,
		Title:           idx.Get(cells, FieldTitle),
		Sent:            Count(cells, idx, FieldSent),
		Delivered:       Count(cells, idx, FieldDelivered),
		TotalOpens:      Count(cells, idx, FieldTotalOpens),
		UniqueOpens:     Count(cells, idx, FieldUniqueOpens),
		UniqueClicks:    Count(cells, idx, FieldUniqueClicks),
		VerifiedClicks:  Count(cells, idx, FieldVerifiedClicks),
		Unsubscribed:    Count(cells, idx, FieldUnsubscribed),
		OpenRate:        ParsePercent(idx.Get(cells, FieldOpenRate)),
		CTR:             ParsePercent(idx.Get(cells, FieldCTR)),
		VerifiedCTR:     ParsePercent(idx.Get(cells, FieldVerifiedCTR)),
		DeliveryRate:    ParsePercent(idx.Get(cells, FieldDeliveryRate)),
		UnsubscribeRate: ParsePercent(idx.Get(cells, FieldUnsubscribeRate)),
	}
	if tags := idx.Get(cells, FieldContentTags); tags != "" {
		p.ContentTags = &tags
	}
	return p, true
}

// Count returns the parsed count for a field, or 0
func Count(cells []string, idx ColumnIndex, f Field) int64 {
	n, _ := ParseCount(idx.Get(cells, f))
	return n
}

func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		return ""
	}
	return strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(s)
}
