// Package normalize converts raw source rows into canonical records.
// Column and sheet names from every source go through the same alias lookup.
package normalize

import (
	"strings"
	"unicode"
)

// Field is a logical column of a canonical record
type Field string

const (
	FieldID              Field = "id"
	FieldDate            Field = "date"
	FieldTitle           Field = "title"
	FieldSent            Field = "sent"
	FieldDelivered       Field = "delivered"
	FieldTotalOpens      Field = "total_opens"
	FieldUniqueOpens     Field = "unique_opens"
	FieldUniqueClicks    Field = "unique_clicks"
	FieldVerifiedClicks  Field = "verified_clicks"
	FieldUnsubscribed    Field = "unsubscribed"
	FieldOpenRate        Field = "open_rate"
	FieldCTR             Field = "ctr"
	FieldVerifiedCTR     Field = "verified_ctr"
	FieldDeliveryRate    Field = "delivery_rate"
	FieldUnsubscribeRate Field = "unsubscribe_rate"
	FieldContentTags     Field = "content_tags"

	FieldSubscribed        Field = "subscribed"
	FieldNet               Field = "net"
	FieldActiveSubscribers Field = "active_subscribers"
)

// Aliases maps each logical field to the header spellings sources use for it.
// Earlier aliases win when a header row contains more than one.
type Aliases struct {
	order   []Field
	aliases map[Field][]string
}

// NewAliases builds a lookup table. Fields are resolved in the order given.
func NewAliases(entries ...AliasEntry) *Aliases {
	a := &Aliases{aliases: make(map[Field][]string, len(entries))}
	for _, e := range entries {
		a.order = append(a.order, e.Field)
		keys := make([]string, len(e.Names))
		for i, n := range e.Names {
			keys[i] = Key(n)
		}
		a.aliases[e.Field] = keys
	}
	return a
}

// AliasEntry lists the accepted names of one field
type AliasEntry struct {
	Field Field
	Names []string
}

// PostColumns resolves post export headers
var PostColumns = NewAliases(
	AliasEntry{FieldDate, []string{"Date", "Send Date", "Sent At", "Sent Date", "Publish Date", "Published At", "Scheduled At"}},
	AliasEntry{FieldTitle, []string{"Subject or Title", "Subject", "Title", "Subject Line", "Campaign Name", "Name"}},
	AliasEntry{FieldID, []string{"Post ID", "ID", "Campaign ID"}},
	AliasEntry{FieldSent, []string{"Sent", "Emails Sent", "Total Sent", "Recipients"}},
	AliasEntry{FieldDelivered, []string{"Delivered", "Total Delivered", "Emails Delivered"}},
	AliasEntry{FieldTotalOpens, []string{"Total Opens", "Opens"}},
	AliasEntry{FieldUniqueOpens, []string{"Unique Opens", "Opened", "Unique Opened"}},
	AliasEntry{FieldVerifiedClicks, []string{"Verified Clicks", "Unique Verified Clicks", "Verified Unique Clicks"}},
	AliasEntry{FieldUniqueClicks, []string{"Unique Clicks", "Total Unique Clicks", "Clicked", "Clicks"}},
	AliasEntry{FieldUnsubscribed, []string{"Unsubscribed", "Unsubscribes", "Unsubscribe"}},
	AliasEntry{FieldOpenRate, []string{"Open Rate", "Unique Open Rate", "Open %"}},
	AliasEntry{FieldVerifiedCTR, []string{"Verified Click Rate", "Verified CTR", "Verified Click Through Rate"}},
	AliasEntry{FieldCTR, []string{"Click Rate", "CTR", "Click Through Rate", "Unique Click Rate", "Click %"}},
	AliasEntry{FieldDeliveryRate, []string{"Delivery Rate", "Delivered %"}},
	AliasEntry{FieldUnsubscribeRate, []string{"Unsubscribe Rate", "Unsub Rate", "Unsubscribe %"}},
	AliasEntry{FieldContentTags, []string{"Content Tags", "Tags"}},
)

// GrowthColumns resolves monthly subscriber flow headers
var GrowthColumns = NewAliases(
	AliasEntry{FieldDate, []string{"Month", "Date", "Period"}},
	AliasEntry{FieldSubscribed, []string{"Subscribed", "New Subscribers", "Subscriptions", "Gained"}},
	AliasEntry{FieldUnsubscribed, []string{"Unsubscribed", "Unsubscribes", "Lost", "Churned"}},
	AliasEntry{FieldNet, []string{"Net", "Net Growth", "Net Change"}},
)

// AudienceColumns resolves subscriber count snapshot headers
var AudienceColumns = NewAliases(
	AliasEntry{FieldDate, []string{"Date", "As Of", "Snapshot Date"}},
	AliasEntry{FieldActiveSubscribers, []string{"Active Subscribers", "Active Subscriptions", "Total Active Subscribers", "Subscribers", "Count"}},
)

// ColumnIndex maps resolved fields to header positions
type ColumnIndex map[Field]int

// Resolve locates every known field in a header row
func (a *Aliases) Resolve(header []string) ColumnIndex {
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = Key(h)
	}

	idx := make(ColumnIndex)
	taken := make(map[int]bool)
	for _, f := range a.order {
		for _, alias := range a.aliases[f] {
			pos := -1
			for i, k := range keys {
				if k == alias && !taken[i] {
					pos = i
					break
				}
			}
			if pos >= 0 {
				idx[f] = pos
				taken[pos] = true
				break
			}
		}
	}
	return idx
}

// Fields returns the fields of the table in resolution order
func (a *Aliases) Fields() []Field {
	return a.order
}

// Has reports whether the field was found in the header
func (c ColumnIndex) Has(f Field) bool {
	_, ok := c[f]
	return ok
}

// Get returns the trimmed cell for a field, or "" when absent
func (c ColumnIndex) Get(cells []string, f Field) string {
	i, ok := c[f]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

// Matches reports whether name equals any alias after key normalization
func Matches(name string, aliases ...string) bool {
	k := Key(name)
	for _, a := range aliases {
		if k == Key(a) {
			return true
		}
	}
	return false
}

// Key normalizes a column or sheet name: lower case, with every run of
// whitespace, hyphens and underscores collapsed to a single underscore.
func Key(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	sep := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
