package entity

// Metric names a tracked post field
type Metric string

const (
	MetricOpenRate        Metric = "open_rate"
	MetricCTR             Metric = "ctr"
	MetricVerifiedCTR     Metric = "verified_ctr"
	MetricDeliveryRate    Metric = "delivery_rate"
	MetricUnsubscribeRate Metric = "unsubscribe_rate"

	MetricSent           Metric = "sent"
	MetricDelivered      Metric = "delivered"
	MetricTotalOpens     Metric = "total_opens"
	MetricUniqueOpens    Metric = "unique_opens"
	MetricUniqueClicks   Metric = "unique_clicks"
	MetricVerifiedClicks Metric = "verified_clicks"
	MetricUnsubscribed   Metric = "unsubscribed"
)

// Metrics lists every known metric
var Metrics = []Metric{
	MetricOpenRate, MetricCTR, MetricVerifiedCTR, MetricDeliveryRate, MetricUnsubscribeRate,
	MetricSent, MetricDelivered, MetricTotalOpens, MetricUniqueOpens,
	MetricUniqueClicks, MetricVerifiedClicks, MetricUnsubscribed,
}

// ParseMetric validates a metric name
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", ErrUnknownMetric
}

// IsRate reports whether the metric is a percentage rather than a count
func (m Metric) IsRate() bool {
	switch m {
	case MetricOpenRate, MetricCTR, MetricVerifiedCTR, MetricDeliveryRate, MetricUnsubscribeRate:
		return true
	default:
		return false
	}
}

// PostValue extracts the metric from a single post. A rate the source did not
// report is derived from the post's own counts when its denominator is non-zero.
func (m Metric) PostValue(p Post) *float64 {
	switch m {
	case MetricOpenRate:
		return rateOr(p.OpenRate, p.UniqueOpens, p.Delivered)
	case MetricCTR:
		return rateOr(p.CTR, p.UniqueClicks, p.UniqueOpens)
	case MetricVerifiedCTR:
		return rateOr(p.VerifiedCTR, p.VerifiedClicks, p.UniqueOpens)
	case MetricDeliveryRate:
		return rateOr(p.DeliveryRate, p.Delivered, p.Sent)
	case MetricUnsubscribeRate:
		return rateOr(p.UnsubscribeRate, p.Unsubscribed, p.Delivered)
	}
	if v, ok := m.count(p.Sent, p.Delivered, p.TotalOpens, p.UniqueOpens, p.UniqueClicks, p.VerifiedClicks, p.Unsubscribed); ok {
		return &v
	}
	return nil
}

// AggregateValue extracts the metric from an aggregate
func (m Metric) AggregateValue(a AggregateResult) *float64 {
	switch m {
	case MetricOpenRate:
		return a.OpenRate
	case MetricCTR:
		return a.CTR
	case MetricVerifiedCTR:
		return a.VerifiedCTR
	case MetricDeliveryRate:
		return a.DeliveryRate
	case MetricUnsubscribeRate:
		return a.UnsubscribeRate
	}
	if v, ok := m.count(a.Sent, a.Delivered, a.TotalOpens, a.UniqueOpens, a.UniqueClicks, a.VerifiedClicks, a.Unsubscribed); ok {
		return &v
	}
	return nil
}

func (m Metric) count(sent, delivered, totalOpens, uniqueOpens, uniqueClicks, verifiedClicks, unsubscribed int64) (float64, bool) {
	switch m {
	case MetricSent:
		return float64(sent), true
	case MetricDelivered:
		return float64(delivered), true
	case MetricTotalOpens:
		return float64(totalOpens), true
	case MetricUniqueOpens:
		return float64(uniqueOpens), true
	case MetricUniqueClicks:
		return float64(uniqueClicks), true
	case MetricVerifiedClicks:
		return float64(verifiedClicks), true
	case MetricUnsubscribed:
		return float64(unsubscribed), true
	default:
		return 0, false
	}
}

// Ratio returns num/den*100, or nil when den is zero
func Ratio(num, den int64) *float64 {
	if den == 0 {
		return nil
	}
	v := float64(num) / float64(den) * 100
	return &v
}

func rateOr(stored *float64, num, den int64) *float64 {
	if stored != nil {
		return stored
	}
	return Ratio(num, den)
}
