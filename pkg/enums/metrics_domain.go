package enums

import (
	"fmt"
	"strings"
)

// MetricsDomain names a family of derived statistics.
type MetricsDomain string

const (
	DomainOrders         MetricsDomain = "orders"
	DomainCoupons        MetricsDomain = "coupons"
	DomainPromotions     MetricsDomain = "promotions"
	DomainReviews        MetricsDomain = "reviews"
	DomainCommunications MetricsDomain = "communications"
)

var validMetricsDomains = []MetricsDomain{
	DomainOrders,
	DomainCoupons,
	DomainPromotions,
	DomainReviews,
	DomainCommunications,
}

// String implements fmt.Stringer.
func (d MetricsDomain) String() string {
	return string(d)
}

// IsValid reports whether the value is a known MetricsDomain.
func (d MetricsDomain) IsValid() bool {
	for _, candidate := range validMetricsDomains {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseMetricsDomain converts raw input into a MetricsDomain. Matching is case-insensitive.
func ParseMetricsDomain(value string) (MetricsDomain, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validMetricsDomains {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid metrics domain %q", value)
}
