package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storeconsole/internal/events"
	"github.com/angelmondragon/storeconsole/pkg/enums"
)

// SnapshotOptions tunes one snapshot request. Zero values take configured defaults.
type SnapshotOptions struct {
	Window              *events.Window `json:"window,omitempty"`
	TopN                int            `json:"top_n" validate:"gte=0,lte=50"`
	Lookback            int            `json:"lookback" validate:"gte=0,lte=5000"`
	HighDiscountPercent float64        `json:"high_discount_percent" validate:"gte=0,lte=100"`
}

// Snapshot is the point-in-time statistics for one owner and domain.
type Snapshot struct {
	Owner       string              `json:"owner"`
	Domain      enums.MetricsDomain `json:"domain"`
	GeneratedAt time.Time           `json:"generated_at"`
	Window      *events.Window      `json:"window,omitempty"`
	// Degraded lists optional fields that fell back to their default value.
	Degraded []string `json:"degraded"`
	Data     any      `json:"data"`
}

// GroupStat is one ranked group in a top-N list.
type GroupStat struct {
	Key     string  `json:"key"`
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}

type OrderStats struct {
	TotalOrders          int64           `json:"total_orders"`
	OrdersToday          int64           `json:"orders_today"`
	Delivered            int64           `json:"delivered"`
	Canceled             int64           `json:"canceled"`
	Revenue              decimal.Decimal `json:"revenue"`
	MostCommonType       string          `json:"most_common_type"`
	LatestTrackingNumber string          `json:"latest_tracking_number"`
}

type CouponStats struct {
	TotalCoupons     int64       `json:"total_coupons"`
	ActiveCoupons    int64       `json:"active_coupons"`
	Redemptions      int64       `json:"redemptions"`
	RedemptionsToday int64       `json:"redemptions_today"`
	TopCoupons       []GroupStat `json:"top_coupons"`
}

type PromotionStats struct {
	TotalPromotions        int64  `json:"total_promotions"`
	ActivePromotions       int64  `json:"active_promotions"`
	HighDiscountPromotions int64  `json:"high_discount_promotions"`
	PromotionsToday        int64  `json:"promotions_today"`
	MostRecentPromotion    string `json:"most_recent_promotion"`
}

// ReviewStats covers the most recent reviews. FetchedReviews counts every
// review read; RatedReviews only those whose rating landed in the histogram.
type ReviewStats struct {
	TotalReviews    int64         `json:"total_reviews"`
	ReviewsToday    int64         `json:"reviews_today"`
	RatingHistogram map[int]int64 `json:"rating_histogram"`
	FetchedReviews  int64         `json:"fetched_reviews"`
	RatedReviews    int64         `json:"rated_reviews"`
	AverageRating   float64       `json:"average_rating"`
	TopProducts     []GroupStat   `json:"top_products"`
}

// CommunicationStats summarizes chat activity and reply latency over the most
// recent messages. Pairs split by the look-back cut are not counted.
type CommunicationStats struct {
	Messages               int     `json:"messages"`
	Truncated              bool    `json:"truncated"`
	TotalMessages          int64   `json:"total_messages"`
	MessagesToday          int64   `json:"messages_today"`
	Conversations          int     `json:"conversations"`
	AverageResponseSeconds float64 `json:"average_response_seconds"`
	SLAHitRate             int     `json:"sla_hit_rate"`
	Pairings               int     `json:"pairings"`
	InitiatorMessages      int     `json:"initiator_messages"`
	PendingConversations   int     `json:"pending_conversations"`
}
