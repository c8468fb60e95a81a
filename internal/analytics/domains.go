package analytics

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storeconsole/internal/analytics/engine"
	"github.com/angelmondragon/storeconsole/internal/analytics/types"
	"github.com/angelmondragon/storeconsole/internal/events"
	"github.com/angelmondragon/storeconsole/pkg/enums"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
)

const unknownEventType = "unknown"

func ofType(t ...enums.EventType) events.Filter {
	return events.Filter{Types: t}
}

// count stores the windowed count of f into dst.
func (s *service) count(dst *int64, r request, f events.Filter) func(context.Context) error {
	f.Window = r.opts.Window
	return func(ctx context.Context) error {
		n, err := s.counter.Count(ctx, r.owner, f)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

// countToday stores the count of f since midnight UTC into dst. A window that
// ends before today leaves dst at zero without querying.
func (s *service) countToday(dst *int64, r request, f events.Filter) func(context.Context) error {
	f.Window = r.opts.Window
	return func(ctx context.Context) error {
		if !r.todayOK {
			return nil
		}
		n, err := s.counter.CountSince(ctx, r.owner, f, r.today)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

// recent reads up to limit matching events, newest first.
func (s *service) recent(ctx context.Context, r request, f events.Filter, limit int) ([]events.Event, error) {
	f.Window = r.opts.Window
	out, err := s.source.Query(ctx, r.owner, events.Query{Filter: f, Order: events.OrderReverse, Limit: limit})
	if err != nil {
		if pkgerrors.As(err) == nil {
			return nil, pkgerrors.Unavailable(err, "query events")
		}
		return nil, err
	}
	return out, nil
}

// latestString stores attribute key of the newest event of type t into dst.
func (s *service) latestString(dst *string, r request, t enums.EventType, key string) func(context.Context) error {
	return func(ctx context.Context) error {
		latest, err := s.recent(ctx, r, ofType(t), 1)
		if err != nil {
			return err
		}
		if len(latest) == 0 {
			return nil
		}
		if v, ok := latest[0].String(key); ok {
			*dst = v
		}
		return nil
	}
}

func (s *service) orderTasks(r request, stats *types.OrderStats) []task {
	return []task{
		mandatory("total_orders", s.count(&stats.TotalOrders, r, ofType(enums.EventOrderCreated))),
		optional(s.countToday(&stats.OrdersToday, r, ofType(enums.EventOrderCreated)), "orders_today"),
		optional(s.count(&stats.Delivered, r, ofType(enums.EventMarkDelivered)), "delivered"),
		optional(s.count(&stats.Canceled, r, ofType(enums.EventOrderCanceled)), "canceled"),
		optional(func(ctx context.Context) error {
			orders, err := s.recent(ctx, r, ofType(enums.EventOrderCreated), s.cfg.RecentLookback)
			if err != nil {
				return err
			}
			stats.Revenue = sumAmounts(orders, "amount")
			return nil
		}, "revenue"),
		optional(func(ctx context.Context) error {
			stream, err := s.recent(ctx, r, events.Filter{}, s.cfg.RecentLookback)
			if err != nil {
				return err
			}
			if top, ok := engine.MostCommon(stream, engine.EventTypeKey); ok {
				stats.MostCommonType = top
			}
			return nil
		}, "most_common_type"),
		optional(s.latestString(&stats.LatestTrackingNumber, r, enums.EventMarkShipped, "tracking_number"), "latest_tracking_number"),
	}
}

func (s *service) couponTasks(r request, stats *types.CouponStats) []task {
	return []task{
		mandatory("total_coupons", s.count(&stats.TotalCoupons, r, ofType(enums.EventCreateCoupon))),
		optional(s.count(&stats.ActiveCoupons, r, events.Filter{
			Types: []enums.EventType{enums.EventCreateCoupon},
			Flag:  &events.FlagFilter{Key: "active", Value: true},
		}), "active_coupons"),
		optional(s.count(&stats.Redemptions, r, ofType(enums.EventRedeemCoupon)), "redemptions"),
		optional(s.countToday(&stats.RedemptionsToday, r, ofType(enums.EventRedeemCoupon)), "redemptions_today"),
		optional(func(ctx context.Context) error {
			redemptions, err := s.recent(ctx, r, ofType(enums.EventRedeemCoupon), s.cfg.RecentLookback)
			if err != nil {
				return err
			}
			stats.TopCoupons = toGroupStats(engine.TopN(redemptions, engine.PayloadKey("coupon_id"), engine.PayloadNumber("discount_amount"), r.opts.TopN))
			return nil
		}, "top_coupons"),
	}
}

func (s *service) promotionTasks(r request, stats *types.PromotionStats) []task {
	return []task{
		mandatory("total_promotions", s.count(&stats.TotalPromotions, r, ofType(enums.EventCreatePromotion))),
		optional(s.count(&stats.ActivePromotions, r, events.Filter{
			Types: []enums.EventType{enums.EventCreatePromotion},
			Flag:  &events.FlagFilter{Key: "active", Value: true},
		}), "active_promotions"),
		optional(s.count(&stats.HighDiscountPromotions, r, events.Filter{
			Types:   []enums.EventType{enums.EventCreatePromotion},
			Numeric: &events.NumericFilter{Key: "discount_percent", Op: events.OpGte, Value: r.opts.HighDiscountPercent},
		}), "high_discount_promotions"),
		optional(s.countToday(&stats.PromotionsToday, r, ofType(enums.EventCreatePromotion)), "promotions_today"),
		optional(s.latestString(&stats.MostRecentPromotion, r, enums.EventCreatePromotion, "name"), "most_recent_promotion"),
	}
}

func (s *service) reviewTasks(r request, stats *types.ReviewStats) []task {
	return []task{
		mandatory("total_reviews", s.count(&stats.TotalReviews, r, ofType(enums.EventCreateReview))),
		optional(s.countToday(&stats.ReviewsToday, r, ofType(enums.EventCreateReview)), "reviews_today"),
		optional(func(ctx context.Context) error {
			reviews, err := s.recent(ctx, r, ofType(enums.EventCreateReview), s.cfg.RecentLookback)
			if err != nil {
				return err
			}
			hist, inRange := engine.Histogram(reviews, engine.RatingBuckets, engine.IntegerBucket("rating"))
			stats.RatingHistogram = hist
			stats.FetchedReviews = int64(len(reviews))
			stats.RatedReviews = inRange
			if inRange > 0 {
				var sum int64
				for bucket, n := range hist {
					sum += int64(bucket) * n
				}
				stats.AverageRating = float64(sum) / float64(inRange)
			}
			stats.TopProducts = toGroupStats(engine.TopN(reviews, engine.PayloadKey("product_id"), engine.PayloadNumber("rating"), r.opts.TopN))
			return nil
		}, "rating_histogram", "fetched_reviews", "rated_reviews", "average_rating", "top_products"),
	}
}

func (s *service) communicationTasks(r request, stats *types.CommunicationStats) []task {
	return []task{
		mandatory("messages", func(ctx context.Context) error {
			stream, err := s.recent(ctx, r, ofType(enums.EventSendMessage), r.opts.Lookback)
			if err != nil {
				return err
			}
			// Pairs split by the look-back cut are lost; the undercount is accepted.
			res, err := engine.PairPartitioned(ctx, engine.PartitionByConversation(stream), s.cfg.SLAThreshold)
			if err != nil {
				return err
			}
			for _, p := range res.Pairings {
				s.metrics.ObserveResponseLatency(p.Latency)
			}
			stats.Messages = len(stream)
			stats.Truncated = len(stream) >= r.opts.Lookback
			stats.Conversations = res.Conversations
			stats.AverageResponseSeconds = res.AverageLatency.Seconds()
			stats.SLAHitRate = res.SLAHitRate
			stats.Pairings = len(res.Pairings)
			stats.InitiatorMessages = res.InitiatorCount
			stats.PendingConversations = res.PendingConversations
			return nil
		}),
		optional(s.count(&stats.TotalMessages, r, ofType(enums.EventSendMessage)), "total_messages"),
		optional(s.countToday(&stats.MessagesToday, r, ofType(enums.EventSendMessage)), "messages_today"),
	}
}

func emptyRatingHistogram() map[int]int64 {
	hist := make(map[int]int64, len(engine.RatingBuckets))
	for _, b := range engine.RatingBuckets {
		hist[b] = 0
	}
	return hist
}

func toGroupStats(in []engine.GroupStat) []types.GroupStat {
	out := make([]types.GroupStat, 0, len(in))
	for _, g := range in {
		out = append(out, types.GroupStat{Key: g.Key, Count: g.Count, Average: g.Average})
	}
	return out
}

// sumAmounts adds the non-negative decimal amounts found under key.
func sumAmounts(stream []events.Event, key string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range stream {
		amount, ok := decimalAmount(e, key)
		if !ok || amount.IsNegative() {
			continue
		}
		total = total.Add(amount)
	}
	return total
}

func decimalAmount(e events.Event, key string) (decimal.Decimal, bool) {
	switch v := e.Payload[key].(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	default:
		return decimal.Decimal{}, false
	}
}
