package engine

import (
	"math"
	"sort"

	"github.com/angelmondragon/storeconsole/internal/events"
)

// RatingBuckets is the closed set of review ratings.
var RatingBuckets = []int{1, 2, 3, 4, 5}

// BucketFunc maps an event to a histogram bucket. ok is false when the event
// carries no usable value.
type BucketFunc func(events.Event) (bucket int, ok bool)

// KeyFunc extracts a grouping key.
type KeyFunc func(events.Event) (string, bool)

// ValueFunc extracts the numeric attribute averaged per group.
type ValueFunc func(events.Event) (float64, bool)

// GroupStat is one row of a TopN ranking.
type GroupStat struct {
	Key     string  `json:"key"`
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}

// Histogram buckets events into the fixed set buckets. Every bucket is present
// in the result; values outside the set are dropped. The second return value is
// the number of events that landed in a bucket.
func Histogram(stream []events.Event, buckets []int, bucketFn BucketFunc) (map[int]int64, int64) {
	hist := make(map[int]int64, len(buckets))
	for _, b := range buckets {
		hist[b] = 0
	}
	var inRange int64
	for _, e := range stream {
		b, ok := bucketFn(e)
		if !ok {
			continue
		}
		if _, known := hist[b]; !known {
			continue
		}
		hist[b]++
		inRange++
	}
	return hist, inRange
}

// IntegerBucket reads a whole-number payload attribute. Fractional and
// non-numeric values miss.
func IntegerBucket(key string) BucketFunc {
	return func(e events.Event) (int, bool) {
		v, ok := e.Number(key)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	}
}

// PayloadKey groups by a string payload attribute.
func PayloadKey(key string) KeyFunc {
	return func(e events.Event) (string, bool) {
		return e.String(key)
	}
}

// PayloadNumber reads a numeric payload attribute.
func PayloadNumber(key string) ValueFunc {
	return func(e events.Event) (float64, bool) {
		v, ok := e.Number(key)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
}

// EventTypeKey groups by event type.
func EventTypeKey(e events.Event) (string, bool) {
	return e.Type.String(), !e.Type.IsZero()
}

type groupAcc struct {
	count  int64
	sum    float64
	valued int64
}

// TopN groups events by keyFn, counts each group and averages valueFn over the
// events that carry a value. Groups are ordered by count descending then key
// ascending and truncated to n. valueFn may be nil.
func TopN(stream []events.Event, keyFn KeyFunc, valueFn ValueFunc, n int) []GroupStat {
	if n <= 0 || len(stream) == 0 {
		return []GroupStat{}
	}

	groups := make(map[string]*groupAcc)
	for _, e := range stream {
		key, ok := keyFn(e)
		if !ok {
			continue
		}
		acc, found := groups[key]
		if !found {
			acc = &groupAcc{}
			groups[key] = acc
		}
		acc.count++
		if valueFn == nil {
			continue
		}
		if v, ok := valueFn(e); ok {
			acc.sum += v
			acc.valued++
		}
	}

	out := make([]GroupStat, 0, len(groups))
	for key, acc := range groups {
		stat := GroupStat{Key: key, Count: acc.count}
		if acc.valued > 0 {
			stat.Average = acc.sum / float64(acc.valued)
		}
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// MostCommon returns the most frequent key, ties going to the smallest key.
func MostCommon(stream []events.Event, keyFn KeyFunc) (string, bool) {
	top := TopN(stream, keyFn, nil, 1)
	if len(top) == 0 {
		return "", false
	}
	return top[0].Key, true
}
