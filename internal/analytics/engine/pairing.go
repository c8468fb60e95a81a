package engine

import (
	"context"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storeconsole/internal/events"
	"github.com/angelmondragon/storeconsole/pkg/enums"
)

// Pairing matches one responder event to the initiator event it answered.
type Pairing struct {
	ConversationID string        `json:"conversation_id"`
	InitiatorID    string        `json:"initiator_id"`
	ResponderID    string        `json:"responder_id"`
	InitiatedAt    time.Time     `json:"initiated_at"`
	RespondedAt    time.Time     `json:"responded_at"`
	Latency        time.Duration `json:"latency"`
}

// ResponseStats aggregates the pairings found in a conversation stream.
type ResponseStats struct {
	Pairings             []Pairing     `json:"-"`
	Conversations        int           `json:"conversations"`
	InitiatorCount       int           `json:"initiator_count"`
	ResponderCount       int           `json:"responder_count"`
	UnmatchedResponders  int           `json:"unmatched_responders"`
	PendingConversations int           `json:"pending_conversations"`
	AverageLatency       time.Duration `json:"average_latency"`
	SLAHits              int           `json:"sla_hits"`
	// SLAHitRate is the rounded percentage of initiator events answered within the threshold.
	SLAHitRate int `json:"sla_hit_rate"`
}

// PairResponses runs one chronological pass over stream. Each responder event
// is paired with the latest unanswered initiator event of its conversation; a
// new initiator replaces an unanswered one and a matched initiator is consumed.
// Input order does not matter: events are sorted by (Timestamp, ID) first.
func PairResponses(stream []events.Event, sla time.Duration) ResponseStats {
	ordered := chronological(stream)
	pass := pairPass(ordered)
	return pass.summarize(sla)
}

// PairPartitioned pairs each conversation concurrently. Partitions must not
// share conversations; the result equals PairResponses over their union.
func PairPartitioned(ctx context.Context, partitions map[string][]events.Event, sla time.Duration) (ResponseStats, error) {
	keys := make([]string, 0, len(partitions))
	for key := range partitions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]passResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = pairPass(chronological(partitions[key]))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ResponseStats{}, err
	}

	var merged passResult
	for _, r := range results {
		merged.pairings = append(merged.pairings, r.pairings...)
		merged.conversations += r.conversations
		merged.initiators += r.initiators
		merged.responders += r.responders
		merged.unmatched += r.unmatched
		merged.pending += r.pending
	}
	sort.SliceStable(merged.pairings, func(i, j int) bool {
		a, b := merged.pairings[i], merged.pairings[j]
		if !a.RespondedAt.Equal(b.RespondedAt) {
			return a.RespondedAt.Before(b.RespondedAt)
		}
		return a.ResponderID < b.ResponderID
	})
	return merged.summarize(sla), nil
}

// PartitionByConversation groups conversational events by conversation id.
func PartitionByConversation(stream []events.Event) map[string][]events.Event {
	out := make(map[string][]events.Event)
	for _, e := range stream {
		if !e.Conversational() {
			continue
		}
		out[e.ConversationID] = append(out[e.ConversationID], e)
	}
	return out
}

type passResult struct {
	pairings      []Pairing
	conversations int
	initiators    int
	responders    int
	unmatched     int
	pending       int
}

func pairPass(ordered []events.Event) passResult {
	var res passResult
	lastInitiator := make(map[string]events.Event)
	seen := make(map[string]struct{})

	for _, e := range ordered {
		if !e.Conversational() {
			continue
		}
		seen[e.ConversationID] = struct{}{}

		switch e.Role {
		case enums.RoleInitiator:
			res.initiators++
			lastInitiator[e.ConversationID] = e
		case enums.RoleResponder:
			res.responders++
			li, ok := lastInitiator[e.ConversationID]
			if !ok {
				res.unmatched++
				continue
			}
			latency := e.Timestamp.Sub(li.Timestamp)
			if latency < 0 {
				res.unmatched++
				continue
			}
			res.pairings = append(res.pairings, Pairing{
				ConversationID: e.ConversationID,
				InitiatorID:    li.ID,
				ResponderID:    e.ID,
				InitiatedAt:    li.Timestamp,
				RespondedAt:    e.Timestamp,
				Latency:        latency,
			})
			delete(lastInitiator, e.ConversationID)
		}
	}

	res.conversations = len(seen)
	res.pending = len(lastInitiator)
	return res
}

func (r passResult) summarize(sla time.Duration) ResponseStats {
	stats := ResponseStats{
		Pairings:             r.pairings,
		Conversations:        r.conversations,
		InitiatorCount:       r.initiators,
		ResponderCount:       r.responders,
		UnmatchedResponders:  r.unmatched,
		PendingConversations: r.pending,
	}
	if stats.Pairings == nil {
		stats.Pairings = []Pairing{}
	}
	if len(r.pairings) > 0 {
		var total time.Duration
		for _, p := range r.pairings {
			total += p.Latency
			if p.Latency <= sla {
				stats.SLAHits++
			}
		}
		stats.AverageLatency = total / time.Duration(len(r.pairings))
	}
	if r.initiators > 0 {
		stats.SLAHitRate = int(math.Round(100 * float64(stats.SLAHits) / float64(r.initiators)))
	}
	return stats
}

// chronological returns a sorted copy; ties on timestamp are broken by id.
func chronological(stream []events.Event) []events.Event {
	ordered := make([]events.Event, len(stream))
	copy(ordered, stream)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
	return ordered
}
