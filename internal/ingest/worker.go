package ingest

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/storeconsole/internal/events"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
	"github.com/angelmondragon/storeconsole/pkg/logger"
	"github.com/angelmondragon/storeconsole/pkg/metrics"
)

// Receiver delivers Pub/Sub messages until ctx is canceled.
type Receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

// StoreResolver confirms the store an event belongs to exists.
type StoreResolver interface {
	Resolve(ctx context.Context, owner string) error
}

// Guard claims event ids so redelivered messages are acknowledged without a second write.
type Guard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Params wires the worker's collaborators. Mirror and Metrics are optional.
type Params struct {
	Receiver Receiver
	Store    events.Appender
	Mirror   events.Appender
	Stores   StoreResolver
	Guard    Guard
	Metrics  *metrics.IngestMetrics
	Logger   *logger.Logger
}

// Service appends store events received from Pub/Sub.
type Service struct {
	receiver Receiver
	store    events.Appender
	mirror   events.Appender
	stores   StoreResolver
	guard    Guard
	metrics  *metrics.IngestMetrics
	logg     *logger.Logger
}

// NewService validates the params and builds the worker.
func NewService(p Params) (*Service, error) {
	switch {
	case p.Receiver == nil:
		return nil, errors.New("events subscription is required")
	case p.Store == nil:
		return nil, errors.New("event store is required")
	case p.Stores == nil:
		return nil, errors.New("store resolver is required")
	case p.Guard == nil:
		return nil, errors.New("idempotency guard is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{
		receiver: p.Receiver,
		store:    p.Store,
		mirror:   p.Mirror,
		stores:   p.Stores,
		guard:    p.Guard,
		metrics:  p.Metrics,
		logg:     p.Logger,
	}, nil
}

type processResult struct {
	nack      bool
	outcome   string
	eventType string
}

// Run consumes messages until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.receiver.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) (res processResult) {
	started := time.Now()
	logCtx := s.logg.WithField(ctx, "message_id", msg.ID)
	defer func() {
		s.metrics.Observe(res.eventType, res.outcome, time.Since(started))
	}()

	env, err := decodeEnvelope(msg)
	if err != nil {
		s.logg.WarnErr(logCtx, "invalid event envelope", err)
		return processResult{outcome: metrics.OutcomeRejected}
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_id":    env.EventID,
		"event_type":  env.EventType,
		"store_id":    env.StoreID,
		"occurred_at": env.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
	res.eventType = env.EventType

	event, err := env.Event()
	if err != nil {
		s.logg.WarnErr(logCtx, "invalid event payload", err)
		res.outcome = metrics.OutcomeRejected
		return res
	}

	if err := s.stores.Resolve(logCtx, env.StoreID); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.WarnErr(logCtx, "event for unknown store", err)
			res.outcome = metrics.OutcomeRejected
			return res
		}
		s.logg.Error(logCtx, "store lookup failed", err)
		res.outcome, res.nack = metrics.OutcomeFailed, true
		return res
	}

	claimed, err := s.guard.Claim(logCtx, env.EventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		res.outcome, res.nack = metrics.OutcomeFailed, true
		return res
	}
	if !claimed {
		s.logg.Info(logCtx, "event already processed")
		res.outcome = metrics.OutcomeDuplicate
		return res
	}

	if err := s.store.Append(logCtx, event); err != nil {
		switch {
		case errors.Is(err, events.ErrDuplicateEvent):
			s.logg.Info(logCtx, "event already stored")
			res.outcome = metrics.OutcomeDuplicate
			return res
		case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
			s.logg.WarnErr(logCtx, "event rejected by store", err)
			res.outcome = metrics.OutcomeRejected
			return res
		}
		s.logg.Error(logCtx, "append event failed", err)
		if relErr := s.guard.Release(logCtx, env.EventID); relErr != nil {
			s.logg.WarnErr(logCtx, "release idempotency claim failed", relErr)
		}
		res.outcome, res.nack = metrics.OutcomeFailed, true
		return res
	}

	if s.mirror != nil {
		if err := s.mirror.Append(logCtx, event); err != nil {
			s.logg.WarnErr(logCtx, "warehouse mirror failed", err)
		}
	}

	s.logg.Debug(logCtx, "event stored")
	res.outcome = metrics.OutcomeStored
	return res
}
