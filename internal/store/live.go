package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/feedlens/internal/cache"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

// Broker is the Pub/Sub subset of cache.Cache.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (*cache.Subscription, error)
}

// LiveAnalysisStore publishes every successfully persisted analysis document
// on the record's channel. A failed publish is logged, never returned: the
// write itself has already succeeded.
type LiveAnalysisStore struct {
	AnalysisStore
	broker Broker
}

func NewLiveAnalysisStore(inner AnalysisStore, broker Broker) *LiveAnalysisStore {
	return &LiveAnalysisStore{AnalysisStore: inner, broker: broker}
}

func (l *LiveAnalysisStore) PutAnalysis(ctx context.Context, a *models.FeedbackAnalysis) error {
	if err := l.AnalysisStore.PutAnalysis(ctx, a); err != nil {
		return err
	}

	payload, err := json.Marshal(a)
	if err != nil {
		slog.Warn("encode analysis update", "feedback_id", a.FeedbackID, "error", err)
		return nil
	}
	if err := l.broker.Publish(ctx, cache.AnalysisChannel(a.FeedbackID), payload); err != nil {
		slog.Warn("publish analysis update", "feedback_id", a.FeedbackID, "error", err)
	}
	return nil
}

// SubscribeAnalysis invokes fn on its own goroutine for each update, in
// publish order. Undecodable payloads are skipped.
func (l *LiveAnalysisStore) SubscribeAnalysis(ctx context.Context, feedbackID string, fn func(*models.FeedbackAnalysis)) (func(), error) {
	sub, err := l.broker.Subscribe(ctx, cache.AnalysisChannel(feedbackID))
	if err != nil {
		return nil, fmt.Errorf("subscribe analysis %s: %w", feedbackID, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-sub.C:
				if !ok {
					return
				}
				var a models.FeedbackAnalysis
				if err := json.Unmarshal(payload, &a); err != nil {
					slog.Warn("decode analysis update", "feedback_id", feedbackID, "error", err)
					continue
				}
				fn(&a)
			}
		}
	}()

	return func() {
		cancel()
		_ = sub.Close()
		<-done
	}, nil
}

var _ Subscriber = (*LiveAnalysisStore)(nil)
