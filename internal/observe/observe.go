// Package observe records per-request verification metrics. Sinks receive
// one Event per verification and never influence the result.
package observe

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
)

// Event summarizes one completed verification
type Event struct {
	ClaimID          string
	Strategy         model.Strategy
	Verdict          model.Verdict
	Confidence       float64
	Latency          time.Duration
	CacheHit         bool
	EvidenceCount    int
	Failures         map[string]int // failure kind -> count
	DeadlineExceeded bool
}

// Sink consumes verification events
type Sink interface {
	Record(ctx context.Context, ev Event)
}

// Nop discards events
type Nop struct{}

func (Nop) Record(context.Context, Event) {}

// Multi fans an event out to every sink in order
type Multi []Sink

func (m Multi) Record(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Record(ctx, ev)
		}
	}
}

// LogSink writes one structured log line per event
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(_ context.Context, ev Event) {
	fields := []zap.Field{
		zap.String("claim_id", ev.ClaimID),
		zap.String("strategy", string(ev.Strategy)),
		zap.String("verdict", string(ev.Verdict)),
		zap.Float64("confidence", ev.Confidence),
		zap.Duration("latency", ev.Latency),
		zap.Bool("cache_hit", ev.CacheHit),
		zap.Int("evidence", ev.EvidenceCount),
	}
	if len(ev.Failures) > 0 {
		fields = append(fields, zap.Any("failures", ev.Failures))
	}
	if ev.DeadlineExceeded {
		fields = append(fields, zap.Bool("deadline_exceeded", true))
	}
	s.logger.Info("verification completed", fields...)
}

// failureKinds returns the keys of m in sorted order
func failureKinds(m map[string]int) []string {
	kinds := make([]string, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func cacheLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
