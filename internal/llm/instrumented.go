package llm

import (
	"context"
	"log"
	"time"

	"meal-scheduler/internal/shared"
)

// UsageRecorder persists per-call usage records. Implemented by the metrics
// store.
type UsageRecorder interface {
	Record(meta shared.AgentMeta) error
}

// InstrumentedGenerator wraps a TextGenerator and records token usage and
// latency for every call under a fixed caller name.
type InstrumentedGenerator struct {
	inner    TextGenerator
	recorder UsageRecorder
	caller   string
}

// NewInstrumentedGenerator decorates inner so each call is recorded against
// caller. A nil recorder disables recording.
func NewInstrumentedGenerator(inner TextGenerator, recorder UsageRecorder, caller string) *InstrumentedGenerator {
	return &InstrumentedGenerator{inner: inner, recorder: recorder, caller: caller}
}

func (g *InstrumentedGenerator) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	start := time.Now()
	resp, err := g.inner.GenerateContent(ctx, prompt)
	if err != nil {
		return resp, err
	}

	if g.recorder != nil {
		meta := shared.AgentMeta{
			AgentName: g.caller,
			Usage:     resp.Usage,
			Latency:   time.Since(start),
		}
		if recErr := g.recorder.Record(meta); recErr != nil {
			log.Printf("failed to record llm usage for %s: %v", g.caller, recErr)
		}
	}
	return resp, nil
}

// Close releases the wrapped generator when it holds resources.
func (g *InstrumentedGenerator) Close() error {
	if c, ok := g.inner.(Closer); ok {
		return c.Close()
	}
	return nil
}
