package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingProcessor struct {
	cycles atomic.Int64
	err    error
}

func (p *countingProcessor) RunCycle(ctx context.Context) error {
	p.cycles.Add(1)
	return p.err
}

func Test_RunTicks(t *testing.T) {
	proc := &countingProcessor{}
	w := New(Config{Name: "test-worker", Interval: 10 * time.Millisecond, Processor: proc})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	assert.Greater(t, proc.cycles.Load(), int64(1))
}

func Test_RunFirstCycleIsImmediate(t *testing.T) {
	proc := &countingProcessor{}
	w := New(Config{Name: "test-worker", Interval: time.Hour, Processor: proc})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	assert.Equal(t, int64(1), proc.cycles.Load())
}

func Test_RunKeepsGoingAfterCycleError(t *testing.T) {
	proc := &countingProcessor{err: errors.New("cycle failed")}
	w := New(Config{Name: "test-worker", Interval: 10 * time.Millisecond, Processor: proc})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	assert.Greater(t, proc.cycles.Load(), int64(1))
}
