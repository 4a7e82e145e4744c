package acquire

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/pulse"
)

// MinBatchSamples is the smallest batch a Batcher emits. Shorter tails are
// dropped because the derivative filter needs a full window.
const MinBatchSamples = 16

// ParseLine parses one `time,value` line from the sensor. Whitespace and
// extra columns are tolerated.
func ParseLine(line string) (t, v float64, err error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("want time,value, got %q", line)
	}
	return parsePair(fields[0], fields[1])
}

// BatcherStats counts what a Batcher has seen.
type BatcherStats struct {
	Lines     int
	Malformed int
	OutOfStep int
	Batches   int
	Dropped   int
}

// Batcher groups streamed samples into fixed-duration batches. Each
// emitted batch is rebased so its first sample is at t=0, the same shape a
// recording file has.
type Batcher struct {
	BatchSeconds float64
	Scale        float64

	times  []float64
	values []float64
	lastT  float64
	stats  BatcherStats
}

// NewBatcher creates a Batcher emitting batches of batchSeconds.
func NewBatcher(batchSeconds, scale float64) (*Batcher, error) {
	if !(batchSeconds > 0) {
		return nil, fmt.Errorf("batch duration must be positive, got %g", batchSeconds)
	}
	return &Batcher{BatchSeconds: batchSeconds, Scale: unitScale(scale)}, nil
}

// Stats returns the running counters.
func (b *Batcher) Stats() BatcherStats { return b.stats }

// Add consumes one line and returns a completed batch when the buffered
// span reaches BatchSeconds. The sample that completes a batch starts the
// next one.
func (b *Batcher) Add(line string) (pulse.Batch, bool) {
	b.stats.Lines++
	t, v, err := ParseLine(line)
	if err != nil {
		b.stats.Malformed++
		return pulse.Batch{}, false
	}
	if len(b.times) > 0 && t <= b.lastT {
		b.stats.OutOfStep++
		return pulse.Batch{}, false
	}
	b.lastT = t

	var out pulse.Batch
	ready := false
	if len(b.times) > 0 && t-b.times[0] >= b.BatchSeconds {
		out, ready = b.Flush()
	}
	b.times = append(b.times, t)
	b.values = append(b.values, v*b.Scale)
	return out, ready
}

// Flush emits whatever is buffered, provided it is at least
// MinBatchSamples long, and clears the buffer.
func (b *Batcher) Flush() (pulse.Batch, bool) {
	defer func() {
		b.times, b.values = nil, nil
	}()
	if len(b.times) < MinBatchSamples {
		if len(b.times) > 0 {
			b.stats.Dropped += len(b.times)
		}
		return pulse.Batch{}, false
	}
	t0 := b.times[0]
	out := pulse.Batch{Times: make([]float64, len(b.times)), Values: b.values}
	for i, t := range b.times {
		out.Times[i] = t - t0
	}
	b.stats.Batches++
	return out, true
}

var logf = monitoring.Prefixed("acquire")

// Run feeds lines into the batcher and sends completed batches on out
// until lines is closed or ctx is done. The partial batch is flushed when
// lines closes. out is closed on return.
func (b *Batcher) Run(ctx context.Context, lines <-chan string, out chan<- pulse.Batch) error {
	defer close(out)
	defer func() {
		s := b.stats
		if s.Malformed > 0 || s.OutOfStep > 0 || s.Dropped > 0 {
			logf("%d lines: %d malformed, %d out of step, %d samples dropped",
				s.Lines, s.Malformed, s.OutOfStep, s.Dropped)
		}
	}()

	send := func(batch pulse.Batch) error {
		select {
		case out <- batch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if batch, ready := b.Flush(); ready {
					return send(batch)
				}
				return nil
			}
			if batch, ready := b.Add(line); ready {
				if err := send(batch); err != nil {
					return err
				}
			}
		}
	}
}

// IsStopped reports whether err only signals a cancelled capture.
func IsStopped(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
