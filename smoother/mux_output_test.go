package smoother

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbroadcast/obe/clock"
	"github.com/openbroadcast/obe/frame"
	"github.com/openbroadcast/obe/queue"
)

func TestMuxOutputRegroupsIntoExactBatchesAndBroadcasts(t *testing.T) {
	bus := clock.NewBus()
	bus.Tick(clock.Ticks(10 * clock.Hz)) // the anchor reads this value; the test advances it after the first batch

	s := NewMuxOutput(bus, &DropSignal{})
	in := queue.Unbounded[*frame.MuxChunk]()
	out1 := queue.New[*frame.BufRef](8)
	out2 := queue.New[*frame.BufRef](8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx, in, []*queue.Queue[*frame.BufRef]{out1, out2})
		close(done)
	}()

	data := make([]byte, 2*frame.TSPacketsSize)
	pcr := make([]int64, 2*frame.BatchPackets)
	for i := range pcr {
		pcr[i] = int64(i) * 1000
	}
	in.Push(&frame.MuxChunk{Data: data, PCR: pcr})

	ref1a, ok := out1.Pop()
	require.True(t, ok)
	// The second batch's deadline is the anchor plus its PCR delta; move the
	// input clock past it.
	bus.Tick(clock.Ticks(20 * clock.Hz))
	ref1b, ok := out1.Pop()
	require.True(t, ok)
	ref2a, ok := out2.Pop()
	require.True(t, ok)
	ref2b, ok := out2.Pop()
	require.True(t, ok)

	assert.Same(t, ref1a.Batch(), ref2a.Batch())
	assert.Same(t, ref1b.Batch(), ref2b.Batch())
	assert.NotSame(t, ref1a.Batch(), ref1b.Batch())

	in.Cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after input cancellation")
	}
}

func TestMuxOutputCancellationClearsPendingRatherThanLeaking(t *testing.T) {
	bus := clock.NewBus() // never ticked: every deadline blocks until cancellation
	s := NewMuxOutput(bus, &DropSignal{})
	in := queue.Unbounded[*frame.MuxChunk]()
	out := queue.New[*frame.BufRef](8)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx, in, []*queue.Queue[*frame.BufRef]{out})
		close(done)
	}()

	// Two full batches' worth of data so pending holds more than one batch
	// when drainTo blocks on the first.
	data := make([]byte, 2*frame.TSPacketsSize)
	pcr := make([]int64, 2*frame.BatchPackets)
	for i := range pcr {
		pcr[i] = int64(i) * 1000
	}
	in.Push(&frame.MuxChunk{Data: data, PCR: pcr})

	time.Sleep(20 * time.Millisecond) // let Run regroup into pending and block in drainTo
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	in.Cancel()

	assert.Equal(t, 0, out.Len())
	assert.Empty(t, s.pending)
	assert.False(t, s.anchored)
}

func TestMuxOutputDropSignalResetsPendingAndAnchor(t *testing.T) {
	bus := clock.NewBus()
	bus.Tick(clock.Ticks(10 * clock.Hz))

	drop := &DropSignal{}
	s := NewMuxOutput(bus, drop)
	in := queue.Unbounded[*frame.MuxChunk]()
	out := queue.New[*frame.BufRef](8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drop.Set()
	go s.Run(ctx, in, []*queue.Queue[*frame.BufRef]{out})
	defer in.Cancel()

	// A short chunk that never completes a full batch: with the drop
	// signal already set, Run must clear pending/anchor without emitting.
	in.Push(&frame.MuxChunk{Data: make([]byte, 10), PCR: []int64{0}})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, out.Len())
}
