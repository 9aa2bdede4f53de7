package smoother

import (
	"context"

	"github.com/openbroadcast/obe/clock"
	"github.com/openbroadcast/obe/frame"
	"github.com/openbroadcast/obe/logging"
	"github.com/openbroadcast/obe/queue"
)

// MuxOutput is the mux-output worker: maintains a data-byte FIFO and a
// parallel PCR-per-packet FIFO, drains in exact TSPacketsSize batches, and
// paces release with the same anchor-and-sleep algorithm as
// EncoderOutput, keyed on PCR delta instead of DTS. Each drained batch is
// wrapped as a BufRef and one reference is broadcast per output.
type MuxOutput struct {
	Bus  *clock.Bus
	Drop *DropSignal

	log logging.Logger

	dataFIFO []byte
	pcrFIFO  []int64

	anchored bool
	startWall clock.Ticks
	startPCR  clock.Ticks

	pending []pendingBatch
}

type pendingBatch struct {
	batch *frame.MuxedBatch
	pcr0  clock.Ticks
}

// NewMuxOutput builds a mux-output smoother.
func NewMuxOutput(bus *clock.Bus, drop *DropSignal) *MuxOutput {
	return &MuxOutput{Bus: bus, Drop: drop, log: logging.For("smoother.mux_output")}
}

// Run reads MuxChunks from in, regroups into MuxedBatches, paces them, and
// for each paced batch pushes one BufRef reference to each of outs.
func (s *MuxOutput) Run(ctx context.Context, in *queue.Queue[*frame.MuxChunk], outs []*queue.Queue[*frame.BufRef]) {
	for {
		chunk, ok := in.Pop()
		if !ok {
			return
		}

		if s.Drop != nil && s.Drop.Consume() {
			s.pending = nil
			s.anchored = false
		}

		s.dataFIFO = append(s.dataFIFO, chunk.Data...)
		s.pcrFIFO = append(s.pcrFIFO, chunk.PCR...)

		for len(s.dataFIFO) >= frame.TSPacketsSize && len(s.pcrFIFO) >= frame.BatchPackets {
			batch := &frame.MuxedBatch{}
			copy(batch.Payload[:], s.dataFIFO[:frame.TSPacketsSize])
			for i := 0; i < frame.BatchPackets; i++ {
				batch.PCR[i] = s.pcrFIFO[i]
			}
			s.dataFIFO = s.dataFIFO[frame.TSPacketsSize:]
			s.pcrFIFO = s.pcrFIFO[frame.BatchPackets:]

			s.pending = append(s.pending, pendingBatch{batch: batch, pcr0: clock.Ticks(batch.PCR[0])})
		}

		if len(s.pending) == 0 {
			continue
		}

		if !s.anchored {
			now, _ := s.Bus.Now()
			s.startWall = now
			s.startPCR = s.pending[0].pcr0
			s.anchored = true
		}

		s.drainTo(ctx, outs)
	}
}

func (s *MuxOutput) drainTo(ctx context.Context, outs []*queue.Queue[*frame.BufRef]) {
	for len(s.pending) > 0 {
		p := s.pending[0]
		deadline := s.startWall + (p.pcr0 - s.startPCR)
		if err := s.Bus.SleepUntil(ctx, deadline); err != nil {
			// Nothing held here is pool-backed yet (batches only become
			// BufRefs once pushed below), but the pending state must still
			// be dropped rather than left to leak into the next cycle.
			s.pending = nil
			s.anchored = false
			return
		}
		s.pending = s.pending[1:]

		if len(outs) == 0 {
			continue
		}
		ref := frame.NewBufRef(p.batch, frame.Release{Kind: frame.ReleaseGC})
		outs[0].Push(ref)
		for i := 1; i < len(outs); i++ {
			outs[i].Push(ref.Clone())
		}
	}
}
