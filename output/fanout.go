package output

import (
	"context"
	"time"

	"github.com/openbroadcast/obe/config"
	"github.com/openbroadcast/obe/frame"
	"github.com/openbroadcast/obe/logging"
	"github.com/openbroadcast/obe/queue"
)

// defaultAvgPacketInterval estimates the typical RTP send spacing for a
// 1316-byte MPEG-TS batch at a representative broadcast mux rate, used to
// size each output's duplication-pump semaphore.
const defaultAvgPacketInterval = 2 * time.Millisecond

// Worker is one per-output fan-out worker: reads BufRefs from
// its queue and dispatches the 1316-byte payload per the output
// descriptor's configured type/FEC/dup/ARQ combination.
type Worker struct {
	Descriptor config.OutputDescriptor

	primary *Socket
	framer  *RTPFramer
	cop3    *COP3Output
	ldpc    *LDPCBlock
	arq     *ARQSink
	dup     *DupPump

	log logging.Logger
}

// NewWorker builds a Worker for descriptor, dialing whatever sockets its
// configuration requires.
func NewWorker(descriptor config.OutputDescriptor) (*Worker, error) {
	uri, err := ParseURI(descriptor.URI)
	if err != nil {
		return nil, err
	}

	w := &Worker{Descriptor: descriptor, log: logging.For("output.fanout")}

	switch descriptor.Type {
	case config.OutputSRT:
		sink := &SRTSink{Dest: descriptor.URI}
		return w, sink.Open()
	}

	sock, err := DialUDP(uri)
	if err != nil {
		return nil, err
	}
	w.primary = sock

	if descriptor.Type == config.OutputRTP {
		w.framer = NewRTPFramer()
	}

	switch descriptor.FECType {
	case config.FECCop3BlockAligned, config.FECCop3NonBlockAligned:
		rowURI := uri
		rowURI.Port += 4
		colURI := uri
		colURI.Port += 2
		rowSock, err := DialUDP(rowURI)
		if err != nil {
			return nil, err
		}
		colSock, err := DialUDP(colURI)
		if err != nil {
			return nil, err
		}
		blockAligned := descriptor.FECType == config.FECCop3BlockAligned
		w.cop3 = NewCOP3Output(rowSock, colSock, w.framer, descriptor.FECColumns, descriptor.FECRows, blockAligned)

	case config.FECFrameLDPCStaircase:
		w.ldpc = NewLDPCBlock(descriptor.FECColumns*descriptor.FECRows, descriptor.FECRows)
	}

	if descriptor.ARQLatencyMS > 0 {
		w.arq = NewARQSink(w.primary, descriptor.ARQLatencyMS)
	}
	if descriptor.DupDelayMS > 0 {
		w.dup = NewDupPump(w.primary, time.Duration(descriptor.DupDelayMS)*time.Millisecond, defaultAvgPacketInterval)
	}

	return w, nil
}

// Run drains in, emitting each BufRef's payload per the configured
// descriptor, until the queue is cancelled.
func (w *Worker) Run(ctx context.Context, in *queue.Queue[*frame.BufRef]) {
	for {
		ref, ok := in.Pop()
		if !ok {
			return
		}
		w.emit(ctx, ref)
		ref.Release()
	}
}

func (w *Worker) emit(ctx context.Context, ref *frame.BufRef) {
	batch := ref.Batch()
	payload := batch.Payload[:]

	switch w.Descriptor.Type {
	case config.OutputUDP:
		if err := w.primary.Send(payload); err != nil {
			w.log.Warn("udp send failed", "err", err, "output", w.Descriptor.ID)
		}
		return

	case config.OutputRTP:
		pkt, err := w.framer.Frame(payload, batch.PCR[0])
		if err != nil {
			w.log.Warn("rtp frame failed", "err", err, "output", w.Descriptor.ID)
			return
		}

		if w.arq != nil {
			if err := w.arq.Send(w.framer.lastSeq(), pkt); err != nil {
				w.log.Warn("arq send failed", "err", err, "output", w.Descriptor.ID)
			}
		} else if w.dup != nil {
			if err := w.dup.Send(ctx, pkt); err != nil {
				w.log.Warn("dup send failed", "err", err, "output", w.Descriptor.ID)
			}
		} else {
			if err := w.primary.Send(pkt); err != nil {
				w.log.Warn("rtp send failed", "err", err, "output", w.Descriptor.ID)
			}
		}

		if w.cop3 != nil {
			if err := w.cop3.Feed(w.framer.lastSeq(), uint32(batch.PCR[0]/300), payload); err != nil {
				w.log.Warn("cop3 feed failed", "err", err, "output", w.Descriptor.ID)
			}
		}
		if w.ldpc != nil {
			if w.ldpc.AddADU(pkt) {
				w.emitLDPCRepair()
			}
		}

	case config.OutputSRT:
		w.log.Warn("srt output not implemented, dropping batch", "output", w.Descriptor.ID)
	}
}

func (w *Worker) emitLDPCRepair() {
	repair, err := w.ldpc.RepairSymbols()
	if err != nil {
		w.log.Warn("ldpc repair failed", "err", err, "output", w.Descriptor.ID)
		return
	}
	for _, r := range repair {
		if err := w.primary.Send(r); err != nil {
			w.log.Warn("ldpc repair send failed", "err", err, "output", w.Descriptor.ID)
		}
	}
	stride := w.ldpc.InterleaveStride()
	_ = stride // not applied: the repair symbols above are sent back-to-back
	w.ldpc = NewLDPCBlock(w.Descriptor.FECColumns*w.Descriptor.FECRows, w.Descriptor.FECRows)
}
