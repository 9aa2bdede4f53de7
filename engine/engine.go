// Package engine holds the decomposed engine handle: its queues, its
// configuration, and its status reporter, wired the way a shared deps
// struct wires a shared *gorm.DB into every feature handler — here, a
// shared set of queues and collaborators wired into every pipeline
// worker.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/openbroadcast/obe/clock"
	"github.com/openbroadcast/obe/config"
	"github.com/openbroadcast/obe/encoder"
	"github.com/openbroadcast/obe/filter"
	"github.com/openbroadcast/obe/frame"
	"github.com/openbroadcast/obe/logging"
	"github.com/openbroadcast/obe/mux"
	"github.com/openbroadcast/obe/mux/tslib"
	"github.com/openbroadcast/obe/output"
	"github.com/openbroadcast/obe/queue"
	"github.com/openbroadcast/obe/smoother"
	"github.com/openbroadcast/obe/status"
)

// Handle is the decomposed obe_t: the config, every queue boundary, the
// clock bus, and the status/drop collaborators every worker shares.
type Handle struct {
	Config config.Root
	Bus    *clock.Bus
	Drop   *smoother.DropSignal

	Hub     *status.Hub
	Metrics *status.Metrics
	Store   *status.Store

	Source frame.Source

	inputQueues  map[int]*queue.Queue[*frame.Raw]   // per input stream
	filterOut    map[int]*queue.Queue[*frame.Raw]   // per output stream, post-filter
	encodedOut   map[int]*queue.Queue[*frame.Coded] // per output stream
	muxIn        *queue.Queue[*frame.Coded]         // unbounded muxer input
	muxChunks    *queue.Queue[*frame.MuxChunk]
	outputQueues []*queue.Queue[*frame.BufRef]

	videoEncoders map[int]*encoder.Video
	wg            sync.WaitGroup
	cancel        context.CancelFunc
	smootherCtx   context.Context

	inputActive atomic.Bool
}

// New builds a Handle from cfg but does not start any worker; call Start.
func New(cfg config.Root, src frame.Source) (*Handle, error) {
	h := &Handle{
		Config:        cfg,
		Bus:           clock.NewBus(),
		Drop:          &smoother.DropSignal{},
		Hub:           status.NewHub(),
		Metrics:       status.NewMetrics(),
		Source:        src,
		inputQueues:   make(map[int]*queue.Queue[*frame.Raw]),
		filterOut:     make(map[int]*queue.Queue[*frame.Raw]),
		encodedOut:    make(map[int]*queue.Queue[*frame.Coded]),
		muxIn:         queue.Unbounded[*frame.Coded](),
		muxChunks:     queue.Unbounded[*frame.MuxChunk](),
		videoEncoders: make(map[int]*encoder.Video),
	}

	if cfg.StatusDBPath != "" {
		store, err := status.OpenStore(cfg.StatusDBPath)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		h.Store = store
	}

	return h, nil
}

// Start wires and launches every worker goroutine. A fatal startup
// failure returns the stage name alongside the error.
func (h *Handle) Start(ctx context.Context) (stage string, err error) {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.smootherCtx = ctx

	ts := tslib.NewReference()
	muxer, err := mux.NewMultiplexer(ts, h.Bus, h.Config.Program)
	if err != nil {
		return "mux", err
	}

	pidOf := func(streamID int) uint16 {
		for _, s := range h.Config.Program.Streams {
			if s.ID == streamID {
				return s.PID
			}
		}
		return 0
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		muxer.Run(h.muxIn, pidOf, h.muxChunks)
	}()

	muxSmoother := smoother.NewMuxOutput(h.Bus, h.Drop)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		muxSmoother.Run(ctx, h.muxChunks, h.outputQueues)
	}()

	for _, od := range h.Config.Program.Outputs {
		q := queue.New[*frame.BufRef](64)
		h.outputQueues = append(h.outputQueues, q)

		w, err := output.NewWorker(od)
		if err != nil {
			return "output", fmt.Errorf("output %d: %w", od.ID, err)
		}
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			w.Run(ctx, q)
		}()
	}

	if h.Hub != nil {
		go h.Hub.Run()
	}

	if h.Source != nil {
		desc, err := h.Source.Probe()
		if err != nil {
			return "input.probe", err
		}
		var subset []int
		for _, s := range desc.Streams {
			subset = append(subset, s.ID)
		}
		ch := make(chan *frame.Raw, 64)
		if err := h.Source.Open(subset, h.Bus, ch); err != nil {
			return "input.open", err
		}
		h.inputActive.Store(true)
		go h.pumpInput(ctx, ch)
	}

	return "", nil
}

// pumpInput forwards frames delivered on ch into the appropriate
// per-stream input queue.
func (h *Handle) pumpInput(ctx context.Context, ch <-chan *frame.Raw) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				h.inputActive.Store(false)
				return
			}
			q, ok := h.inputQueues[raw.InputStreamID]
			if !ok {
				raw.Release()
				continue
			}
			q.Push(raw)
		}
	}
}

// RegisterVideoPipeline wires one video stream's full filter -> encoder ->
// smoother -> mux chain and returns the queue callers feeding raw input (or
// tests) push into.
func (h *Handle) RegisterVideoPipeline(streamID int, vf *filter.VideoFilter, enc *encoder.Video) *queue.Queue[*frame.Raw] {
	in := queue.New[*frame.Raw](32)
	h.inputQueues[streamID] = in
	filtered := queue.New[*frame.Raw](32)
	h.filterOut[streamID] = filtered
	encoded := queue.New[*frame.Coded](32)
	h.encodedOut[streamID] = encoded
	h.videoEncoders[streamID] = enc

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		vf.Run(in, []*queue.Queue[*frame.Raw]{filtered})
	}()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		enc.Run(filtered, encoded)
	}()

	sm := smoother.NewEncoderOutput(enc, h.Bus, h.Drop)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		sm.Run(h.smootherCtx, encoded, h.muxIn)
	}()

	return in
}

// RegisterAudioPipeline wires one audio stream's encoder -> mux chain
// (audio has no VBV smoothing stage; its frames are already paced by the
// fixed codec frame cadence) and returns the queue raw audio is pushed into.
func (h *Handle) RegisterAudioPipeline(streamID int, enc *encoder.Audio) *queue.Queue[*frame.Raw] {
	in := queue.New[*frame.Raw](32)
	h.inputQueues[streamID] = in

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		enc.Run(in, h.muxIn)
	}()

	return in
}

// Stop cancels every worker and waits for them to return.
func (h *Handle) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	for _, q := range h.inputQueues {
		q.Cancel()
	}
	for _, q := range h.filterOut {
		q.Cancel()
	}
	for _, q := range h.encodedOut {
		q.Cancel()
	}
	h.muxIn.Cancel()
	h.muxChunks.Cancel()
	for _, q := range h.outputQueues {
		q.Cancel()
	}
	h.wg.Wait()
}

// Snapshot builds the current status.Snapshot, the user-visible status
// object. Only InputActive is filled in; DetectedVideoFormat and ARQDepth
// are left empty.
func (h *Handle) Snapshot() status.Snapshot {
	return status.Snapshot{
		InputActive: h.inputActive.Load(),
	}
}

// OnDrop records a discontinuity event on the recoverable-drift path:
// sets the global drop flag and persists the event if a store is
// configured.
func (h *Handle) OnDrop(reason string) {
	h.Drop.Set()
	h.Metrics.Discontinuity.Inc()
	if h.Store != nil {
		if err := h.Store.RecordDiscontinuity(reason); err != nil {
			logging.For("engine").Warn("record discontinuity failed", "err", err)
		}
	}
}
