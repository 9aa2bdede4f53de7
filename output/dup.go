package output

import (
	"context"
	"time"
)

// DupPump is the emission pump for duplicate-delay outputs: each packet is
// sent immediately, then re-sent after dup_delay via a single
// time.AfterFunc, bounded by a semaphore sized to dup_delay / average
// packet interval so a send storm cannot spawn an unbounded number of
// pending timers.
type DupPump struct {
	Socket   *Socket
	DupDelay time.Duration

	sem chan struct{}
}

// NewDupPump sizes the semaphore from dupDelay and an estimate of the
// average packet send interval (both in the same units).
func NewDupPump(sock *Socket, dupDelay, avgPacketInterval time.Duration) *DupPump {
	capacity := 1
	if avgPacketInterval > 0 {
		capacity = int(dupDelay/avgPacketInterval) + 1
	}
	return &DupPump{Socket: sock, DupDelay: dupDelay, sem: make(chan struct{}, capacity)}
}

// Send emits payload immediately and schedules a duplicate after DupDelay,
// skipping the duplicate (rather than blocking the caller) if the
// semaphore is saturated.
func (p *DupPump) Send(ctx context.Context, payload []byte) error {
	if err := p.Socket.Send(payload); err != nil {
		return err
	}
	if p.DupDelay <= 0 {
		return nil
	}

	select {
	case p.sem <- struct{}{}:
	default:
		return nil
	}

	dup := append([]byte(nil), payload...)
	time.AfterFunc(p.DupDelay, func() {
		defer func() { <-p.sem }()
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = p.Socket.Send(dup)
	})
	return nil
}
