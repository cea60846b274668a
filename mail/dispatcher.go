package mail

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DispatcherConfig controls queue depth and per-message delivery timeout.
type DispatcherConfig struct {
	QueueSize       int
	DeliveryTimeout time.Duration
}

// Dispatcher delivers messages on a background goroutine. Enqueue never blocks:
// messages that do not fit in the queue are dropped and counted.
type Dispatcher struct {
	cfg    DispatcherConfig
	sender Sender
	logger *zap.Logger

	ch   chan Message
	done chan struct{}
	wg   sync.WaitGroup

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
	mu        sync.RWMutex
}

// NewDispatcher starts the delivery worker for sender.
func NewDispatcher(sender Sender, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:    cfg,
		sender: sender,
		logger: logger.Named("mail"),
		ch:     make(chan Message, cfg.QueueSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Enqueue queues msg for delivery and reports whether it was accepted.
func (d *Dispatcher) Enqueue(msg Message) bool {
	if d == nil {
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed.Load() {
		d.dropped.Add(1)
		return false
	}

	select {
	case d.ch <- msg:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("mail queue full; message dropped", zap.String("to", msg.To))
		return false
	}
}

// Close stops accepting messages and waits for queued ones to be attempted.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed.Store(true)
		close(d.done)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

// Delivered returns the number of messages the sender accepted.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}

// Failed returns the number of messages the sender rejected or timed out on.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}

// Dropped returns the number of messages refused by Enqueue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	if d.sender == nil {
		d.failed.Add(1)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DeliveryTimeout)
	defer cancel()

	start := time.Now()
	if err := d.sender.Send(ctx, msg); err != nil {
		d.failed.Add(1)
		d.logger.Error("mail delivery failed",
			zap.String("to", msg.To),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	d.delivered.Add(1)
	d.logger.Debug("mail delivered", zap.String("to", msg.To), zap.Duration("elapsed", time.Since(start)))
}
