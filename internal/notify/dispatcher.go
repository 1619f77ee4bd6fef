package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"metaltrade/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Dispatcher ставит письма в очередь и рассылает их фоновыми воркерами.
// Ошибки доставки только логируются: бизнес-операцию они не откатывают.
type Dispatcher struct {
	queue       Queue
	sender      Sender
	logger      logrus.FieldLogger
	workers     int
	sendTimeout time.Duration
}

func NewDispatcher(queue Queue, sender Sender, logger logrus.FieldLogger, workers int, sendTimeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 2
	}
	if sendTimeout <= 0 {
		sendTimeout = 15 * time.Second
	}
	return &Dispatcher{
		queue:       queue,
		sender:      sender,
		logger:      logger,
		workers:     workers,
		sendTimeout: sendTimeout,
	}
}

// Enqueue не блокируется на доставке
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) {
	if err := d.queue.Push(ctx, msg); err != nil {
		metrics.Notifications.WithLabelValues("dropped").Inc()
		d.logger.WithError(err).WithField("to", msg.To).Error("Failed to enqueue email")
	}
}

// Run запускает воркеров и ждёт их завершения после отмены ctx
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.work(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	log := d.logger.WithField("worker", worker)
	for {
		msg, err := d.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("Failed to read notification queue")
			// не крутимся впустую, если очередь недоступна
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		d.deliver(ctx, log, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, log logrus.FieldLogger, msg Message) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
	defer cancel()

	if err := d.sender.Send(sendCtx, msg); err != nil {
		status := "failed"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		metrics.Notifications.WithLabelValues(status).Inc()
		log.WithError(err).WithField("to", msg.To).Error("Failed to send email")
		return
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	log.WithField("to", msg.To).Debug("Email sent")
}
