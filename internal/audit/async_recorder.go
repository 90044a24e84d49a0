package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AsyncRecorder отдаёт события фоновому воркеру, чтобы запрос не ждал S3/AMQP.
// Если буфер заполнен, событие отбрасывается с предупреждением в лог
type AsyncRecorder struct {
	next    Recorder
	log     *zap.Logger
	events  chan Event
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	timeout time.Duration
}

func NewAsyncRecorder(next Recorder, bufferSize int, log *zap.Logger) *AsyncRecorder {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	r := &AsyncRecorder{
		next:    next,
		log:     log,
		events:  make(chan Event, bufferSize),
		timeout: 10 * time.Second,
	}

	r.wg.Add(1)
	go r.run()

	return r
}

func (r *AsyncRecorder) run() {
	defer r.wg.Done()

	for event := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.next.Record(ctx, event); err != nil {
			r.log.Warn("не удалось записать событие аудита",
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func (r *AsyncRecorder) Record(_ context.Context, event Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil
	}

	select {
	case r.events <- event:
	default:
		r.log.Warn("буфер аудита заполнен, событие отброшено",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
		)
	}
	return nil
}

// Close дожидается записи всех событий из буфера
func (r *AsyncRecorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}
