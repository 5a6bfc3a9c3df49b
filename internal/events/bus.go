package events

import (
	"context"
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

type job struct {
	topic   string
	payload any
}

// Bus es un EventBus con entrega asíncrona por un pool de workers.
// Los handlers se suscriben con el tipo concreto del payload:
//
//	bus.Subscribe(events.TopicLoginSucceeded, func(e events.LoginSucceeded) { ... })
type Bus struct {
	bus     evbus.Bus
	workers int
	queue   chan job

	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup // workers
	inflight sync.WaitGroup // eventos encolados y no procesados
}

// NewBus crea el bus. Llamar Start antes de publicar.
func NewBus(workers, queueSize int) *Bus {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Bus{
		bus:     evbus.New(),
		workers: workers,
		queue:   make(chan job, queueSize),
	}
}

// Start lanza los workers.
func (b *Bus) Start() {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
}

// Stop deja de aceptar eventos, procesa lo encolado y espera a los workers.
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()
	b.wg.Wait()
}

// Drain espera a que se procesen los eventos ya publicados.
func (b *Bus) Drain() {
	b.inflight.Wait()
}

// Subscribe registra fn para topic. fn recibe el payload con su tipo concreto.
func (b *Bus) Subscribe(topic string, fn any) error {
	return b.bus.Subscribe(topic, fn)
}

// Publish encola el evento. Si la cola está llena o el bus cerrado, se descarta.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.inflight.Add(1)
	select {
	case b.queue <- job{topic: topic, payload: payload}:
	default:
		b.inflight.Done()
		logger.From(ctx).Warn("event dropped: queue full",
			logger.Component("events"), logger.String("topic", topic))
	}
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for j := range b.queue {
		b.dispatch(j)
	}
}

func (b *Bus) dispatch(j job) {
	defer b.inflight.Done()
	defer func() {
		if rec := recover(); rec != nil {
			logger.L().Error("event handler panic",
				logger.Component("events"),
				logger.String("topic", j.topic),
				logger.Any("panic", rec),
			)
		}
	}()
	if b.bus.HasCallback(j.topic) {
		b.bus.Publish(j.topic, j.payload)
	}
}

// Recorder guarda lo publicado; pensado para tests.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

// Recorded es un evento capturado por Recorder.
type Recorded struct {
	Topic   string
	Payload any
}

func (r *Recorder) Publish(_ context.Context, topic string, payload any) {
	r.mu.Lock()
	r.Events = append(r.Events, Recorded{Topic: topic, Payload: payload})
	r.mu.Unlock()
}

// Topics retorna los topics publicados en orden.
func (r *Recorder) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Topic
	}
	return out
}
