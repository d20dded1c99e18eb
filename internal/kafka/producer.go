package kafka

import (
	"context"
	logging "github.com/ipfs/go-log/v2"
	"github.com/segmentio/kafka-go"
	"sync"
	"sync/atomic"
	"time"
)

var log = logging.Logger("kafka")

const defaultWriteTimeout = 5 * time.Second

// Producer queues messages in memory and writes them from one goroutine.
// Publish never blocks: when the inbox is full the message is dropped.
type Producer struct {
	w            *kafka.Writer
	inbox        chan kafka.Message
	closeCh      chan struct{}
	writeTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	p := &Producer{
		inbox:        make(chan kafka.Message, buf),
		closeCh:      make(chan struct{}),
		writeTimeout: defaultWriteTimeout,
	}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true, // fire-and-forget untuk throughput; error masuk Completion
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warnw("kafka write failed", "topic", topic, "messages", len(msgs), "err", err)
			}
		},
	}
	return p
}

// Start runs the writer loop until Close is called and the inbox is drained.
func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			// metadata lookup tetap bisa nyangkut walau Async, jadi dibatasi
			wctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
			if err := p.w.WriteMessages(wctx, m); err != nil {
				log.Warnw("kafka write failed", "topic", p.w.Topic, "key", string(m.Key), "err", err)
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			log.Warnw("kafka writer close", "err", err)
		}
	}()
}

// Publish enqueues a message. It reports false when the message was
// dropped because the inbox is full or the producer is closed.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) bool {
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return false
	}
	select {
	case p.inbox <- m:
		return true
	default:
		n := p.dropped.Add(1)
		log.Warnw("kafka inbox full, message dropped", "topic", p.w.Topic, "key", string(key), "dropped", n)
		return false
	}
}

// PublishEvent publishes an encoded envelope with the type/version headers
// consumers route on.
func (p *Producer) PublishEvent(key, eventType string, body []byte) {
	p.Publish([]byte(key), body,
		kafka.Header{Key: HeaderEventType, Value: []byte(eventType)},
		kafka.Header{Key: HeaderEventVersion, Value: []byte("1")},
	)
}

// Dropped is the number of messages discarded so far.
func (p *Producer) Dropped() uint64 { return p.dropped.Load() }

// Tutup channel supaya goroutine nge-flush sisa pesan lalu exit rapi.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

// Tunggu sampai goroutine selesai.
func (p *Producer) WaitClosed() { <-p.closeCh }
