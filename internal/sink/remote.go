package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/townyadvanced/townylog/internal/layout"
	"github.com/townyadvanced/townylog/internal/money"
)

// storeTimeout bounds a single audit insert.
const storeTimeout = 5 * time.Second

// lifecycle is the started flag shared by sinks whose resource is owned
// elsewhere (a broker client, a database handle, the websocket hub).
type lifecycle struct {
	started atomic.Bool
}

func (l *lifecycle) Start() error {
	l.started.Store(true)
	return nil
}

func (l *lifecycle) Stop() error {
	l.started.Store(false)
	return nil
}

func (l *lifecycle) check() error {
	if !l.started.Load() {
		return ErrStopped
	}
	return nil
}

// TransactionStore persists money transactions.
type TransactionStore interface {
	Create(ctx context.Context, txn *money.Transaction) error
}

// Audit stores money transactions in a queryable database. Records that
// do not carry a transaction are ignored.
type Audit struct {
	lifecycle
	name  string
	store TransactionStore
}

// NewAudit creates an audit sink backed by store.
func NewAudit(name string, store TransactionStore) *Audit {
	return &Audit{name: name, store: store}
}

// Name implements Sink.
func (a *Audit) Name() string { return a.name }

// Write implements Sink.
func (a *Audit) Write(rec layout.Record) error {
	if err := a.check(); err != nil {
		return err
	}
	txn, ok := rec.Fields.(money.Transaction)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := a.store.Create(ctx, &txn); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, a.name, err)
	}
	return nil
}

// Publisher sends a payload to a broker topic.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// TopicFunc chooses the broker topic for a record.
type TopicFunc func(rec layout.Record) string

// MQTT publishes records as JSON events.
type MQTT struct {
	lifecycle
	name  string
	pub   Publisher
	topic TopicFunc
	qos   byte
}

// NewMQTT creates a broker sink. Delivery is at-least-once (QoS 1).
func NewMQTT(name string, pub Publisher, topic TopicFunc) *MQTT {
	return &MQTT{name: name, pub: pub, topic: topic, qos: 1}
}

// Name implements Sink.
func (m *MQTT) Name() string { return m.name }

// Write implements Sink.
func (m *MQTT) Write(rec layout.Record) error {
	if err := m.check(); err != nil {
		return err
	}

	payload, err := json.Marshal(NewEvent(rec))
	if err != nil {
		return fmt.Errorf("%w: %s: marshal: %w", ErrWriteFailed, m.name, err)
	}
	if err := m.pub.Publish(m.topic(rec), payload, m.qos, false); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, m.name, err)
	}
	return nil
}

// PointWriter queues a time-series point.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time)
}

// MoneyMeasurement is the time-series measurement for transactions.
const MoneyMeasurement = "money_transactions"

// Influx records money transactions as time-series points. Records that
// do not carry a transaction are ignored.
type Influx struct {
	lifecycle
	name string
	w    PointWriter
}

// NewInflux creates a time-series sink.
func NewInflux(name string, w PointWriter) *Influx {
	return &Influx{name: name, w: w}
}

// Name implements Sink.
func (i *Influx) Name() string { return i.name }

// Write implements Sink. The point is queued; delivery errors surface
// through the client's error callback.
func (i *Influx) Write(rec layout.Record) error {
	if err := i.check(); err != nil {
		return err
	}
	txn, ok := rec.Fields.(money.Transaction)
	if !ok {
		return nil
	}

	tags := map[string]string{
		"source_kind":      string(txn.Source.Kind),
		"destination_kind": string(txn.Destination.Kind),
		"reason":           txn.Reason,
	}
	fields := map[string]interface{}{
		"amount":      txn.Amount,
		"source":      txn.Source.Name,
		"destination": txn.Destination.Name,
	}
	i.w.WritePointWithTime(MoneyMeasurement, tags, fields, txn.Time)
	return nil
}

// Broadcaster fans a payload out to live subscribers.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// BroadcastPrefix is prepended to the channel name to form the
// subscription name (e.g., "log.main").
const BroadcastPrefix = "log."

// Broadcast streams records to live subscribers such as websocket
// clients tailing a channel.
type Broadcast struct {
	lifecycle
	name string
	b    Broadcaster
}

// NewBroadcast creates a live-tail sink.
func NewBroadcast(name string, b Broadcaster) *Broadcast {
	return &Broadcast{name: name, b: b}
}

// Name implements Sink.
func (b *Broadcast) Name() string { return b.name }

// Write implements Sink.
func (b *Broadcast) Write(rec layout.Record) error {
	if err := b.check(); err != nil {
		return err
	}
	b.b.Broadcast(BroadcastPrefix+rec.Channel, NewEvent(rec))
	return nil
}
