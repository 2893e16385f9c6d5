package orchestrator

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/IBM/sarama"

	"github.com/kasparena/anchorcore/ulogger"
)

// EventKind enumerates the user-visible failure/notice events spec.md §7
// names: anchorFailed, anchorRetryNeeded, lowFundsWarning, poolLow,
// poolEmpty, genesisAnchorFailed.
type EventKind string

const (
	EventAnchorFailed        EventKind = "anchorFailed"
	EventAnchorRetryNeeded   EventKind = "anchorRetryNeeded"
	EventLowFundsWarning     EventKind = "lowFundsWarning"
	EventPoolLow             EventKind = "poolLow"
	EventPoolEmpty           EventKind = "poolEmpty"
	EventGenesisAnchorFailed EventKind = "genesisAnchorFailed"
)

// Event is one notice emitted by the orchestrator toward the game layer.
type Event struct {
	Kind      EventKind `json:"kind"`
	GameID    string    `json:"gameId"`
	Reason    string    `json:"reason,omitempty"`
	MoveCount int       `json:"moveCount,omitempty"`
}

// EventSink is the typed publication surface the orchestrator pushes
// events through (spec.md Redesign Flags: "events flow through a typed
// event sink owned by the orchestrator", avoiding back-references into the
// game layer).
type EventSink interface {
	Publish(ev Event)
}

// kafkaSink publishes orchestrator events to a Kafka topic, grounded on
// services/validator/Validator.go's kafkaProducer.SendMessage call site.
// Publish failures are logged, never returned: an event-bus outage must
// never block the anchor send path.
type kafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   ulogger.Logger
}

// NewKafkaSink builds an EventSink backed by a synchronous sarama producer
// over the given brokers.
func NewKafkaSink(brokers []string, topic string, logger ulogger.Logger) (EventSink, error) {
	if len(brokers) == 0 {
		return NewNoopSink(), nil
	}

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &kafkaSink{producer: producer, topic: topic, logger: logger}, nil
}

func (k *kafkaSink) Publish(ev Event) {
	body, err := jsoniter.ConfigFastest.Marshal(ev)
	if err != nil {
		k.logger.Errorf("marshal anchor event: %v", err)
		return
	}

	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(ev.GameID),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		k.logger.Warnf("publish anchor event %s: %v", ev.Kind, err)
	}
}

type noopSink struct{}

// NewNoopSink returns an EventSink that discards events, used when no
// Kafka brokers are configured (e.g. the CLI demo).
func NewNoopSink() EventSink { return noopSink{} }

func (noopSink) Publish(Event) {}
