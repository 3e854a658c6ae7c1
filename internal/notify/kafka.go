package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// Writer is the subset of *kafka.Writer used by KafkaPublisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues messages on the mail topic; cmd/mailer delivers them.
type KafkaPublisher struct {
	writer Writer
}

// KafkaOptions configures the producer and consumer connections.
type KafkaOptions struct {
	Broker   string
	Topic    string
	GroupID  string
	Username string
	Password string
}

func (o KafkaOptions) secure() bool {
	return o.Username != ""
}

// NewKafkaPublisher builds a publisher writing to opts.Topic. SASL/PLAIN
// over TLS is used when a username is configured.
func NewKafkaPublisher(opts KafkaOptions) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(opts.Broker),
		Topic:        opts.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	if opts.secure() {
		w.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: opts.Username, Password: opts.Password},
			TLS:  &tls.Config{},
		}
	}
	return &KafkaPublisher{writer: w}
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// SendTemplated publishes msg as JSON keyed by recipient, so one
// recipient's mail stays ordered within a partition.
func (p *KafkaPublisher) SendTemplated(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Recipient),
		Value: value,
		Time:  time.Now(),
	}); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Template, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Reader is the subset of *kafka.Reader used by Consumer.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads queued messages and hands them to a Sender.
type Consumer struct {
	reader Reader
	sender Sender
	logger *slog.Logger
}

// NewKafkaReader builds a consumer-group reader for opts.Topic.
func NewKafkaReader(opts KafkaOptions) *kafka.Reader {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if opts.secure() {
		dialer.TLS = &tls.Config{}
		dialer.SASLMechanism = plain.Mechanism{Username: opts.Username, Password: opts.Password}
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{opts.Broker},
		GroupID:  opts.GroupID,
		Topic:    opts.Topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
		Dialer:   dialer,
	})
}

// NewConsumer constructs a Consumer.
func NewConsumer(r Reader, s Sender, logger *slog.Logger) *Consumer {
	return &Consumer{reader: r, sender: s, logger: logger}
}

// Run consumes until ctx is cancelled. Undecodable messages are committed
// and dropped; delivery failures are logged and committed so one bad
// address cannot stall the partition.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return errors.New("kafka reader closed")
			}
			c.logger.Error("kafka read failed", "err", err)
			continue
		}

		c.handle(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("kafka commit failed", "offset", m.Offset, "err", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	var msg Message
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		c.logger.Warn("dropping undecodable message", "offset", m.Offset, "err", err)
		return
	}
	if err := c.sender.SendTemplated(ctx, msg); err != nil {
		c.logger.Error("mail delivery failed", "recipient", msg.Recipient, "template", string(msg.Template), "err", err)
		return
	}
	c.logger.Info("mail delivered", "recipient", msg.Recipient, "template", string(msg.Template))
}
