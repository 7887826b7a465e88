// Package kafka consumes storage notifications from a Kafka topic as an
// alternative to the HTTP push endpoint. Deployments that relay bucket
// events through a broker point this consumer at the relay topic.
package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/IBM/sarama"

	"reviewbot/types"
)

// EventSink receives decoded storage events. Implemented by
// *monitor.Monitor.
type EventSink interface {
	HandleEvent(ctx context.Context, ev types.ObjectEvent) types.EventOutcome
}

// ConsumerConfig holds the Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Sink    EventSink
}

// Consumer reads object events off a topic and feeds them to the sink.
type Consumer struct {
	group   sarama.ConsumerGroup
	sink    EventSink
	topic   string
	groupID string
	ready   chan bool
}

// NewConsumer creates a consumer group session against the brokers.
func NewConsumer(config ConsumerConfig) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:   group,
		sink:    config.Sink,
		topic:   config.Topic,
		groupID: config.GroupID,
		ready:   make(chan bool),
	}, nil
}

// Start begins consuming. It returns once the first session is ready;
// consumption continues until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	handler := &groupHandler{sink: c.sink, ready: c.ready}

	go func() {
		for {
			if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
				if err == context.Canceled {
					log.Println("Kafka consumer context canceled")
					return
				}
				log.Printf("Error from Kafka consumer: %v", err)
			}

			if ctx.Err() != nil {
				return
			}
			handler.ready = make(chan bool)
		}
	}()

	<-c.ready
	log.Printf("✅ Kafka event consumer started (group: %s, topic: %s)", c.groupID, c.topic)

	go func() {
		for err := range c.group.Errors() {
			log.Printf("❌ Kafka consumer error: %v", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the consumer.
func (c *Consumer) Close() error {
	log.Println("Closing Kafka consumer...")
	return c.group.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	sink  EventSink
	ready chan bool
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim drains one partition claim. Event handling never asks for
// a redelivery: a malformed payload is logged and skipped, and backend
// trouble inside the monitor is retried by the sweeper, not the broker.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			log.Printf("📥 Received storage event: partition=%d, offset=%d, key=%s",
				message.Partition, message.Offset, string(message.Key))

			var ev types.ObjectEvent
			if err := json.Unmarshal(message.Value, &ev); err != nil {
				log.Printf("❌ Failed to unmarshal storage event: %v", err)
				session.MarkMessage(message, "")
				continue
			}

			outcome := h.sink.HandleEvent(session.Context(), ev)
			log.Printf("kafka: event %s -> %s (%s)", ev.ObjectName, outcome.Status, outcome.Reason)
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
