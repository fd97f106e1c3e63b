package analytics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// GameEvent represents an event in the game.
type GameEvent struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	GameID    string         `json:"gameId"`
	Data      map[string]any `json:"data"`
}

const (
	EventGameStart    = "game_start"
	EventMove         = "move"
	EventGameEnd      = "game_end"
	EventSessionOpen  = "session_open"
	EventSessionClose = "session_close"
)

// Publisher sends game events to Kafka without waiting for acknowledgements.
type Publisher struct {
	logger   *slog.Logger
	producer sarama.AsyncProducer
	topic    string

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPublisher(logger *slog.Logger, brokers []string, topic string) (*Publisher, error) {
	config := sarama.NewConfig()
	config.ClientID = "gomoku"
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 5
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return NewPublisherWithProducer(logger, producer, topic), nil
}

// NewPublisherWithProducer wraps an existing producer. Its Errors channel must be enabled.
func NewPublisherWithProducer(logger *slog.Logger, producer sarama.AsyncProducer, topic string) *Publisher {
	publisher := &Publisher{
		logger:   logger.With("component", "analytics"),
		producer: producer,
		topic:    topic,
	}

	publisher.wg.Add(1)
	go publisher.drainErrors()

	return publisher
}

func (that *Publisher) drainErrors() {
	defer that.wg.Done()

	log := that.logger.With("method", "drainErrors")

	for producerErr := range that.producer.Errors() {
		log.Error("failed to deliver event", "topic", producerErr.Msg.Topic, "error", producerErr.Err)
	}
}

// Publish queues event for delivery. Events published after Close are dropped.
func (that *Publisher) Publish(event GameEvent) {
	log := that.logger.With("method", "Publish")

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	if that.closed {
		return
	}

	that.producer.Input() <- &sarama.ProducerMessage{
		Topic: that.topic,
		Key:   sarama.StringEncoder(event.GameID),
		Value: sarama.ByteEncoder(payload),
	}
}

// Close flushes buffered events and stops the producer.
func (that *Publisher) Close() error {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return nil
	}
	that.closed = true
	that.mu.Unlock()

	that.producer.AsyncClose()
	that.wg.Wait()

	return nil
}

func NewGameStartEvent(gameID, black, white string, boardSize int) GameEvent {
	return GameEvent{
		Type:   EventGameStart,
		GameID: gameID,
		Data: map[string]any{
			"black":     black,
			"white":     white,
			"boardSize": boardSize,
		},
	}
}

func NewMoveEvent(gameID, color string, column, row int) GameEvent {
	return GameEvent{
		Type:   EventMove,
		GameID: gameID,
		Data: map[string]any{
			"color":  color,
			"column": column,
			"row":    row,
		},
	}
}

func NewGameEndEvent(gameID, winner string, isDraw bool, duration time.Duration) GameEvent {
	return GameEvent{
		Type:   EventGameEnd,
		GameID: gameID,
		Data: map[string]any{
			"winner":   winner,
			"isDraw":   isDraw,
			"duration": duration.Seconds(),
		},
	}
}

func NewSessionEvent(eventType, gameID, role, peer string) GameEvent {
	return GameEvent{
		Type:   eventType,
		GameID: gameID,
		Data: map[string]any{
			"role": role,
			"peer": peer,
		},
	}
}
