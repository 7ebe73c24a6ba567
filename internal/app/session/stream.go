package session

import (
	"context"
	"fmt"

	mediasoup "github.com/jiyeyuran/mediasoup-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/avdeyev/onair/internal/domain"
)

// ConsumerInfo is the wire view of a created consumer.
type ConsumerInfo struct {
	ProducerID     string                   `json:"producerId"`
	ID             string                   `json:"id"`
	Kind           mediasoup.MediaKind      `json:"kind"`
	RtpParameters  *mediasoup.RtpParameters `json:"rtpParameters"`
	Type           mediasoup.ConsumerType   `json:"type"`
	ProducerPaused bool                     `json:"producerPaused"`
}

// Produce publishes a stream on the producer-side transport. A superseded
// producer is closed before the reference is replaced.
func (c *Coordinator) Produce(ctx context.Context, kind mediasoup.MediaKind, rtp *mediasoup.RtpParameters) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.transports[domain.RoleProducer]
	if s == nil {
		return "", fmt.Errorf("produce: %w", ErrNoTransport)
	}
	if !s.connected {
		return "", fmt.Errorf("produce: %w", ErrNotConnected)
	}

	producer, err := s.transport.Produce(ctx, kind, rtp)
	if err != nil {
		return "", fmt.Errorf("produce %s: %w", kind, err)
	}

	if c.producer != nil {
		c.producer.Close()
	}
	c.producer = producer

	log.Info().Str("module", "session").Str("kind", string(kind)).Str("producer_id", producer.ID()).Msg("producer created")
	return producer.ID(), nil
}

// Consume subscribes the viewer to the active producer. The caller gets
// ErrNotConsumable when there is no producer or the capabilities do not
// match, never a silent empty result. Video consumers start paused until the
// client acknowledges with resume; audio plays immediately. A layered
// consumer is pinned to the top spatial/temporal layer as a fixed default.
func (c *Coordinator) Consume(ctx context.Context, caps *mediasoup.RtpCapabilities) (*ConsumerInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.transports[domain.RoleConsumer]
	if s == nil {
		return nil, fmt.Errorf("consume: %w", ErrNoTransport)
	}
	if !s.connected {
		return nil, fmt.Errorf("consume: %w", ErrNotConnected)
	}
	if c.producer == nil || !c.router.CanConsume(c.producer.ID(), caps) {
		return nil, ErrNotConsumable
	}

	paused := c.producer.Kind() == "video"
	consumer, err := s.transport.Consume(ctx, c.producer.ID(), caps, paused)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	if c.consumer != nil {
		c.consumer.Close()
	}
	c.consumer = consumer

	if consumer.Type() == "simulcast" {
		if err := consumer.SetPreferredLayers(ctx, 2, 2); err != nil {
			log.Warn().Err(err).Str("module", "session").Str("consumer_id", consumer.ID()).Msg("set preferred layers")
		}
	}

	log.Info().Str("module", "session").Str("consumer_id", consumer.ID()).Str("kind", string(consumer.Kind())).Bool("paused", paused).Msg("consumer created")
	return &ConsumerInfo{
		ProducerID:     c.producer.ID(),
		ID:             consumer.ID(),
		Kind:           consumer.Kind(),
		RtpParameters:  consumer.RtpParameters(),
		Type:           consumer.Type(),
		// The viewer sees the stream as paused until it resumes, whether the
		// consumer was created paused or the source itself is paused.
		ProducerPaused: paused || consumer.ProducerPaused(),
	}, nil
}

// Resume unpauses the active consumer. Resuming an already active consumer
// is a no-op at the engine level, so calling it twice is safe.
func (c *Coordinator) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.consumer == nil {
		return fmt.Errorf("resume: %w", ErrNoConsumer)
	}
	if err := c.consumer.Resume(ctx); err != nil {
		return fmt.Errorf("resume consumer: %w", err)
	}
	log.Info().Str("module", "session").Str("consumer_id", c.consumer.ID()).Msg("consumer resumed")
	return nil
}
