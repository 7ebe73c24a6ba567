package session

import (
	"context"
	"fmt"

	mediasoup "github.com/jiyeyuran/mediasoup-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/avdeyev/onair/internal/domain"
)

// TransportInfo is everything the client needs to set up its side of the
// transport.
type TransportInfo struct {
	ID             string                   `json:"id"`
	IceParameters  mediasoup.IceParameters  `json:"iceParameters"`
	IceCandidates  []mediasoup.IceCandidate `json:"iceCandidates"`
	DtlsParameters mediasoup.DtlsParameters `json:"dtlsParameters"`
}

// CreateTransport fills the role's singleton slot with a fresh transport,
// closing whatever occupied it before. The incoming bitrate cap is
// best-effort: a failure is logged, not surfaced.
func (c *Coordinator) CreateTransport(ctx context.Context, role domain.TransportRole) (*TransportInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	transport, err := c.router.CreateWebRtcTransport(ctx)
	if err != nil {
		return nil, fmt.Errorf("create %s transport: %w", role, err)
	}

	if c.maxIncomingBitrate > 0 {
		if err := transport.SetMaxIncomingBitrate(ctx, c.maxIncomingBitrate); err != nil {
			log.Warn().Err(err).Str("module", "session").Str("role", string(role)).Msg("set max incoming bitrate")
		}
	}

	if prev := c.transports[role]; prev != nil {
		prev.transport.Close()
	}
	c.transports[role] = &slot{transport: transport}

	log.Info().Str("module", "session").Str("role", string(role)).Str("transport_id", transport.ID()).Msg("transport created")
	return &TransportInfo{
		ID:             transport.ID(),
		IceParameters:  transport.IceParameters(),
		IceCandidates:  transport.IceCandidates(),
		DtlsParameters: transport.DtlsParameters(),
	}, nil
}

// ConnectTransport completes the DTLS handshake for the role's transport.
// Both roles share the same failure semantics.
func (c *Coordinator) ConnectTransport(ctx context.Context, role domain.TransportRole, dtls *mediasoup.DtlsParameters) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.transports[role]
	if s == nil {
		return fmt.Errorf("connect %s transport: %w", role, ErrNoTransport)
	}
	if err := s.transport.Connect(ctx, dtls); err != nil {
		return fmt.Errorf("connect %s transport: %w", role, err)
	}
	s.connected = true
	log.Info().Str("module", "session").Str("role", string(role)).Str("transport_id", s.transport.ID()).Msg("transport connected")
	return nil
}
