package core

import (
	"context"

	mediasoup "github.com/jiyeyuran/mediasoup-go/v2"
)

// The media engine is an external collaborator. The session layer only sees
// the surface below; the adapter under internal/adapters/engine binds it to
// the real worker process.

// Engine launches media worker processes.
type Engine interface {
	StartWorker(ctx context.Context) (Worker, error)
}

// Worker is one running media engine process.
type Worker interface {
	// CreateRouter creates a router with the engine's fixed codec set.
	CreateRouter(ctx context.Context) (Router, error)
	// OnDied registers a callback invoked when the worker process
	// terminates. The callback may fire at most once.
	OnDied(func())
	Close()
}

// Router owns the RTP capability set and creates transports. Capabilities
// never change after the router is created.
type Router interface {
	RtpCapabilities() *mediasoup.RtpCapabilities
	CanConsume(producerID string, caps *mediasoup.RtpCapabilities) bool
	CreateWebRtcTransport(ctx context.Context) (Transport, error)
}

// Transport is a negotiated network path between a client and the engine.
type Transport interface {
	ID() string
	IceParameters() mediasoup.IceParameters
	IceCandidates() []mediasoup.IceCandidate
	DtlsParameters() mediasoup.DtlsParameters
	// Connect completes the DTLS handshake with the client's parameters.
	Connect(ctx context.Context, dtls *mediasoup.DtlsParameters) error
	SetMaxIncomingBitrate(ctx context.Context, bitrate uint32) error
	Produce(ctx context.Context, kind mediasoup.MediaKind, rtp *mediasoup.RtpParameters) (Producer, error)
	Consume(ctx context.Context, producerID string, caps *mediasoup.RtpCapabilities, paused bool) (Consumer, error)
	Close()
}

// Producer is a published media stream.
type Producer interface {
	ID() string
	Kind() mediasoup.MediaKind
	Paused() bool
	Close()
}

// Consumer is a subscription to a Producer's stream.
type Consumer interface {
	ID() string
	Kind() mediasoup.MediaKind
	RtpParameters() *mediasoup.RtpParameters
	Type() mediasoup.ConsumerType
	ProducerPaused() bool
	SetPreferredLayers(ctx context.Context, spatial, temporal uint8) error
	Resume(ctx context.Context) error
	Close()
}
