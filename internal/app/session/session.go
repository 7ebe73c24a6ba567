// Package session owns the process-wide broadcast session: one media worker,
// one router, one transport per role, at most one producer and one consumer.
// The server is single-broadcast-session by construction; rooms only scope
// the out-of-band signal relay, never the media state.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	mediasoup "github.com/jiyeyuran/mediasoup-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/avdeyev/onair/internal/core"
	"github.com/avdeyev/onair/internal/domain"
)

// workerDeadGrace is how long the process keeps running after the media
// worker dies, so pending responses and logs can flush. No restart.
const workerDeadGrace = 2 * time.Second

var (
	ErrNoTransport   = errors.New("transport not created")
	ErrNotConnected  = errors.New("transport not connected")
	ErrNotConsumable = errors.New("cannot consume")
	ErrNoConsumer    = errors.New("consumer not created")
)

// slot is one singleton transport seat. connected flips after a successful
// DTLS handshake; a transport must be connected before produce or consume.
type slot struct {
	transport core.Transport
	connected bool
}

// Coordinator serializes every mutation of the shared session state behind
// one mutex, held across engine awaits. Two overlapping produce calls can
// therefore never interleave their replace-and-notify sequences.
type Coordinator struct {
	mu sync.Mutex

	engine core.Engine
	worker core.Worker
	router core.Router

	transports map[domain.TransportRole]*slot

	producer core.Producer
	consumer core.Consumer

	maxIncomingBitrate uint32

	exit func(code int)
}

func New(engine core.Engine, maxIncomingBitrate uint32) *Coordinator {
	return &Coordinator{
		engine:             engine,
		transports:         make(map[domain.TransportRole]*slot),
		maxIncomingBitrate: maxIncomingBitrate,
		exit:               os.Exit,
	}
}

// Init starts the media worker and creates the router. A failure here is
// fatal for the caller; a worker death later schedules a delayed exit.
func (c *Coordinator) Init(ctx context.Context) error {
	worker, err := c.engine.StartWorker(ctx)
	if err != nil {
		return fmt.Errorf("start media worker: %w", err)
	}
	worker.OnDied(func() {
		log.Error().Str("module", "session").Dur("grace", workerDeadGrace).Msg("media worker died, scheduling exit")
		time.AfterFunc(workerDeadGrace, func() { c.exit(1) })
	})

	router, err := worker.CreateRouter(ctx)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	c.worker = worker
	c.router = router
	log.Info().Str("module", "session").Msg("media session initialized")
	return nil
}

// Capabilities returns the router's RTP capabilities. The set is immutable
// after Init, so no locking is needed.
func (c *Coordinator) Capabilities() *mediasoup.RtpCapabilities {
	return c.router.RtpCapabilities()
}
