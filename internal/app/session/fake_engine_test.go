package session

import (
	"context"
	"fmt"

	mediasoup "github.com/jiyeyuran/mediasoup-go/v2"

	"github.com/avdeyev/onair/internal/core"
)

type fakeEngine struct {
	worker   *fakeWorker
	startErr error
}

func (e *fakeEngine) StartWorker(ctx context.Context) (core.Worker, error) {
	if e.startErr != nil {
		return nil, e.startErr
	}
	return e.worker, nil
}

type fakeWorker struct {
	router    *fakeRouter
	routerErr error
	died      func()
	closed    bool
}

func (w *fakeWorker) CreateRouter(ctx context.Context) (core.Router, error) {
	if w.routerErr != nil {
		return nil, w.routerErr
	}
	return w.router, nil
}

func (w *fakeWorker) OnDied(fn func()) { w.died = fn }
func (w *fakeWorker) Close()           { w.closed = true }

type fakeRouter struct {
	caps        *mediasoup.RtpCapabilities
	canConsume  bool
	transportN  int
	created     []*fakeTransport
	transportEr error
	bitrateErr  error
}

func (r *fakeRouter) RtpCapabilities() *mediasoup.RtpCapabilities { return r.caps }

func (r *fakeRouter) CanConsume(producerID string, caps *mediasoup.RtpCapabilities) bool {
	return r.canConsume
}

func (r *fakeRouter) CreateWebRtcTransport(ctx context.Context) (core.Transport, error) {
	if r.transportEr != nil {
		return nil, r.transportEr
	}
	r.transportN++
	t := &fakeTransport{id: fmt.Sprintf("t%d", r.transportN), bitrateErr: r.bitrateErr}
	r.created = append(r.created, t)
	return t, nil
}

type fakeTransport struct {
	id     string
	closed bool

	connectErr    error
	connectedWith *mediasoup.DtlsParameters

	bitrate    uint32
	bitrateErr error

	produceErr error
	produceN   int
	producers  []*fakeProducer

	consumeErr   error
	consumeN     int
	consumerType mediasoup.ConsumerType
	consumers    []*fakeConsumer
}

func (t *fakeTransport) ID() string { return t.id }

func (t *fakeTransport) IceParameters() mediasoup.IceParameters {
	return mediasoup.IceParameters{UsernameFragment: "uf-" + t.id}
}

func (t *fakeTransport) IceCandidates() []mediasoup.IceCandidate  { return nil }
func (t *fakeTransport) DtlsParameters() mediasoup.DtlsParameters { return mediasoup.DtlsParameters{} }
func (t *fakeTransport) Close()                                   { t.closed = true }

func (t *fakeTransport) Connect(ctx context.Context, dtls *mediasoup.DtlsParameters) error {
	if t.connectErr != nil {
		return t.connectErr
	}
	t.connectedWith = dtls
	return nil
}

func (t *fakeTransport) SetMaxIncomingBitrate(ctx context.Context, bitrate uint32) error {
	if t.bitrateErr != nil {
		return t.bitrateErr
	}
	t.bitrate = bitrate
	return nil
}

func (t *fakeTransport) Produce(ctx context.Context, kind mediasoup.MediaKind, rtp *mediasoup.RtpParameters) (core.Producer, error) {
	if t.produceErr != nil {
		return nil, t.produceErr
	}
	t.produceN++
	p := &fakeProducer{id: fmt.Sprintf("%s-p%d", t.id, t.produceN), kind: kind}
	t.producers = append(t.producers, p)
	return p, nil
}

func (t *fakeTransport) Consume(ctx context.Context, producerID string, caps *mediasoup.RtpCapabilities, paused bool) (core.Consumer, error) {
	if t.consumeErr != nil {
		return nil, t.consumeErr
	}
	t.consumeN++
	typ := t.consumerType
	if typ == "" {
		typ = "simple"
	}
	c := &fakeConsumer{
		id:         fmt.Sprintf("%s-c%d", t.id, t.consumeN),
		producerID: producerID,
		typ:        typ,
		paused:     paused,
	}
	t.consumers = append(t.consumers, c)
	return c, nil
}

type fakeProducer struct {
	id     string
	kind   mediasoup.MediaKind
	closed bool
}

func (p *fakeProducer) ID() string                { return p.id }
func (p *fakeProducer) Kind() mediasoup.MediaKind { return p.kind }
func (p *fakeProducer) Paused() bool              { return false }
func (p *fakeProducer) Close()                    { p.closed = true }

type fakeConsumer struct {
	id         string
	producerID string
	kind       mediasoup.MediaKind
	typ        mediasoup.ConsumerType
	paused     bool
	closed     bool

	layersSpatial  uint8
	layersTemporal uint8
	layersSet      bool

	resumeErr error
	resumes   int
}

func (c *fakeConsumer) ID() string                              { return c.id }
func (c *fakeConsumer) Kind() mediasoup.MediaKind               { return c.kind }
func (c *fakeConsumer) RtpParameters() *mediasoup.RtpParameters { return &mediasoup.RtpParameters{} }
func (c *fakeConsumer) Type() mediasoup.ConsumerType            { return c.typ }
func (c *fakeConsumer) ProducerPaused() bool                    { return c.paused }
func (c *fakeConsumer) Close()                                  { c.closed = true }

func (c *fakeConsumer) SetPreferredLayers(ctx context.Context, spatial, temporal uint8) error {
	c.layersSpatial, c.layersTemporal = spatial, temporal
	c.layersSet = true
	return nil
}

func (c *fakeConsumer) Resume(ctx context.Context) error {
	if c.resumeErr != nil {
		return c.resumeErr
	}
	c.resumes++
	return nil
}
