// Package engine binds the core media interfaces to mediasoup, which runs
// the actual RTP relay in a separate worker process.
package engine

import (
	"context"

	mediasoup "github.com/jiyeyuran/mediasoup-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/avdeyev/onair/internal/config"
	"github.com/avdeyev/onair/internal/core"
)

// mediaCodecs is the fixed codec table of the broadcast router.
var mediaCodecs = []*mediasoup.RtpCodecCapability{
	{
		Kind:      "audio",
		MimeType:  "audio/opus",
		ClockRate: 48000,
		Channels:  2,
	},
	{
		Kind:      "video",
		MimeType:  "video/VP8",
		ClockRate: 90000,
		Parameters: mediasoup.RtpCodecSpecificParameters{
			XGoogleStartBitrate: 1000,
		},
	},
}

type Engine struct {
	cfg *config.RTC
}

func New(cfg *config.RTC) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) StartWorker(ctx context.Context) (core.Worker, error) {
	w, err := mediasoup.NewWorker(e.cfg.WorkerBin, func(s *mediasoup.WorkerSettings) {
		s.LogLevel = mediasoup.WorkerLogLevelWarn
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "engine").Int("pid", w.Pid()).Msg("media worker started")
	return &worker{w: w, cfg: e.cfg}, nil
}

type worker struct {
	w   *mediasoup.Worker
	cfg *config.RTC
}

func (wk *worker) CreateRouter(ctx context.Context) (core.Router, error) {
	r, err := wk.w.CreateRouterContext(ctx, &mediasoup.RouterOptions{MediaCodecs: mediaCodecs})
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "engine").Str("router_id", r.Id()).Msg("router created")
	return &router{r: r, cfg: wk.cfg}, nil
}

func (wk *worker) OnDied(fn func()) {
	wk.w.OnClose(func(ctx context.Context) { fn() })
}

func (wk *worker) Close() { wk.w.Close() }

type router struct {
	r   *mediasoup.Router
	cfg *config.RTC
}

func (rt *router) RtpCapabilities() *mediasoup.RtpCapabilities {
	return rt.r.RtpCapabilities()
}

func (rt *router) CanConsume(producerID string, caps *mediasoup.RtpCapabilities) bool {
	return rt.r.CanConsume(producerID, caps)
}

func (rt *router) CreateWebRtcTransport(ctx context.Context) (core.Transport, error) {
	ports := mediasoup.TransportPortRange{Min: rt.cfg.MinPort, Max: rt.cfg.MaxPort}
	// UDP first so it wins when both reach the client.
	t, err := rt.r.CreateWebRtcTransportContext(ctx, &mediasoup.WebRtcTransportOptions{
		ListenInfos: []mediasoup.TransportListenInfo{
			{
				Protocol:         mediasoup.TransportProtocolUDP,
				Ip:               rt.cfg.ListenIP,
				AnnouncedAddress: rt.cfg.AnnouncedAddress,
				PortRange:        ports,
			},
			{
				Protocol:         mediasoup.TransportProtocolTCP,
				Ip:               rt.cfg.ListenIP,
				AnnouncedAddress: rt.cfg.AnnouncedAddress,
				PortRange:        ports,
			},
		},
		InitialAvailableOutgoingBitrate: rt.cfg.InitialOutgoingBitrate,
	})
	if err != nil {
		return nil, err
	}
	return &transport{t: t}, nil
}

type transport struct {
	t *mediasoup.Transport
}

func (tr *transport) ID() string { return tr.t.Id() }

func (tr *transport) IceParameters() mediasoup.IceParameters {
	return tr.t.Data().IceParameters
}

func (tr *transport) IceCandidates() []mediasoup.IceCandidate {
	return tr.t.Data().IceCandidates
}

func (tr *transport) DtlsParameters() mediasoup.DtlsParameters {
	return tr.t.Data().DtlsParameters
}

func (tr *transport) Connect(ctx context.Context, dtls *mediasoup.DtlsParameters) error {
	return tr.t.ConnectContext(ctx, &mediasoup.TransportConnectOptions{DtlsParameters: dtls})
}

func (tr *transport) SetMaxIncomingBitrate(ctx context.Context, bitrate uint32) error {
	return tr.t.SetMaxIncomingBitrateContext(ctx, bitrate)
}

func (tr *transport) Produce(ctx context.Context, kind mediasoup.MediaKind, rtp *mediasoup.RtpParameters) (core.Producer, error) {
	p, err := tr.t.ProduceContext(ctx, &mediasoup.ProducerOptions{
		Kind:          kind,
		RtpParameters: rtp,
	})
	if err != nil {
		return nil, err
	}
	return &producer{p: p}, nil
}

func (tr *transport) Consume(ctx context.Context, producerID string, caps *mediasoup.RtpCapabilities, paused bool) (core.Consumer, error) {
	cs, err := tr.t.ConsumeContext(ctx, &mediasoup.ConsumerOptions{
		ProducerId:      producerID,
		RtpCapabilities: caps,
		Paused:          paused,
	})
	if err != nil {
		return nil, err
	}
	return &consumer{c: cs}, nil
}

func (tr *transport) Close() {
	if err := tr.t.Close(); err != nil {
		log.Error().Err(err).Str("module", "engine").Str("transport_id", tr.t.Id()).Msg("close transport")
	}
}

type producer struct {
	p *mediasoup.Producer
}

func (pr *producer) ID() string                { return pr.p.Id() }
func (pr *producer) Kind() mediasoup.MediaKind { return pr.p.Kind() }
func (pr *producer) Paused() bool              { return pr.p.Paused() }

func (pr *producer) Close() {
	if err := pr.p.Close(); err != nil {
		log.Error().Err(err).Str("module", "engine").Str("producer_id", pr.p.Id()).Msg("close producer")
	}
}

type consumer struct {
	c *mediasoup.Consumer
}

func (cn *consumer) ID() string                              { return cn.c.Id() }
func (cn *consumer) Kind() mediasoup.MediaKind               { return cn.c.Kind() }
func (cn *consumer) RtpParameters() *mediasoup.RtpParameters { return cn.c.RtpParameters() }
func (cn *consumer) Type() mediasoup.ConsumerType            { return cn.c.Type() }
func (cn *consumer) ProducerPaused() bool                    { return cn.c.ProducerPaused() }

func (cn *consumer) SetPreferredLayers(ctx context.Context, spatial, temporal uint8) error {
	return cn.c.SetPreferredLayersContext(ctx, mediasoup.ConsumerLayers{
		SpatialLayer:  spatial,
		TemporalLayer: &temporal,
	})
}

func (cn *consumer) Resume(ctx context.Context) error {
	return cn.c.ResumeContext(ctx)
}

func (cn *consumer) Close() {
	if err := cn.c.Close(); err != nil {
		log.Error().Err(err).Str("module", "engine").Str("consumer_id", cn.c.Id()).Msg("close consumer")
	}
}
