package signal

import (
	"context"
	"encoding/json"
	"fmt"

	mediasoup "github.com/jiyeyuran/mediasoup-go/v2"

	"github.com/avdeyev/onair/internal/domain"
)

func (ctl *Controller) dispatchRequest(ctx context.Context, pid domain.PeerID, env envelope) (any, error) {
	switch env.Type {
	case "getRouterRtpCapabilities":
		return struct {
			RtpCapabilities *mediasoup.RtpCapabilities `json:"rtpCapabilities"`
		}{ctl.Media.Capabilities()}, nil

	case "createProducerTransport":
		return ctl.Media.CreateTransport(ctx, domain.RoleProducer)

	case "createConsumerTransport":
		return ctl.Media.CreateTransport(ctx, domain.RoleConsumer)

	case "connectProducerTransport":
		return ctl.connectTransport(ctx, domain.RoleProducer, env.Data)

	case "connectConsumerTransport":
		return ctl.connectTransport(ctx, domain.RoleConsumer, env.Data)

	case "produce":
		return ctl.produce(ctx, pid, env.Data)

	case "consume":
		return ctl.consume(ctx, env.Data)

	case "resume":
		return nil, ctl.Media.Resume(ctx)
	}
	return nil, fmt.Errorf("unknown request %q", env.Type)
}

func (ctl *Controller) connectTransport(ctx context.Context, role domain.TransportRole, data json.RawMessage) (any, error) {
	var p struct {
		DtlsParameters *mediasoup.DtlsParameters `json:"dtlsParameters"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("bad payload: %w", err)
	}
	return nil, ctl.Media.ConnectTransport(ctx, role, p.DtlsParameters)
}

func (ctl *Controller) produce(ctx context.Context, pid domain.PeerID, data json.RawMessage) (any, error) {
	var p struct {
		Kind          string                   `json:"kind"`
		RtpParameters *mediasoup.RtpParameters `json:"rtpParameters"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("bad payload: %w", err)
	}
	producerID, err := ctl.Media.Produce(ctx, mediasoup.MediaKind(p.Kind), p.RtpParameters)
	if err != nil {
		return nil, err
	}

	// The session is process-global, so every other connection learns a
	// stream is available, not just room mates.
	ctl.broadcastAll(pid, event{Type: "newProducer"})

	return struct {
		ID string `json:"id"`
	}{producerID}, nil
}

func (ctl *Controller) consume(ctx context.Context, data json.RawMessage) (any, error) {
	var p struct {
		RtpCapabilities *mediasoup.RtpCapabilities `json:"rtpCapabilities"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("bad payload: %w", err)
	}
	return ctl.Media.Consume(ctx, p.RtpCapabilities)
}
