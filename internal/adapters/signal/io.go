package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avdeyev/onair/internal/core"
	"github.com/avdeyev/onair/internal/domain"
)

// envelope is the wire frame shared by both protocols on the channel.
// Requests carry an id and get exactly one response frame back; events and
// notifications carry no id.
type envelope struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type response struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, pid domain.PeerID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("pid", string(pid)).Msg("readPump closing")
		ctl.disconnect(pid, c)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("pid", string(pid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Str("pid", string(pid)).Msg("readPump read error")
				return
			}
			ctl.handleMessage(ctx, pid, c, data)
		}
	}
}

func (ctl *Controller) handleMessage(ctx context.Context, pid domain.PeerID, c *wsConn, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "join-room":
		ctl.handleJoinRoom(pid, c, env.Data)
	case "leave-room":
		ctl.handleLeaveRoom(pid, c, env.Data)
	case "signal":
		ctl.handleSignalRelay(pid, c, env.Data)
	case "ping":
		ctl.sendJSON(c, event{Type: "pong"})
	case "getRouterRtpCapabilities", "createProducerTransport", "createConsumerTransport",
		"connectProducerTransport", "connectConsumerTransport", "produce", "consume", "resume":
		ctl.handleRequest(ctx, pid, c, env)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown message")
	}
}

// handleRequest enforces the request/response contract: a request without an
// id cannot be answered and is rejected; every accepted request produces
// exactly one response, success or error.
func (ctl *Controller) handleRequest(ctx context.Context, pid domain.PeerID, c *wsConn, env envelope) {
	if env.ID == "" {
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("request without id")
		return
	}
	data, err := ctl.dispatchRequest(ctx, pid, env)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("pid", string(pid)).Str("type", env.Type).Msg("request failed")
		ctl.sendJSON(c, response{Type: "response", ID: env.ID, Error: err.Error()})
		return
	}
	ctl.sendJSON(c, response{Type: "response", ID: env.ID, Data: data})
}

func (ctl *Controller) sendJSON(c core.SignalConnection, v any) {
	frame, err := marshalFrame(v)
	if err != nil {
		return
	}
	_ = c.TrySend(frame)
}

func marshalFrame(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal frame")
		return nil, err
	}
	return b, nil
}
