package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	mediasoup "github.com/jiyeyuran/mediasoup-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/avdeyev/onair/internal/app"
	"github.com/avdeyev/onair/internal/app/session"
	"github.com/avdeyev/onair/internal/core"
	"github.com/avdeyev/onair/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// MediaSession is the slice of the session coordinator the dispatcher needs.
type MediaSession interface {
	Capabilities() *mediasoup.RtpCapabilities
	CreateTransport(ctx context.Context, role domain.TransportRole) (*session.TransportInfo, error)
	ConnectTransport(ctx context.Context, role domain.TransportRole, dtls *mediasoup.DtlsParameters) error
	Produce(ctx context.Context, kind mediasoup.MediaKind, rtp *mediasoup.RtpParameters) (string, error)
	Consume(ctx context.Context, caps *mediasoup.RtpCapabilities) (*session.ConsumerInfo, error)
	Resume(ctx context.Context) error
}

// Controller binds inbound websocket events to room and media operations.
type Controller struct {
	Registry    *app.Registry
	Rooms       core.RoomManager
	Media       MediaSession
	JoinLimiter *JoinRateLimiter

	ReadLimit int64
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	// One PeerID per channel endpoint: two tabs of the same browser share a
	// client token but must never share a registry entry.
	pid := domain.PeerID(uuid.NewString())
	log.Info().Str("module", "signal").Str("pid", string(pid)).Str("client", c.GetString("client_token")).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Registry.Bind(pid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, pid, conn)
}

// broadcastRoom fans an event out to every room member except from. Members
// that cannot keep up get canceled and their socket closed; closing unblocks
// their read pump so the disconnect path runs and cleans up after them.
func (ctl *Controller) broadcastRoom(roomID domain.RoomID, from domain.PeerID, v any) {
	room, ok := ctl.Rooms.Get(roomID)
	if !ok {
		return
	}
	frame, err := marshalFrame(v)
	if err != nil {
		return
	}
	res := room.Broadcast(from, frame)
	for _, slow := range res.Dropped {
		log.Warn().Str("module", "signal").Str("pid", string(slow)).Msg("dropping slow member")
		ctl.Registry.Cancel(slow)
		if conn, ok := ctl.Registry.Get(slow); ok {
			conn.Close()
		}
	}
}

// broadcastAll notifies every connected peer except from, regardless of
// rooms. Used for the process-global newProducer notification.
func (ctl *Controller) broadcastAll(from domain.PeerID, v any) {
	for _, snap := range ctl.Registry.Connections() {
		if snap.PID == from {
			continue
		}
		ctl.sendJSON(snap.Conn, v)
	}
}
