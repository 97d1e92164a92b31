package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/video-routing-backend/internal/gateway"
	"github.com/DoyleJ11/video-routing-backend/internal/protocol"
	"github.com/DoyleJ11/video-routing-backend/internal/registry"
)

type Options struct {
	OriginPatterns []string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
	OutboxSize     int
}

func Handler(gw *gateway.Gateway, opts Options, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hs := protocol.ParseHandshake(r.URL.Query())

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		conn.SetReadLimit(opts.ReadLimit)

		connID := registry.ConnID(uuid.NewString())
		log := log.With(zap.String("conn", string(connID)))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan protocol.ServerMessage, opts.OutboxSize)
		if !gw.Send(ctx, gateway.Open{Conn: connID, Handshake: hs, Outbox: out}) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
		log.Info("connected", zap.String("role", string(hs.Role)), zap.String("remote", r.RemoteAddr))

		// Writer goroutine
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			writeLoop(ctx, cancel, conn, out, opts, log)
		}()

		readLoop(ctx, conn, gw, connID, log)

		cancel()
		<-writerDone
		gw.Send(context.Background(), gateway.Close{Conn: connID})
		conn.Close(websocket.StatusNormalClosure, "bye")
		log.Info("disconnected")
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, gw *gateway.Gateway, connID registry.ConnID, log *zap.Logger) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Treat clean close/going-away and our own cancellation as normal.
			switch {
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
				websocket.CloseStatus(err) == websocket.StatusGoingAway,
				errors.Is(err, context.Canceled):
			default:
				log.Debug("read ended", zap.Error(err))
			}
			return
		}

		req, err := protocol.DecodeRequest(data)
		if err != nil {
			log.Warn("frame dropped", zap.Error(err))
			continue
		}
		log.Debug("frame received", zap.ByteString("data", data))

		if !gw.Send(ctx, gateway.Inbound{Conn: connID, Req: req}) {
			return
		}
	}
}

// writeLoop drains the outbox until the gateway closes it, the socket
// fails, or ctx ends. It also owns the keepalive pings.
func writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan protocol.ServerMessage, opts Options, log *zap.Logger) {
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-out:
			if !ok {
				// Closed by the gateway: dropped as a slow consumer or shutdown.
				conn.Close(websocket.StatusGoingAway, "dropped by server")
				cancel()
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, opts.WriteTimeout)
			err := wsjson.Write(wctx, conn, msg)
			wcancel()
			if err != nil {
				log.Debug("write failed", zap.String("event", msg.Event), zap.Error(err))
				cancel()
				return
			}

		case <-ticker.C:
			pctx, pcancel := context.WithTimeout(ctx, opts.WriteTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				log.Debug("ping failed", zap.Error(err))
				cancel()
				return
			}
		}
	}
}
