package gateway

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/video-routing-backend/internal/journal"
	"github.com/DoyleJ11/video-routing-backend/internal/metrics"
	"github.com/DoyleJ11/video-routing-backend/internal/protocol"
	"github.com/DoyleJ11/video-routing-backend/internal/registry"
	"github.com/DoyleJ11/video-routing-backend/internal/router"
)

type Msg interface{ isGatewayMsg() }

// Open registers a new transport connection and classifies it from its
// handshake. Outbox is where the connection wants to receive frames; the
// gateway closes it when the connection is closed or dropped.
type Open struct {
	Conn      registry.ConnID
	Handshake protocol.Handshake
	Outbox    chan protocol.ServerMessage
}

func (Open) isGatewayMsg() {}

type Inbound struct {
	Conn registry.ConnID
	Req  protocol.Request
}

func (Inbound) isGatewayMsg() {}

type Close struct{ Conn registry.ConnID }

func (Close) isGatewayMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isGatewayMsg() {}

type Shutdown struct{}

func (Shutdown) isGatewayMsg() {}

// Identity is what a classified connection stands for.
type Identity struct {
	Role protocol.Role
	ID   string
}

type View struct {
	Clients     map[string]protocol.ClientView
	Admins      []protocol.AdminView
	Connections int
	Classified  int
}

type Gateway struct {
	inbox      chan Msg
	router     *router.Router
	conns      map[registry.ConnID]chan protocol.ServerMessage
	identities map[registry.ConnID]Identity // reverse index, the only source for close cleanup
	journal    journal.Recorder
	metrics    *metrics.Metrics
	log        *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

type Option func(*Gateway)

func WithJournal(j journal.Recorder) Option { return func(g *Gateway) { g.journal = j } }

func WithMetrics(m *metrics.Metrics) Option { return func(g *Gateway) { g.metrics = m } }

func WithInboxSize(n int) Option {
	return func(g *Gateway) { g.inbox = make(chan Msg, n) }
}

func New(parent context.Context, rt *router.Router, log *zap.Logger, opts ...Option) *Gateway {
	ctx, cancel := context.WithCancel(parent)

	g := &Gateway{
		inbox:      make(chan Msg, 64),
		router:     rt,
		conns:      make(map[registry.ConnID]chan protocol.ServerMessage),
		identities: make(map[registry.ConnID]Identity),
		journal:    journal.Nop{},
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = metrics.New(nil)
	}

	go g.loop()
	return g
}

// Inbox exposes the raw inbox for tests and the transport layer.
func (g *Gateway) Inbox() chan<- Msg { return g.inbox }

// Send queues m unless ctx ends or the gateway has stopped first.
func (g *Gateway) Send(ctx context.Context, m Msg) bool {
	select {
	case g.inbox <- m:
		return true
	case <-g.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// State asks the loop for a consistent view.
func (g *Gateway) State(ctx context.Context) (View, bool) {
	reply := make(chan View, 1)
	if !g.Send(ctx, GetState{Reply: reply}) {
		return View{}, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-g.done:
		return View{}, false
	case <-ctx.Done():
		return View{}, false
	}
}

func (g *Gateway) Done() <-chan struct{} { return g.done }

func (g *Gateway) loop() {
	defer close(g.done)
	for {
		select {
		case <-g.ctx.Done():
			g.shutdown()
			return

		case m := <-g.inbox:
			if stop := g.handle(m); stop {
				return
			}
		}
	}
}

// handle runs one message to completion. A panic is contained here so one
// bad event cannot take the loop down.
func (g *Gateway) handle(m Msg) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			g.metrics.HandlerPanics.Inc()
			g.log.Error("handler panic recovered", zap.Any("panic", r), zap.Stack("stack"))
			stop = false
		}
	}()

	switch msg := m.(type) {
	case Open:
		g.open(msg)

	case Inbound:
		g.inbound(msg)

	case Close:
		g.closeConn(msg.Conn)

	case GetState:
		// State buffers Reply; a reply nobody is ready to take is dropped.
		select {
		case msg.Reply <- g.view():
		default:
			g.log.Warn("state reply not ready, dropped")
		}

	case Shutdown:
		g.shutdown()
		return true
	}
	return false
}

func (g *Gateway) view() View {
	reg := g.router.Registry()
	return View{
		Clients:     router.ClientViews(reg),
		Admins:      router.AdminViews(reg),
		Connections: len(g.conns),
		Classified:  len(g.identities),
	}
}

func (g *Gateway) updatePresence() {
	g.metrics.SetPresence(g.router.Registry().Len())
	g.metrics.Connections.Set(float64(len(g.conns)))
}

func (g *Gateway) shutdown() {
	for conn, out := range g.conns {
		close(out)
		delete(g.conns, conn)
	}
	clear(g.identities)
	g.router.Registry().Reset()
	g.updatePresence()
	g.cancel()
}
