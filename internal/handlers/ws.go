package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jason-s-yu/whot/internal/registry"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultPingInterval = 15 * time.Second
	writeTimeout        = 5 * time.Second
	readLimit           = 64 << 10
)

// ServerOptions tunes the websocket endpoint.
type ServerOptions struct {
	// OriginPatterns are host patterns accepted in the Origin header.
	OriginPatterns []string
	RatePerSec     float64
	RateBurst      int
	PingInterval   time.Duration
	SendBuffer     int
}

var _ registry.Notifier = (*Hub)(nil)

// Server exposes the HTTP surface: /ws and /health.
type Server struct {
	hub        *Hub
	dispatcher *Dispatcher
	reg        *registry.Registry
	opts       ServerOptions
	log        *logrus.Entry
}

func NewServer(hub *Hub, d *Dispatcher, reg *registry.Registry, opts ServerOptions, logger *logrus.Entry) *Server {
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 40
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{hub: hub, dispatcher: d, reg: reg, opts: opts, log: logger.WithField("component", "ws")}
}

// RegisterRoutes mounts the endpoints on r.
func (s *Server) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", s.Health)
	r.GET("/ws", s.HandleWS)
}

// HandleWS upgrades the request and serves the connection until either
// side closes it.
func (s *Server) HandleWS(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: s.opts.OriginPatterns,
	})
	if err != nil {
		s.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	conn.SetReadLimit(readLimit)

	connID := uuid.NewString()
	logger := s.log.WithField("conn", connID)
	client := s.hub.Register(connID, s.opts.SendBuffer)
	s.dispatcher.Connect(connID)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer func() {
		cancel()
		s.dispatcher.Disconnect(connID)
		s.hub.Unregister(connID)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	go s.writeLoop(ctx, cancel, conn, client, logger)

	limiter := rate.NewLimiter(rate.Limit(s.opts.RatePerSec), s.opts.RateBurst)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Debug("Read failed")
			}
			return
		}
		if !limiter.Allow() {
			s.dispatcher.fail(connID, "", ErrRateLimited)
			continue
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.dispatcher.fail(connID, "", ErrInvalidPayload)
			continue
		}
		s.dispatcher.Handle(ctx, connID, env)
	}
}

// writeLoop drains the client's queue and keeps the socket alive with
// pings. Any write failure tears the connection down.
func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, client *Client, logger *logrus.Entry) {
	defer cancel()
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case data := <-client.Send:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			wcancel()
			if err != nil {
				logger.WithError(err).Debug("Write failed")
				return
			}
		case <-ticker.C:
			pctx, pcancel := context.WithTimeout(ctx, s.opts.PingInterval)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				logger.WithError(err).Debug("Ping failed")
				return
			}
		}
	}
}
