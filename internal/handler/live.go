package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"folio/internal/auth"
	"folio/internal/live"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	liveReadLimit       = 64 << 10
)

// LiveHandler upgrades authenticated requests to a websocket session on the
// broadcaster. The token comes from the Authorization header or ?token=.
type LiveHandler struct {
	Broadcaster  *live.Broadcaster
	JWT          auth.JWT
	WriteTimeout time.Duration
	PingInterval time.Duration
	// OriginPatterns is passed to websocket.Accept; empty allows same origin only.
	OriginPatterns []string
	Logger         *zap.Logger
}

func (h *LiveHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/ws", h.serve)
}

type liveCommand struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type portfolioRef struct {
	PortfolioID json.RawMessage `json:"portfolioId"`
}

// @Summary Live event channel
// @Tags live
// @Param token query string false "bearer token when headers are unavailable"
// @Success 101
// @Failure 401 {object} apiResponse
// @Router /api/v1/ws [get]
func (h *LiveHandler) serve(c *gin.Context) {
	token := auth.TokenFromRequest(c.Request)
	if token == "" {
		Error(c, http.StatusUnauthorized, "missing token", nil)
		return
	}
	claims, err := h.JWT.Verify(token)
	if err != nil || claims.UserID == 0 {
		Error(c, http.StatusUnauthorized, "invalid token", nil)
		return
	}

	sess, err := h.Broadcaster.Connect(claims.UserID)
	if err != nil {
		Error(c, http.StatusServiceUnavailable, "live channel unavailable", nil)
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{OriginPatterns: h.OriginPatterns})
	if err != nil {
		h.Broadcaster.Disconnect(sess)
		h.logger().Warn("live accept failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(liveReadLimit)
	h.logger().Info("live connected", zap.String("session_id", sess.ID), zap.Uint64("user_id", claims.UserID))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		defer cancel()
		h.readLoop(ctx, conn, sess)
	}()

	err = h.writeLoop(ctx, conn, sess)
	h.Broadcaster.Disconnect(sess)
	status := websocket.StatusNormalClosure
	if err != nil && !errors.Is(err, context.Canceled) {
		status = websocket.StatusInternalError
		h.logger().Debug("live write loop ended", zap.String("session_id", sess.ID), zap.Error(err))
	}
	_ = conn.Close(status, "")
	h.logger().Info("live disconnected", zap.String("session_id", sess.ID), zap.Uint64("dropped", sess.Dropped()))
}

func (h *LiveHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *live.Session) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd liveCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		switch cmd.Event {
		case live.CommandSubscribe:
			h.Broadcaster.Subscribe(ctx, sess, parsePortfolioRef(cmd.Data))
		case live.CommandUnsubscribe:
			h.Broadcaster.Unsubscribe(sess, parsePortfolioRef(cmd.Data))
		}
	}
}

// writeLoop drains the session queue until it closes or ctx ends, pinging
// the peer between events.
func (h *LiveHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sess *live.Session) error {
	ticker := time.NewTicker(h.pingInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sess.Events():
			if !ok {
				return nil
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.logger().Warn("live encode failed", zap.String("event", ev.Name), zap.Error(err))
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, h.writeTimeout())
			err = conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return err
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, h.writeTimeout())
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// parsePortfolioRef accepts {"portfolioId": 12} and {"portfolioId": "12"}.
// Zero means unparseable and is rejected by Subscribe.
func parsePortfolioRef(raw json.RawMessage) uint64 {
	var ref portfolioRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return 0
	}
	v := strings.Trim(strings.TrimSpace(string(ref.PortfolioID)), `"`)
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (h *LiveHandler) writeTimeout() time.Duration {
	if h.WriteTimeout > 0 {
		return h.WriteTimeout
	}
	return defaultWriteTimeout
}

func (h *LiveHandler) pingInterval() time.Duration {
	if h.PingInterval > 0 {
		return h.PingInterval
	}
	return defaultPingInterval
}

func (h *LiveHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
