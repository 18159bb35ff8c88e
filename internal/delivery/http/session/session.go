package http_session

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	ws_session "github.com/reelpick/core/internal/delivery/ws/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Controller exposes the single websocket endpoint all session traffic runs
// over. Everything else (create, join, swipe, ...) is events on that socket.
type Controller struct {
	dispatcher *ws_session.Dispatcher
	logger     *slog.Logger
}

type ControllerOption func(*Controller)

func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func New(dispatcher *ws_session.Dispatcher, opts ...ControllerOption) *Controller {
	c := &Controller{
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/session/ws", c.sessionWS)
}

func (c *Controller) sessionWS(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.logger.Error("failed to upgrade to websocket",
			slog.String("error", err.Error()),
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	go c.dispatcher.HandleConn(conn)
}
