package http_init

import (
	"log"
	"net"

	"github.com/gin-gonic/gin"
)

const apiPrefix = "/api/v1"

// Controller is anything that can mount routes under the versioned API group.
type Controller interface {
	RegisterRoutes(router *gin.RouterGroup)
}

// Server collects the API controllers and runs the gin engine that serves
// them all under one versioned prefix.
type Server struct {
	engine      *gin.Engine
	controllers []Controller
}

func NewServer(controllers ...Controller) *Server {
	return &Server{
		engine:      gin.Default(),
		controllers: controllers,
	}
}

func (s *Server) Add(c Controller) {
	s.controllers = append(s.controllers, c)
}

// Run mounts every controller and serves until the process exits.
func (s *Server) Run(host, port string) {
	group := s.engine.Group(apiPrefix)
	for _, c := range s.controllers {
		c.RegisterRoutes(group)
	}

	if err := s.engine.Run(net.JoinHostPort(host, port)); err != nil {
		log.Fatalf("failed to run HTTP server: %v", err)
	}
}
