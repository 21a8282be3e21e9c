// Package ui exposes the fit pipeline over HTTP.
package ui

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"nscurve/app"
	"nscurve/internal/config"
	"nscurve/internal/errors"
)

// Server is the HTTP front end for the fit service.
type Server struct {
	router  *gin.Engine
	service *app.FitService
	cfg     *config.Config
}

// NewServer creates the server and registers all routes.
func NewServer(cfg *config.Config, service *app.FitService) *Server {
	gin.SetMode(cfg.Server.GinMode)
	s := &Server{
		router:  gin.Default(),
		service: service,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.POST("/fit", s.handleFit)
		api.GET("/config", s.handleConfig)
	}
}

// Start runs the server on the configured port, blocking until it exits.
func (s *Server) Start() error {
	addr := ":" + s.cfg.Server.Port
	log.Printf("[Server] listening on %s", addr)
	return s.router.Run(addr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// httpStatus maps application error codes onto HTTP statuses. Caller
// mistakes are 400s, datasets the engine cannot fit are 422s, everything
// else is a 500.
func httpStatus(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput, errors.CodeDomainInput, errors.CodeConfigInvalid, errors.CodeIngestError:
		return http.StatusBadRequest
	case errors.CodeNoEligibleModel, errors.CodeNoValidCandidate, errors.CodeRankDeficient:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[Server] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}
