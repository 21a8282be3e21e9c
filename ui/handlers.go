package ui

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nscurve/adapters/ingest"
	"nscurve/app"
	"nscurve/domain/curve"
	"nscurve/internal/errors"
)

// FitRequest is the POST /api/fit body. Observations are pre-normalized
// points; option fields override the server's configured defaults when set.
type FitRequest struct {
	Observations []curve.Observation `json:"observations" binding:"required"`
	ValueKind    string              `json:"value_kind"`

	ModelSpec        *string  `json:"model_spec"`
	TauMin           *float64 `json:"tau_min"`
	TauMax           *float64 `json:"tau_max"`
	FrontEndMode     *string  `json:"front_end_mode"`
	FrontEndValue    *float64 `json:"front_end_value"`
	ShortEndMonotone *string  `json:"short_end_monotone"`
	Robust           *string  `json:"robust"`
	RobustIters      *int     `json:"robust_iters"`
	RobustK          *float64 `json:"robust_k"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.Fit)
}

func (s *Server) handleFit(c *gin.Context) {
	var req FitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Newf(errors.CodeInvalidInput, "invalid request body: %v", err))
		return
	}
	if len(req.Observations) == 0 {
		respondError(c, errors.InvalidInput("observations must not be empty"))
		return
	}

	fitCfg := s.overlayConfig(req)
	out, err := s.service.Run(c.Request.Context(), app.RunInput{
		Observations: req.Observations,
		ValueKind:    ingest.ValueKind(req.ValueKind),
		FitConfig:    &fitCfg,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// overlayConfig applies request overrides on top of the configured defaults.
func (s *Server) overlayConfig(req FitRequest) curve.FitConfig {
	cfg := s.cfg.Fit
	if req.ModelSpec != nil {
		cfg.ModelSpec = curve.ModelSpec(*req.ModelSpec)
	}
	if req.TauMin != nil {
		cfg.TauMin = *req.TauMin
	}
	if req.TauMax != nil {
		cfg.TauMax = *req.TauMax
	}
	if req.FrontEndMode != nil {
		cfg.FrontEndMode = curve.FrontEndMode(*req.FrontEndMode)
	}
	if req.FrontEndValue != nil {
		cfg.FrontEndValue = *req.FrontEndValue
		cfg.FrontEndMode = curve.FrontEndFixed
	}
	if req.ShortEndMonotone != nil {
		cfg.ShortEndMonotone = curve.ShortEndMonotone(*req.ShortEndMonotone)
	}
	if req.Robust != nil {
		cfg.Robust = curve.RobustKind(*req.Robust)
	}
	if req.RobustIters != nil {
		cfg.RobustIters = *req.RobustIters
	}
	if req.RobustK != nil {
		cfg.RobustK = *req.RobustK
	}
	return cfg
}
