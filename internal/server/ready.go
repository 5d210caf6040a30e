package server

import (
	"context"
	"net/http"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/kapu/netfolio/internal/constants"
)

type checkResult struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

type readinessResponse struct {
	Status string        `json:"status"`
	Checks []checkResult `json:"checks"`
}

// handleReady runs every readiness check concurrently, each under its own timeout.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results := s.runChecks(r.Context())

	resp := readinessResponse{Status: "ready", Checks: results}
	status := http.StatusOK
	for _, res := range results {
		if !res.OK {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	respondJSON(w, status, resp)
}

func (s *Server) runChecks(ctx context.Context) []checkResult {
	results := make([]checkResult, len(s.checks))
	p := pool.New().WithMaxGoroutines(constants.ReadinessConfig.Concurrency)

	for idx, check := range s.checks {
		idx, check := idx, check
		p.Go(func() {
			checkCtx, cancel := context.WithTimeout(ctx, constants.ReadinessConfig.CheckTimeout)
			defer cancel()

			started := time.Now()
			err := check.Check(checkCtx)
			res := checkResult{
				Name:     check.Name,
				OK:       err == nil,
				Duration: time.Since(started).Round(time.Millisecond).String(),
			}
			if err != nil {
				res.Error = err.Error()
				s.logger.Warn("Readiness check failed", zap.String("check", check.Name), zap.Error(err))
			}
			results[idx] = res
		})
	}

	p.Wait()
	return results
}
