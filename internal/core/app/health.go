package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if s.app.Graph == nil {
		status.Status = "degraded"
		status.Components["graph"] = "missing"
	} else {
		status.Components["graph"] = fmt.Sprintf("ok (%d files)", s.app.Graph.FileCount())
	}

	if s.app.Store == nil {
		status.Status = "degraded"
		status.Components["store"] = "missing"
	} else if err := s.app.Store.Ping(ctx); err != nil {
		status.Status = "degraded"
		status.Components["store"] = err.Error()
	} else {
		status.Components["store"] = "ok"
	}

	if s.app.Parser == nil {
		status.Status = "degraded"
		status.Components["parser"] = "missing"
	} else {
		status.Components["parser"] = fmt.Sprintf("ok (%d active)", s.app.Parser.ActiveParsers())
	}

	if s.app.Scheduler == nil {
		status.Status = "degraded"
		status.Components["scheduler"] = "missing"
	} else {
		status.Components["scheduler"] = fmt.Sprintf("ok (%d queued)", s.app.Scheduler.QueueDepth())
	}

	return status
}
