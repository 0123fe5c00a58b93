package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	RunID      string            `json:"run_id"`
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
		RunID:      s.app.RunID,
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}
	if err := ctx.Err(); err != nil {
		status.Status = "down"
		status.Components["context"] = err.Error()
		return status
	}

	if s.app.Project == nil {
		status.Status = "degraded"
		status.Components["index"] = "missing"
	} else {
		st := s.app.Project.Stats()
		status.Components["index"] = fmt.Sprintf("ok (%d files, %d identifiers)", st.Files, st.Identifiers)
	}

	if s.app.store != nil {
		status.Components["stub_store"] = "ok"
	} else if s.app.Config.DB.Enabled {
		status.Status = "degraded"
		status.Components["stub_store"] = "missing but enabled in config"
	} else {
		status.Components["stub_store"] = "disabled"
	}

	if s.app.activeWatcher != nil {
		status.Components["watcher"] = "running"
	} else {
		status.Components["watcher"] = "stopped"
	}
	return status
}
