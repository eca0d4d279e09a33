package workflow

import "trackline/internal/deps"

// StageHealth summarizes the readiness of a pipeline dependency.
type StageHealth struct {
	Name   string
	Ready  bool
	Detail string
}

// HealthyStage constructs a ready StageHealth record.
func HealthyStage(name string) StageHealth {
	return StageHealth{Name: name, Ready: true}
}

// UnhealthyStage constructs an unhealthy StageHealth record with context detail.
func UnhealthyStage(name, detail string) StageHealth {
	return StageHealth{Name: name, Ready: false, Detail: detail}
}

func (m *Manager) stageHealth() []StageHealth {
	statuses := append([]deps.Status{deps.CheckFFmpeg(m.cfg)}, deps.CheckWritableDirs(m.cfg)...)
	out := make([]StageHealth, 0, len(statuses))
	for _, status := range statuses {
		name := status.Name
		if status.Name == "Directory" {
			name = status.Command
		}
		if status.Available {
			out = append(out, HealthyStage(name))
		} else {
			out = append(out, UnhealthyStage(name, status.Detail))
		}
	}
	return out
}
