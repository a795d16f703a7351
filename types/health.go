package types

import "time"

type HealthStatus string

const (
	HealthOK       HealthStatus = "ok"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)

type ComponentHealth struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	Detail    string       `json:"detail,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type HealthManager interface {
	SetStatus(component string, status HealthStatus, detail string)
	Snapshot() map[string]ComponentHealth
}
