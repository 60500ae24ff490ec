package core

import (
	"encoding/json"
	"time"
)

type ResourceType string

const (
	ResourceDatabase      ResourceType = "database"
	ResourceObjectStorage ResourceType = "object_storage"
	ResourceNamespace     ResourceType = "namespace"
)

// Valid reports whether t is one of the supported resource types.
func (t ResourceType) Valid() bool {
	switch t {
	case ResourceDatabase, ResourceObjectStorage, ResourceNamespace:
		return true
	}
	return false
}

type RequestStatus string

const (
	StatusPending      RequestStatus = "pending"
	StatusApproved     RequestStatus = "approved"
	StatusProvisioning RequestStatus = "provisioning"
	StatusProvisioned  RequestStatus = "provisioned"
	StatusFailed       RequestStatus = "failed"
	StatusRejected     RequestStatus = "rejected"
	StatusDestroyed    RequestStatus = "destroyed"
)

// transitions is the closed set of legal status edges. provisioning to
// approved is the staleness reclaim performed by the worker janitor.
// approved to failed finalizes a request whose provision job exhausted
// its attempts without ever winning the claim, so it cannot sit
// approved forever with no job behind it. failed to destroyed lets
// admins tear down partially created infrastructure.
var transitions = map[RequestStatus][]RequestStatus{
	StatusPending:      {StatusApproved, StatusRejected},
	StatusApproved:     {StatusProvisioning, StatusRejected, StatusFailed},
	StatusProvisioning: {StatusProvisioned, StatusFailed, StatusApproved},
	StatusProvisioned:  {StatusDestroyed},
	StatusFailed:       {StatusDestroyed},
}

// CanTransition reports whether s → next is a legal status transition.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no transition leaves this status.
func (s RequestStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status value.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusProvisioning, StatusProvisioned,
		StatusFailed, StatusRejected, StatusDestroyed:
		return true
	}
	return false
}

type ResourceRequest struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	TeamID       int64           `json:"team_id"`
	ResourceType ResourceType    `json:"resource_type"`
	Name         string          `json:"name"`
	Config       json.RawMessage `json:"config"`
	Status       RequestStatus   `json:"status"`
	Notes        string          `json:"notes"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ConfigMap decodes the request config into a string-keyed map. A nil or
// empty config yields an empty map, never an error.
func (r *ResourceRequest) ConfigMap() map[string]any {
	m := map[string]any{}
	if len(r.Config) > 0 {
		_ = json.Unmarshal(r.Config, &m)
	}
	return m
}
