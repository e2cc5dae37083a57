package domain

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	InvocationStatusCreated    = "created"
	InvocationStatusQueued     = "queued"
	InvocationStatusProcessing = "processing"
	InvocationStatusSucceeded  = "succeeded"
	InvocationStatusFailed     = "failed"
)

type CreateInvocationRequest struct {
	Node       string         `json:"node"`
	Inputs     map[string]any `json:"inputs"`
	WebhookURL string         `json:"webhook_url,omitempty"`
}

// Invocation is one asynchronous run of a node.
type Invocation struct {
	ID         string          `json:"id"`
	Node       string          `json:"node"`
	Status     string          `json:"status"`
	Inputs     map[string]any  `json:"inputs"`
	WebhookURL string          `json:"webhook_url,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (r CreateInvocationRequest) Validate() error {
	if strings.TrimSpace(r.Node) == "" {
		return errors.New("node is required")
	}
	if webhook := strings.TrimSpace(r.WebhookURL); webhook != "" {
		u, err := url.Parse(webhook)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("webhook_url must be an absolute http(s) URL")
		}
	}
	return nil
}

func IsTerminalStatus(status string) bool {
	return status == InvocationStatusSucceeded || status == InvocationStatusFailed
}
