package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TypeExecuteNode = "node:execute"

type ExecuteNodePayload struct {
	InvocationID string         `json:"invocation_id"`
	Node         string         `json:"node"`
	Inputs       map[string]any `json:"inputs"`
	WebhookURL   string         `json:"webhook_url,omitempty"`
	RequestedAt  time.Time      `json:"requested_at"`
}

func NewExecuteNodeTask(payload ExecuteNodePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal execute payload: %w", err)
	}
	return asynq.NewTask(TypeExecuteNode, body), nil
}

func ParseExecuteNodePayload(task *asynq.Task) (ExecuteNodePayload, error) {
	var payload ExecuteNodePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ExecuteNodePayload{}, fmt.Errorf("unmarshal execute payload: %w", err)
	}
	return payload, nil
}
