package queue

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
)

func TestExecuteNodeTaskRoundTrip(t *testing.T) {
	payload := ExecuteNodePayload{
		InvocationID: "inv-123",
		Node:         "RGBCurvesAdvanced",
		Inputs: map[string]any{
			"rgb_curve_points": map[string]any{"red": []any{0.0, 1.0}},
			"frequency":        2.0,
		},
		RequestedAt: time.Now().UTC(),
	}

	task, err := NewExecuteNodeTask(payload)
	if err != nil {
		t.Fatalf("NewExecuteNodeTask returned error: %v", err)
	}
	if task.Type() != TypeExecuteNode {
		t.Fatalf("expected task type %q, got %q", TypeExecuteNode, task.Type())
	}

	parsed, err := ParseExecuteNodePayload(task)
	if err != nil {
		t.Fatalf("ParseExecuteNodePayload returned error: %v", err)
	}

	if parsed.InvocationID != payload.InvocationID {
		t.Fatalf("expected invocation_id %q, got %q", payload.InvocationID, parsed.InvocationID)
	}
	if _, ok := parsed.Inputs["rgb_curve_points"].(map[string]any); !ok {
		t.Fatalf("expected curve points to survive, got %#v", parsed.Inputs)
	}
}

func TestParseExecuteNodePayloadRejectsGarbage(t *testing.T) {
	if _, err := ParseExecuteNodePayload(asynq.NewTask(TypeExecuteNode, []byte("{"))); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
