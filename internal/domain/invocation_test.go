package domain

import "testing"

func TestCreateInvocationRequestValidate(t *testing.T) {
	valid := CreateInvocationRequest{
		Node:       "RGBCurvesAdvanced",
		Inputs:     map[string]any{"rgb_curve_points": map[string]any{"red": []any{0.5}}},
		WebhookURL: "https://hooks.example.com/curves",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	invalid := CreateInvocationRequest{}
	if err := invalid.Validate(); err == nil {
		t.Fatal("expected validation error for empty request")
	}

	badWebhook := CreateInvocationRequest{
		Node:       "Curve Visualizer",
		WebhookURL: "ftp://hooks.example.com",
	}
	if err := badWebhook.Validate(); err == nil {
		t.Fatal("expected validation error for non-http webhook_url")
	}

	relativeWebhook := CreateInvocationRequest{
		Node:       "Curve Visualizer",
		WebhookURL: "/hooks",
	}
	if err := relativeWebhook.Validate(); err == nil {
		t.Fatal("expected validation error for relative webhook_url")
	}
}

func TestIsTerminalStatus(t *testing.T) {
	if !IsTerminalStatus(InvocationStatusFailed) || !IsTerminalStatus(InvocationStatusSucceeded) {
		t.Fatal("expected succeeded and failed to be terminal")
	}
	if IsTerminalStatus(InvocationStatusQueued) {
		t.Fatal("expected queued to be non-terminal")
	}
}
