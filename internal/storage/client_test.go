package storage

import (
	"context"
	"testing"
)

func TestNewClientRequiresBucket(t *testing.T) {
	if _, err := NewClient(Config{Endpoint: "localhost:9000", Access: "a", Secret: "b"}); err == nil {
		t.Fatal("expected error for empty bucket")
	}
}

func TestNewClientDoesNotDial(t *testing.T) {
	c, err := NewClient(Config{Endpoint: "localhost:9000", Access: "a", Secret: "b", Bucket: "curveflow-artifacts", Prefix: "luts"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.Bucket() != "curveflow-artifacts" {
		t.Fatalf("unexpected bucket %s", c.Bucket())
	}
	if got := c.Key("inv-1", "curves.cube"); got != "luts/inv-1/curves.cube" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestArtifactKey(t *testing.T) {
	cases := []struct {
		prefix, id, name, want string
	}{
		{"", "inv-1", "result.json", "outputs/inv-1/result.json"},
		{"/artifacts/", "inv/../2", "curves.cube", "artifacts/inv____2/curves.cube"},
		{"outputs", "", "../x y.cube", "outputs/unknown/___x_y.cube"},
		{"outputs", "inv", "README", "outputs/inv/README"},
	}
	for _, tc := range cases {
		if got := ArtifactKey(tc.prefix, tc.id, tc.name); got != tc.want {
			t.Fatalf("ArtifactKey(%q, %q, %q) = %q, want %q", tc.prefix, tc.id, tc.name, got, tc.want)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"result.json": "application/json",
		"curves.CUBE": "text/plain; charset=utf-8",
		"blob":        "application/octet-stream",
	}
	for name, want := range cases {
		if got := ContentTypeFor(name); got != want {
			t.Fatalf("ContentTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestPutOptions(t *testing.T) {
	opts, err := putOptions(Artifact{InvocationID: "inv-1", Node: "RGBCurvesAdvanced", Name: "curves.cube"})
	if err != nil {
		t.Fatalf("put options: %v", err)
	}
	if opts.ContentType != "text/plain; charset=utf-8" {
		t.Fatalf("expected content type from extension, got %q", opts.ContentType)
	}
	if opts.UserMetadata["invocation-id"] != "inv-1" || opts.UserMetadata["node"] != "RGBCurvesAdvanced" {
		t.Fatalf("unexpected metadata %v", opts.UserMetadata)
	}

	opts, err = putOptions(Artifact{InvocationID: "inv-1", Name: "result.json", ContentType: "application/vnd.curveflow+json"})
	if err != nil {
		t.Fatalf("put options: %v", err)
	}
	if opts.ContentType != "application/vnd.curveflow+json" {
		t.Fatalf("expected explicit content type kept, got %q", opts.ContentType)
	}
	if _, ok := opts.UserMetadata["node"]; ok {
		t.Fatal("expected no node metadata when node is empty")
	}
}

func TestPutArtifactValidatesBeforeUpload(t *testing.T) {
	c, err := NewClient(Config{Endpoint: "localhost:9000", Access: "a", Secret: "b", Bucket: "curveflow-artifacts"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.PutArtifact(context.Background(), Artifact{InvocationID: "inv-1"}); err == nil {
		t.Fatal("expected error for artifact without a name")
	}
	if _, err := c.PutArtifact(context.Background(), Artifact{Name: "result.json"}); err == nil {
		t.Fatal("expected error for artifact without an invocation id")
	}
}
