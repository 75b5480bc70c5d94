package config

import (
	"strings"
	"testing"
)

func TestDefaultServices(t *testing.T) {
	s := DefaultServices()

	openai, ok := s.Get("openai")
	if !ok {
		t.Fatal("openai missing")
	}
	if openai.ResponseKey != "chatgpt" {
		t.Errorf("Expected chatgpt response key, got %s", openai.ResponseKey)
	}

	if svc, ok := s.ByResponseKey("chatgpt"); !ok || svc.Name != "openai" {
		t.Errorf("chatgpt should resolve to openai, got %+v", svc)
	}
	if svc, ok := s.Resolve("grok"); !ok || svc.Kind != KindOpenAI {
		t.Errorf("grok should use the openai-compatible kind, got %+v", svc)
	}
	if _, ok := s.Resolve("claude"); ok {
		t.Error("claude should not resolve")
	}
}

func TestParseServicesOverride(t *testing.T) {
	data := []byte(`
services:
  gemini:
    free_model: gemini-1.5-flash
    output_per_1k: 0.002
  grok:
    base_url: http://localhost:9000/v1
`)
	s, err := ParseServices(data)
	if err != nil {
		t.Fatalf("ParseServices failed: %v", err)
	}

	gemini, _ := s.Get("gemini")
	if gemini.FreeModel != "gemini-1.5-flash" {
		t.Errorf("Expected override model, got %s", gemini.FreeModel)
	}
	if gemini.OutputPer1K != 0.002 {
		t.Errorf("Expected output price 0.002, got %v", gemini.OutputPer1K)
	}
	if gemini.DisplayName != "Gemini" {
		t.Errorf("Display name should keep its default, got %s", gemini.DisplayName)
	}

	grok, _ := s.Get("grok")
	if grok.BaseURL != "http://localhost:9000/v1" {
		t.Errorf("Unexpected grok base url %s", grok.BaseURL)
	}
	if grok.InputPer1K != 0.005 {
		t.Errorf("Absent price should keep the default, got %v", grok.InputPer1K)
	}
}

func TestParseServicesRejectsUnknown(t *testing.T) {
	_, err := ParseServices([]byte("services:\n  claude:\n    free_model: x\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown service") {
		t.Errorf("Expected unknown service error, got %v", err)
	}
}

func TestParseServicesRejectsNegativePrice(t *testing.T) {
	_, err := ParseServices([]byte("services:\n  openai:\n    input_per_1k: -1\n"))
	if err == nil {
		t.Error("Expected negative price to be rejected")
	}
}

func TestParseServicesRejectsResponseKeys(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "services:\n  grok:\n    response_key: claude\n", "unknown response key"},
		{"duplicate key", "services:\n  grok:\n    response_key: gemini\n", "share response key"},
	}
	for _, c := range cases {
		_, err := ParseServices([]byte(c.yaml))
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: expected %q error, got %v", c.name, c.want, err)
		}
	}

	if _, err := ParseServices([]byte("services:\n  openai:\n    response_key: chatgpt\n")); err != nil {
		t.Errorf("Restating the default key should be accepted, got %v", err)
	}
}
