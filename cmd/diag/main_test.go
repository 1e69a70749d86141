package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestReplayIsDeterministic(t *testing.T) {
	opts := replayOptions{steps: 30, deltaMs: 16, speed: 0.5}

	var a, b bytes.Buffer
	if err := runReplay(context.Background(), &a, opts); err != nil {
		t.Fatalf("first replay: %v", err)
	}
	if err := runReplay(context.Background(), &b, opts); err != nil {
		t.Fatalf("second replay: %v", err)
	}
	if a.String() != b.String() {
		t.Errorf("replays differ:\n%s\n---\n%s", a.String(), b.String())
	}
	if !strings.Contains(a.String(), "frame 31 at t=480ms") {
		t.Errorf("unexpected header:\n%s", a.String())
	}
}

func TestReplaySelect(t *testing.T) {
	var out bytes.Buffer
	err := runReplay(context.Background(), &out, replayOptions{steps: 1, deltaMs: 16, speed: 0.5, selectB: "saturn"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !strings.Contains(out.String(), `selected="saturn"`) {
		t.Errorf("selection missing from output:\n%s", out.String())
	}
}

func TestReplayRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		opts replayOptions
	}{
		{"negative steps", replayOptions{steps: -1, speed: 0.5}},
		{"negative delta", replayOptions{deltaMs: -5, speed: 0.5}},
		{"speed too high", replayOptions{speed: 3}},
		{"unknown body", replayOptions{speed: 0.5, selectB: "pluto"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := runReplay(context.Background(), &bytes.Buffer{}, tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBodiesCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"bodies"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 10 {
		t.Errorf("got %d lines, want header plus 9 bodies:\n%s", len(lines), out.String())
	}
}
