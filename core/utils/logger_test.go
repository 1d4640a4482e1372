package utils

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core)).With("component", "rewards")
	l.Printf("awarded %d points", 6)
	l.Errorf("failed: %s", "boom")
	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "awarded 6 points" {
		t.Fatalf("unexpected message %q", entries[0].Message)
	}
	if entries[0].ContextMap()["component"] != "rewards" {
		t.Fatalf("expected component field, got %v", entries[0].ContextMap())
	}
	if entries[1].Level != zap.ErrorLevel {
		t.Fatalf("expected error level, got %s", entries[1].Level)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Printf("ignored")
	l.Errorf("ignored")
	if l.With("k", "v") != nil {
		t.Fatalf("expected nil child for nil logger")
	}
}

func TestRandStringLength(t *testing.T) {
	s, err := RandString(32)
	if err != nil {
		t.Fatalf("rand: %v", err)
	}
	if len(s) != 32 {
		t.Fatalf("expected 32 chars, got %d", len(s))
	}
}
