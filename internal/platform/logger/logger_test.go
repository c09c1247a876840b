package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"dev", "prod", "production", ""} {
		t.Run(mode, func(t *testing.T) {
			l, err := New(mode)
			if err != nil {
				t.Fatalf("new %q: %v", mode, err)
			}
			if l.SugaredLogger == nil {
				t.Fatal("expected sugared logger")
			}
		})
	}

	if _, err := New("verbose"); err == nil {
		t.Fatal("expected unsupported mode error")
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("session", "s1").Info("step validated", "step", "calc-z1", "accepted", true)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("unexpected entry count: %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["session"] != "s1" || fields["step"] != "calc-z1" || fields["accepted"] != true {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Debug("ignored")
	l.Warn("ignored", "k", 1)
	l.Sync()
}
