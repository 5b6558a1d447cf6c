package logging

import "testing"

func TestInitializeAndFor(t *testing.T) {
	err := Initialize(Config{Level: "debug"})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	lg := For(CategoryGateway)
	if lg == nil {
		t.Fatal("For returned nil")
	}
	lg.Debug("gateway debug line") // must not panic
}

func TestDisabledCategoryIsNop(t *testing.T) {
	err := Initialize(Config{
		Level:      "info",
		Categories: map[string]bool{"notify": false, "gateway": true},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if core := For(CategoryNotify).Core(); core.Enabled(0) {
		t.Error("disabled category logger is not a nop")
	}
	if core := For(CategoryGateway).Core(); !core.Enabled(0) {
		t.Error("enabled category logger is a nop")
	}
}

func TestInvalidLevelRejected(t *testing.T) {
	if err := Initialize(Config{Level: "loud"}); err == nil {
		t.Error("invalid level accepted")
	}
}

func TestSetLevel(t *testing.T) {
	if err := Initialize(Config{Level: "error"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if For(CategoryBoot).Core().Enabled(0) {
		t.Fatal("info enabled at error level")
	}
	SetLevel("debug")
	if !For(CategoryBoot).Core().Enabled(0) {
		t.Error("info not enabled after SetLevel(debug)")
	}
	SetLevel("nonsense") // ignored
}
