package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	if got := cfg.GetString("llm.provider"); got != "openai" {
		t.Errorf("llm.provider = %q, want openai", got)
	}
	if got := cfg.GetFloat64("spam.spam_confidence"); got != 0.7 {
		t.Errorf("spam.spam_confidence = %v, want 0.7", got)
	}
	if got := cfg.GetFloat64("spam.signal_confidence"); got != 0.6 {
		t.Errorf("spam.signal_confidence = %v, want 0.6", got)
	}
	if got := cfg.GetInt("spam.min_signals"); got != 2 {
		t.Errorf("spam.min_signals = %d, want 2", got)
	}
	if cfg.GetBool("spam.ban_on_image_only") {
		t.Error("spam.ban_on_image_only should default off")
	}
	if got := cfg.GetInt("trust.threshold"); got != 2 {
		t.Errorf("trust.threshold = %d, want 2", got)
	}
	if got := cfg.GetInt("context.capacity"); got != 5 {
		t.Errorf("context.capacity = %d, want 5", got)
	}
	if got := cfg.GetInt64("image.max_bytes"); got != 5*1024*1024 {
		t.Errorf("image.max_bytes = %d, want 5 MiB", got)
	}
}

func TestDefaultTimeouts(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	text, err := cfg.GetDuration("llm.text_timeout")
	if err != nil {
		t.Fatalf("text_timeout: %v", err)
	}
	if text != 30*time.Second {
		t.Errorf("text_timeout = %v, want 30s", text)
	}

	image, err := cfg.GetDuration("llm.image_timeout")
	if err != nil {
		t.Fatalf("image_timeout: %v", err)
	}
	if image != 15*time.Second {
		t.Errorf("image_timeout = %v, want 15s", image)
	}
}

func TestGetInt64Slice(t *testing.T) {
	v := NewEmptyViper()
	v.Set("telegram.allowed_chats", []int{-100123, -100456})
	cfg := NewFromViper(v)

	chats := cfg.GetInt64Slice("telegram.allowed_chats")
	if len(chats) != 2 || chats[0] != -100123 || chats[1] != -100456 {
		t.Errorf("allowed_chats = %v, want [-100123 -100456]", chats)
	}
}
