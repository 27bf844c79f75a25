package config

import (
	"slices"
	"testing"
)

func TestKeys(t *testing.T) {
	keys := Keys()
	for _, want := range []string{"data_dir", "api.base_url", "api.api_key", "follow.transport", "cache.gc_seconds", "telegram.chat_id", "sync.schedule"} {
		if !slices.Contains(keys, want) {
			t.Errorf("expected key %s in %v", want, keys)
		}
	}
	for _, k := range keys {
		if k == "api" || k == "follow" {
			t.Errorf("section %s listed as a key", k)
		}
	}
	if keys[0] != "data_dir" {
		t.Errorf("expected declaration order, got %s first", keys[0])
	}
}

func TestIsSecretKey(t *testing.T) {
	if !IsSecretKey("api.api_key") || !IsSecretKey("telegram.token") {
		t.Error("expected api.api_key and telegram.token to be secret")
	}
	for _, k := range []string{"api.base_url", "telegram.chat_id", "nonexistent"} {
		if IsSecretKey(k) {
			t.Errorf("%s is not a secret", k)
		}
	}
}

func TestChoices(t *testing.T) {
	if got := Choices("follow.transport"); !slices.Equal(got, []string{"poll", "websocket"}) {
		t.Errorf("unexpected transport choices %v", got)
	}
	if got := Choices("api.base_url"); got != nil {
		t.Errorf("expected no choices for api.base_url, got %v", got)
	}
}

func TestConfigSetCoercesTypes(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Set("cache.stale_seconds", "45"); err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.StaleSeconds != 45 {
		t.Errorf("expected 45, got %d", cfg.Cache.StaleSeconds)
	}
	if err := cfg.Set("telegram.chat_id", "-100123456789"); err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.ChatID != -100123456789 {
		t.Errorf("expected chat id to fit int64, got %d", cfg.Telegram.ChatID)
	}
	if err := cfg.Set("http.enabled", "true"); err != nil {
		t.Fatal(err)
	}
	if !cfg.HTTP.Enabled {
		t.Error("expected http.enabled to be set")
	}
	if err := cfg.Set("follow.transport", "websocket"); err != nil {
		t.Fatal(err)
	}
	if cfg.Follow.Transport != "websocket" {
		t.Errorf("expected websocket, got %q", cfg.Follow.Transport)
	}

	if err := cfg.Set("follow.transport", "smoke"); err == nil {
		t.Error("expected error for transport outside its choices")
	}
	if err := cfg.Set("cache.gc_seconds", "soon"); err == nil {
		t.Error("expected error for non-integer")
	}
	if cfg.Follow.Transport != "websocket" || cfg.Cache.GCSeconds != 900 {
		t.Error("failed sets must not change the config")
	}
}

func TestConfigGet(t *testing.T) {
	cfg := Defaults()
	v, err := cfg.Get("follow.poll_interval_ms")
	if err != nil {
		t.Fatal(err)
	}
	if v != 2000 {
		t.Errorf("expected 2000, got %v (%T)", v, v)
	}
	if _, err := cfg.Get("follow"); err == nil {
		t.Error("expected error for a section name")
	}
}

func TestMaskValue(t *testing.T) {
	cases := []struct {
		key  string
		in   any
		want any
	}{
		{"api.api_key", "sk-test123456", "***3456"},
		{"telegram.token", "123456:ABCdefGHIjkl", "***Ijkl"},
		{"api.api_key", "ab", "***ab"},
		{"api.api_key", "abcd", "***abcd"},
		{"api.api_key", "", ""},
		{"api.api_key", "clé-ñandú", "***andú"},
		{"api.base_url", "https://app.example.com", "https://app.example.com"},
		{"max_concurrent", 4, 4},
	}
	for _, tc := range cases {
		if got := MaskValue(tc.key, tc.in); got != tc.want {
			t.Errorf("MaskValue(%s, %v) = %v, want %v", tc.key, tc.in, got, tc.want)
		}
	}
}

func TestListValues_CoversEveryKey(t *testing.T) {
	values, err := ListValues(Defaults(), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != len(Keys()) {
		t.Errorf("expected %d values, got %d", len(Keys()), len(values))
	}
	if values["follow.page_size"] != 100 {
		t.Errorf("expected typed page_size, got %v (%T)", values["follow.page_size"], values["follow.page_size"])
	}
}
