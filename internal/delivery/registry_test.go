// internal/delivery/registry_test.go
package delivery

import (
	"bytes"
	"strings"
	"testing"

	"github.com/user/deskdev/internal/render"
	"github.com/user/deskdev/internal/types"
)

func TestRegistryDeliver(t *testing.T) {
	reg := NewRegistry()

	var gotKey types.DeliveryKey
	var gotMsg render.Message
	reg.Register("test:", func(key types.DeliveryKey, msg render.Message) error {
		gotKey = key
		gotMsg = msg
		return nil
	})

	err := reg.Deliver("test:123", render.Message{Role: render.RoleUser, Body: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "test:123" {
		t.Errorf("expected key %q, got %q", "test:123", gotKey)
	}
	if gotMsg.Body != "hello" {
		t.Errorf("expected message %q, got %q", "hello", gotMsg.Body)
	}
}

func TestRegistryNoHandler(t *testing.T) {
	reg := NewRegistry()

	err := reg.Deliver("unknown:123", render.Message{Body: "hello"})
	if err == nil {
		t.Fatal("expected error for unregistered prefix, got nil")
	}
}

func TestRegistryMultiplePrefixes(t *testing.T) {
	reg := NewRegistry()

	var telegramCalls, stdoutCalls int
	reg.Register("telegram:", func(types.DeliveryKey, render.Message) error {
		telegramCalls++
		return nil
	})
	reg.Register("stdout", func(types.DeliveryKey, render.Message) error {
		stdoutCalls++
		return nil
	})

	if err := reg.Deliver("telegram:42", render.Message{}); err != nil {
		t.Fatalf("telegram deliver error: %v", err)
	}
	if err := reg.Deliver("stdout", render.Message{}); err != nil {
		t.Fatalf("stdout deliver error: %v", err)
	}

	if telegramCalls != 1 {
		t.Errorf("expected 1 telegram call, got %d", telegramCalls)
	}
	if stdoutCalls != 1 {
		t.Errorf("expected 1 stdout call, got %d", stdoutCalls)
	}
}

func TestRegistryLongestPrefixWins(t *testing.T) {
	reg := NewRegistry()

	var got string
	reg.Register("telegram:", func(types.DeliveryKey, render.Message) error {
		got = "any"
		return nil
	})
	reg.Register("telegram:42", func(types.DeliveryKey, render.Message) error {
		got = "specific"
		return nil
	})

	for i := 0; i < 10; i++ {
		if err := reg.Deliver("telegram:42", render.Message{}); err != nil {
			t.Fatal(err)
		}
		if got != "specific" {
			t.Fatalf("expected specific handler, got %q", got)
		}
	}
}

func TestWriterHandler(t *testing.T) {
	var buf bytes.Buffer
	h := Writer(&buf)

	err := h("stdout", render.Message{Role: render.RoleAction, Title: "Running command", Body: "$ ls", EventID: 7, HasID: true})
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "[7] action: *Running command*") {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.Contains(out, "$ ls") {
		t.Errorf("expected body in output, got %q", out)
	}
}
