package wallet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/consentry/consentry/internal/registry"
)

func TestGenerateAndSign(t *testing.T) {
	ks, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	addr, ok := ks.ConnectedAddress()
	if !ok || !strings.HasPrefix(addr, "0x") {
		t.Fatalf("unexpected address: %q connected=%v", addr, ok)
	}

	sig, err := ks.Sign(context.Background(), "hello", addr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !Verify("hello", sig, addr) {
		t.Error("signature did not verify")
	}
	if Verify("tampered", sig, addr) {
		t.Error("signature verified for a different message")
	}
}

func TestSign_WrongIdentity(t *testing.T) {
	ks, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = ks.Sign(context.Background(), "hello", "0xdeadbeef")
	if !errors.Is(err, registry.ErrNoSigningIdentity) {
		t.Errorf("expected ErrNoSigningIdentity, got %v", err)
	}
}

func TestSign_ApproverRejects(t *testing.T) {
	ks, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ks.SetApprover(func(string) bool { return false })

	addr, _ := ks.ConnectedAddress()
	_, err = ks.Sign(context.Background(), "hello", addr)
	if !errors.Is(err, registry.ErrSigningRejected) {
		t.Errorf("expected ErrSigningRejected, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	ks, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "wallet.key")
	if err := ks.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	want, _ := ks.ConnectedAddress()
	got, _ := loaded.ConnectedAddress()
	if got != want {
		t.Errorf("address changed across save/load: %s != %s", got, want)
	}

	// A signature from the reloaded key verifies against the original
	// address.
	sig, err := loaded.Sign(context.Background(), "hello", got)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !Verify("hello", sig, want) {
		t.Error("signature from reloaded key did not verify")
	}
}

func TestLoad_CorruptKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.key")
	if err := os.WriteFile(path, []byte("not-base64!!"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for corrupt key file")
	}
}
