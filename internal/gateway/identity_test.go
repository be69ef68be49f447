package gateway

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"runtime"
	"testing"
)

func TestLoadOrCreateIdentityRoundtrip(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreateIdentity(dir)
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	if first.DeviceID == "" {
		t.Fatal("expected non-empty device id")
	}
	if len(first.DeviceID) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(first.DeviceID))
	}
	if _, err := hex.DecodeString(first.DeviceID); err != nil {
		t.Errorf("device id is not hex: %v", err)
	}

	second, err := LoadOrCreateIdentity(dir)
	if err != nil {
		t.Fatalf("reload identity: %v", err)
	}
	if second.DeviceID != first.DeviceID {
		t.Errorf("identity not stable across loads: %q vs %q", second.DeviceID, first.DeviceID)
	}
	if second.PrivateKeyBytes != first.PrivateKeyBytes {
		t.Error("private key changed across loads")
	}
}

func TestSignChallengeVerifies(t *testing.T) {
	dir := t.TempDir()
	identity, err := LoadOrCreateIdentity(dir)
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}

	const nonce = "abc123"
	const signedAt = int64(1700000000000)
	auth, err := identity.signChallenge(nonce, "tok", signedAt)
	if err != nil {
		t.Fatalf("sign challenge: %v", err)
	}
	if auth.ID != identity.DeviceID || auth.Nonce != nonce || auth.SignedAt != signedAt {
		t.Errorf("unexpected auth block: %+v", auth)
	}

	pub, err := base64.RawURLEncoding.DecodeString(auth.PublicKey)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(auth.Signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}

	payload := fmt.Sprintf("v3|%s|%s|ui|operator|%s|%d|tok|%s|%s|",
		identity.DeviceID, clientID, operatorScope, signedAt, nonce, runtime.GOOS)
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(payload), sig) {
		t.Error("signature does not verify against the v3 payload")
	}
}

func TestStoreTokenPersists(t *testing.T) {
	dir := t.TempDir()
	identity, err := LoadOrCreateIdentity(dir)
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}

	if err := identity.StoreToken(dir, "ws://gw:18789", "device-tok"); err != nil {
		t.Fatalf("store token: %v", err)
	}

	reloaded, err := LoadOrCreateIdentity(dir)
	if err != nil {
		t.Fatalf("reload identity: %v", err)
	}
	entry, ok := reloaded.GatewayTokens["ws://gw:18789"]
	if !ok {
		t.Fatal("expected stored token for gateway url")
	}
	if entry.Token != "device-tok" || entry.Role != "operator" {
		t.Errorf("unexpected token entry: %+v", entry)
	}
}
