package gateway

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// TokenEntry records a device token issued by a gateway, keyed by URL in the
// identity file.
type TokenEntry struct {
	Token      string `json:"token"`
	Role       string `json:"role"`
	IssuedAtMs int64  `json:"issuedAtMs"`
}

// DeviceIdentity is the persisted device keypair plus any gateway-issued
// tokens. Keys are stored as base64url without padding; the device id is the
// SHA-256 of the raw public key, hex encoded.
type DeviceIdentity struct {
	Version         int                   `json:"version"`
	DeviceID        string                `json:"deviceId"`
	PublicKeyBytes  string                `json:"publicKeyBytes"`
	PrivateKeyBytes string                `json:"privateKeyBytes"`
	CreatedAtMs     int64                 `json:"createdAtMs"`
	GatewayTokens   map[string]TokenEntry `json:"gatewayTokens,omitempty"`
}

func identityPath(dataDir string) string {
	return filepath.Join(dataDir, "identity", "node-client-device.json")
}

// LoadOrCreateIdentity reads the device identity from dataDir, generating and
// persisting a fresh ed25519 keypair when none exists or the file is
// unreadable.
func LoadOrCreateIdentity(dataDir string) (*DeviceIdentity, error) {
	path := identityPath(dataDir)

	if data, err := os.ReadFile(path); err == nil {
		var identity DeviceIdentity
		if err := json.Unmarshal(data, &identity); err == nil && identity.DeviceID != "" {
			return &identity, nil
		}
	}

	identity, err := newIdentity()
	if err != nil {
		return nil, err
	}
	if err := identity.save(dataDir); err != nil {
		return nil, err
	}
	return identity, nil
}

func newIdentity() (*DeviceIdentity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}

	sum := sha256.Sum256(pub)
	enc := base64.RawURLEncoding

	return &DeviceIdentity{
		Version:         1,
		DeviceID:        hex.EncodeToString(sum[:]),
		PublicKeyBytes:  enc.EncodeToString(pub),
		PrivateKeyBytes: enc.EncodeToString(priv.Seed()),
		CreatedAtMs:     time.Now().UnixMilli(),
		GatewayTokens:   map[string]TokenEntry{},
	}, nil
}

func (d *DeviceIdentity) save(dataDir string) error {
	path := identityPath(dataDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize identity: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}

// StoreToken remembers a gateway-issued device token for later connects.
func (d *DeviceIdentity) StoreToken(dataDir, url, token string) error {
	if d.GatewayTokens == nil {
		d.GatewayTokens = map[string]TokenEntry{}
	}
	d.GatewayTokens[url] = TokenEntry{
		Token:      token,
		Role:       "operator",
		IssuedAtMs: time.Now().UnixMilli(),
	}
	return d.save(dataDir)
}

func (d *DeviceIdentity) signingKey() (ed25519.PrivateKey, error) {
	seed, err := base64.RawURLEncoding.DecodeString(d.PrivateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length %d", len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

const (
	clientID      = "openclaw-control-surface"
	operatorScope = "operator.read,operator.write,operator.admin,operator.approvals"
)

// deviceAuth is the signed device block sent with the connect handshake.
type deviceAuth struct {
	ID        string `json:"id"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
	SignedAt  int64  `json:"signedAt"`
	Nonce     string `json:"nonce"`
}

// signChallenge produces a v3 device signature over a server-issued nonce.
// The payload layout is fixed by the gateway protocol:
//
//	v3|{deviceId}|{clientId}|{mode}|{role}|{scopes}|{signedAtMs}|{token}|{nonce}|{platform}|
func (d *DeviceIdentity) signChallenge(nonce, token string, signedAtMs int64) (*deviceAuth, error) {
	key, err := d.signingKey()
	if err != nil {
		return nil, err
	}

	payload := fmt.Sprintf("v3|%s|%s|ui|operator|%s|%d|%s|%s|%s|",
		d.DeviceID, clientID, operatorScope, signedAtMs, token, nonce, runtime.GOOS)
	sig := ed25519.Sign(key, []byte(payload))

	return &deviceAuth{
		ID:        d.DeviceID,
		PublicKey: d.PublicKeyBytes,
		Signature: base64.RawURLEncoding.EncodeToString(sig),
		SignedAt:  signedAtMs,
		Nonce:     nonce,
	}, nil
}
