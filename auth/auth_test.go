package auth

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	gmcrypto "github.com/tolelom/gamemaster/crypto"
)

func TestBuildChallengeFormat(t *testing.T) {
	msg := BuildChallenge("0xContract", 7, 1000)
	if !strings.Contains(msg, "Contract: 0xContract") ||
		!strings.Contains(msg, "GameId: 7") ||
		!strings.Contains(msg, "Namespace: ScriptGame") ||
		!strings.Contains(msg, "Timestamp: 1000") {
		t.Fatalf("challenge missing expected fields:\n%s", msg)
	}
}

func signMessage(t *testing.T, key string, message string) (address, sig string) {
	t.Helper()
	priv, err := crypto.HexToECDSA(key)
	if err != nil {
		t.Fatalf("HexToECDSA: %v", err)
	}
	hash := gmcrypto.PersonalSignHash([]byte(message))
	signature, err := crypto.Sign(hash, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	signature[64] += 27
	return crypto.PubkeyToAddress(priv.PublicKey).Hex(), "0x" + hex.EncodeToString(signature)
}

const testPrivKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestVerifyRoundTrip(t *testing.T) {
	msg := BuildChallenge("0xabc", 1, 1000)
	address, sig := signMessage(t, testPrivKey, msg)

	got, err := Verify(msg, sig, address, []string{address})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !strings.EqualFold(got, address) {
		t.Fatalf("recovered %s, want %s", got, address)
	}
}

func TestVerifyRejectsNonPlayer(t *testing.T) {
	msg := BuildChallenge("0xabc", 1, 1000)
	address, sig := signMessage(t, testPrivKey, msg)

	_, err := Verify(msg, sig, address, []string{"0xSomeoneElse"})
	if !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("expected ErrNotAPlayer, got %v", err)
	}
}

func TestVerifyRejectsAddressMismatch(t *testing.T) {
	msg := BuildChallenge("0xabc", 1, 1000)
	address, sig := signMessage(t, testPrivKey, msg)

	_, err := Verify(msg, sig, "0x0000000000000000000000000000000000000000", []string{address})
	if err == nil {
		t.Fatal("expected error for mismatched claimed address")
	}
}

func TestIsChallengeFresh(t *testing.T) {
	now := time.Now()
	if !IsChallengeFresh(now.UnixMilli(), now) {
		t.Fatal("expected just-issued challenge to be fresh")
	}
	stale := now.Add(-10 * time.Minute).UnixMilli()
	if IsChallengeFresh(stale, now) {
		t.Fatal("expected stale challenge to be rejected")
	}
}

func TestMintAndValidate(t *testing.T) {
	secret := Secret("base-secret", "0xContract")
	now := time.Now()
	token, expiresIn, err := Mint(secret, "0xaaa", now)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if expiresIn != TokenValidity {
		t.Fatalf("expiresIn = %v, want %v", expiresIn, TokenValidity)
	}
	addr, err := Validate(secret, token, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if addr != "0xaaa" {
		t.Fatalf("address = %q, want 0xaaa", addr)
	}
}

func TestValidateExpired(t *testing.T) {
	secret := Secret("base-secret", "0xContract")
	now := time.Now()
	token, _, _ := Mint(secret, "0xaaa", now)
	_, err := Validate(secret, token, now.Add(2*time.Hour))
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateTamperedSignature(t *testing.T) {
	secret := Secret("base-secret", "0xContract")
	now := time.Now()
	token, _, _ := Mint(secret, "0xaaa", now)
	tampered := token[:len(token)-1] + "x"
	_, err := Validate(secret, tampered, now)
	if !errors.Is(err, ErrBadToken) {
		t.Fatalf("expected ErrBadToken, got %v", err)
	}
}

func TestValidateWrongSecret(t *testing.T) {
	secret := Secret("base-secret", "0xContract")
	now := time.Now()
	token, _, _ := Mint(secret, "0xaaa", now)
	_, err := Validate(Secret("other-base", "0xContract"), token, now)
	if !errors.Is(err, ErrBadToken) {
		t.Fatalf("expected ErrBadToken, got %v", err)
	}
}
