package gameserver

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/tolelom/gamemaster/auth"
	gmcrypto "github.com/tolelom/gamemaster/crypto"
	"github.com/tolelom/gamemaster/mapgen"
	"github.com/tolelom/gamemaster/session"
)

const testPrivKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
const nonPlayerPrivKey = "111111111111111111111111111111111111111111111111111111111111111a"

func newTestServer(t *testing.T) (*httptest.Server, string, func() []string) {
	t.Helper()
	priv, err := ethcrypto.HexToECDSA(testPrivKey)
	if err != nil {
		t.Fatalf("HexToECDSA: %v", err)
	}
	address := ethcrypto.PubkeyToAddress(priv.PublicKey).Hex()

	m := mapgen.Generate([32]byte{1}, mapgen.Size(1))
	sess := session.New(m, 1, [32]byte{2}, []string{address})
	sess.Arm(time.Now())

	playersFunc := func() []string { return []string{address} }
	srv := New(1, "0xContract", auth.Secret("base", "0xContract"), sess,
		func() Status { return Status{Phase: "GAME_RUNNING", StartedAt: time.Now()} },
		playersFunc)

	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts, address, playersFunc
}

func signChallenge(t *testing.T, message string) string {
	t.Helper()
	return signChallengeAs(t, message, testPrivKey)
}

func signChallengeAs(t *testing.T, message, keyHex string) string {
	t.Helper()
	priv, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		t.Fatalf("HexToECDSA: %v", err)
	}
	hash := gmcrypto.PersonalSignHash([]byte(message))
	sig, err := ethcrypto.Sign(hash, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig)
}

func TestRootAndTest(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	resp2, err := http.Get(ts.URL + "/test")
	if err != nil {
		t.Fatalf("GET /test: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp2.StatusCode)
	}
}

func TestRegisterFlow(t *testing.T) {
	ts, address, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/register")
	if err != nil {
		t.Fatalf("GET /register: %v", err)
	}
	defer resp.Body.Close()
	var challenge struct {
		Message   string `json:"message"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&challenge); err != nil {
		t.Fatalf("decode challenge: %v", err)
	}

	sig := signChallenge(t, challenge.Message)
	body, _ := json.Marshal(map[string]any{
		"address":   address,
		"signature": sig,
		"timestamp": challenge.Timestamp,
	})
	regResp, err := http.Post(ts.URL+"/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /register: %v", err)
	}
	defer regResp.Body.Close()
	if regResp.StatusCode != http.StatusOK {
		t.Fatalf("register status = %d", regResp.StatusCode)
	}
	var tokenResp struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expiresIn"`
	}
	json.NewDecoder(regResp.Body).Decode(&tokenResp)
	if tokenResp.Token == "" {
		t.Fatal("expected non-empty token")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/map", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResp.Token)
	mapResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /map: %v", err)
	}
	defer mapResp.Body.Close()
	if mapResp.StatusCode != http.StatusOK {
		t.Fatalf("map status = %d", mapResp.StatusCode)
	}
}

func TestRegisterNonPlayerForbidden(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/register")
	if err != nil {
		t.Fatalf("GET /register: %v", err)
	}
	defer resp.Body.Close()
	var challenge struct {
		Message   string `json:"message"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&challenge); err != nil {
		t.Fatalf("decode challenge: %v", err)
	}

	nonPlayer, err := ethcrypto.HexToECDSA(nonPlayerPrivKey)
	if err != nil {
		t.Fatalf("HexToECDSA: %v", err)
	}
	nonPlayerAddr := ethcrypto.PubkeyToAddress(nonPlayer.PublicKey).Hex()
	sig := signChallengeAs(t, challenge.Message, nonPlayerPrivKey)

	body, _ := json.Marshal(map[string]any{
		"address":   nonPlayerAddr,
		"signature": sig,
		"timestamp": challenge.Timestamp,
	})
	regResp, err := http.Post(ts.URL+"/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /register: %v", err)
	}
	defer regResp.Body.Close()
	if regResp.StatusCode != http.StatusForbidden {
		t.Fatalf("register status = %d, want 403", regResp.StatusCode)
	}
}

func TestWriteSessionErrorTimerExpiredMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeSessionError(rec, session.ErrTimerExpired)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "Time expired! Game over." {
		t.Fatalf("error = %q, want %q", body.Error, "Time expired! Game over.")
	}
}

func TestMapWithoutTokenUnauthorized(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/map")
	if err != nil {
		t.Fatalf("GET /map: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestPlayersSanitized(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/players")
	if err != nil {
		t.Fatalf("GET /players: %v", err)
	}
	defer resp.Body.Close()
	var list []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 player, got %d", len(list))
	}
	if _, ok := list[0]["position"]; ok {
		t.Fatal("expected position to be omitted from sanitized player")
	}
}
