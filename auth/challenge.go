// Package auth implements sign-in-with-wallet authentication for the game
// API server (spec §4.9): an EIP-191 challenge/response handshake that
// mints a short-lived symmetric-signed bearer token scoped to one
// (contract, game) pair.
package auth

import (
	"fmt"
	"strings"
	"time"

	gmcrypto "github.com/tolelom/gamemaster/crypto"
)

// ChallengeValidity is how long a client has to sign and return a challenge
// before the timestamp it embeds is considered stale.
const ChallengeValidity = 5 * time.Minute

const challengeTemplate = "Sign this message to authenticate with the game server.\n\n" +
	"Contract: %s\n" +
	"GameId: %d\n" +
	"Namespace: ScriptGame\n" +
	"Timestamp: %d\n\n" +
	"This signature is valid for 5 minutes."

// BuildChallenge renders the fixed-template EIP-191 message a client must
// sign, embedding the contract address, game ID, and a timestamp in
// milliseconds since epoch. The server echoes timestampMs back to the
// client as-is; the client returns it verbatim in the response so the
// server can reconstruct and re-verify the exact same message (spec §4.9).
func BuildChallenge(contract string, gameID uint64, timestampMs int64) string {
	return fmt.Sprintf(challengeTemplate, contract, gameID, timestampMs)
}

// Verify recovers the signer of (message, signature) and checks it against
// claimedAddress and the game's current player set. It returns the
// checksum address on success.
func Verify(message, signature, claimedAddress string, players []string) (string, error) {
	recovered, err := gmcrypto.RecoverAddress([]byte(message), signature)
	if err != nil {
		return "", fmt.Errorf("auth: recover signer: %w", err)
	}
	if !gmcrypto.SameAddress(recovered.Hex(), claimedAddress) {
		return "", fmt.Errorf("auth: signature does not match claimed address")
	}
	if !isPlayer(recovered.Hex(), players) {
		return "", fmt.Errorf("auth: %w", ErrNotAPlayer)
	}
	return recovered.Hex(), nil
}

func isPlayer(address string, players []string) bool {
	for _, p := range players {
		if gmcrypto.SameAddress(address, p) {
			return true
		}
	}
	return false
}

// IsChallengeFresh reports whether timestampMs is still within
// ChallengeValidity of now.
func IsChallengeFresh(timestampMs int64, now time.Time) bool {
	issued := time.UnixMilli(timestampMs)
	return now.Sub(issued) <= ChallengeValidity && !issued.After(now.Add(time.Second))
}

// normalizeContract lowercases a contract address for use in the token
// secret derivation (spec §3: "secret BASE ∥ \"-\" ∥ contract_address_lower").
func normalizeContract(contract string) string {
	return strings.ToLower(contract)
}
