package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// personalPrefix is the EIP-191 "personal_sign" prefix. The contract and any
// wallet that produces these signatures hashes exactly this way before
// signing, so verification must reproduce it byte-for-byte.
const personalPrefix = "\x19Ethereum Signed Message:\n"

// Keccak256 returns the Keccak-256 hash of data. This is the hash the
// contract uses for commit/reveal (keccak256(reveal),
// keccak256(commitBlockHash || reveal)) — Ethereum's Keccak predates the
// SHA3-256 NIST standard and differs from it, so this uses sha3's legacy
// Keccak construction rather than the FIPS-202 one.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Keccak256Hex returns Keccak256 hex-encoded with a "0x" prefix.
func Keccak256Hex(data ...[]byte) string {
	return "0x" + hex.EncodeToString(Keccak256(data...))
}

// PersonalSignHash hashes message the way EIP-191 personal_sign does:
// keccak256("\x19Ethereum Signed Message:\n" || len(message) || message).
func PersonalSignHash(message []byte) []byte {
	prefixed := fmt.Sprintf("%s%d%s", personalPrefix, len(message), message)
	return Keccak256([]byte(prefixed))
}

// RecoverAddress recovers the signer address from a 65-byte EIP-191
// personal-sign signature (r || s || v, v in {0,1,27,28}) over message.
func RecoverAddress(message []byte, sigHex string) (ethcommon.Address, error) {
	sig, err := decodeSig(sigHex)
	if err != nil {
		return ethcommon.Address{}, err
	}
	hash := PersonalSignHash(message)
	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return ethcommon.Address{}, fmt.Errorf("recover pubkey: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// decodeSig hex-decodes a signature and normalises the trailing recovery ID
// to the [0,1] range SigToPub expects; wallets commonly send 27/28.
func decodeSig(sigHex string) ([]byte, error) {
	s := strings.TrimPrefix(sigHex, "0x")
	sig, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != 65 {
		return nil, errors.New("signature must be 65 bytes (r || s || v)")
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	return sig, nil
}

// SameAddress reports whether two address strings (any case, with or
// without 0x) refer to the same 20-byte address.
func SameAddress(a, b string) bool {
	return strings.EqualFold(normalizeAddr(a), normalizeAddr(b))
}

func normalizeAddr(a string) string {
	return strings.TrimPrefix(strings.ToLower(a), "0x")
}

// ChecksumAddress returns the EIP-55 mixed-case checksum form of a hex
// address (with 0x prefix).
func ChecksumAddress(addr string) string {
	return ethcommon.HexToAddress(addr).Hex()
}
