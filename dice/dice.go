// Package dice implements the deterministic random-number source the game
// map and per-player starting positions are derived from. Given the same
// 32-byte seed it always produces the same stream of rolls, so anyone who
// knows the seed (commit block hash + revealed secret) can reproduce it
// byte-for-byte.
package dice

import "crypto/sha256"

// Dice is a deterministic nibble-stream generator seeded from 32 bytes of
// entropy. Rolling consumes hex nibbles from an internal buffer; once the
// buffer is exhausted it is replaced by sha256(buffer) and the cursor
// resets to 0, so the stream never ends and never needs external entropy.
type Dice struct {
	buf    []byte
	cursor int // index of the next nibble to consume, in [0, 2*len(buf))
}

// NewDice creates a Dice seeded with seed. seed is copied, not retained.
func NewDice(seed [32]byte) *Dice {
	buf := make([]byte, len(seed))
	copy(buf, seed[:])
	return &Dice{buf: buf}
}

// nextNibble returns the next 4-bit value from the stream, refilling the
// buffer from its own hash when exhausted.
func (d *Dice) nextNibble() byte {
	if d.cursor >= len(d.buf)*2 {
		sum := sha256.Sum256(d.buf)
		d.buf = sum[:]
		d.cursor = 0
	}
	byteIdx := d.cursor / 2
	high := d.cursor%2 == 0
	d.cursor++
	b := d.buf[byteIdx]
	if high {
		return b >> 4
	}
	return b & 0x0f
}

// Roll consumes k hex nibbles and folds them into a single non-negative
// integer: r = (r<<4) + nibble, one nibble at a time, in stream order.
func (d *Dice) Roll(k int) int {
	r := 0
	for i := 0; i < k; i++ {
		r = (r << 4) + int(d.nextNibble())
	}
	return r
}
