package verification

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// Short authentication string helpers for the m.sas.v1 sub-protocol. The
// transport exchanges the ephemeral public keys; these helpers derive the
// bytes both sides display for comparison.

// SASKeyPair is an ephemeral curve25519 key pair for one SAS exchange.
type SASKeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateSASKeyPair creates a fresh ephemeral key pair.
func GenerateSASKeyPair() (*SASKeyPair, error) {
	var kp SASKeyPair
	if _, err := io.ReadFull(rand.Reader, kp.Private[:]); err != nil {
		return nil, fmt.Errorf("verification: generate SAS key: %w", err)
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("verification: derive SAS public key: %w", err)
	}
	copy(kp.Public[:], pub)
	return &kp, nil
}

// SharedSecret computes the ECDH shared secret with the peer's ephemeral
// public key.
func (kp *SASKeyPair) SharedSecret(peerPublic [32]byte) ([]byte, error) {
	secret, err := curve25519.X25519(kp.Private[:], peerPublic[:])
	if err != nil {
		return nil, fmt.Errorf("verification: SAS shared secret: %w", err)
	}
	return secret, nil
}

// SASBytes expands the shared secret into n display bytes. The info string
// binds the bytes to this exact flow (users, devices, keys, flow ID) so a
// transplanted secret produces a different comparison string.
func SASBytes(sharedSecret []byte, info string, n int) ([]byte, error) {
	r := hkdf.New(sha256.New, sharedSecret, nil, []byte(info))
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("verification: derive SAS bytes: %w", err)
	}
	return out, nil
}

// DecimalSAS maps 5 SAS bytes onto three numbers in [1000, 9191], thirteen
// bits each.
func DecimalSAS(b []byte) ([3]int, error) {
	var out [3]int
	if len(b) < 5 {
		return out, fmt.Errorf("verification: need 5 SAS bytes, got %d", len(b))
	}
	out[0] = int(b[0])<<5 | int(b[1])>>3
	out[1] = int(b[1]&0x7)<<10 | int(b[2])<<2 | int(b[3])>>6
	out[2] = int(b[3]&0x3f)<<7 | int(b[4])>>1
	for i := range out {
		out[i] += 1000
	}
	return out, nil
}

// EmojiSAS maps 6 SAS bytes onto seven emoji names, six bits each.
func EmojiSAS(b []byte) ([7]string, error) {
	var out [7]string
	if len(b) < 6 {
		return out, fmt.Errorf("verification: need 6 SAS bytes, got %d", len(b))
	}
	bits := uint64(0)
	for _, v := range b[:6] {
		bits = bits<<8 | uint64(v)
	}
	// 48 bits read in; the top 42 hold the seven indices.
	for i := 0; i < 7; i++ {
		idx := (bits >> (42 - 6*uint(i))) & 0x3f
		out[i] = sasEmoji[idx]
	}
	return out, nil
}

// sasEmoji is the fixed 64-entry emoji list, indexed by 6-bit SAS groups.
var sasEmoji = [64]string{
	"Dog", "Cat", "Lion", "Horse", "Unicorn", "Pig", "Elephant", "Rabbit",
	"Panda", "Rooster", "Penguin", "Turtle", "Fish", "Octopus", "Butterfly", "Flower",
	"Tree", "Cactus", "Mushroom", "Globe", "Moon", "Cloud", "Fire", "Banana",
	"Apple", "Strawberry", "Corn", "Pizza", "Cake", "Heart", "Smiley", "Robot",
	"Hat", "Glasses", "Spanner", "Santa", "Thumbs Up", "Umbrella", "Hourglass", "Clock",
	"Gift", "Light Bulb", "Book", "Pencil", "Paperclip", "Scissors", "Lock", "Key",
	"Hammer", "Telephone", "Flag", "Train", "Bicycle", "Aeroplane", "Rocket", "Trophy",
	"Ball", "Guitar", "Trumpet", "Bell", "Anchor", "Headphones", "Folder", "Pin",
}
