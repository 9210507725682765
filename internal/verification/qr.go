package verification

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mxkit/mxtrust-go/internal/identity"
)

// QR code payloads for the m.qr_code.show.v1 method. The scanning side
// checks the embedded keys against its own view and reciprocates with the
// shared secret.

// QRMode says which trust relation the code asserts.
type QRMode byte

const (
	// QRModeCrossSigning verifies another user.
	QRModeCrossSigning QRMode = 0x00
	// QRModeSelfTrusted verifies one of our own devices when this device
	// already trusts the cross-signing identity.
	QRModeSelfTrusted QRMode = 0x01
	// QRModeSelfUntrusted is the reverse: this device does not yet trust
	// the identity.
	QRModeSelfUntrusted QRMode = 0x02
)

const (
	qrHeader  = "MATRIX"
	qrVersion = 0x02
)

// QRPayload is the decoded content of a verification QR code.
type QRPayload struct {
	Mode         QRMode
	FlowID       string
	FirstKey     string // our relevant key, unpadded base64 ed25519
	SecondKey    string // the key we expect the peer to confirm
	SharedSecret []byte
}

// NewQRPayload builds a payload with a fresh random shared secret.
func NewQRPayload(mode QRMode, flowID, firstKey, secondKey string) (*QRPayload, error) {
	secret := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("verification: generate QR secret: %w", err)
	}
	return &QRPayload{
		Mode:         mode,
		FlowID:       flowID,
		FirstKey:     firstKey,
		SecondKey:    secondKey,
		SharedSecret: secret,
	}, nil
}

// Encode serializes the payload into the binary QR format: header, version,
// mode, length-prefixed flow ID, two raw 32-byte keys, shared secret.
func (p *QRPayload) Encode() ([]byte, error) {
	first, err := identity.DecodeKey(p.FirstKey)
	if err != nil {
		return nil, fmt.Errorf("verification: decode first QR key: %w", err)
	}
	second, err := identity.DecodeKey(p.SecondKey)
	if err != nil {
		return nil, fmt.Errorf("verification: decode second QR key: %w", err)
	}
	if len(first) != 32 || len(second) != 32 {
		return nil, fmt.Errorf("verification: QR keys must be 32 bytes")
	}

	var buf bytes.Buffer
	buf.WriteString(qrHeader)
	buf.WriteByte(qrVersion)
	buf.WriteByte(byte(p.Mode))
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(p.FlowID))); err != nil {
		return nil, err
	}
	buf.WriteString(p.FlowID)
	buf.Write(first)
	buf.Write(second)
	buf.Write(p.SharedSecret)
	return buf.Bytes(), nil
}

// DecodeQRPayload parses the binary QR format.
func DecodeQRPayload(data []byte) (*QRPayload, error) {
	if len(data) < len(qrHeader)+2+2 {
		return nil, fmt.Errorf("verification: QR payload too short")
	}
	if string(data[:len(qrHeader)]) != qrHeader {
		return nil, fmt.Errorf("verification: bad QR header")
	}
	data = data[len(qrHeader):]
	if data[0] != qrVersion {
		return nil, fmt.Errorf("verification: unsupported QR version %d", data[0])
	}
	mode := QRMode(data[1])
	idLen := int(binary.BigEndian.Uint16(data[2:4]))
	data = data[4:]
	if len(data) < idLen+64 {
		return nil, fmt.Errorf("verification: truncated QR payload")
	}
	flowID := string(data[:idLen])
	data = data[idLen:]
	return &QRPayload{
		Mode:         mode,
		FlowID:       flowID,
		FirstKey:     identity.EncodeKey(data[:32]),
		SecondKey:    identity.EncodeKey(data[32:64]),
		SharedSecret: append([]byte(nil), data[64:]...),
	}, nil
}
