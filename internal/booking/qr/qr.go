// Package qr renders booking confirmations as QR codes. The code carries the
// booking encrypted with AES-GCM so that staff can verify it offline.
package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/skip2/go-qrcode"

	"terrace-booking/internal/models"
)

var ErrInvalidPayload = errors.New("invalid qr payload")

// Payload is what the QR code decrypts to.
type Payload struct {
	BookingID string   `json:"bookingId"`
	Name      string   `json:"name"`
	Date      string   `json:"date"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
	Tables    []string `json:"tables"`
	People    int      `json:"people"`
}

type Generator struct {
	secret []byte
	size   int
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:], size: 256}
}

// Token returns the encrypted, URL-safe text embedded in the QR code.
func (g *Generator) Token(b models.Booking) (string, error) {
	data, err := json.Marshal(Payload{
		BookingID: b.ID,
		Name:      b.Name,
		Date:      b.Date,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Tables:    b.Tables,
		People:    b.People,
	})
	if err != nil {
		return "", err
	}
	return encrypt(data, g.secret)
}

// PNG renders the booking as a QR code image.
func (g *Generator) PNG(b models.Booking) ([]byte, error) {
	token, err := g.Token(b)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, g.size)
}

// Decode reverses Token. A token produced with another secret fails.
func (g *Generator) Decode(token string) (Payload, error) {
	data, err := decrypt(token, g.secret)
	if err != nil {
		return Payload{}, err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}

func encrypt(data, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func decrypt(token string, key []byte) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, ErrInvalidPayload
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return data, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
