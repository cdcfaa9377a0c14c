package voucher

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

	"ms-booking/internal/models"

	"github.com/skip2/go-qrcode"
)

// Payload is what a captain's scanner reads off the boarding QR code.
type Payload struct {
	BookingNumber  string `json:"booking_number"`
	TourID         int64  `json:"tour_id"`
	BookingDate    string `json:"booking_date"`
	NumberOfPeople int    `json:"number_of_people"`
	CustomerName   string `json:"customer_name"`
}

type Generator struct {
	secret []byte
	size   int
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:], size: 256}
}

// PNG renders an encrypted voucher for b as a QR code image.
func (g *Generator) PNG(b *models.Booking) ([]byte, error) {
	token, err := g.Token(b)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(token, qrcode.Medium, g.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// Token is the encrypted string embedded in the QR code.
func (g *Generator) Token(b *models.Booking) (string, error) {
	data, err := json.Marshal(Payload{
		BookingNumber:  b.BookingNumber,
		TourID:         b.TourID,
		BookingDate:    b.BookingDate.Format("2006-01-02"),
		NumberOfPeople: b.NumberOfPeople,
		CustomerName:   b.CustomerName,
	})
	if err != nil {
		return "", err
	}

	gcm, err := g.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a scanned token. Tampered or foreign tokens fail.
func (g *Generator) Open(token string) (*Payload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode voucher: %w", err)
	}

	gcm, err := g.aead()
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("voucher too short")
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open voucher: %w", err)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse voucher: %w", err)
	}
	return &p, nil
}

func (g *Generator) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(g.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
