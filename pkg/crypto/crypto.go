// Package crypto wraps ECIES encryption for data the scanner keeps at rest:
// cached note chains and account key files. The cache stores the user's full
// payment history, so it is never written unencrypted.
package crypto

import (
	"encoding/hex"

	"github.com/cockroachdb/errors"
	ecies "github.com/ecies/go/v2"
)

type Client struct {
	privateKey *ecies.PrivateKey
}

// New creates a crypto client from a hex-encoded private key.
func New(privateKeyStr string) (*Client, error) {
	privateKeyBytes, err := hex.DecodeString(privateKeyStr)
	if err != nil {
		return nil, errors.Wrap(err, "decode private key")
	}
	return &Client{
		privateKey: ecies.NewPrivateKeyFromBytes(privateKeyBytes),
	}, nil
}

// GenerateKey creates a crypto client with a fresh random private key.
func GenerateKey() (*Client, error) {
	privateKey, err := ecies.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generate private key")
	}
	return &Client{privateKey: privateKey}, nil
}

func (c *Client) PrivateKeyHex() string {
	return c.privateKey.Hex()
}

func (c *Client) PublicKeyHex() string {
	return c.privateKey.PublicKey.Hex(true)
}

func (c *Client) Encrypt(plaintext []byte) ([]byte, error) {
	ciphertext, err := ecies.Encrypt(c.privateKey.PublicKey, plaintext)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt")
	}
	return ciphertext, nil
}

func (c *Client) Decrypt(ciphertext []byte) ([]byte, error) {
	plaintext, err := ecies.Decrypt(c.privateKey, ciphertext)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt")
	}
	return plaintext, nil
}
