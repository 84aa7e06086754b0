package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/steveiliop56/adhub/internal/config"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"golang.org/x/crypto/hkdf"
)

type SecretCipherServiceConfig struct {
	Secret        string
	RequireSecret bool
}

// SecretCipherService encrypts credentials at rest with AES-256-GCM.
// Tokens have the form hex(iv):hex(tag):hex(ciphertext).
type SecretCipherService struct {
	config       SecretCipherServiceConfig
	aead         cipher.AEAD
	secret       []byte
	usingDefault bool
}

func NewSecretCipherService(config SecretCipherServiceConfig) *SecretCipherService {
	return &SecretCipherService{
		config: config,
	}
}

func (secrets *SecretCipherService) Init() error {
	secret := secrets.config.Secret

	if secret == "" {
		if secrets.config.RequireSecret {
			return errors.New("no encryption secret configured and a secret is required")
		}
		tlog.App.Warn().Msg("No encryption secret configured, falling back to the built-in default. This is a deployment misconfiguration, stored credentials are NOT protected")
		secret = config.DefaultEncryptionSecret
		secrets.usingDefault = true
	}

	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create gcm: %w", err)
	}

	secrets.aead = aead
	secrets.secret = []byte(secret)
	return nil
}

func (secrets *SecretCipherService) UsingDefaultSecret() bool {
	return secrets.usingDefault
}

func (secrets *SecretCipherService) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, secrets.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := secrets.aead.Seal(nil, iv, []byte(plaintext), nil)
	split := len(sealed) - secrets.aead.Overhead()

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(sealed[split:]),
		hex.EncodeToString(sealed[:split]),
	}, ":"), nil
}

// Decrypt verifies the tag before returning anything. Every failure wraps ErrDecryption.
func (secrets *SecretCipherService) Decrypt(token string) (string, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: malformed token", ErrDecryption)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != secrets.aead.NonceSize() {
		return "", fmt.Errorf("%w: invalid iv", ErrDecryption)
	}

	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != secrets.aead.Overhead() {
		return "", fmt.Errorf("%w: invalid tag", ErrDecryption)
	}

	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext", ErrDecryption)
	}

	plaintext, err := secrets.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryption)
	}

	return string(plaintext), nil
}

// EncryptOptional keeps nil as nil. A missing secret is a valid state, not an error.
func (secrets *SecretCipherService) EncryptOptional(plaintext *string) (*string, error) {
	if plaintext == nil {
		return nil, nil
	}
	token, err := secrets.Encrypt(*plaintext)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (secrets *SecretCipherService) DecryptOptional(token *string) (*string, error) {
	if token == nil {
		return nil, nil
	}
	plaintext, err := secrets.Decrypt(*token)
	if err != nil {
		return nil, err
	}
	return &plaintext, nil
}

// DeriveKey expands the configured secret into an independent key for the given purpose.
func (secrets *SecretCipherService) DeriveKey(info string, size int) ([]byte, error) {
	key := make([]byte, size)
	reader := hkdf.New(sha256.New, secrets.secret, nil, []byte(info))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}
