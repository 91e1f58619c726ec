package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	SealingKeySize = 32
	nonceSize      = 24
)

var ErrUnsealFailed = errors.New("session: sealed value could not be opened")

// Sealer encrypts values before they reach a Store.
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte) (string, error)
	Open(ctx context.Context, sealed string) ([]byte, error)
}

// SecretboxSealer seals with NaCl secretbox under a static 32-byte key.
type SecretboxSealer struct {
	key [SealingKeySize]byte
}

func NewSecretboxSealer(key []byte) (*SecretboxSealer, error) {
	if len(key) != SealingKeySize {
		return nil, fmt.Errorf("sealing key must be %d bytes, got %d", SealingKeySize, len(key))
	}
	s := &SecretboxSealer{}
	copy(s.key[:], key)
	return s, nil
}

// NewSecretboxSealerFromBase64 decodes a standard base64 key.
func NewSecretboxSealerFromBase64(encoded string) (*SecretboxSealer, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sealing key: %w", err)
	}
	return NewSecretboxSealer(key)
}

// DeriveSecretboxSealer derives a key from a passphrase such as the session
// signing secret. Used only when no dedicated sealing key is configured.
func DeriveSecretboxSealer(passphrase string) *SecretboxSealer {
	sum := sha256.Sum256([]byte("supaconnect/session-sealing\x00" + passphrase))
	return &SecretboxSealer{key: sum}
}

func (s *SecretboxSealer) Seal(_ context.Context, plaintext []byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *SecretboxSealer) Open(_ context.Context, sealed string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return nil, ErrUnsealFailed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plaintext, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrUnsealFailed
	}
	return plaintext, nil
}

// KMSAPI is the part of the KMS client used for sealing.
type KMSAPI interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSSealer seals through AWS KMS under a customer managed key.
type KMSSealer struct {
	client KMSAPI
	keyID  string
}

func NewKMSSealer(client KMSAPI, keyID string) (*KMSSealer, error) {
	if keyID == "" {
		return nil, errors.New("AWS_KMS_KEY_ID is required for KMS sealing")
	}
	return &KMSSealer{client: client, keyID: keyID}, nil
}

func (s *KMSSealer) Seal(ctx context.Context, plaintext []byte) (string, error) {
	result, err := s.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(s.keyID),
		Plaintext: plaintext,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encrypt with KMS: %w", err)
	}
	return base64.StdEncoding.EncodeToString(result.CiphertextBlob), nil
}

func (s *KMSSealer) Open(ctx context.Context, sealed string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrUnsealFailed
	}

	result, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: ciphertext,
		KeyId:          aws.String(s.keyID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt with KMS: %w", err)
	}
	return result.Plaintext, nil
}
