package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"coinsangjang/internal/logging"
)

// Vault encrypts credential strings at rest and decrypts them immediately
// before a signed request. Ciphertext format: "<nonceHex>:<cipherHex>".
type Vault struct {
	key       []byte // 32-byte AES key, nil when no master key configured
	ephemeral bool
}

// New builds a vault from the operator master key. Any non-empty key material
// is accepted; it is stretched to a fixed 32 bytes with SHA-256.
//
// With an empty master key the vault runs in a degraded mode: Encrypt uses a
// random per-process key (prior ciphertexts become undecryptable on restart)
// and Decrypt of externally stored ciphertext fails closed. This mode is for
// local experiments only and is logged loudly.
func New(masterKey string) *Vault {
	if masterKey == "" {
		logging.Error("[VAULT] 마스터 키 미설정 - 임시 키로 동작 중 (재시작시 기존 암호문 복호화 불가, 운영 환경 사용 금지)")
		ephemeral := make([]byte, 32)
		if _, err := rand.Read(ephemeral); err != nil {
			// crypto/rand failure leaves no safe fallback
			logging.Fatal("[VAULT] 랜덤 키 생성 실패: %v", err)
		}
		return &Vault{key: ephemeral, ephemeral: true}
	}
	sum := sha256.Sum256([]byte(masterKey))
	return &Vault{key: sum[:]}
}

// Configured reports whether an operator master key is in use.
func (v *Vault) Configured() bool {
	return !v.ephemeral
}

// Encrypt seals plaintext with a fresh random nonce per call.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	aead, err := v.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce generation failed: %w", err)
	}
	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(sealed), nil
}

// Decrypt opens a "<nonceHex>:<cipherHex>" ciphertext. Malformed input or a
// missing master key yields an empty string and an error, never a panic.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if v.ephemeral {
		return "", fmt.Errorf("no master key configured, refusing to decrypt")
	}
	parts := strings.SplitN(ciphertext, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed ciphertext: missing separator")
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: bad nonce encoding")
	}
	sealed, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: bad cipher encoding")
	}
	aead, err := v.aead()
	if err != nil {
		return "", err
	}
	if len(nonce) != aead.NonceSize() {
		return "", fmt.Errorf("malformed ciphertext: nonce length %d", len(nonce))
	}
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		// deliberately no ciphertext echo: may be partially attacker-controlled
		return "", fmt.Errorf("decryption failed")
	}
	return string(plain), nil
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("cipher init failed: %w", err)
	}
	return cipher.NewGCM(block)
}
