package envsync

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	errs "github.com/envsync/envsync/internal/errors"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

const (
	// scryptN is the CPU/memory cost parameter for scrypt key derivation.
	scryptN = 32768

	// scryptR is the block size parameter for scrypt key derivation.
	scryptR = 8

	// scryptP is the parallelization parameter for scrypt key derivation.
	scryptP = 1

	// scryptKeyLen is the derived key length in bytes (AES-256).
	scryptKeyLen = 32

	// keySalt is the fixed salt for project-name key derivation.
	keySalt = "envsync-v1"

	// gcmTagSize is the GCM authentication tag length in bytes. The tag
	// is stored in its own record field, split off the sealed output.
	gcmTagSize = 16
)

// DeriveKey derives a 32-byte encryption key from the project name using
// scrypt (N=32768, r=8, p=1). The input is normalized to NFKC so visually
// identical project names derive the same key.
//
// Deriving from the project name alone is a known weak default: anyone who
// knows the project name can derive the key. A user-held master secret
// would be required for real confidentiality. Kept as-is so existing
// remote snapshots stay decryptable; see DESIGN.md.
func DeriveKey(project string) ([]byte, error) {
	project = norm.NFKC.String(project)

	key, err := scrypt.Key([]byte(project), []byte(keySalt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	return key, nil
}

// EncryptedValue is one encrypted variable value. Ciphertext, IV, and
// authentication tag are stored as separate base64 fields, matching the
// remote store's record schema.
type EncryptedValue struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"authTag"`
}

// Cipher encrypts and decrypts individual variable values with
// AES-256-GCM. Stateless once constructed; safe for concurrent use.
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher creates a Cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Cipher{gcm: gcm}, nil
}

// ZeroKey overwrites the key material in the given slice. Call this
// immediately after passing the key to NewCipher to limit the window
// during which raw key bytes are accessible in memory.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}

// Encrypt encrypts a plaintext value with a fresh random 12-byte IV.
// The sealed output is split into ciphertext and authentication tag so
// each travels in its own record field.
func (c *Cipher) Encrypt(plain string) (EncryptedValue, error) {
	iv := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return EncryptedValue{}, fmt.Errorf("generating IV: %w", err)
	}

	sealed := c.gcm.Seal(nil, iv, []byte(plain), nil)
	split := len(sealed) - gcmTagSize

	return EncryptedValue{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed[:split]),
		IV:         base64.StdEncoding.EncodeToString(iv),
		AuthTag:    base64.StdEncoding.EncodeToString(sealed[split:]),
	}, nil
}

// Decrypt authenticates and decrypts an encrypted value. Any malformed
// field or tag mismatch returns an error wrapping errs.ErrDecryption;
// it never returns unauthenticated plaintext.
func (c *Cipher) Decrypt(ev EncryptedValue) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ev.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decoding ciphertext: %v", errs.ErrDecryption, err)
	}

	iv, err := base64.StdEncoding.DecodeString(ev.IV)
	if err != nil {
		return "", fmt.Errorf("%w: decoding iv: %v", errs.ErrDecryption, err)
	}
	if len(iv) != c.gcm.NonceSize() {
		return "", fmt.Errorf("%w: iv is %d bytes, want %d", errs.ErrDecryption, len(iv), c.gcm.NonceSize())
	}

	tag, err := base64.StdEncoding.DecodeString(ev.AuthTag)
	if err != nil {
		return "", fmt.Errorf("%w: decoding auth tag: %v", errs.ErrDecryption, err)
	}
	if len(tag) != gcmTagSize {
		return "", fmt.Errorf("%w: auth tag is %d bytes, want %d", errs.ErrDecryption, len(tag), gcmTagSize)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plain, err := c.gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrDecryption, err)
	}

	return string(plain), nil
}
