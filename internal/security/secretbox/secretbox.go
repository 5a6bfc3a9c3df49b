// Package secretbox cifra los campos sensibles del perfil (móvil, email) antes
// de persistirlos.
//
// Formato: base64(iv || ciphertext), AES-256-CBC con padding PKCS#7. La clave
// es SHA-256 del secreto configurado. Decrypt también acepta el formato
// heredado base64(iv || base64(ciphertext)) de filas escritas por la
// instalación anterior.
package secretbox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultSecret se usa cuando no hay ninguna clave configurada.
// Cualquier despliegue real debe configurar security.encryption_key.
const DefaultSecret = "default_encryption_key"

var (
	// ErrMalformed indica un blob que no es base64 o no tiene el largo esperado.
	ErrMalformed = errors.New("secretbox: malformed ciphertext")
	// ErrBadPadding indica clave incorrecta o datos alterados.
	ErrBadPadding = errors.New("secretbox: invalid padding")
)

// Box cifra/descifra con una clave fija. Es seguro para uso concurrente.
type Box struct {
	key          [32]byte
	usingDefault bool
	rand         io.Reader
}

// New deriva la clave del primer secreto no vacío; si no hay ninguno usa
// DefaultSecret y UsingDefaultKey() retorna true.
func New(secrets ...string) *Box {
	b := &Box{rand: rand.Reader}
	secret := ""
	for _, s := range secrets {
		if strings.TrimSpace(s) != "" {
			secret = s
			break
		}
	}
	if secret == "" {
		secret = DefaultSecret
		b.usingDefault = true
	}
	b.key = sha256.Sum256([]byte(secret))
	return b
}

// UsingDefaultKey reporta si la clave proviene de DefaultSecret.
func (b *Box) UsingDefaultKey() bool { return b.usingDefault }

// Encrypt cifra plain. El string vacío se guarda vacío (campo ausente).
func (b *Box) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	block, err := aes.NewCipher(b.key[:])
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}

	padded := pad([]byte(plain), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(b.rand, iv); err != nil {
		return "", fmt.Errorf("iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt revierte Encrypt.
func (b *Box) Decrypt(blob string) (string, error) {
	if blob == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrMalformed
	}
	if len(raw) < aes.BlockSize {
		return "", ErrMalformed
	}
	iv, ct := raw[:aes.BlockSize], raw[aes.BlockSize:]
	if inner, ok := legacyCiphertext(ct); ok {
		ct = inner
	}
	if len(ct) < aes.BlockSize || len(ct)%aes.BlockSize != 0 {
		return "", ErrMalformed
	}

	block, err := aes.NewCipher(b.key[:])
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)
	plain, err = unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// legacyCiphertext detecta el ciphertext base64 del formato heredado. Un
// ciphertext binario casi nunca es base64 válido de bloques completos.
func legacyCiphertext(ct []byte) ([]byte, bool) {
	inner, err := base64.StdEncoding.Strict().DecodeString(string(ct))
	if err != nil || len(inner) == 0 || len(inner)%aes.BlockSize != 0 {
		return nil, false
	}
	return inner, true
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}
