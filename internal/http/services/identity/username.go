package identity

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
)

const (
	usernamePrefix    = "dingtalk_"
	placeholderDomain = "@dingtalk.local"
	defaultNickname   = "DingTalk User"

	// maxBaseRunes deja lugar para el sufijo de desambiguación.
	maxBaseRunes = 24
	maxSuffix    = 10000
)

const alnum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomString genera n caracteres alfanuméricos con crypto/rand.
func randomString(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	max := big.NewInt(int64(len(alnum)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("crypto/rand: %v", err))
		}
		sb.WriteByte(alnum[idx.Int64()])
	}
	return sb.String()
}

// isUsernameRune acepta [A-Za-z0-9_] y los ideogramas CJK básicos.
func isUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return true
	case r >= 0x4e00 && r <= 0x9fa5:
		return true
	}
	return false
}

// sanitizeNickname descarta todo carácter fuera del conjunto permitido.
func sanitizeNickname(nick string) string {
	var sb strings.Builder
	n := 0
	for _, r := range nick {
		if !isUsernameRune(r) {
			continue
		}
		if n == maxBaseRunes {
			break
		}
		sb.WriteRune(r)
		n++
	}
	return sb.String()
}

// allocateUsername aplica la regla configurada. Con "nickname" prueba base,
// base_1, base_2... hasta encontrar uno libre. La unicidad final la garantiza
// el constraint de la base: el caller reintenta ante ErrUsernameTaken.
func allocateUsername(ctx context.Context, users repository.UserRepository, rule, nickname string) (string, error) {
	if rule == "random" {
		return usernamePrefix + randomString(8), nil
	}

	base := sanitizeNickname(nickname)
	if base == "" {
		base = usernamePrefix + randomString(6)
	}

	candidate := base
	for i := 1; i <= maxSuffix; i++ {
		taken, err := users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
	return usernamePrefix + randomString(8), nil
}

// placeholderEmail es estable por identidad: dingtalk_<md5(unionId)[:12]>@dingtalk.local.
func placeholderEmail(providerUserID string) string {
	sum := md5.Sum([]byte(providerUserID))
	return usernamePrefix + hex.EncodeToString(sum[:])[:12] + placeholderDomain
}
