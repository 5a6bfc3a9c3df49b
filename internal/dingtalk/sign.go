package dingtalk

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strconv"
)

// Signature calcula la firma del endpoint legado sns/getuserinfo_bycode:
// base64(HMAC-SHA256(timestamp, appSecret)), ya escapada para query string.
func Signature(timestampMillis int64, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(strconv.FormatInt(timestampMillis, 10)))
	return url.QueryEscape(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}
