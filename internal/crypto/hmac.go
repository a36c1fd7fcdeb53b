package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// HMACAuth holds the L2 API credentials of a CLOB account.
type HMACAuth struct {
	Key        string
	Secret     string // base64, URL or standard alphabet
	Passphrase string
}

// L2Headers returns the POLY_* headers authenticating one CLOB request.
func (h *HMACAuth) L2Headers(address, method, path, body string) map[string]string {
	return h.L2HeadersAt(address, method, path, body, time.Now().Unix())
}

// L2HeadersAt is L2Headers at a fixed Unix time. The signature is the
// URL-safe base64 HMAC-SHA256 of timestamp+method+path+body.
func (h *HMACAuth) L2HeadersAt(address, method, path, body string, unix int64) map[string]string {
	ts := strconv.FormatInt(unix, 10)
	mac := hmac.New(sha256.New, h.secret())
	mac.Write([]byte(ts + method + path + body))

	return map[string]string{
		"POLY_ADDRESS":    address,
		"POLY_API_KEY":    h.Key,
		"POLY_TIMESTAMP":  ts,
		"POLY_PASSPHRASE": h.Passphrase,
		"POLY_SIGNATURE":  base64.URLEncoding.EncodeToString(mac.Sum(nil)),
	}
}

// secret decodes the API secret. A secret that is not base64 is used as is,
// which the exchange will reject.
func (h *HMACAuth) secret() []byte {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.StdEncoding} {
		if b, err := enc.DecodeString(h.Secret); err == nil {
			return b
		}
	}
	return []byte(h.Secret)
}

// String redacts the credentials for logging.
func (h *HMACAuth) String() string {
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", mask(h.Key), mask(h.Secret))
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
