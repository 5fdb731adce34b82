package paapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	signingAlgorithm = "AWS4-HMAC-SHA256"
	signingService   = "ProductAdvertisingAPI"
	amzDateLayout    = "20060102T150405Z"
)

// Signer signs Product Advertising API requests with AWS Signature V4
type Signer struct {
	AccessKey string
	SecretKey string
	Region    string
	Host      string
}

// Sign returns the request headers, including Authorization, for a POST of
// payload to path invoking target
func (s Signer) Sign(target, path string, payload []byte, now time.Time) map[string]string {
	amzDate := now.UTC().Format(amzDateLayout)
	date := amzDate[:8]

	headers := map[string]string{
		"content-encoding": "amz-1.0",
		"content-type":     "application/json; charset=utf-8",
		"host":             s.Host,
		"x-amz-date":       amzDate,
		"x-amz-target":     target,
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var canonicalHeaders strings.Builder
	for _, k := range keys {
		canonicalHeaders.WriteString(k + ":" + headers[k] + "\n")
	}
	signedHeaders := strings.Join(keys, ";")

	canonicalRequest := strings.Join([]string{
		"POST",
		path,
		"",
		canonicalHeaders.String(),
		signedHeaders,
		hashHex(payload),
	}, "\n")

	scope := fmt.Sprintf("%s/%s/%s/aws4_request", date, s.Region, signingService)
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		amzDate,
		scope,
		hashHex([]byte(canonicalRequest)),
	}, "\n")

	key := hmacSHA256([]byte("AWS4"+s.SecretKey), date)
	key = hmacSHA256(key, s.Region)
	key = hmacSHA256(key, signingService)
	key = hmacSHA256(key, "aws4_request")
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	headers["Authorization"] = fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		signingAlgorithm, s.AccessKey, scope, signedHeaders, signature)

	return headers
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
