// Package sigv4 builds the AWS Signature Version 4 headers for an STS
// GetCallerIdentity request. Conjur's authn-iam authenticator replays these
// headers against STS to prove which IAM role the caller holds.
//
// Everything here is pure computation: the same credentials and timestamp
// always produce the same canonical request and signature.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/aws/aws-sdk-go-v2/aws"
)

const (
	Algorithm = "AWS4-HMAC-SHA256"
	Method    = "GET"
	Host      = "sts.amazonaws.com"
	Path      = "/"
	Query     = "Action=GetCallerIdentity&Version=2011-06-15"
	Region    = "us-east-1"
	Service   = "sts"

	// SignedHeaders lists the canonical headers, sorted and lower-cased.
	SignedHeaders = "host;x-amz-content-sha256;x-amz-date;x-amz-security-token"

	TimeFormat      = "20060102T150405Z"
	ShortTimeFormat = "20060102"

	terminator = "aws4_request"
)

// EmptyPayloadHash is the hex SHA-256 of an empty body.
var EmptyPayloadHash = hashHex("")

// Headers is the signed header set in the order Conjur expects it.
type Headers struct {
	Host          string `json:"host"`
	Date          string `json:"x-amz-date"`
	SecurityToken string `json:"x-amz-security-token"`
	ContentSHA256 string `json:"x-amz-content-sha256"`
	Authorization string `json:"authorization"`
}

// Map returns the headers keyed by lower-case header name.
func (h Headers) Map() map[string]string {
	return map[string]string{
		"host":                 h.Host,
		"x-amz-date":           h.Date,
		"x-amz-security-token": h.SecurityToken,
		"x-amz-content-sha256": h.ContentSHA256,
		"authorization":        h.Authorization,
	}
}

// JSON serializes the headers as the authn-iam request body.
func (h Headers) JSON() ([]byte, error) {
	return json.Marshal(h)
}

// Signed is the result of signing one request.
type Signed struct {
	CanonicalRequest string
	CredentialScope  string
	StringToSign     string
	Signature        string
	Headers          Headers
}

// Sign signs the STS GetCallerIdentity request at time t.
func Sign(creds aws.Credentials, t time.Time) Signed {
	t = t.UTC()
	amzDate := t.Format(TimeFormat)
	date := t.Format(ShortTimeFormat)

	canonical := CanonicalRequest(amzDate, creds.SessionToken, EmptyPayloadHash)
	scope := CredentialScope(date)
	stringToSign := StringToSign(amzDate, scope, canonical)

	key := SigningKey(creds.SecretAccessKey, date)
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))
	memguard.WipeBytes(key)

	authorization := Algorithm + " Credential=" + creds.AccessKeyID + "/" + scope +
		", SignedHeaders=" + SignedHeaders + ", Signature=" + signature

	return Signed{
		CanonicalRequest: canonical,
		CredentialScope:  scope,
		StringToSign:     stringToSign,
		Signature:        signature,
		Headers: Headers{
			Host:          Host,
			Date:          amzDate,
			SecurityToken: creds.SessionToken,
			ContentSHA256: EmptyPayloadHash,
			Authorization: authorization,
		},
	}
}

// CanonicalRequest builds the SigV4 canonical request for the fixed STS call.
func CanonicalRequest(amzDate, sessionToken, payloadHash string) string {
	var b strings.Builder
	b.WriteString(Method + "\n")
	b.WriteString(Path + "\n")
	b.WriteString(Query + "\n")
	b.WriteString("host:" + Host + "\n")
	b.WriteString("x-amz-content-sha256:" + payloadHash + "\n")
	b.WriteString("x-amz-date:" + amzDate + "\n")
	b.WriteString("x-amz-security-token:" + sessionToken + "\n")
	b.WriteString("\n")
	b.WriteString(SignedHeaders + "\n")
	b.WriteString(payloadHash)
	return b.String()
}

// CredentialScope returns date/region/service/aws4_request.
func CredentialScope(date string) string {
	return strings.Join([]string{date, Region, Service, terminator}, "/")
}

// StringToSign hashes the canonical request into the SigV4 string to sign.
func StringToSign(amzDate, scope, canonicalRequest string) string {
	return Algorithm + "\n" + amzDate + "\n" + scope + "\n" + hashHex(canonicalRequest)
}

// SigningKey derives the request signing key. The caller owns the returned
// slice and should wipe it after use.
func SigningKey(secretKey, date string) []byte {
	seed := []byte("AWS4" + secretKey)
	defer memguard.WipeBytes(seed)

	kDate := hmacSHA256(seed, date)
	kRegion := hmacSHA256(kDate, Region)
	kService := hmacSHA256(kRegion, Service)
	kSigning := hmacSHA256(kService, terminator)

	memguard.WipeBytes(kDate)
	memguard.WipeBytes(kRegion)
	memguard.WipeBytes(kService)
	return kSigning
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
