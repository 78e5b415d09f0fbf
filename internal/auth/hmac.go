// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/meridian-bio/meridian/internal/logging"
)

// Pipeline callback signature headers.
const (
	SignatureHeader = "X-ML-Signature"
	TimestampHeader = "X-ML-Timestamp"

	signaturePrefix = "sha256="
)

// PipelineVerifier validates HMAC-SHA256 signatures on machine-learning
// pipeline callbacks. The pipeline signs "timestamp.body" with a shared
// secret and sends the result as "sha256=<hex>" together with the
// timestamp it signed.
type PipelineVerifier struct {
	secret  []byte
	skew    time.Duration
	require bool
	seclog  *logging.SecurityLogger

	// now is injectable for tests.
	now func() time.Time
}

// NewPipelineVerifier builds a verifier. An empty secret with require set
// is a deployment error surfaced at request time, not construction time,
// so a misconfigured server still starts and reports health.
func NewPipelineVerifier(secret string, skew time.Duration, require bool) *PipelineVerifier {
	return &PipelineVerifier{
		secret:  []byte(secret),
		skew:    skew,
		require: require,
		seclog:  logging.NewSecurityLogger(),
		now:     time.Now,
	}
}

// Required reports whether signature verification is enforced.
func (v *PipelineVerifier) Required() bool { return v.require }

// Configured reports whether a signing secret is present.
func (v *PipelineVerifier) Configured() bool { return len(v.secret) > 0 }

// VerifySignature reports whether the signature is valid for the given
// timestamp and body. It is a total function: malformed timestamps, wrong
// prefixes, and bad hex all return false, never an error or panic.
func (v *PipelineVerifier) VerifySignature(signature, timestamp string, body []byte) bool {
	if len(v.secret) == 0 || signature == "" || timestamp == "" {
		return false
	}

	ts, ok := parseTimestamp(timestamp)
	if !ok {
		return false
	}
	if d := v.now().Sub(ts); d > v.skew || d < -v.skew {
		return false
	}

	if !strings.HasPrefix(signature, signaturePrefix) {
		return false
	}
	got, err := hex.DecodeString(signature[len(signaturePrefix):])
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// VerifySignatureFlexible tries the raw body first, then retries with the
// body re-serialized as canonical JSON (sorted keys, no whitespace).
// Pipelines that sign a canonicalized payload and transports that reformat
// JSON both stay verifiable.
func (v *PipelineVerifier) VerifySignatureFlexible(signature, timestamp string, body []byte) bool {
	if v.VerifySignature(signature, timestamp, body) {
		return true
	}
	canonical, ok := canonicalJSON(body)
	if !ok || bytes.Equal(canonical, body) {
		return false
	}
	return v.VerifySignature(signature, timestamp, canonical)
}

// parseTimestamp accepts either a Unix epoch in seconds or an RFC 3339
// timestamp ("Z" suffix included).
func parseTimestamp(s string) (time.Time, bool) {
	if isDigits(s) {
		epoch, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(epoch, 0), true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// canonicalJSON re-serializes a JSON document with object keys sorted and
// no insignificant whitespace. Returns false for non-JSON input.
func canonicalJSON(body []byte) ([]byte, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, false
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, doc); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func writeCanonical(buf *bytes.Buffer, doc any) error {
	switch val := doc.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// SignPayload computes the signature header value for a timestamp and
// body. Exposed for tests and for the development signing command.
func SignPayload(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
