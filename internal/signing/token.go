// SPDX-License-Identifier: Apache-2.0

package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"time"
)

const (
	// tokenValidity keeps tokens short-lived: they are minted per upstream
	// request and never reused.
	tokenValidity = 30 * time.Second
	// clockSkewTolerance backdates nbf so the provider accepts tokens from
	// hosts whose clocks run slightly ahead.
	clockSkewTolerance = 5 * time.Second
)

type tokenHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

type tokenClaims struct {
	Exp int64  `json:"exp"`
	Iss string `json:"iss"`
	Nbf int64  `json:"nbf"`
}

// Token mints an HS256 JWT authenticating accessKeyID against the upstream
// provider, valid for a 30 second window around now.
func Token(accessKeyID, accessKeySecret string, now time.Time) string {
	header, _ := json.Marshal(tokenHeader{Alg: "HS256", Typ: "JWT"})

	issuedAt := now.Unix()
	claims, _ := json.Marshal(tokenClaims{
		Exp: issuedAt + int64(tokenValidity.Seconds()),
		Iss: accessKeyID,
		Nbf: issuedAt - int64(clockSkewTolerance.Seconds()),
	})

	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString(header) + "." + enc.EncodeToString(claims)

	mac := hmac.New(sha256.New, []byte(accessKeySecret))
	mac.Write([]byte(signingInput))

	return signingInput + "." + enc.EncodeToString(mac.Sum(nil))
}
