// Package oauth1 implements the subset of OAuth 1.0 (RFC 5849) that LTI 1.1
// relies on: two-legged HMAC-SHA1 request signing with the body hash
// extension for signed POST bodies, and verification of incoming signed form
// requests.
package oauth1

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // HMAC-SHA1 is what OAuth 1.0 mandates.
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/wims-lti/wims-lti/internal/uniuri"
)

const (
	oauthVersion         = "1.0"
	oauthSignatureMethod = "HMAC-SHA1"
	nonceLen             = 16
)

var (
	// ErrSignatureMismatch is returned when a request signature does not
	// match the one computed from the consumer secret.
	ErrSignatureMismatch = errors.New("oauth signature mismatch")
	// ErrSignatureMissing is returned when a request carries no oauth_signature.
	ErrSignatureMissing = errors.New("oauth signature missing")
	// ErrUnsupportedSignatureMethod is returned for signature methods other
	// than HMAC-SHA1.
	ErrUnsupportedSignatureMethod = errors.New("unsupported oauth signature method")
)

// percentEncode implements the strict encoding of RFC 5849 section 3.6:
// only ALPHA, DIGIT, '-', '.', '_' and '~' pass through.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '-' || c == '.' || c == '_' || c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// baseStringURI normalizes the request URL per RFC 5849 section 3.4.1.2:
// lowercased scheme and host, default ports elided, query and fragment dropped.
func baseStringURI(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)

	if (scheme == "http" && strings.HasSuffix(host, ":80")) ||
		(scheme == "https" && strings.HasSuffix(host, ":443")) {
		host = host[:strings.LastIndex(host, ":")]
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	return scheme + "://" + host + path
}

type param struct {
	key   string
	value string
}

// signatureBase builds the signature base string from the HTTP method, the
// normalized URI and every request parameter (query string plus the given
// parameters), encoded and sorted. An oauth_signature parameter is excluded,
// it is never part of its own base string.
func signatureBase(method string, u *url.URL, params url.Values) string {
	var pairs []param
	for key, values := range u.Query() {
		for _, value := range values {
			pairs = append(pairs, param{percentEncode(key), percentEncode(value)})
		}
	}
	for key, values := range params {
		if key == "oauth_signature" {
			continue
		}
		for _, value := range values {
			pairs = append(pairs, param{percentEncode(key), percentEncode(value)})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	encoded := make([]string, len(pairs))
	for i, p := range pairs {
		encoded[i] = p.key + "=" + p.value
	}

	return strings.ToUpper(method) + "&" +
		percentEncode(baseStringURI(u)) + "&" +
		percentEncode(strings.Join(encoded, "&"))
}

// sign computes the HMAC-SHA1 signature of the base string. The token secret
// part of the key is empty since two-legged OAuth has no token.
func sign(base, consumerSecret string) string {
	key := percentEncode(consumerSecret) + "&"
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// BodyHash computes the oauth_body_hash extension value of a request body.
func BodyHash(body []byte) string {
	sum := sha1.Sum(body) //nolint:gosec // oauth_body_hash is defined over sha1
	return base64.StdEncoding.EncodeToString(sum[:])
}

// authorizationHeader signs one request and renders the OAuth Authorization
// header for it. Nonce and timestamp are injectable for tests.
func authorizationHeader(
	method, rawURL, consumerKey, consumerSecret string,
	body []byte,
	nonce string,
	timestamp int64,
) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	oauthParams := url.Values{}
	oauthParams.Set("oauth_version", oauthVersion)
	oauthParams.Set("oauth_signature_method", oauthSignatureMethod)
	oauthParams.Set("oauth_consumer_key", consumerKey)
	oauthParams.Set("oauth_nonce", nonce)
	oauthParams.Set("oauth_timestamp", strconv.FormatInt(timestamp, 10))
	oauthParams.Set("oauth_body_hash", BodyHash(body))

	base := signatureBase(method, u, oauthParams)
	oauthParams.Set("oauth_signature", sign(base, consumerSecret))

	keys := make([]string, 0, len(oauthParams))
	for key := range oauthParams {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rendered := make([]string, len(keys))
	for i, key := range keys {
		rendered[i] = fmt.Sprintf("%s=%q", percentEncode(key), percentEncode(oauthParams.Get(key)))
	}

	return "OAuth " + strings.Join(rendered, ", "), nil
}

// AuthorizationHeader signs a request with a fresh nonce and timestamp and
// returns the OAuth Authorization header to attach to it.
func AuthorizationHeader(method, rawURL, consumerKey, consumerSecret string, body []byte) (string, error) {
	return authorizationHeader(
		method, rawURL, consumerKey, consumerSecret, body,
		uniuri.NewLen(nonceLen), time.Now().Unix(),
	)
}

// SignForm adds oauth protocol parameters and a signature to a form, the way
// an LMS signs an LTI launch. Used by tests and tooling.
func SignForm(method, rawURL, consumerKey, consumerSecret string, form url.Values) {
	form.Set("oauth_version", oauthVersion)
	form.Set("oauth_signature_method", oauthSignatureMethod)
	form.Set("oauth_consumer_key", consumerKey)
	form.Set("oauth_nonce", uniuri.NewLen(nonceLen))
	form.Set("oauth_timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	form.Del("oauth_signature")

	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}

	form.Set("oauth_signature", sign(signatureBase(method, u, form), consumerSecret))
}

// VerifyForm checks the signature of an incoming form-encoded request, the
// way LTI launches are signed: every form field is part of the base string.
// Comparison is constant time.
func VerifyForm(method, rawURL, consumerSecret string, form url.Values) error {
	provided := form.Get("oauth_signature")
	if provided == "" {
		return ErrSignatureMissing
	}

	if m := form.Get("oauth_signature_method"); m != oauthSignatureMethod {
		return errors.Wrap(ErrUnsupportedSignatureMethod, m)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}

	expected := sign(signatureBase(method, u, form), consumerSecret)
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrSignatureMismatch
	}

	return nil
}
