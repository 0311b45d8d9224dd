package garmin

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Signer builds OAuth1 HMAC-SHA1 Authorization headers for the vendor's
// token-exchange endpoints. Nonce and Now are injectable so tests can assert
// a deterministic signature.
type Signer struct {
	ConsumerKey    string
	ConsumerSecret string
	Nonce          func() string
	Now            func() time.Time
}

// NewSigner creates a Signer with a UUID-derived nonce source and the wall clock.
func NewSigner(consumerKey, consumerSecret string) *Signer {
	return &Signer{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		Nonce:          defaultNonce,
		Now:            time.Now,
	}
}

func defaultNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AuthorizationHeader produces the OAuth1 header value for the given request.
// Query parameters embedded in rawURL are folded into the signature base
// string alongside params. token and tokenSecret are empty for the
// ticket-exchange step and carry the OAuth1 pair for the OAuth2 exchange.
func (s *Signer) AuthorizationHeader(method, rawURL string, params url.Values, token, tokenSecret string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse request url: %w", err)
	}

	oauth := map[string]string{
		"oauth_consumer_key":     s.ConsumerKey,
		"oauth_nonce":            s.Nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.Now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if token != "" {
		oauth["oauth_token"] = token
	}

	oauth["oauth_signature"] = s.sign(method, u, params, oauth, tokenSecret)

	keys := make([]string, 0, len(oauth))
	for k := range oauth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]string, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, fmt.Sprintf("%s=%q", k, percentEncode(oauth[k])))
	}

	return "OAuth " + strings.Join(entries, ", "), nil
}

// sign computes the base64 HMAC-SHA1 signature over the OAuth1 base string.
func (s *Signer) sign(method string, u *url.URL, params url.Values, oauth map[string]string, tokenSecret string) string {
	type pair struct{ key, value string }

	pairs := make([]pair, 0, len(oauth)+len(params))
	for k, v := range oauth {
		pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
	}
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}
	for k, vs := range u.Query() {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}

	// Ordering is lexicographic by encoded key (then value), independent of
	// input insertion order.
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	encoded := make([]string, 0, len(pairs))
	for _, p := range pairs {
		encoded = append(encoded, p.key+"="+p.value)
	}

	baseURL := u.Scheme + "://" + u.Host + u.EscapedPath()
	base := strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(strings.Join(encoded, "&"))

	key := percentEncode(s.ConsumerSecret) + "&" + percentEncode(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// percentEncode implements strict RFC 3986 percent-encoding.
// url.QueryEscape is unsuitable here: it leaves !*'() unescaped and encodes
// spaces as '+', both of which break OAuth1 signature verification.
func percentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_' || c == '~'
}
