package lastfm

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

const sigParam = "api_sig"

// Credentials identify the application to Last.fm.
type Credentials struct {
	APIKey    string
	APISecret string
}

// BuildParams assembles the final parameter set for a call.
//
// The common parameters are inserted first (method, api_key, and sk when
// a session is present), then the method parameters are copied in
// without overriding them. When sign is set, api_sig is computed over
// everything else and added last.
func BuildParams(method string, creds Credentials, session *Session, params map[string]string, sign bool) map[string]string {
	out := make(map[string]string, len(params)+4)
	out["method"] = method
	out["api_key"] = creds.APIKey
	if session != nil && session.Key != "" {
		out["sk"] = session.Key
	}
	for k, v := range params {
		if k == sigParam {
			continue
		}
		if _, reserved := out[k]; reserved {
			continue
		}
		out[k] = v
	}
	if sign {
		out[sigParam] = Sign(out, creds.APISecret)
	}
	return out
}

// Sign generates the MD5 signature for Last.fm API requests.
//
// The signature is calculated by:
// 1. Sorting parameter keys by byte value
// 2. Concatenating key+value pairs (e.g., "keyAvalueAkeyBvalueB")
// 3. Appending the API secret
// 4. Taking the hex MD5 of the result
//
// An api_sig entry in params is ignored.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == sigParam {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}
	b.WriteString(secret)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
