package profiles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gowebpki/jcs"
	"github.com/tidwall/gjson"

	"github.com/example/ccm/internal/ccm/diff"
	"github.com/example/ccm/internal/ccm/domain"
)

// Well-known environment keys.
const (
	KeyBaseURL        = "ANTHROPIC_BASE_URL"
	KeyAuthToken      = "ANTHROPIC_AUTH_TOKEN"
	KeyModel          = "ANTHROPIC_MODEL"
	KeyTimeout        = "API_TIMEOUT_MS"
	KeySmallFastModel = "ANTHROPIC_SMALL_FAST_MODEL"
	KeyNoTraffic      = "CLAUDE_CODE_DISABLE_NONESSENTIAL_TRAFFIC"
)

// OptionalKeys lists the recognized optional keys in prompt order.
var OptionalKeys = []string{KeyModel, KeySmallFastModel, KeyTimeout, KeyNoTraffic}

// OutsideEnvKey labels differences in top-level members other than "env".
const OutsideEnvKey = "(settings outside env)"

const envMember = "env"

var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateEnvKey checks that key is a portable environment variable name.
func ValidateEnvKey(key string) error {
	if !envKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid environment variable name %q", key)
	}
	return nil
}

// Document is the parsed form of a profile or of the Claude settings file:
// the env mapping plus every other top-level member, kept verbatim.
type Document struct {
	Env   map[string]string
	Extra map[string]json.RawMessage
}

// NewDocument returns a document holding a copy of env.
func NewDocument(env map[string]string) Document {
	doc := Document{Env: make(map[string]string, len(env))}
	for k, v := range env {
		doc.Env[k] = v
	}
	return doc
}

// ParseDocument decodes a profile or settings file. The root must be an
// object and "env", when present, an object of scalars. Numbers and booleans
// in env are kept as their literal text. Text must be valid UTF-8 and env may
// appear only once.
func ParseDocument(data []byte) (Document, error) {
	if !utf8.Valid(data) {
		return Document{}, fmt.Errorf("%w: invalid UTF-8", domain.ErrMalformedProfile)
	}
	if !gjson.ValidBytes(data) {
		return Document{}, fmt.Errorf("%w: invalid JSON", domain.ErrMalformedProfile)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Document{}, fmt.Errorf("%w: top-level value is not an object", domain.ErrMalformedProfile)
	}

	doc := Document{Env: map[string]string{}}
	var parseErr error
	seenEnv := false
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if name != envMember {
			if doc.Extra == nil {
				doc.Extra = map[string]json.RawMessage{}
			}
			doc.Extra[name] = json.RawMessage(value.Raw)
			return true
		}
		if seenEnv {
			parseErr = fmt.Errorf("%w: duplicate %q member", domain.ErrMalformedProfile, envMember)
			return false
		}
		seenEnv = true
		if !value.IsObject() {
			parseErr = fmt.Errorf("%w: %q is not an object", domain.ErrMalformedProfile, envMember)
			return false
		}
		value.ForEach(func(k, v gjson.Result) bool {
			switch v.Type {
			case gjson.String:
				doc.Env[k.String()] = v.Str
			case gjson.Number, gjson.True, gjson.False:
				doc.Env[k.String()] = v.Raw
			default:
				parseErr = fmt.Errorf("%w: env value for %q must be a string", domain.ErrMalformedProfile, k.String())
				return false
			}
			return true
		})
		return parseErr == nil
	})
	if parseErr != nil {
		return Document{}, parseErr
	}
	return doc, nil
}

// Marshal renders the canonical form: two-space indented JSON with sorted
// keys and a trailing newline. Equal documents always marshal to identical
// bytes.
func (d Document) Marshal() ([]byte, error) {
	members := make(map[string]json.RawMessage, len(d.Extra)+1)
	for k, v := range d.Extra {
		members[k] = v
	}
	env := d.Env
	if env == nil {
		env = map[string]string{}
	}
	envJSON, err := encode(env, "")
	if err != nil {
		return nil, fmt.Errorf("marshal env: %w", err)
	}
	members[envMember] = envJSON

	out, err := encode(members, "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return out, nil
}

// encode is json.Marshal without HTML escaping, so URLs keep their "&".
func encode(v interface{}, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Get returns the env value for key.
func (d Document) Get(key string) string {
	return d.Env[key]
}

// Validate checks that the required keys are present and non-empty.
func (d Document) Validate() error {
	var missing []string
	for _, key := range []string{KeyBaseURL, KeyAuthToken} {
		if strings.TrimSpace(d.Env[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrMissingRequiredKey, strings.Join(missing, ", "))
	}
	return nil
}

// Keys returns the env keys sorted.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d.Env))
	for k := range d.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Comparison is the structural difference between a stored document and a
// live one.
type Comparison struct {
	Env   diff.Result
	Extra []string
}

// Equal reports whether both env and the other top-level members match.
func (c Comparison) Equal() bool {
	return c.Env.Equal() && len(c.Extra) == 0
}

// Keys lists every differing env key, followed by OutsideEnvKey when members
// outside env differ.
func (c Comparison) Keys() []string {
	keys := c.Env.Keys()
	if len(c.Extra) > 0 {
		keys = append(keys, OutsideEnvKey)
	}
	return keys
}

// Compare diffs stored against live. Key order and whitespace never matter.
func Compare(stored, live Document) Comparison {
	cmp := Comparison{Env: diff.Compare(stored.Env, live.Env)}
	seen := map[string]struct{}{}
	for k := range stored.Extra {
		seen[k] = struct{}{}
	}
	for k := range live.Extra {
		seen[k] = struct{}{}
	}
	for k := range seen {
		a, aok := stored.Extra[k]
		b, bok := live.Extra[k]
		if aok != bok || !sameJSON(a, b) {
			cmp.Extra = append(cmp.Extra, k)
		}
	}
	sort.Strings(cmp.Extra)
	return cmp
}

// sameJSON compares the RFC 8785 canonical forms, so key order, whitespace
// and number spelling do not matter.
func sameJSON(a, b json.RawMessage) bool {
	ca, err := jcs.Transform(a)
	if err != nil {
		return false
	}
	cb, err := jcs.Transform(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}
