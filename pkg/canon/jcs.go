package canon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"sdvc/pkg/model"
)

// JCS canonicalizes a JSON document per RFC 8785: object members sorted
// by UTF-16 code units, no insignificant whitespace, ES6 number
// serialization, minimal string escaping. The resolver argument is
// unused; JCS needs no external context.
func JCS(ctx context.Context, serialized string, _ ContextResolver) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", model.ErrCancelled
	}

	dec := json.NewDecoder(strings.NewReader(serialized))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrCanonicalizationFailed, err)
	}

	var b bytes.Buffer
	if err := writeCanonical(&b, doc); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrCanonicalizationFailed, err)
	}

	return b.String(), nil
}

func writeCanonical(b *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")

	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}

	case json.Number:
		s, err := canonicalNumber(t)
		if err != nil {
			return err
		}
		b.WriteString(s)

	case string:
		writeCanonicalString(b, t)

	case []any:
		b.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, elem); err != nil {
				return err
			}
		}
		b.WriteByte(']')

	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		// RFC 8785 section 3.2.3: sort on UTF-16 code units.
		sort.Slice(keys, func(i, j int) bool {
			return lessUTF16(keys[i], keys[j])
		})

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonicalString(b, k)
			b.WriteByte(':')
			if err := writeCanonical(b, t[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')

	default:
		return fmt.Errorf("unsupported JSON value type %T", v)
	}

	return nil
}

func lessUTF16(a, s string) bool {
	ua := utf16.Encode([]rune(a))
	us := utf16.Encode([]rune(s))
	for i := 0; i < len(ua) && i < len(us); i++ {
		if ua[i] != us[i] {
			return ua[i] < us[i]
		}
	}
	return len(ua) < len(us)
}

// canonicalNumber renders a number the way ES6 Number-to-string does.
func canonicalNumber(n json.Number) (string, error) {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}

	f, err := n.Float64()
	if err != nil {
		return "", err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite number %v", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}

	// ES6 uses plain decimal notation for magnitudes in [1e-6, 1e21).
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	// Align Go's exponent form with ES6: e-07 becomes e-7.
	if idx := strings.IndexAny(s, "eE"); idx >= 0 {
		mantissa, exp := s[:idx], s[idx+1:]
		sign := ""
		if exp[0] == '+' || exp[0] == '-' {
			sign, exp = string(exp[0]), exp[1:]
		} else {
			sign = "+"
		}
		exp = strings.TrimLeft(exp, "0")
		if exp == "" {
			exp = "0"
		}
		s = mantissa + "e" + sign + exp
	}
	return s, nil
}

// writeCanonicalString emits a JSON string with the minimal escapes of
// RFC 8785 section 3.2.2.2.
func writeCanonicalString(b *bytes.Buffer, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
