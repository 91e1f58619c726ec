package diff

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidJSON is returned by Parse for documents that are not valid JSON
var ErrInvalidJSON = errors.New("invalid JSON document")

// Parse decodes a single JSON document. Numbers are kept as json.Number so
// that integers and floats keep their identity.
func Parse(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after document", ErrInvalidJSON)
	}
	return v, nil
}

// Equal reports whether two JSON values are structurally equal.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !Equal(v, other) {
				return false
			}
		}
		return true
	}

	an, ok := toNumber(a)
	if !ok {
		return false
	}
	bn, ok := toNumber(b)
	return ok && an.equal(bn)
}

// number is a JSON number classified as an integer or a float. An integer
// never equals a float, so 1 and 1.0 are different values.
type number struct {
	integer bool
	text    string
	float   float64
}

func (n number) equal(o number) bool {
	if n.integer != o.integer {
		return false
	}
	if n.integer {
		return n.text == o.text
	}
	return n.float == o.float
}

func toNumber(v any) (number, bool) {
	switch nv := v.(type) {
	case json.Number:
		return parseNumber(nv.String())
	case float64:
		if nv == math.Trunc(nv) && math.Abs(nv) < 1<<53 {
			return number{integer: true, text: strconv.FormatInt(int64(nv), 10)}, true
		}
		return floatNumber(nv), true
	case float32:
		return toNumber(float64(nv))
	case int:
		return number{integer: true, text: strconv.Itoa(nv)}, true
	case int64:
		return number{integer: true, text: strconv.FormatInt(nv, 10)}, true
	case uint64:
		return number{integer: true, text: strconv.FormatUint(nv, 10)}, true
	}
	return number{}, false
}

func parseNumber(s string) (number, bool) {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return number{integer: true, text: strconv.FormatInt(i, 10)}, true
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return number{integer: true, text: strconv.FormatUint(u, 10)}, true
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return number{}, false
	}
	return floatNumber(f), true
}

func floatNumber(f float64) number {
	text := "null"
	if !math.IsInf(f, 0) && !math.IsNaN(f) {
		b, _ := json.Marshal(f)
		text = string(b)
		if !strings.ContainsAny(text, ".eE") {
			text += ".0"
		}
	}
	return number{text: text, float: f}
}

// Render returns the display form of a value: strings as-is, scalars in
// their canonical text and containers as canonical compact JSON.
func Render(v any) string {
	switch tv := v.(type) {
	case nil:
		return nullValue
	case string:
		return tv
	case bool:
		return strconv.FormatBool(tv)
	case []any, map[string]any:
		var sb strings.Builder
		writeCanonical(&sb, v)
		return sb.String()
	}
	if n, ok := toNumber(v); ok {
		return n.text
	}
	return fmt.Sprintf("%v", v)
}

// writeCanonical writes compact JSON with sorted object keys.
func writeCanonical(sb *strings.Builder, v any) {
	switch tv := v.(type) {
	case map[string]any:
		sb.WriteByte('{')
		for i, k := range sortedKeys(tv) {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeString(sb, k)
			sb.WriteByte(':')
			writeCanonical(sb, tv[k])
		}
		sb.WriteByte('}')

	case []any:
		sb.WriteByte('[')
		for i, item := range tv {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCanonical(sb, item)
		}
		sb.WriteByte(']')

	case string:
		writeString(sb, tv)

	case nil:
		sb.WriteString(nullValue)

	default:
		sb.WriteString(Render(tv))
	}
}

func writeString(sb *strings.Builder, s string) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		sb.WriteString(strconv.Quote(s))
		return
	}
	sb.Write(bytes.TrimRight(buf.Bytes(), "\n"))
}

// Depth returns the container nesting depth of v. Scalars have depth 0.
func Depth(v any) int {
	deepest := 0
	switch tv := v.(type) {
	case []any:
		for _, item := range tv {
			deepest = max(deepest, Depth(item))
		}
	case map[string]any:
		for _, item := range tv {
			deepest = max(deepest, Depth(item))
		}
	default:
		return 0
	}
	return deepest + 1
}

// Canonical returns v as compact JSON with sorted object keys. Unlike Render,
// top-level strings are quoted.
func Canonical(v any) string {
	var sb strings.Builder
	writeCanonical(&sb, v)
	return sb.String()
}
