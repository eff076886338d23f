// Package usage extracts input and output token counts from whatever a model
// provider handed back.
//
// Hosts report usage in many shapes: SDK structs from the Anthropic and OpenAI
// clients, decoded JSON maps, raw JSON bytes, or their own wrapper types. The
// two counts are queried independently and each one defaults to zero when it
// cannot be found. Extraction never panics.
package usage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"github.com/tidwall/gjson"
)

// ErrUnsupported is returned by Parse when the payload shape is not understood.
var ErrUnsupported = errors.New("usage: unsupported payload shape")

// maxDepth bounds how far Parse descends into wrapper values.
const maxDepth = 4

// Tokens holds the token counts reported for a single provider response.
type Tokens struct {
	Input  int `json:"input_tokens"`
	Output int `json:"output_tokens"`
}

// InputTokenCount implements InputTokenCounter.
func (t Tokens) InputTokenCount() int { return t.Input }

// OutputTokenCount implements OutputTokenCounter.
func (t Tokens) OutputTokenCount() int { return t.Output }

// InputTokenCounter is implemented by payloads that know their input token count.
type InputTokenCounter interface {
	InputTokenCount() int
}

// OutputTokenCounter is implemented by payloads that know their output token count.
type OutputTokenCounter interface {
	OutputTokenCount() int
}

// Key names probed in maps and raw JSON, primary name first.
var (
	inputKeys  = []string{"input_tokens", "prompt_tokens"}
	outputKeys = []string{"output_tokens", "completion_tokens"}

	inputFields  = []string{"InputTokens", "PromptTokens"}
	outputFields = []string{"OutputTokens", "CompletionTokens"}
)

// Extract returns the token counts found in v, degrading to zero for any
// count that cannot be determined.
func Extract(v any) Tokens {
	t, _ := Parse(v)
	return t
}

// Parse is like Extract but also reports why extraction degraded. The
// returned Tokens are always usable, even when err is non-nil.
func Parse(v any) (t Tokens, err error) {
	defer func() {
		if p := recover(); p != nil {
			t = Tokens{}
			err = fmt.Errorf("usage: extraction panicked: %v", p)
		}
	}()

	t, err = parse(v, 0)
	t.Input = clamp(t.Input)
	t.Output = clamp(t.Output)

	return t, err
}

func parse(v any, depth int) (Tokens, error) {
	if depth > maxDepth {
		return Tokens{}, ErrUnsupported
	}

	switch u := v.(type) {
	case nil:
		return Tokens{}, nil
	case Tokens:
		return u, nil
	case *Tokens:
		if u == nil {
			return Tokens{}, nil
		}
		return *u, nil
	case anthropic.Usage:
		return Tokens{Input: int(u.InputTokens), Output: int(u.OutputTokens)}, nil
	case *anthropic.Usage:
		if u == nil {
			return Tokens{}, nil
		}
		return parse(*u, depth)
	case anthropic.Message:
		return parse(u.Usage, depth)
	case *anthropic.Message:
		if u == nil {
			return Tokens{}, nil
		}
		return parse(u.Usage, depth)
	case openai.CompletionUsage:
		return Tokens{Input: int(u.PromptTokens), Output: int(u.CompletionTokens)}, nil
	case *openai.CompletionUsage:
		if u == nil {
			return Tokens{}, nil
		}
		return parse(*u, depth)
	case openai.ChatCompletion:
		return parse(u.Usage, depth)
	case *openai.ChatCompletion:
		if u == nil {
			return Tokens{}, nil
		}
		return parse(u.Usage, depth)
	case openai.ChatCompletionChunk:
		return parse(u.Usage, depth)
	case map[string]any:
		return fromMap(u, depth)
	case json.RawMessage:
		return fromJSON(u)
	case []byte:
		return fromJSON(u)
	case string:
		return fromJSON([]byte(u))
	}

	in, inOK := v.(InputTokenCounter)
	out, outOK := v.(OutputTokenCounter)
	if inOK || outOK {
		var t Tokens
		if inOK {
			t.Input = in.InputTokenCount()
		}
		if outOK {
			t.Output = out.OutputTokenCount()
		}
		return t, nil
	}

	return fromReflect(reflect.ValueOf(v), depth)
}

func fromMap(m map[string]any, depth int) (Tokens, error) {
	in, inOK := lookup(m, inputKeys)
	out, outOK := lookup(m, outputKeys)
	if inOK || outOK {
		return Tokens{Input: in, Output: out}, nil
	}

	if nested, ok := m["usage"]; ok {
		return parse(nested, depth+1)
	}

	return Tokens{}, nil
}

func lookup(m map[string]any, keys []string) (int, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if n, ok := toInt(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func fromJSON(data []byte) (Tokens, error) {
	if len(data) == 0 {
		return Tokens{}, nil
	}
	if !gjson.ValidBytes(data) {
		return Tokens{}, fmt.Errorf("usage: invalid JSON payload")
	}

	root := gjson.ParseBytes(data)
	for _, prefix := range []string{"", "usage.", "message.usage.", "response.usage."} {
		in, inOK := firstInt(root, prefix, inputKeys)
		out, outOK := firstInt(root, prefix, outputKeys)
		if inOK || outOK {
			return Tokens{Input: in, Output: out}, nil
		}
	}

	return Tokens{}, nil
}

func firstInt(root gjson.Result, prefix string, keys []string) (int, bool) {
	for _, k := range keys {
		if r := root.Get(prefix + k); r.Exists() {
			return int(r.Int()), true
		}
	}
	return 0, false
}

func fromReflect(rv reflect.Value, depth int) (Tokens, error) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Tokens{}, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		in, inOK := structInt(rv, inputFields)
		out, outOK := structInt(rv, outputFields)
		if inOK || outOK {
			return Tokens{Input: in, Output: out}, nil
		}
		if f := rv.FieldByName("Usage"); f.IsValid() && f.CanInterface() {
			return parse(f.Interface(), depth+1)
		}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			if iter.Value().CanInterface() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
		}
		return fromMap(m, depth)
	}

	return Tokens{}, fmt.Errorf("%w: %T", ErrUnsupported, rv.Interface())
}

func structInt(rv reflect.Value, names []string) (int, bool) {
	for _, name := range names {
		f := rv.FieldByName(name)
		if !f.IsValid() || !f.CanInterface() {
			continue
		}
		if n, ok := toInt(f.Interface()); ok {
			return n, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	case *int:
		if n == nil {
			return 0, false
		}
		return *n, true
	case *int64:
		if n == nil {
			return 0, false
		}
		return int(*n), true
	default:
		return 0, false
	}
}

// clamp maps negative counts to zero so cumulative totals never shrink.
func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
