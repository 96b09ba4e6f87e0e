package msg

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// MaxSpecs is the most specs one Extract call accepts. It matches the width
// of Found, so every spec can be tracked in a single bitmask.
const MaxSpecs = 32

var (
	// ErrNotObject is returned when a frame does not start with '{'.
	ErrNotObject = errors.New("msg: frame is not a JSON object")
	// ErrTooManySpecs is returned when more than MaxSpecs specs are given.
	ErrTooManySpecs = fmt.Errorf("msg: more than %d scan specs", MaxSpecs)
)

// ValueType selects how a matched value is decoded.
type ValueType int

const (
	// TypeString yields the raw bytes between the quotes, still escaped.
	TypeString ValueType = iota
	// TypeInteger yields the integer prefix of a number.
	TypeInteger
	// TypeFloat yields the number as a float64.
	TypeFloat
)

// Spec describes one key to pick out of a frame.
//
// Depth counts from the frame's opening brace: top-level keys are at depth 1,
// keys inside "params" or "result" at depth 2, and so on. Depth 0 matches the
// key at any depth.
type Spec struct {
	Key   string
	Depth int
	Type  ValueType
}

// Value is a decoded match. Only the field selected by the spec's Type is set.
// Str aliases the frame; it is only valid for the duration of the callback
// unless copied.
type Value struct {
	Str   []byte
	Int   int64
	Float float64
}

// MatchFunc receives each match in frame order. index is the spec's position
// in the slice given to Extract. Returning true stops the scan.
type MatchFunc func(index int, spec Spec, v Value) (stop bool)

// Found records which specs matched, indexed by spec position.
type Found uint32

// Set marks spec i as found.
func (f *Found) Set(i int) { *f |= 1 << uint(i) }

// Has reports whether spec i was found.
func (f Found) Has(i int) bool { return f&(1<<uint(i)) != 0 }

// All reports whether each of the first n specs was found.
func (f Found) All(n int) bool {
	if n >= MaxSpecs {
		return f == Found(^uint32(0))
	}
	mask := Found(1<<uint(n)) - 1
	return f&mask == mask
}

// Extract walks a complete frame once and reports each value whose key
// matches one of specs. Keys that match but whose value is malformed or of
// the wrong type are skipped; extraction is best effort.
func Extract(frame []byte, specs []Spec, fn MatchFunc) error {
	if len(specs) > MaxSpecs {
		return ErrTooManySpecs
	}
	if len(frame) == 0 || frame[0] != '{' {
		return ErrNotObject
	}

	var lex lexer
	for i := 0; i < len(frame); i++ {
		c := frame[i]
		if c == '"' && !lex.quoted && !lex.escaped && lex.boundary {
			if idx, v, ok := matchKey(frame[i:], lex.depth, specs); ok {
				if fn(idx, specs[idx], v) {
					return nil
				}
			}
		}
		lex.step(c)
	}
	return nil
}

// matchKey tries every spec against the key starting at s[0] == '"'.
func matchKey(s []byte, depth int, specs []Spec) (int, Value, bool) {
	key := s[1:]
	for i, spec := range specs {
		if spec.Depth != 0 && spec.Depth != depth {
			continue
		}
		if !bytes.HasPrefix(key, []byte(spec.Key)) {
			continue
		}
		rest := key[len(spec.Key):]
		if len(rest) < 2 || rest[0] != '"' || rest[1] != ':' {
			continue
		}
		if v, ok := decodeValue(rest[2:], spec.Type); ok {
			return i, v, true
		}
	}
	return 0, Value{}, false
}

func decodeValue(s []byte, t ValueType) (Value, bool) {
	switch t {
	case TypeString:
		str, ok := stringSpan(s)
		return Value{Str: str}, ok
	case TypeInteger:
		tok, ok := numberToken(s)
		if !ok {
			return Value{}, false
		}
		n, ok := leadingInt(tok)
		return Value{Int: n}, ok
	case TypeFloat:
		tok, ok := numberToken(s)
		if !ok {
			return Value{}, false
		}
		f, err := strconv.ParseFloat(string(tok), 64)
		if err != nil {
			return Value{}, false
		}
		return Value{Float: f}, true
	}
	return Value{}, false
}

// stringSpan returns the raw bytes between the opening quote at s[0] and the
// next unescaped quote.
func stringSpan(s []byte) ([]byte, bool) {
	if len(s) < 2 || s[0] != '"' {
		return nil, false
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return s[1:i], true
		}
	}
	return nil, false
}

// numberToken returns the bytes up to the first ',', '}' or ']'. A quote
// before the terminator means the value is not a number.
func numberToken(s []byte) ([]byte, bool) {
	if len(s) == 0 || s[0] == '"' {
		return nil, false
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ',', '}', ']':
			tok := bytes.TrimSpace(s[:i])
			return tok, len(tok) > 0
		case '"':
			return nil, false
		}
	}
	return nil, false
}

// leadingInt parses the decimal integer prefix of tok, so "1.5" yields 1.
// JSON has no hex or octal literals, so "0x10" yields 0.
func leadingInt(tok []byte) (int64, bool) {
	end := 0
	if end < len(tok) && (tok[end] == '-' || tok[end] == '+') {
		end++
	}
	digits := end
	for end < len(tok) && tok[end] >= '0' && tok[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(string(tok[:end]), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
