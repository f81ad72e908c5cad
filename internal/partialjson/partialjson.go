// Package partialjson parses truncated JSON text on a best-effort basis.
//
// Streaming LLM providers emit tool-call arguments as raw JSON fragments, so
// at almost any point mid-stream the accumulated buffer is valid JSON with
// the tail cut off. Parse recovers as much structure as the buffer contains:
// unterminated strings yield their decoded prefix, objects and arrays yield
// the members that have fully (or usably) arrived, and dangling tokens that
// carry no information yet (a half-written literal, a lone minus sign, a key
// without a value) are dropped.
//
// Parse is deliberately separate from encoding/json: the strict parser is the
// right tool once a stream is complete, and the two must never be conflated.
package partialjson

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

// ErrIncomplete reports that the input is truncated before any usable value
// could be recovered. Callers treat this as "not enough data yet", not a
// failure.
var ErrIncomplete = errors.New("partialjson: input incomplete")

// Parse returns the best-effort value recovered from input. A nil error does
// not imply the input was complete JSON, only that some usable structure was
// recovered. ErrIncomplete is returned when nothing usable has arrived;
// other errors indicate input that is malformed rather than truncated.
func Parse(input string) (any, error) {
	p := &parser{s: input}
	p.skipSpace()
	if p.i >= len(p.s) {
		return nil, ErrIncomplete
	}
	v, complete, err := p.parseValue()
	if err != nil {
		if errors.Is(err, errTruncated) {
			return nil, ErrIncomplete
		}
		return nil, err
	}
	if complete {
		p.skipSpace()
		if p.i < len(p.s) {
			return nil, p.syntaxError("trailing data after value")
		}
	}
	return v, nil
}

// errTruncated is an internal signal: input ended before this value carried
// any usable information. It never escapes Parse.
var errTruncated = errors.New("truncated value")

type parser struct {
	s string
	i int
}

func (p *parser) syntaxError(msg string) error {
	return fmt.Errorf("partialjson: %s at offset %d", msg, p.i)
}

func (p *parser) skipSpace() {
	for p.i < len(p.s) {
		switch p.s[p.i] {
		case ' ', '\t', '\n', '\r':
			p.i++
		default:
			return
		}
	}
}

// parseValue returns the recovered value and whether it was terminated by the
// input (as opposed to being cut off at the end of the buffer).
func (p *parser) parseValue() (any, bool, error) {
	if p.i >= len(p.s) {
		return nil, false, errTruncated
	}
	switch c := p.s[p.i]; {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"':
		return p.parseString()
	case c == 't' || c == 'f' || c == 'n':
		return p.parseLiteral()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return nil, false, p.syntaxError(fmt.Sprintf("unexpected character %q", c))
	}
}

func (p *parser) parseObject() (any, bool, error) {
	p.i++ // consume '{'
	obj := make(map[string]any)
	for {
		p.skipSpace()
		if p.i >= len(p.s) {
			return obj, false, nil
		}
		if p.s[p.i] == '}' {
			p.i++
			return obj, true, nil
		}
		if p.s[p.i] != '"' {
			return nil, false, p.syntaxError("expected object key")
		}
		key, keyComplete, err := p.parseString()
		if err != nil {
			return nil, false, err
		}
		if !keyComplete {
			// A half-written key carries no information.
			return obj, false, nil
		}
		p.skipSpace()
		if p.i >= len(p.s) {
			return obj, false, nil
		}
		if p.s[p.i] != ':' {
			return nil, false, p.syntaxError("expected ':' after object key")
		}
		p.i++
		p.skipSpace()
		if p.i >= len(p.s) {
			return obj, false, nil
		}
		val, valComplete, err := p.parseValue()
		if errors.Is(err, errTruncated) {
			return obj, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		obj[key.(string)] = val
		if !valComplete {
			return obj, false, nil
		}
		p.skipSpace()
		if p.i >= len(p.s) {
			return obj, false, nil
		}
		switch p.s[p.i] {
		case ',':
			p.i++
		case '}':
			p.i++
			return obj, true, nil
		default:
			return nil, false, p.syntaxError("expected ',' or '}' in object")
		}
	}
}

func (p *parser) parseArray() (any, bool, error) {
	p.i++ // consume '['
	arr := make([]any, 0)
	for {
		p.skipSpace()
		if p.i >= len(p.s) {
			return arr, false, nil
		}
		if p.s[p.i] == ']' {
			p.i++
			return arr, true, nil
		}
		val, valComplete, err := p.parseValue()
		if errors.Is(err, errTruncated) {
			return arr, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		arr = append(arr, val)
		if !valComplete {
			return arr, false, nil
		}
		p.skipSpace()
		if p.i >= len(p.s) {
			return arr, false, nil
		}
		switch p.s[p.i] {
		case ',':
			p.i++
		case ']':
			p.i++
			return arr, true, nil
		default:
			return nil, false, p.syntaxError("expected ',' or ']' in array")
		}
	}
}

func (p *parser) parseString() (any, bool, error) {
	p.i++ // consume opening quote
	var b strings.Builder
	for {
		if p.i >= len(p.s) {
			// Unterminated string: the decoded prefix is still useful.
			return b.String(), false, nil
		}
		c := p.s[p.i]
		if c == '"' {
			p.i++
			return b.String(), true, nil
		}
		if c != '\\' {
			b.WriteByte(c)
			p.i++
			continue
		}
		if p.i+1 >= len(p.s) {
			// Dangling backslash at the end of the buffer.
			return b.String(), false, nil
		}
		esc := p.s[p.i+1]
		switch esc {
		case '"', '\\', '/':
			b.WriteByte(esc)
			p.i += 2
		case 'b':
			b.WriteByte('\b')
			p.i += 2
		case 'f':
			b.WriteByte('\f')
			p.i += 2
		case 'n':
			b.WriteByte('\n')
			p.i += 2
		case 'r':
			b.WriteByte('\r')
			p.i += 2
		case 't':
			b.WriteByte('\t')
			p.i += 2
		case 'u':
			if p.i+6 > len(p.s) {
				// Partial unicode escape: drop it.
				return b.String(), false, nil
			}
			r, err := p.decodeUnicodeEscape()
			if err != nil {
				return nil, false, err
			}
			if utf16.IsSurrogate(r) {
				// A low surrogate may still be in flight: wait only when the
				// buffer ends, or ends inside what could become a \u escape.
				if p.i >= len(p.s) || (p.s[p.i] == '\\' && (p.i+1 >= len(p.s) || (p.s[p.i+1] == 'u' && p.i+6 > len(p.s)))) {
					return b.String(), false, nil
				}
				if p.s[p.i] == '\\' && p.s[p.i+1] == 'u' {
					r2, err := p.decodeUnicodeEscape()
					if err != nil {
						return nil, false, err
					}
					if combined := utf16.DecodeRune(r, r2); combined != '�' {
						b.WriteRune(combined)
						continue
					}
					b.WriteRune('�')
					b.WriteRune('�')
					continue
				}
				b.WriteRune('�')
				continue
			}
			b.WriteRune(r)
		default:
			return nil, false, p.syntaxError(fmt.Sprintf("invalid escape character %q", esc))
		}
	}
}

// decodeUnicodeEscape decodes a \uXXXX sequence starting at p.i (positioned
// on the backslash) and advances past it. Callers ensure six bytes remain.
func (p *parser) decodeUnicodeEscape() (rune, error) {
	hex := p.s[p.i+2 : p.i+6]
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, p.syntaxError(fmt.Sprintf("invalid unicode escape %q", "\\u"+hex))
	}
	p.i += 6
	return rune(n), nil
}

func (p *parser) parseNumber() (any, bool, error) {
	start := p.i
	for p.i < len(p.s) && isNumberChar(p.s[p.i]) {
		p.i++
	}
	tok := p.s[start:p.i]
	if p.i >= len(p.s) {
		// Number at end of buffer: more digits may follow. Recover what the
		// prefix already encodes, trimming incomplete exponent/sign tails.
		for len(tok) > 0 {
			if v, err := strconv.ParseFloat(tok, 64); err == nil {
				return v, false, nil
			}
			tok = tok[:len(tok)-1]
		}
		return nil, false, errTruncated
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil, false, p.syntaxError(fmt.Sprintf("invalid number %q", tok))
	}
	return v, true, nil
}

func isNumberChar(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E'
}

func (p *parser) parseLiteral() (any, bool, error) {
	rest := p.s[p.i:]
	for lit, val := range map[string]any{"true": true, "false": false, "null": nil} {
		if strings.HasPrefix(rest, lit) {
			p.i += len(lit)
			return val, true, nil
		}
		if strings.HasPrefix(lit, rest) {
			// The buffer ends inside the literal; nothing usable yet.
			p.i = len(p.s)
			return nil, false, errTruncated
		}
	}
	return nil, false, p.syntaxError("invalid literal")
}
