package canon

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"github.com/provara-protocol/provara-core/internal/provaraerr"
)

// Parse decodes data as JSON into a Value tree, retaining the tightest
// numeric category each literal admits (int64, then uint64, then
// float64). Duplicate object keys are a documented precondition
// violation, not an enforced check: like encoding/json decoding into a
// map, the last occurrence of a repeated key silently wins.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return Value{}, provaraerr.Wrap(provaraerr.InvalidJSON, err, "decoding json")
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, provaraerr.New(provaraerr.InvalidJSON, "trailing data after top-level value")
	}

	return fromInterface(raw)
}

func fromInterface(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null, nil
	case bool:
		return Bool(x), nil
	case json.Number:
		return numberValue(x)
	case string:
		return String(x), nil
	case []interface{}:
		elems := make([]Value, len(x))
		for i, e := range x {
			v, err := fromInterface(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return Value{Kind: KindArray, Array: elems}, nil
	case map[string]interface{}:
		members := make([]Member, 0, len(x))
		for k, e := range x {
			v, err := fromInterface(e)
			if err != nil {
				return Value{}, err
			}
			members = append(members, Member{Key: k, Value: v})
		}
		return Value{Kind: KindObject, Object: members}, nil
	default:
		return Value{}, provaraerr.New(provaraerr.InvalidJSON, "unexpected decoded type %T", raw)
	}
}

// numberValue classifies a json.Number the way Provara requires: a
// literal with no '.' or exponent is an integer category (int64 if it
// fits, else uint64), otherwise it is a float64. A non-fractional
// literal too large for both int64 and uint64 is NumberOutOfRange,
// since canonical encoding would otherwise have to silently widen it to
// a float and lose precision.
func numberValue(n json.Number) (Value, error) {
	s := string(n)
	if isIntegerLiteral(s) {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return Uint(u), nil
		}
		return Value{}, provaraerr.New(provaraerr.NumberOutOfRange, "integer literal %s exceeds 64-bit range", s)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, provaraerr.Wrap(provaraerr.InvalidJSON, err, "parsing number %s", s)
	}
	return Float(f), nil
}

func isIntegerLiteral(s string) bool {
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'E' {
			return false
		}
	}
	return true
}

// IsCanonical reports whether data is already byte-identical to its own
// canonical form, without needing the caller to re-encode and compare.
func IsCanonical(data []byte) (bool, error) {
	v, err := Parse(data)
	if err != nil {
		return false, err
	}
	canon, err := Canonicalize(v)
	if err != nil {
		return false, err
	}
	return bytes.Equal(data, canon), nil
}
