package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

type idKind uint8

const (
	idNull idKind = iota
	idNumber
	idString
)

// NodeID identifies a node in the base or patch graph. It is either null, a
// number or a string. The zero value is null. NodeIDs are comparable and can
// be used as map keys.
type NodeID struct {
	kind idKind
	num  int64
	str  string
}

// NumberID returns a numeric node id.
func NumberID(n int64) NodeID { return NodeID{kind: idNumber, num: n} }

// StringID returns a string node id. Numeric-looking strings are not
// converted; use [ParseNodeID] for normalization.
func StringID(s string) NodeID { return NodeID{kind: idString, str: s} }

var numericID = regexp.MustCompile(`^-?\d+$`)

// ParseNodeID normalizes a raw identifier value as found in feature
// properties. Integral numbers and numeric-looking strings become numbers,
// other strings stay strings, and nil or "" become null. Non-integral
// numbers are kept in their string form.
func ParseNodeID(v any) NodeID {
	switch x := v.(type) {
	case nil:
		return NodeID{}
	case NodeID:
		return x
	case int:
		return NumberID(int64(x))
	case int32:
		return NumberID(int64(x))
	case int64:
		return NumberID(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return NumberID(int64(x))
		}
		return StringID(strconv.FormatFloat(x, 'g', -1, 64))
	case json.Number:
		return ParseNodeID(string(x))
	case string:
		if x == "" {
			return NodeID{}
		}
		if numericID.MatchString(x) {
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				return NumberID(n)
			}
		}
		return StringID(x)
	default:
		return StringID(fmt.Sprint(x))
	}
}

// IsNull reports whether the id is absent.
func (id NodeID) IsNull() bool { return id.kind == idNull }

// IsNumber reports whether the id is numeric.
func (id NodeID) IsNumber() bool { return id.kind == idNumber }

// IsString reports whether the id is a non-numeric string.
func (id NodeID) IsString() bool { return id.kind == idString }

// Int64 returns the numeric value and true for numeric ids.
func (id NodeID) Int64() (int64, bool) { return id.num, id.kind == idNumber }

// Value returns the id as a plain value for feature properties: int64,
// string or nil.
func (id NodeID) Value() any {
	switch id.kind {
	case idNumber:
		return id.num
	case idString:
		return id.str
	default:
		return nil
	}
}

// String renders the id for display. Null renders as "null".
func (id NodeID) String() string {
	switch id.kind {
	case idNumber:
		return strconv.FormatInt(id.num, 10)
	case idString:
		return id.str
	default:
		return "null"
	}
}

// MarshalJSON encodes numbers as JSON numbers, strings as JSON strings and
// null as null.
func (id NodeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Value())
}

// UnmarshalJSON decodes any JSON scalar through [ParseNodeID].
func (id *NodeID) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*id = ParseNodeID(v)
	return nil
}
