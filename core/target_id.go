package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// TargetID is the canonical identity of a Target, derived from its identifying
// attributes. Two targets with equal identifying attributes (regardless of the order in
// which they were supplied) produce equal TargetIDs, and the DependencyGraph stores at
// most one Node per TargetID.
//
// TargetID wraps a string so it is directly usable as a map key and comparable with ==,
// which is the property the graph's node index relies on.
type TargetID struct {
	canon string
	hash  uint64
}

// String returns the canonical serialization, suitable for diagnostics.
func (id TargetID) String() string { return id.canon }

// Hash returns a fast, non-cryptographic hash of the canonical form. Two equal TargetIDs
// always hash equally; the converse is not guaranteed (as with any hash).
func (id TargetID) Hash() uint64 { return id.hash }

// Equal reports whether two TargetIDs were built from the same identifying attributes.
func (id TargetID) Equal(other TargetID) bool { return id.canon == other.canon }

// NewTargetID builds the canonical identity for a set of identifying attributes. Attrs is
// a JSON-like value: nil, bool, string, any Go numeric type, []interface{}, or
// map[string]interface{} (with arbitrarily nested values of those kinds). Keys of any map
// encountered are sorted lexicographically so that insertion order never affects the
// result. Non-finite floats (NaN, +Inf, -Inf) are rejected, mirroring the reference
// serialization's `allow_nan=False`. Any other type is rendered via fmt.Sprintf("%v") and
// quoted, mirroring the reference serialization's `default=str`.
func NewTargetID(attrs map[string]interface{}) (TargetID, error) {
	var b strings.Builder
	if err := canonicalizeMap(&b, attrs); err != nil {
		return TargetID{}, err
	}
	canon := b.String()
	return TargetID{canon: canon, hash: xxhash.Sum64String(canon)}, nil
}

func canonicalize(b *strings.Builder, v interface{}) error {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
		return nil
	case bool:
		if x {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
		return nil
	case string:
		b.WriteString(strconv.Quote(x))
		return nil
	case int:
		b.WriteString(strconv.FormatInt(int64(x), 10))
		return nil
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
		return nil
	case int8, int16, int32, uint, uint8, uint16, uint32, uint64, uintptr:
		b.WriteString(fmt.Sprintf("%d", x))
		return nil
	case float32:
		return canonicalize(b, float64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("gx: target ID attribute is non-finite: %v", x)
		}
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		return nil
	case []interface{}:
		b.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := canonicalize(b, e); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil
	case map[string]interface{}:
		return canonicalizeMap(b, x)
	default:
		b.WriteString(strconv.Quote(fmt.Sprintf("%v", x)))
		return nil
	}
}

func canonicalizeMap(b *strings.Builder, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		if err := canonicalize(b, m[k]); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}
