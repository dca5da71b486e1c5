package importer

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Kind is the dynamic type of an imported field value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

// Value is an integer, floating point or string field value.
type Value struct {
	Kind Kind
	Int  int64
	Flt  float64
	Str  string
}

func IntValue(i int64) Value     { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Flt: f} }
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// Interface returns the value as a plain Go value.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Flt
	default:
		return v.Str
	}
}

// MarshalBSONValue implements bson.ValueMarshaler.
func (v Value) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(v.Interface())
}

// groupedNumber matches numbers with thousands separators such as "1,200.00".
var groupedNumber = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)

// Coerce parses source text best-effort: one leading "$" is stripped, then an integer
// parse is tried, then a float parse. Thousands separators make the value a float.
// Otherwise the original text is kept.
func Coerce(text string) Value {
	s := strings.TrimPrefix(text, "$")

	if groupedNumber.MatchString(s) {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			return FloatValue(f)
		}
		return StringValue(text)
	}

	// Go literal syntax: digit separators and hex floats are not numbers in the dataset.
	if strings.ContainsRune(s, '_') || isHex(s) {
		return StringValue(text)
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i)
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return FloatValue(f)
	}

	return StringValue(text)
}

func isHex(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// Field is one named value of a Document.
type Field struct {
	Key   string
	Value Value
}

// Document is an ordered list of fields.
type Document []Field

// Get returns the value stored under key.
func (d Document) Get(key string) (Value, bool) {
	for _, f := range d {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// D converts the document for insertion.
func (d Document) D() bson.D {
	res := make(bson.D, 0, len(d))
	for _, f := range d {
		res = append(res, bson.E{Key: f.Key, Value: f.Value})
	}
	return res
}

// RowDocument zips a CSV header with one row. Empty values are dropped, the rest coerced.
// A later duplicate header overwrites the earlier value.
func RowDocument(headers, values []string) Document {
	n := len(headers)
	if len(values) < n {
		n = len(values)
	}

	doc := make(Document, 0, n)
	seen := make(map[string]int, n)
	for i := 0; i < n; i++ {
		if values[i] == "" {
			continue
		}

		f := Field{Key: headers[i], Value: Coerce(values[i])}
		if j, ok := seen[f.Key]; ok {
			doc[j] = f
			continue
		}
		seen[f.Key] = len(doc)
		doc = append(doc, f)
	}
	return doc
}
