package queries

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Filter builds query filters. Operators on the same field are merged into one sub-document,
// so Gte and Lte on "zipcode" give {zipcode: {$gte: a, $lte: b}}.
type Filter struct {
	d     bson.D
	index map[string]int
}

// Where returns an empty filter.
func Where() *Filter {
	return &Filter{index: map[string]int{}}
}

func (f *Filter) Eq(field string, v any) *Filter {
	if i, ok := f.index[field]; ok {
		f.d[i].Value = v
		return f
	}
	f.index[field] = len(f.d)
	f.d = append(f.d, bson.E{Key: field, Value: v})
	return f
}

func (f *Filter) Ne(field string, v any) *Filter  { return f.op(field, "$ne", v) }
func (f *Filter) Gt(field string, v any) *Filter  { return f.op(field, "$gt", v) }
func (f *Filter) Gte(field string, v any) *Filter { return f.op(field, "$gte", v) }
func (f *Filter) Lt(field string, v any) *Filter  { return f.op(field, "$lt", v) }
func (f *Filter) Lte(field string, v any) *Filter { return f.op(field, "$lte", v) }

// Between matches lo <= field <= hi.
func (f *Filter) Between(field string, lo, hi any) *Filter {
	return f.Gte(field, lo).Lte(field, hi)
}

// Regex matches field against pattern with the given options, e.g. "i".
func (f *Filter) Regex(field, pattern, options string) *Filter {
	return f.Eq(field, primitive.Regex{Pattern: pattern, Options: options})
}

// D returns the filter document.
func (f *Filter) D() bson.D {
	if f.d == nil {
		return bson.D{}
	}
	return f.d
}

// Match wraps the filter in a $match pipeline stage.
func (f *Filter) Match() bson.D {
	return bson.D{{Key: "$match", Value: f.D()}}
}

func (f *Filter) op(field, op string, v any) *Filter {
	i, ok := f.index[field]
	if !ok {
		f.index[field] = len(f.d)
		f.d = append(f.d, bson.E{Key: field, Value: bson.D{{Key: op, Value: v}}})
		return f
	}

	ops, isOps := f.d[i].Value.(bson.D)
	if !isOps {
		ops = nil
	}
	for j := range ops {
		if ops[j].Key == op {
			ops[j].Value = v
			f.d[i].Value = ops
			return f
		}
	}
	f.d[i].Value = append(ops, bson.E{Key: op, Value: v})
	return f
}
