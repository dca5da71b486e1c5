package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Direction is the sort order of a single-field index.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// IndexSpec describes a single-field index.
type IndexSpec struct {
	Name      string
	Field     string
	Direction Direction
}

// NewIndexSpec returns the spec of the index the server would name <field>_<direction>.
func NewIndexSpec(field string, dir Direction) IndexSpec {
	return IndexSpec{
		Name:      fmt.Sprintf("%s_%d", field, dir),
		Field:     field,
		Direction: dir,
	}
}

// Model converts the spec into a driver index model.
func (s IndexSpec) Model() mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: s.Field, Value: int(s.Direction)}},
		Options: options.Index().SetName(s.Name),
	}
}

// DropAllIndexes drops every index on the collection.
// It returns false if anything besides the _id index survived.
func DropAllIndexes(ctx context.Context, coll CollectionAPI) (bool, error) {
	if err := coll.DropAllIndexes(ctx); err != nil {
		return false, errors.Wrapf(err, "failed to drop indexes on %q", coll.Name())
	}

	names, err := coll.ListIndexNames(ctx)
	if err != nil {
		return false, errors.Wrapf(err, "failed to list indexes on %q", coll.Name())
	}

	return len(names) == 1, nil
}

// CreateIndex builds a single-field index unless an index whose name starts with field already exists.
// An existing index yields false and no error; success is reported only once the index is listed.
func CreateIndex(ctx context.Context, coll CollectionAPI, field string, dir Direction) (bool, error) {
	if field == "" {
		return false, errors.Wrap(ErrInvalidArgument, "index field is required")
	}

	names, err := coll.ListIndexNames(ctx)
	if err != nil {
		return false, errors.Wrapf(err, "failed to list indexes on %q", coll.Name())
	}
	if hasPrefix(names, field) {
		return false, nil
	}

	spec := NewIndexSpec(field, dir)
	if _, err = coll.CreateIndex(ctx, spec.Model()); err != nil {
		return false, errors.Wrapf(err, "failed to create index %q on %q", spec.Name, coll.Name())
	}

	if names, err = coll.ListIndexNames(ctx); err != nil {
		return false, errors.Wrapf(err, "failed to list indexes on %q", coll.Name())
	}
	return hasPrefix(names, field), nil
}

func hasPrefix(names []string, prefix string) bool {
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
