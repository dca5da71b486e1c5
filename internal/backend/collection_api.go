package backend

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionAPI defines the collection operations the benchmark needs, allowing for testing
type CollectionAPI interface {
	Name() string
	InsertOne(ctx context.Context, document interface{}) (*mongo.InsertOneResult, error)
	InsertMany(ctx context.Context, documents []interface{}) (*mongo.InsertManyResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
	Drop(ctx context.Context) error

	ListIndexNames(ctx context.Context) ([]string, error)
	CreateIndex(ctx context.Context, model mongo.IndexModel) (string, error)
	DropAllIndexes(ctx context.Context) error
}

// DatabaseAPI is the subset of database operations used by the connection manager
type DatabaseAPI interface {
	Name() string
	ListCollectionNames(ctx context.Context, filter interface{}) ([]string, error)
	CreateCollection(ctx context.Context, name string) error
	Collection(name string) CollectionAPI
}

// MongoDBCollection is a wrapper around mongo.Collection to implement CollectionAPI
type MongoDBCollection struct {
	*mongo.Collection
}

func (c *MongoDBCollection) InsertOne(ctx context.Context, document interface{}) (*mongo.InsertOneResult, error) {
	return c.Collection.InsertOne(ctx, document)
}

func (c *MongoDBCollection) InsertMany(ctx context.Context, documents []interface{}) (*mongo.InsertManyResult, error) {
	return c.Collection.InsertMany(ctx, documents)
}

func (c *MongoDBCollection) UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	return c.Collection.UpdateMany(ctx, filter, update)
}

func (c *MongoDBCollection) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return c.Collection.CountDocuments(ctx, filter)
}

func (c *MongoDBCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	return c.Collection.Find(ctx, filter, opts...)
}

func (c *MongoDBCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	return c.Collection.Aggregate(ctx, pipeline, opts...)
}

func (c *MongoDBCollection) Drop(ctx context.Context) error {
	return c.Collection.Drop(ctx)
}

func (c *MongoDBCollection) ListIndexNames(ctx context.Context) ([]string, error) {
	specs, err := c.Indexes().ListSpecifications(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.Name)
	}
	return names, nil
}

func (c *MongoDBCollection) CreateIndex(ctx context.Context, model mongo.IndexModel) (string, error) {
	return c.Indexes().CreateOne(ctx, model)
}

func (c *MongoDBCollection) DropAllIndexes(ctx context.Context) error {
	_, err := c.Indexes().DropAll(ctx)
	return err
}

// MongoDBDatabase is a wrapper around mongo.Database to implement DatabaseAPI
type MongoDBDatabase struct {
	*mongo.Database
}

func (d *MongoDBDatabase) ListCollectionNames(ctx context.Context, filter interface{}) ([]string, error) {
	return d.Database.ListCollectionNames(ctx, filter)
}

func (d *MongoDBDatabase) CreateCollection(ctx context.Context, name string) error {
	return d.Database.CreateCollection(ctx, name)
}

func (d *MongoDBDatabase) Collection(name string) CollectionAPI {
	return &MongoDBCollection{Collection: d.Database.Collection(name)}
}

// nameFilter matches a collection by exact name in listCollections.
func nameFilter(name string) bson.D {
	return bson.D{{Key: "name", Value: name}}
}
