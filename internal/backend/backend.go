// Package backend manages connections to the configured document store deployments.
package backend

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// invalidDatabaseChars are the characters the server refuses in database names.
const invalidDatabaseChars = "/\\. \"$*<>:|?\x00"

const maxDatabaseNameLen = 63

// Backend holds the client, database and collection handles of one configured deployment.
type Backend struct {
	ID string

	uri    string
	dbName string

	client *mongo.Client
	db     DatabaseAPI

	mu          sync.Mutex
	collections map[string]CollectionAPI

	l *zap.SugaredLogger
}

// New returns an unconnected Backend for the given identifier and connection string.
func New(id, uri, dbName string, l *zap.SugaredLogger) *Backend {
	return &Backend{
		ID:          id,
		uri:         uri,
		dbName:      dbName,
		collections: map[string]CollectionAPI{},
		l:           l.With("backend", id),
	}
}

// NewWithDatabase returns a Backend bound to an already resolved database.
func NewWithDatabase(id string, db DatabaseAPI, l *zap.SugaredLogger) *Backend {
	b := New(id, "", db.Name(), l)
	b.db = db
	return b
}

// Connect creates the client and pings the primary.
// Every failure is reported as ErrAuthorization and is not retried.
func (b *Backend) Connect(ctx context.Context) error {
	opts := options.Client().ApplyURI(b.uri)
	if err := opts.Validate(); err != nil {
		b.l.Errorf("Configuration error: %v", err)
		return errors.Wrap(ErrAuthorization, err.Error())
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		b.l.Errorf("Failed to connect: %v", err)
		return errors.Wrap(ErrAuthorization, err.Error())
	}

	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		b.l.Errorf("Failed to reach primary: %v", err)
		return errors.Wrap(ErrAuthorization, err.Error())
	}

	b.client = client
	b.l.Infof("Connected")
	return nil
}

// ResolveDatabase fetches the configured database; the server creates it implicitly on first write.
func (b *Backend) ResolveDatabase() error {
	if b.db != nil {
		return nil
	}

	if err := validateDatabaseName(b.dbName); err != nil {
		return err
	}

	if b.client == nil {
		return errors.Wrap(ErrConfiguration, "database requested before connecting")
	}

	b.db = &MongoDBDatabase{Database: b.client.Database(b.dbName)}
	return nil
}

func validateDatabaseName(name string) error {
	switch {
	case name == "":
		return errors.Wrap(ErrConfiguration, "database name is empty")
	case len(name) > maxDatabaseNameLen:
		return errors.Wrapf(ErrConfiguration, "database name %q is longer than %d bytes", name, maxDatabaseNameLen)
	case strings.ContainsAny(name, invalidDatabaseChars):
		return errors.Wrapf(ErrConfiguration, "database name %q contains invalid characters", name)
	}
	return nil
}

// Database returns the resolved database, or nil before ResolveDatabase.
func (b *Backend) Database() DatabaseAPI {
	return b.db
}

// CollectionExists reports whether the server has a collection with exactly this name.
func (b *Backend) CollectionExists(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, errors.Wrap(ErrInvalidArgument, "collection name is required")
	}
	if b.db == nil {
		return false, errors.Wrap(ErrConfiguration, "database is not resolved")
	}

	names, err := b.db.ListCollectionNames(ctx, nameFilter(name))
	if err != nil {
		return false, errors.Wrapf(err, "failed to list collections named %q", name)
	}

	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// GetCollection returns a cached handle for an existing collection. It never creates one.
func (b *Backend) GetCollection(ctx context.Context, name string) (CollectionAPI, error) {
	b.mu.Lock()
	coll, ok := b.collections[name]
	b.mu.Unlock()
	if ok {
		return coll, nil
	}

	exists, err := b.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Wrapf(ErrCollectionNotFound, "%q", name)
	}

	coll = b.db.Collection(name)

	b.mu.Lock()
	b.collections[name] = coll
	b.mu.Unlock()

	return coll, nil
}

// AddCollection creates a new collection. It fails with ErrCollectionExists if one is already present.
func (b *Backend) AddCollection(ctx context.Context, name string) (CollectionAPI, error) {
	exists, err := b.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.Wrapf(ErrCollectionExists, "%q", name)
	}

	if err = b.db.CreateCollection(ctx, name); err != nil {
		return nil, errors.Wrapf(err, "failed to create collection %q", name)
	}

	if exists, err = b.CollectionExists(ctx, name); err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Errorf("collection %q is missing after creation", name)
	}

	coll := b.db.Collection(name)

	b.mu.Lock()
	b.collections[name] = coll
	b.mu.Unlock()

	b.l.Infof("Created collection %q", name)
	return coll, nil
}

// DeleteCollection drops a collection and forgets its handle.
func (b *Backend) DeleteCollection(ctx context.Context, name string) error {
	exists, err := b.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Wrapf(ErrCollectionNotFound, "%q", name)
	}

	b.mu.Lock()
	coll, ok := b.collections[name]
	delete(b.collections, name)
	b.mu.Unlock()

	if !ok {
		coll = b.db.Collection(name)
	}

	if err = coll.Drop(ctx); err != nil {
		return errors.Wrapf(err, "failed to drop collection %q", name)
	}

	if exists, err = b.CollectionExists(ctx, name); err != nil {
		return err
	}
	if exists {
		return errors.Errorf("collection %q still exists after drop", name)
	}
	return nil
}

// CountDocuments counts every document in the named collection.
func (b *Backend) CountDocuments(ctx context.Context, name string) (int64, error) {
	coll, err := b.GetCollection(ctx, name)
	if err != nil {
		return 0, err
	}
	return coll.CountDocuments(ctx, bson.D{})
}

// Disconnect closes the client, if any.
func (b *Backend) Disconnect(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	err := b.client.Disconnect(ctx)
	b.client = nil
	return err
}
