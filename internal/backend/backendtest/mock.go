// Package backendtest provides testify mocks for the backend driver interfaces.
package backendtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/idealo/airbnb-benchmarking/internal/backend"
)

type MockCollection struct {
	mock.Mock
	name string
}

// NewMockCollection returns a mock collection reporting the given name.
func NewMockCollection(name string) *MockCollection {
	return &MockCollection{name: name}
}

func (m *MockCollection) Name() string {
	return m.name
}

func (m *MockCollection) InsertOne(ctx context.Context, document interface{}) (*mongo.InsertOneResult, error) {
	args := m.Called(ctx, document)
	return args.Get(0).(*mongo.InsertOneResult), args.Error(1)
}

func (m *MockCollection) InsertMany(ctx context.Context, documents []interface{}) (*mongo.InsertManyResult, error) {
	args := m.Called(ctx, documents)
	return args.Get(0).(*mongo.InsertManyResult), args.Error(1)
}

func (m *MockCollection) UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	args := m.Called(ctx, filter, update)
	return args.Get(0).(*mongo.UpdateResult), args.Error(1)
}

func (m *MockCollection) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	args := m.Called(ctx, filter, opts)
	cur, _ := args.Get(0).(*mongo.Cursor)
	return cur, args.Error(1)
}

func (m *MockCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	args := m.Called(ctx, pipeline, opts)
	cur, _ := args.Get(0).(*mongo.Cursor)
	return cur, args.Error(1)
}

func (m *MockCollection) Drop(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCollection) ListIndexNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockCollection) CreateIndex(ctx context.Context, model mongo.IndexModel) (string, error) {
	args := m.Called(ctx, model)
	return args.String(0), args.Error(1)
}

func (m *MockCollection) DropAllIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockDatabase struct {
	mock.Mock
	name string
}

// NewMockDatabase returns a mock database reporting the given name.
func NewMockDatabase(name string) *MockDatabase {
	return &MockDatabase{name: name}
}

func (m *MockDatabase) Name() string {
	return m.name
}

func (m *MockDatabase) ListCollectionNames(ctx context.Context, filter interface{}) ([]string, error) {
	args := m.Called(ctx, filter)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockDatabase) CreateCollection(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockDatabase) Collection(name string) backend.CollectionAPI {
	args := m.Called(name)
	return args.Get(0).(backend.CollectionAPI)
}

// Cursor returns a driver cursor that yields the given documents.
func Cursor(t testing.TB, docs ...interface{}) *mongo.Cursor {
	t.Helper()

	if docs == nil {
		docs = []interface{}{}
	}
	cur, err := mongo.NewCursorFromDocuments(docs, nil, nil)
	require.NoError(t, err)
	return cur
}
