package backend_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap/zaptest"

	"github.com/idealo/airbnb-benchmarking/internal/backend"
	"github.com/idealo/airbnb-benchmarking/internal/backend/backendtest"
)

func newBackend(t *testing.T, db *backendtest.MockDatabase) *backend.Backend {
	return backend.NewWithDatabase("AWS", db, zaptest.NewLogger(t).Sugar())
}

func TestConnectMalformedURI(t *testing.T) {
	b := backend.New("GCP", "not-a-uri", "airbnb", zaptest.NewLogger(t).Sugar())

	err := b.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrAuthorization))
}

func TestResolveDatabaseInvalidName(t *testing.T) {
	for name, db := range map[string]string{
		"empty": "",
		"dot":   "air.bnb",
		"space": "air bnb",
		"slash": "air/bnb",
	} {
		t.Run(name, func(t *testing.T) {
			b := backend.New("Azure", "mongodb://localhost:27017", db, zaptest.NewLogger(t).Sugar())
			err := b.ResolveDatabase()
			assert.True(t, errors.Is(err, backend.ErrConfiguration), "got %v", err)
		})
	}
}

func TestResolveDatabaseInjected(t *testing.T) {
	db := backendtest.NewMockDatabase("airbnb")
	b := newBackend(t, db)

	require.NoError(t, b.ResolveDatabase())
	assert.Equal(t, db, b.Database())
}

func TestCollectionExists(t *testing.T) {
	db := backendtest.NewMockDatabase("airbnb")
	db.On("ListCollectionNames", mock.Anything, bson.D{{Key: "name", Value: "listings"}}).Return([]string{"listings"}, nil)
	db.On("ListCollectionNames", mock.Anything, bson.D{{Key: "name", Value: "invalidName"}}).Return([]string{}, nil)
	b := newBackend(t, db)

	ok, err := b.CollectionExists(context.Background(), "listings")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.CollectionExists(context.Background(), "invalidName")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCollectionExistsEmptyName(t *testing.T) {
	db := backendtest.NewMockDatabase("airbnb")
	b := newBackend(t, db)

	_, err := b.CollectionExists(context.Background(), "")
	assert.True(t, errors.Is(err, backend.ErrInvalidArgument))
	db.AssertNotCalled(t, "ListCollectionNames", mock.Anything, mock.Anything)
}

func TestGetCollection(t *testing.T) {
	listings := backendtest.NewMockCollection("listings")
	db := backendtest.NewMockDatabase("airbnb")
	db.On("ListCollectionNames", mock.Anything, bson.D{{Key: "name", Value: "listings"}}).Return([]string{"listings"}, nil)
	db.On("ListCollectionNames", mock.Anything, bson.D{{Key: "name", Value: "missing"}}).Return([]string{}, nil)
	db.On("Collection", "listings").Return(listings)
	b := newBackend(t, db)

	coll, err := b.GetCollection(context.Background(), "listings")
	require.NoError(t, err)
	assert.Same(t, listings, coll)

	// second lookup is served from the cache
	_, err = b.GetCollection(context.Background(), "listings")
	require.NoError(t, err)
	db.AssertNumberOfCalls(t, "ListCollectionNames", 1)

	_, err = b.GetCollection(context.Background(), "missing")
	assert.True(t, errors.Is(err, backend.ErrCollectionNotFound))
	db.AssertNotCalled(t, "CreateCollection", mock.Anything, mock.Anything)
}

func TestAddCollection(t *testing.T) {
	reviews := backendtest.NewMockCollection("reviews")
	db := backendtest.NewMockDatabase("airbnb")
	filter := bson.D{{Key: "name", Value: "reviews"}}
	db.On("ListCollectionNames", mock.Anything, filter).Return([]string{}, nil).Once()
	db.On("ListCollectionNames", mock.Anything, filter).Return([]string{"reviews"}, nil)
	db.On("CreateCollection", mock.Anything, "reviews").Return(nil).Once()
	db.On("Collection", "reviews").Return(reviews)
	b := newBackend(t, db)

	coll, err := b.AddCollection(context.Background(), "reviews")
	require.NoError(t, err)
	assert.Same(t, reviews, coll)

	_, err = b.AddCollection(context.Background(), "reviews")
	assert.True(t, errors.Is(err, backend.ErrCollectionExists))
	db.AssertNumberOfCalls(t, "CreateCollection", 1)
}

func TestDeleteCollection(t *testing.T) {
	reviews := backendtest.NewMockCollection("reviews")
	reviews.On("Drop", mock.Anything).Return(nil).Once()
	db := backendtest.NewMockDatabase("airbnb")
	filter := bson.D{{Key: "name", Value: "reviews"}}
	db.On("ListCollectionNames", mock.Anything, filter).Return([]string{"reviews"}, nil).Once()
	db.On("ListCollectionNames", mock.Anything, filter).Return([]string{}, nil)
	db.On("Collection", "reviews").Return(reviews)
	b := newBackend(t, db)

	require.NoError(t, b.DeleteCollection(context.Background(), "reviews"))
	reviews.AssertExpectations(t)

	err := b.DeleteCollection(context.Background(), "reviews")
	assert.True(t, errors.Is(err, backend.ErrCollectionNotFound))
}

func TestCountDocuments(t *testing.T) {
	listings := backendtest.NewMockCollection("listings")
	listings.On("CountDocuments", mock.Anything, bson.D{}).Return(int64(5432), nil)
	db := backendtest.NewMockDatabase("airbnb")
	db.On("ListCollectionNames", mock.Anything, mock.Anything).Return([]string{"listings"}, nil)
	db.On("Collection", "listings").Return(listings)
	b := newBackend(t, db)

	count, err := b.CountDocuments(context.Background(), "listings")
	require.NoError(t, err)
	assert.Equal(t, int64(5432), count)
}
