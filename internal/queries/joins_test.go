package queries

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/idealo/airbnb-benchmarking/internal/backend/backendtest"
)

func stageNames(p mongo.Pipeline) []string {
	names := make([]string, len(p))
	for i, stage := range p {
		names[i] = stage[0].Key
	}
	return names
}

func TestMostRecentReviewPipeline(t *testing.T) {
	p := MostRecentReviewPipeline("reviews")
	assert.Equal(t, []string{"$match", "$lookup", "$unwind", "$sort", "$group", "$sort"}, stageNames(p))

	assert.Equal(t, bson.D{
		{Key: "from", Value: "reviews"},
		{Key: "localField", Value: "id"},
		{Key: "foreignField", Value: "listing_id"},
		{Key: "as", Value: "reviews"},
	}, p[1][0].Value)
}

func TestFrequentTravellerPipeline(t *testing.T) {
	p := FrequentTravellerPipeline()
	assert.Equal(t, []string{"$match", "$group", "$sort", "$limit"}, stageNames(p))
	assert.Equal(t, bson.D{{Key: "reviewer_id", Value: bson.D{{Key: "$ne", Value: nil}}}}, p[0][0].Value,
		"reviews without a reviewer must not form a group")

	p = TravellerReviewsPipeline(int32(42), "listings")
	assert.Equal(t, []string{"$match", "$lookup", "$unwind", "$project", "$sort"}, stageNames(p))
	assert.Equal(t, bson.D{{Key: "reviewer_id", Value: int32(42)}}, p[0][0].Value)
}

func TestJoinMostRecentReview(t *testing.T) {
	listings := backendtest.NewMockCollection("listings")
	listings.On("Aggregate", mock.Anything, MostRecentReviewPipeline("reviews"), mock.Anything).Return(backendtest.Cursor(t,
		bson.D{{Key: "_id", Value: 12}, {Key: "name", Value: "Loft"}},
	), nil).Once()

	docs, err := JoinMostRecentReview(context.Background(), listings, "reviews")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestJoinMostRecentReviewError(t *testing.T) {
	listings := backendtest.NewMockCollection("listings")
	listings.On("Aggregate", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("lookup unsupported"))

	_, err := JoinMostRecentReview(context.Background(), listings, "reviews")
	assert.ErrorContains(t, err, "aggregation on listings failed")
}

func TestJoinFrequentTraveller(t *testing.T) {
	reviews := backendtest.NewMockCollection("reviews")
	reviews.On("Aggregate", mock.Anything, FrequentTravellerPipeline(), mock.Anything).Return(backendtest.Cursor(t,
		bson.D{{Key: "_id", Value: int32(42)}, {Key: "count", Value: int32(3)}, {Key: "reviewer_name", Value: "Ann"}},
	), nil).Once()
	reviews.On("Aggregate", mock.Anything, TravellerReviewsPipeline(int32(42), "listings"), mock.Anything).Return(backendtest.Cursor(t,
		bson.D{{Key: "date", Value: "2019-01-02"}, {Key: "city", Value: "Portland"}},
		bson.D{{Key: "date", Value: "2019-03-04"}, {Key: "city", Value: "Salem"}},
	), nil).Once()

	who, docs, err := JoinFrequentTraveller(context.Background(), reviews, "listings")
	require.NoError(t, err)
	assert.Equal(t, Traveller{ID: int32(42), Name: "Ann", Count: 3}, who)
	assert.Len(t, docs, 2)
	reviews.AssertExpectations(t)
}

func TestJoinFrequentTravellerNoReviewer(t *testing.T) {
	reviews := backendtest.NewMockCollection("reviews")
	reviews.On("Aggregate", mock.Anything, mock.Anything, mock.Anything).Return(backendtest.Cursor(t), nil).Once()

	_, _, err := JoinFrequentTraveller(context.Background(), reviews, "listings")
	assert.True(t, errors.Is(err, ErrNoReviewer))
	reviews.AssertNumberOfCalls(t, "Aggregate", 1)
}
