package queries

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/idealo/airbnb-benchmarking/internal/backend"
)

// ErrNoReviewer is returned when the reviews collection has no reviewer to pick.
var ErrNoReviewer = errors.New("no reviewer found")

func mongoPipeline(stages ...bson.D) mongo.Pipeline {
	return mongo.Pipeline(stages)
}

func aggregate(ctx context.Context, coll backend.CollectionAPI, pipeline mongo.Pipeline, res any) error {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return errors.Wrapf(err, "aggregation on %s failed", coll.Name())
	}
	return cursor.All(ctx, res)
}

func lookup(from, localField, foreignField, as string) bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: from},
		{Key: "localField", Value: localField},
		{Key: "foreignField", Value: foreignField},
		{Key: "as", Value: as},
	}}}
}

func unwind(path string, preserveEmpty bool) bson.D {
	return bson.D{{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: path},
		{Key: "preserveNullAndEmptyArrays", Value: preserveEmpty},
	}}}
}

// MostRecentReviewPipeline left-joins Portland houses with more than three bedrooms to their
// reviews and keeps the latest review of each listing.
func MostRecentReviewPipeline(reviews string) mongo.Pipeline {
	match := Where().
		Eq("city", "Portland").
		Gt("bedrooms", 3).
		Eq("property_type", "House")

	return mongoPipeline(
		match.Match(),
		lookup(reviews, "id", "listing_id", "reviews"),
		unwind("$reviews", true),
		bson.D{{Key: "$sort", Value: bson.D{{Key: "reviews.date", Value: -1}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$id"},
			{Key: "name", Value: bson.D{{Key: "$first", Value: "$name"}}},
			{Key: "last_review_date", Value: bson.D{{Key: "$max", Value: "$reviews.date"}}},
			{Key: "most_recent_review", Value: bson.D{{Key: "$first", Value: "$reviews"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	)
}

// JoinMostRecentReview returns one document per matching listing with its most recent review.
func JoinMostRecentReview(ctx context.Context, listings backend.CollectionAPI, reviews string) ([]bson.M, error) {
	var docs []bson.M
	if err := aggregate(ctx, listings, MostRecentReviewPipeline(reviews), &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Traveller is the reviewer with the most reviews.
type Traveller struct {
	ID    any    `bson:"_id"`
	Name  string `bson:"reviewer_name"`
	Count int64  `bson:"count"`
}

// FrequentTravellerPipeline picks the reviewer with the most reviews; ties go to the
// lexically smallest name. Reviews without a reviewer_id are ignored.
func FrequentTravellerPipeline() mongo.Pipeline {
	return mongoPipeline(
		Where().Ne("reviewer_id", nil).Match(),
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$reviewer_id"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "reviewer_name", Value: bson.D{{Key: "$min", Value: "$reviewer_name"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "count", Value: -1},
			{Key: "reviewer_name", Value: 1},
			{Key: "_id", Value: 1},
		}}},
		bson.D{{Key: "$limit", Value: 1}},
	)
}

// TravellerReviewsPipeline lists a reviewer's reviews with the location of each listing, oldest first.
func TravellerReviewsPipeline(reviewerID any, listings string) mongo.Pipeline {
	return mongoPipeline(
		Where().Eq("reviewer_id", reviewerID).Match(),
		lookup(listings, "listing_id", "id", "listing"),
		unwind("$listing", true),
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "date", Value: 1},
			{Key: "listing_id", Value: 1},
			{Key: "comments", Value: 1},
			{Key: "city", Value: "$listing.city"},
			{Key: "state", Value: "$listing.state"},
			{Key: "neighbourhood", Value: "$listing.neighbourhood_cleansed"},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "date", Value: 1}}}},
	)
}

// JoinFrequentTraveller finds the most frequent reviewer and lists their reviews with listing locations.
func JoinFrequentTraveller(ctx context.Context, reviews backend.CollectionAPI, listings string) (Traveller, []bson.M, error) {
	var top []Traveller
	if err := aggregate(ctx, reviews, FrequentTravellerPipeline(), &top); err != nil {
		return Traveller{}, nil, err
	}
	if len(top) == 0 || top[0].ID == nil {
		return Traveller{}, nil, ErrNoReviewer
	}

	var docs []bson.M
	if err := aggregate(ctx, reviews, TravellerReviewsPipeline(top[0].ID, listings), &docs); err != nil {
		return top[0], nil, err
	}
	return top[0], docs, nil
}
