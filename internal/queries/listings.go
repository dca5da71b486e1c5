// Package queries holds the benchmark queries against the listings and reviews collections.
package queries

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/idealo/airbnb-benchmarking/internal/backend"
)

// ErrAggregation is returned when an aggregation yields an unexpected number of results.
var ErrAggregation = errors.New("unexpected aggregation result")

// Location restricts CountByLocation to a zipcode range or a city.
type Location struct {
	MinBedrooms int

	// The range is used when ZipStart >= 0 and ZipEnd > 0; it wins over City.
	ZipStart int
	ZipEnd   int

	City string
}

func (loc Location) hasZipRange() bool {
	return loc.ZipStart >= 0 && loc.ZipEnd > 0
}

// Filter returns bedrooms > MinBedrooms combined with the zipcode range or city.
func (loc Location) Filter() (bson.D, error) {
	f := Where().Gt("bedrooms", loc.MinBedrooms)

	switch {
	case loc.hasZipRange():
		if loc.ZipStart > loc.ZipEnd {
			return nil, errors.Wrapf(backend.ErrInvalidArgument, "zipcode range %d-%d is reversed", loc.ZipStart, loc.ZipEnd)
		}
		f.Between("zipcode", loc.ZipStart, loc.ZipEnd)
	case loc.City != "":
		f.Eq("city", loc.City)
	default:
		return nil, errors.Wrap(backend.ErrInvalidArgument, "either a zipcode range or a city is required")
	}

	return f.D(), nil
}

// CountByLocation counts listings with more than MinBedrooms bedrooms in a zipcode range or city.
func CountByLocation(ctx context.Context, listings backend.CollectionAPI, loc Location) (int64, error) {
	filter, err := loc.Filter()
	if err != nil {
		return 0, err
	}
	return listings.CountDocuments(ctx, filter)
}

// CheapStays counts listings costing at most priceLimit with exactly the given minimum nights.
func CheapStays(ctx context.Context, listings backend.CollectionAPI, priceLimit, nights int) (int64, error) {
	filter := Where().
		Lte("price", priceLimit).
		Eq("minimum_nights_avg_ntm", nights)

	opts := options.Find().
		SetProjection(bson.D{
			{Key: "_id", Value: 0},
			{Key: "id", Value: 1},
			{Key: "price", Value: 1},
			{Key: "neighbourhood_cleansed", Value: 1},
			{Key: "accommodates", Value: 1},
			{Key: "smart_location", Value: 1},
			{Key: "minimum_nights_avg_ntm", Value: 1},
		}).
		SetSort(bson.D{{Key: "price", Value: 1}})

	cursor, err := listings.Find(ctx, filter.D(), opts)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var count int64
	for cursor.Next(ctx) {
		count++
	}
	return count, cursor.Err()
}

// SortedSubset returns the limit listings with the most reviews.
func SortedSubset(ctx context.Context, listings backend.CollectionAPI, limit int64) ([]bson.M, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "number_of_reviews", Value: -1}}).
		SetLimit(limit).
		SetProjection(bson.D{
			{Key: "_id", Value: 0},
			{Key: "id", Value: 1},
			{Key: "name", Value: 1},
			{Key: "city", Value: 1},
			{Key: "number_of_reviews", Value: 1},
		})

	cursor, err := listings.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}

	var docs []bson.M
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Share is the part of a set of listings matching an extra condition.
type Share struct {
	Total    int64
	Matching int64

	// Percent is NaN when Total is zero.
	Percent float64
}

// SubsetSearch computes the percentage of houses updated within the last week that have
// a strict cancellation policy.
func SubsetSearch(ctx context.Context, listings backend.CollectionAPI) (Share, error) {
	match := Where().
		Eq("property_type", "House").
		Regex("calendar_updated", "today|yesterday|days", "")

	strict := bson.D{{Key: "$regexMatch", Value: bson.D{
		{Key: "input", Value: bson.D{{Key: "$toString", Value: bson.D{
			{Key: "$ifNull", Value: bson.A{"$cancellation_policy", ""}},
		}}}},
		{Key: "regex", Value: "strict"},
	}}}

	pipeline := mongoPipeline(
		match.Match(),
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "strict", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{strict, 1, 0}},
			}}}},
		}}},
	)

	var res []struct {
		Total  int64 `bson:"total"`
		Strict int64 `bson:"strict"`
	}
	if err := aggregate(ctx, listings, pipeline, &res); err != nil {
		return Share{}, err
	}

	if len(res) == 0 || res[0].Total == 0 {
		return Share{Percent: math.NaN()}, nil
	}

	return Share{
		Total:    res[0].Total,
		Matching: res[0].Strict,
		Percent:  float64(res[0].Strict) / float64(res[0].Total) * 100,
	}, nil
}

// Average returns the mean host response rate of listings priced above minPrice.
// Listings without a numeric rate are ignored.
func Average(ctx context.Context, listings backend.CollectionAPI, minPrice int) (float64, error) {
	match := Where().
		Gt("price", minPrice).
		Gte("host_response_rate", 0)

	pipeline := mongoPipeline(
		match.Match(),
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "average", Value: bson.D{{Key: "$avg", Value: "$host_response_rate"}}},
		}}},
	)

	var res []struct {
		Average float64 `bson:"average"`
	}
	if err := aggregate(ctx, listings, pipeline, &res); err != nil {
		return 0, err
	}

	if len(res) != 1 {
		return 0, errors.Wrapf(ErrAggregation, "expected one average, got %d", len(res))
	}
	return res[0].Average, nil
}

// UpdateGuestVerification requires guest phone verification for Portland listings with more
// than two bedrooms and bathrooms. It returns the number of matched listings.
func UpdateGuestVerification(ctx context.Context, listings backend.CollectionAPI) (int64, error) {
	filter := Where().
		Eq("city", "Portland").
		Gt("bedrooms", 2).
		Gt("bathrooms", 2)

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "require_guest_phone_verification", Value: true},
	}}}

	res, err := listings.UpdateMany(ctx, filter.D(), update)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}
