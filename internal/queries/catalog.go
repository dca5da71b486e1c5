package queries

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/idealo/airbnb-benchmarking/internal/backend"
	"github.com/idealo/airbnb-benchmarking/internal/bench"
)

// cheapStayInputs are the (price limit, minimum nights) pairs of the warm-up query.
var cheapStayInputs = [][2]int{{20, 1}, {100, 7}, {700, 31}}

// Catalog returns the benchmark queries in the order they must run.
// Join queries use joinReps repetitions per variant; zero keeps the harness default.
func Catalog(listings, reviews backend.CollectionAPI, joinReps int, l *zap.SugaredLogger) []bench.Query {
	return []bench.Query{
		{
			Name:  "queryTest",
			Label: "test_cheap_stays",
			Run: func(ctx context.Context) (bench.Result, error) {
				var total int64
				for _, in := range cheapStayInputs {
					n, err := CheapStays(ctx, listings, in[0], in[1])
					if err != nil {
						return bench.Result{}, err
					}
					l.Debugf("%d %d-night stays cost at most $%d", n, in[1], in[0])
					total += n
				}
				return bench.Counted(total), nil
			},
		},
		{
			Name:  "queryCountZipcode",
			Label: "count_zipcode",
			Run: func(ctx context.Context) (bench.Result, error) {
				n, err := CountByLocation(ctx, listings, Location{MinBedrooms: 2, ZipStart: 97201, ZipEnd: 97210})
				return bench.Counted(n), err
			},
		},
		{
			Name:  "queryCountCity",
			Label: "count_city",
			Run: func(ctx context.Context) (bench.Result, error) {
				n, err := CountByLocation(ctx, listings, Location{MinBedrooms: 2, ZipStart: -1, City: "Portland"})
				return bench.Counted(n), err
			},
		},
		{
			Name:  "querySortedSubset",
			Label: "sorted_subset",
			Run: func(ctx context.Context) (bench.Result, error) {
				docs, err := SortedSubset(ctx, listings, 5)
				return bench.Counted(int64(len(docs))), err
			},
		},
		{
			Name:  "querySubsetSearch",
			Label: "subset_search",
			Run: func(ctx context.Context) (bench.Result, error) {
				share, err := SubsetSearch(ctx, listings)
				if err != nil {
					return bench.Result{}, err
				}
				if math.IsNaN(share.Percent) {
					l.Warnf("No recently updated houses; strict cancellation percentage is undefined")
					return bench.Result{Status: bench.StatusEmpty}, nil
				}
				l.Debugf("%.2f%% of %d recently updated houses have a strict cancellation policy", share.Percent, share.Total)
				return bench.Counted(share.Total), nil
			},
		},
		{
			Name:  "queryAverage",
			Label: "average",
			Run: func(ctx context.Context) (bench.Result, error) {
				avg, err := Average(ctx, listings, 1000)
				if err != nil {
					return bench.Result{}, err
				}
				l.Debugf("Average host response rate for listings over $1000: %.2f", avg)
				return bench.Counted(1), nil
			},
		},
		{
			Name:        "queryJoin",
			Label:       "join_most_recent_review",
			Repetitions: joinReps,
			Run: func(ctx context.Context) (bench.Result, error) {
				docs, err := JoinMostRecentReview(ctx, listings, reviews.Name())
				return bench.Counted(int64(len(docs))), err
			},
			Variants: indexVariants(l, fieldIndex{reviews, "listing_id"}),
		},
		{
			Name:        "queryFrequentTraveller",
			Label:       "join_frequent_traveller",
			Repetitions: joinReps,
			Run: func(ctx context.Context) (bench.Result, error) {
				who, docs, err := JoinFrequentTraveller(ctx, reviews, listings.Name())
				if err != nil {
					return bench.Result{}, err
				}
				l.Debugf("Reviewer %v (%s) wrote %d reviews", who.ID, who.Name, who.Count)
				return bench.Counted(int64(len(docs))), nil
			},
			Variants: indexVariants(l, fieldIndex{reviews, "reviewer_id"}, fieldIndex{listings, "id"}),
		},
		{
			Name:  "queryUpdate",
			Label: "update_guest_verification",
			Run: func(ctx context.Context) (bench.Result, error) {
				n, err := UpdateGuestVerification(ctx, listings)
				return bench.Counted(n), err
			},
		},
	}
}

type fieldIndex struct {
	coll  backend.CollectionAPI
	field string
}

// indexVariants compares runs without indexes against runs with ascending indexes on the given fields.
func indexVariants(l *zap.SugaredLogger, indexes ...fieldIndex) []bench.Variant {
	dropAll := func(ctx context.Context) error {
		for _, idx := range indexes {
			ok, err := backend.DropAllIndexes(ctx, idx.coll)
			if err != nil {
				return err
			}
			if !ok {
				return errors.Errorf("indexes on %s were not fully dropped", idx.coll.Name())
			}
		}
		return nil
	}

	return []bench.Variant{
		{
			Label: "without_index",
			Setup: dropAll,
		},
		{
			Label: "with_index",
			Setup: func(ctx context.Context) error {
				for _, idx := range indexes {
					created, err := backend.CreateIndex(ctx, idx.coll, idx.field, backend.Ascending)
					if err != nil {
						return err
					}
					if !created {
						l.Infof("Index on %s.%s already exists", idx.coll.Name(), idx.field)
					}
				}
				return nil
			},
			Teardown: dropAll,
		},
	}
}
