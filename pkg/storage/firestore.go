package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"cloud.google.com/go/civil"
	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energyrates/pkg/log"
	"github.com/raterudder/energyrates/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// maxTransactionWrites is Firestore's limit on writes in one transaction.
const maxTransactionWrites = 500

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Each kind has its own collection and each rate is one document
// whose ID is the rate's period key, so re-writing a period replaces it.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
	now       func() time.Time
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{now: time.Now}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// an empty project ID is detected from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	if f.now == nil {
		f.now = time.Now
	}
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(kind types.Kind) (*firestore.CollectionRef, error) {
	switch kind {
	case types.KindElectricity:
		return f.client.Collection("electricity_rates"), nil
	case types.KindGas:
		return f.client.Collection("gas_rates"), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidKind, kind)
	}
}

// UpsertRates writes rates as JSON documents keyed by Rate.ID. Each chunk of
// up to 500 documents is written in a single transaction.
func (f *FirestoreProvider) UpsertRates(ctx context.Context, kind types.Kind, rates []types.Rate) (UpsertResult, error) {
	coll, err := f.getCollection(kind)
	if err != nil {
		return UpsertResult{}, &StoreError{Op: "upsert", Kind: kind, Err: err}
	}

	accepted, rejected := prepareRates(rates, f.now().UTC())
	for _, rej := range rejected {
		log.Ctx(ctx).WarnContext(
			ctx,
			"rejecting invalid rate",
			slog.String("rateID", rej.Rate.ID()),
			slog.Any("err", rej.Err),
		)
	}
	res := UpsertResult{Rejected: rejected}

	for chunk := range slices.Chunk(accepted, maxTransactionWrites) {
		docs := make(map[string]map[string]interface{}, len(chunk))
		for _, r := range chunk {
			jsonBytes, err := json.Marshal(r)
			if err != nil {
				return res, &StoreError{Op: "upsert", Kind: kind, Err: fmt.Errorf("failed to marshal rate %s: %w", r.ID(), err)}
			}
			docs[r.ID()] = map[string]interface{}{
				"json":        string(jsonBytes),
				"rateDate":    r.RateDate.String(),
				"periodStart": r.PeriodStart.UTC(),
				"updatedAt":   r.UpdatedAt,
			}
		}
		err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			for id, data := range docs {
				if err := tx.Set(coll.Doc(id), data); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return res, &StoreError{Op: "upsert", Kind: kind, Err: fmt.Errorf("failed to upsert rates: %w", err)}
		}
		res.Written += len(chunk)
	}
	return res, nil
}

// GetRatesForDay retrieves the rates of a single rate date.
func (f *FirestoreProvider) GetRatesForDay(ctx context.Context, kind types.Kind, day civil.Date) ([]types.Rate, error) {
	coll, err := f.getCollection(kind)
	if err != nil {
		return nil, &StoreError{Op: "get", Kind: kind, Err: err}
	}
	// ordering is done in memory so no composite index is needed
	iter := coll.
		Where("rateDate", "==", day.String()).
		Documents(ctx)
	defer iter.Stop()

	var rates []types.Rate
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, &StoreError{Op: "get", Kind: kind, Err: fmt.Errorf("error iterating rates: %w", err)}
		}

		r, err := decodeRateDoc(ctx, doc)
		if err != nil {
			return nil, &StoreError{Op: "get", Kind: kind, Err: err}
		}
		rates = append(rates, r)
	}
	sortByPeriodStart(rates)
	return rates, nil
}

func decodeRateDoc(ctx context.Context, doc *firestore.DocumentSnapshot) (types.Rate, error) {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "rate doc missing json", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
		return types.Rate{}, fmt.Errorf("rate document %s missing 'json' field: %w", doc.Ref.ID, err)
	}

	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "rate doc json not string", slog.String("docID", doc.Ref.ID))
		return types.Rate{}, fmt.Errorf("rate document %s 'json' field is not string", doc.Ref.ID)
	}

	var r types.Rate
	if err := json.Unmarshal([]byte(jsonStr), &r); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal rate", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
		return types.Rate{}, fmt.Errorf("failed to unmarshal rate (id=%s): %w", doc.Ref.ID, err)
	}

	// older documents may lack updated_at in the blob
	if r.UpdatedAt.IsZero() {
		if v, err := doc.DataAt("updatedAt"); err == nil {
			if ts, ok := v.(time.Time); ok {
				r.UpdatedAt = ts
			}
		}
	}
	return r, nil
}

// GetAvailableDays scans the rateDate field of every document in the kind's
// collection.
func (f *FirestoreProvider) GetAvailableDays(ctx context.Context, kind types.Kind) ([]civil.Date, error) {
	coll, err := f.getCollection(kind)
	if err != nil {
		return nil, &StoreError{Op: "available_days", Kind: kind, Err: err}
	}
	iter := coll.
		Select("rateDate").
		OrderBy("rateDate", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var days []civil.Date
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil, nil
			}
			return nil, &StoreError{Op: "available_days", Kind: kind, Err: fmt.Errorf("error iterating rate dates: %w", err)}
		}

		val, err := doc.DataAt("rateDate")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "rate doc missing rateDate", slog.String("docID", doc.Ref.ID))
			continue
		}
		s, ok := val.(string)
		if !ok {
			continue
		}
		day, err := civil.ParseDate(s)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "rate doc has invalid rateDate", slog.String("docID", doc.Ref.ID), slog.String("rateDate", s))
			continue
		}
		// already ordered so duplicates are adjacent
		if n := len(days); n > 0 && days[n-1] == day {
			continue
		}
		days = append(days, day)
	}
	return days, nil
}
