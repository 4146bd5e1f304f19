package implementation

import (
	"context"
	"time"

	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoTelemetryArchive struct {
	coll *mongo.Collection
}

func NewMongoTelemetryArchive(coll *mongo.Collection) *MongoTelemetryArchive {
	return &MongoTelemetryArchive{coll: coll}
}

func (r *MongoTelemetryArchive) InsertOne(ctx context.Context, rec pdsmodels.TelemetryRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, rec)
	return err
}

func (r *MongoTelemetryArchive) InsertMany(ctx context.Context, recs []pdsmodels.TelemetryRecord) error {
	if len(recs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	docs := make([]interface{}, 0, len(recs))
	for i := range recs {
		docs = append(docs, recs[i])
	}
	// unordered so one bad document does not drop the rest of the copy
	_, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}

// NopTelemetryArchive is used when no archive is configured
type NopTelemetryArchive struct{}

func (NopTelemetryArchive) InsertOne(context.Context, pdsmodels.TelemetryRecord) error { return nil }

func (NopTelemetryArchive) InsertMany(context.Context, []pdsmodels.TelemetryRecord) error {
	return nil
}
