// Package mongodb implements the event store on MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/repository"
)

const (
	animalsCollection  = "animals"
	eventsCollection   = "animal_events"
	countersCollection = "counters"
	reportsCollection  = "reconciliation_runs"
)

var _ repository.EventStore = (*MongoDBRepository)(nil)

// MongoDBRepository implements repository.EventStore for MongoDB. Committing
// assignments uses multi-document transactions, so the deployment must be a
// replica set.
type MongoDBRepository struct {
	client   *mongo.Client
	animals  *mongo.Collection
	events   *mongo.Collection
	counters *mongo.Collection
	reports  *mongo.Collection
	logger   *zap.Logger
}

// NewMongoDBRepository connects to MongoDB and ensures the event indexes exist.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	r := &MongoDBRepository{
		client:   client,
		animals:  db.Collection(animalsCollection),
		events:   db.Collection(eventsCollection),
		counters: db.Collection(countersCollection),
		reports:  db.Collection(reportsCollection),
		logger:   logger,
	}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "animal_id", Value: 1}, {Key: "kind", Value: 1}}},
		{Keys: bson.D{
			{Key: "kind", Value: 1},
			{Key: "milking.lactation_id", Value: 1},
			{Key: "event_date", Value: -1},
			{Key: "_id", Value: 1},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to create event indexes: %w", err)
	}
	return nil
}

// nextID draws the next identifier of a sequence from the counters collection.
func (r *MongoDBRepository) nextID(ctx context.Context, sequence string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": sequence},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", sequence, err)
	}
	return counter.Seq, nil
}

// SaveAnimal upserts an animal, allocating an id when none is set.
func (r *MongoDBRepository) SaveAnimal(ctx context.Context, animal *models.Animal) error {
	if animal.ID == 0 {
		id, err := r.nextID(ctx, animalsCollection)
		if err != nil {
			return err
		}
		animal.ID = id
	}

	_, err := r.animals.ReplaceOne(ctx, bson.M{"_id": animal.ID}, animal, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save animal %d: %w", animal.ID, err)
	}
	return nil
}

// FindAnimal returns the animal with the given id.
func (r *MongoDBRepository) FindAnimal(ctx context.Context, id int64) (models.Animal, error) {
	var animal models.Animal
	if err := r.animals.FindOne(ctx, bson.M{"_id": id}).Decode(&animal); err != nil {
		return models.Animal{}, notFound(err, "animal %d", id)
	}
	return animal, nil
}

// InsertEvent stores a new event for an existing animal.
func (r *MongoDBRepository) InsertEvent(ctx context.Context, event *models.AnimalEvent) error {
	if _, err := r.FindAnimal(ctx, event.AnimalID); err != nil {
		return err
	}
	if event.ID == 0 {
		id, err := r.nextID(ctx, eventsCollection)
		if err != nil {
			return err
		}
		event.ID = id
	}

	if _, err := r.events.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to insert event %d: %w", event.ID, err)
	}
	return nil
}

// FindEvent returns the event with the given id.
func (r *MongoDBRepository) FindEvent(ctx context.Context, id int64) (models.AnimalEvent, error) {
	var event models.AnimalEvent
	if err := r.events.FindOne(ctx, bson.M{"_id": id}).Decode(&event); err != nil {
		return models.AnimalEvent{}, notFound(err, "event %d", id)
	}
	return event, nil
}

// FindAnimalEvents returns the animal's events of one kind in insertion order.
func (r *MongoDBRepository) FindAnimalEvents(ctx context.Context, animalID int64, kind models.EventKind) ([]models.AnimalEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{"animal_id": animalID, "kind": kind}, opts)
}

// FindMilkingEvents pages through all milking events, most recent first.
func (r *MongoDBRepository) FindMilkingEvents(ctx context.Context, offset, limit int) ([]models.AnimalEvent, error) {
	if err := repository.CheckPage(offset, limit); err != nil {
		return nil, err
	}
	return r.find(ctx, bson.M{"kind": models.EventMilking}, pageOptions(offset, limit))
}

// CountUnassignedMilkings counts milking events without a lactation.
func (r *MongoDBRepository) CountUnassignedMilkings(ctx context.Context) (int, error) {
	count, err := r.events.CountDocuments(ctx, unassignedFilter())
	if err != nil {
		return 0, fmt.Errorf("failed to count unassigned milking events: %w", err)
	}
	return int(count), nil
}

// FindUnassignedMilkings pages through unassigned milking events, most recent first.
func (r *MongoDBRepository) FindUnassignedMilkings(ctx context.Context, offset, limit int) ([]models.AnimalEvent, error) {
	if err := repository.CheckPage(offset, limit); err != nil {
		return nil, err
	}
	return r.find(ctx, unassignedFilter(), pageOptions(offset, limit))
}

// CommitAssignments applies a page of assignments in one transaction. The
// update filter skips events that already carry a lactation.
func (r *MongoDBRepository) CommitAssignments(ctx context.Context, assignments []models.LactationAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(assignments))
	for _, a := range assignments {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{
				"_id":                  a.MilkingEventID,
				"kind":                 models.EventMilking,
				"milking.lactation_id": nil,
			}).
			SetUpdate(bson.M{"$set": bson.M{"milking.lactation_id": a.CalvingEventID}}))
	}

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	res, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return r.events.BulkWrite(sc, writes, options.BulkWrite().SetOrdered(true))
	})
	if err != nil {
		return fmt.Errorf("failed to commit %d assignments: %w", len(assignments), err)
	}

	if result, ok := res.(*mongo.BulkWriteResult); ok && result.ModifiedCount != int64(len(assignments)) {
		r.logger.Warn("some assignments were already applied",
			zap.Int("staged", len(assignments)),
			zap.Int64("modified", result.ModifiedCount),
		)
	}
	return nil
}

// SaveRunReport stores the outcome of a reconciliation run.
func (r *MongoDBRepository) SaveRunReport(ctx context.Context, report models.RunReport) error {
	_, err := r.reports.InsertOne(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to insert run report: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.AnimalEvent, error) {
	cursor, err := r.events.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.AnimalEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return events, nil
}

// unassignedFilter matches milking events with a payload and no lactation.
// A bare nil match would also select documents missing the milking field.
func unassignedFilter() bson.M {
	return bson.M{
		"kind":                 models.EventMilking,
		"milking":              bson.M{"$exists": true, "$ne": nil},
		"milking.lactation_id": nil,
	}
}

func pageOptions(offset, limit int) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "event_date", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
}

func notFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
