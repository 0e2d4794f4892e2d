package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"torrentplay/internal/domain"
)

// Repository keeps the transfer history used to restore unfinished
// transfers after a restart.
type Repository struct {
	collection *mongo.Collection
	now        func() time.Time
}

type transferDoc struct {
	ID             string `bson:"_id"`
	Locator        string `bson:"locator"`
	Name           string `bson:"name"`
	FileName       string `bson:"fileName"`
	Length         int64  `bson:"length"`
	BytesCompleted int64  `bson:"bytesCompleted"`
	Completed      bool   `bson:"completed"`
	CreatedAt      int64  `bson:"createdAt"`
	UpdatedAt      int64  `bson:"updatedAt"`
}

func NewRepository(client *mongo.Client, dbName, collectionName string) *Repository {
	return &Repository{
		collection: client.Database(dbName).Collection(collectionName),
		now:        time.Now,
	}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *Repository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "completed", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Upsert records a transfer. Byte counters and the completed flag only move
// forward; createdAt is kept from the first write.
func (r *Repository) Upsert(ctx context.Context, rec domain.TransferRecord) error {
	if err := rec.Validate(); err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = r.now()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}
	doc := toDoc(rec)
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{
			"$setOnInsert": bson.M{"createdAt": doc.CreatedAt},
			"$set": bson.M{
				"locator":   doc.Locator,
				"name":      doc.Name,
				"fileName":  doc.FileName,
				"length":    doc.Length,
				"updatedAt": doc.UpdatedAt,
			},
			"$max": bson.M{
				"bytesCompleted": doc.BytesCompleted,
				"completed":      doc.Completed,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// UpdateProgress applies $max so a late or reordered write never moves
// progress backwards.
func (r *Repository) UpdateProgress(ctx context.Context, id domain.ContentID, update domain.ProgressUpdate) error {
	set := bson.M{"updatedAt": r.now().UTC().Unix()}
	if update.Length > 0 {
		set["length"] = update.Length
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{
			"$set": set,
			"$max": bson.M{
				"bytesCompleted": update.BytesCompleted,
				"completed":      update.Completed,
			},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id domain.ContentID) (domain.TransferRecord, error) {
	var doc transferDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.TransferRecord{}, domain.ErrNotFound
		}
		return domain.TransferRecord{}, err
	}
	return fromDoc(doc), nil
}

// ListIncomplete returns unfinished transfers, oldest first.
func (r *Repository) ListIncomplete(ctx context.Context) ([]domain.TransferRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"completed": bson.M{"$ne": true}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []transferDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return fromDocs(docs), nil
}

func (r *Repository) Delete(ctx context.Context, id domain.ContentID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toDoc(rec domain.TransferRecord) transferDoc {
	return transferDoc{
		ID:             string(rec.ID),
		Locator:        rec.Locator,
		Name:           rec.Name,
		FileName:       rec.FileName,
		Length:         rec.Length,
		BytesCompleted: rec.BytesCompleted,
		Completed:      rec.Completed,
		CreatedAt:      rec.CreatedAt.Unix(),
		UpdatedAt:      rec.UpdatedAt.Unix(),
	}
}

func fromDoc(doc transferDoc) domain.TransferRecord {
	return domain.TransferRecord{
		ID:             domain.ContentID(doc.ID),
		Locator:        doc.Locator,
		Name:           doc.Name,
		FileName:       doc.FileName,
		Length:         doc.Length,
		BytesCompleted: doc.BytesCompleted,
		Completed:      doc.Completed,
		CreatedAt:      timeFromUnix(doc.CreatedAt),
		UpdatedAt:      timeFromUnix(doc.UpdatedAt),
	}
}

func fromDocs(docs []transferDoc) []domain.TransferRecord {
	records := make([]domain.TransferRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromDoc(doc))
	}
	return records
}

func timeFromUnix(value int64) time.Time {
	return time.Unix(value, 0).UTC()
}
