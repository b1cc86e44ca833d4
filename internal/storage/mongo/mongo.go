// Package mongo maps storage collections onto MongoDB collections.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dhishan/family-expense-tracker/internal/storage"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to uri and uses the named database.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := NewFromClient(client, database)
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	slog.Info("Mongo document store ready", "database", database)
	return s, nil
}

func NewFromClient(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]string{
		storage.Expenses:      {"family_id", "date"},
		storage.Budgets:       {"family_id"},
		storage.Notifications: {"user_id", "created_at"},
		storage.Users:         {"family_id"},
		storage.Families:      {"invite_code"},
	}
	for coll, fields := range indexes {
		keys := bson.D{}
		for _, f := range fields {
			keys = append(keys, bson.E{Key: f, Value: 1})
		}
		if _, err := s.db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys}); err != nil {
			return fmt.Errorf("create index on %s: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.Document{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return toDocument(raw), nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields storage.Fields) (string, error) {
	nf, err := storage.NormalizeFields(fields)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}
	doc := bson.M(nf)
	doc["_id"] = id

	_, err = s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields storage.Fields) error {
	nf, err := storage.NormalizeFields(fields)
	if err != nil {
		return err
	}
	if len(nf) == 0 {
		_, err := s.Get(ctx, collection, id)
		return err
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(nf)})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q storage.Query) ([]storage.Document, error) {
	q, err := q.Prepare()
	if err != nil {
		return nil, err
	}

	sort := bson.D{}
	for _, o := range q.Orders {
		dir := 1
		if o.Direction == storage.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: o.Field, Value: dir})
	}
	sort = append(sort, bson.E{Key: "_id", Value: 1})

	opts := options.Find().SetSort(sort)
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(q.Collection).Find(ctx, filterDoc(q.Filters), opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer cur.Close(ctx)

	docs := []storage.Document{}
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", q.Collection, err)
		}
		docs = append(docs, toDocument(raw))
	}
	return docs, cur.Err()
}

func (s *Store) Count(ctx context.Context, q storage.Query) (int, error) {
	q, err := q.Prepare()
	if err != nil {
		return 0, err
	}
	n, err := s.db.Collection(q.Collection).CountDocuments(ctx, filterDoc(q.Filters))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Collection, err)
	}
	return int(n), nil
}

func (s *Store) Batch() storage.Batch {
	return &batch{store: s}
}

type batch struct {
	storage.OpQueue
	store *Store
}

// Commit sends one ordered bulk write per collection. Standalone servers have
// no multi-document transactions, so a failure can leave earlier writes applied.
func (b *batch) Commit(ctx context.Context) error {
	if err := b.Check(); err != nil {
		return err
	}
	byCollection := map[string][]mongo.WriteModel{}
	var order []string
	for _, op := range b.Ops {
		nf, err := storage.NormalizeFields(op.Fields)
		if err != nil {
			return err
		}
		if _, seen := byCollection[op.Collection]; !seen {
			order = append(order, op.Collection)
		}
		byCollection[op.Collection] = append(byCollection[op.Collection],
			mongo.NewUpdateOneModel().SetFilter(bson.M{"_id": op.ID}).SetUpdate(bson.M{"$set": bson.M(nf)}))
	}

	for _, coll := range order {
		models := byCollection[coll]
		res, err := b.store.db.Collection(coll).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
		if err != nil {
			return fmt.Errorf("bulk update %s: %w", coll, err)
		}
		if res.MatchedCount < int64(len(models)) {
			return fmt.Errorf("bulk update %s: %w", coll, storage.ErrNotFound)
		}
	}
	b.Ops = nil
	return nil
}

func filterDoc(filters []storage.Filter) bson.M {
	if len(filters) == 0 {
		return bson.M{}
	}
	conds := make(bson.A, 0, len(filters))
	for _, f := range filters {
		var cond any
		switch f.Op {
		case storage.Eq:
			cond = bson.M{"$eq": f.Value}
		case storage.Gte:
			cond = bson.M{"$gte": f.Value}
		case storage.Lte:
			cond = bson.M{"$lte": f.Value}
		case storage.Gt:
			cond = bson.M{"$gt": f.Value}
		case storage.Lt:
			cond = bson.M{"$lt": f.Value}
		case storage.Contains:
			cond = primitive.Regex{Pattern: regexp.QuoteMeta(f.Value.(string)), Options: "i"}
		}
		conds = append(conds, bson.M{f.Field: cond})
	}
	return bson.M{"$and": conds}
}

func toDocument(raw bson.M) storage.Document {
	id, _ := raw["_id"].(string)
	f := make(storage.Fields, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		f[k] = fromBSON(v)
	}
	return storage.Document{ID: id, Fields: f}
}

// fromBSON converts driver types back to the JSON shapes storage.Fields uses.
func fromBSON(v any) any {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = fromBSON(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = fromBSON(e)
		}
		return m
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromBSON(e)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
