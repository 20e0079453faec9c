// Package mongodb is a network storage.Backend backed by MongoDB, an
// alternative to redisdb for deployments that already run a Mongo
// cluster instead of Redis. Expired documents are removed by a TTL index
// on expires_at, and Get/Keys also skip expired documents the TTL monitor
// has not removed yet.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"goa.design/refcache/storage"
)

// Store is a MongoDB-backed storage.Backend. Documents live in a single
// collection, namespaced by the Namespace field rather than by separate
// collections, so Clear/Keys can scan with a simple filter.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	owned      bool
}

var _ storage.Backend = (*Store)(nil)

// Config configures a mongodb.Store.
type Config struct {
	// URI is the MongoDB connection string. Default: mongodb://localhost:27017.
	URI string
	// Database is the database name. Default: "refcache".
	Database string
	// Collection is the collection name. Default: "entries".
	Collection string
}

// document is the on-disk shape of a storage.Entry. _id doubles as the
// cache key so Get/Set/Delete are single-document operations.
type document struct {
	ID        string            `bson:"_id"`
	Value     any               `bson:"value"`
	Namespace string            `bson:"namespace"`
	Policy    bson.Raw          `bson:"policy"`
	CreatedAt time.Time         `bson:"created_at"`
	ExpiresAt *time.Time        `bson:"expires_at,omitempty"`
	Metadata  map[string]string `bson:"metadata,omitempty"`
}

// New connects to cfg.URI and returns a Store. The client is owned by
// the Store and closed by Close.
func New(ctx context.Context, cfg Config) (*Store, error) {
	uri := cfg.URI
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	s, err := newStore(ctx, client, cfg)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewFromClient wraps an already-connected *mongo.Client. The caller
// retains ownership; Close does not disconnect client.
func NewFromClient(ctx context.Context, client *mongo.Client, cfg Config) (*Store, error) {
	return newStore(ctx, client, cfg)
}

func newStore(ctx context.Context, client *mongo.Client, cfg Config) (*Store, error) {
	dbName := cfg.Database
	if dbName == "" {
		dbName = "refcache"
	}
	collName := cfg.Collection
	if collName == "" {
		collName = "entries"
	}
	coll := client.Database(dbName).Collection(collName)

	if _, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		{Keys: bson.D{{Key: "namespace", Value: 1}}},
	}); err != nil {
		return nil, fmt.Errorf("mongodb: create indexes: %w", err)
	}

	return &Store{client: client, collection: coll}, nil
}

func (s *Store) Get(ctx context.Context, key string) (storage.Entry, bool, error) {
	var doc document
	err := s.collection.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return storage.Entry{}, false, nil
	}
	if err != nil {
		return storage.Entry{}, false, fmt.Errorf("mongodb: get: %w", err)
	}
	entry, err := documentToEntry(key, doc)
	if err != nil {
		return storage.Entry{}, false, err
	}
	if entry.Expired(time.Now()) {
		return storage.Entry{}, false, nil
	}
	return entry, true, nil
}

func (s *Store) Set(ctx context.Context, key string, entry storage.Entry) error {
	policyRaw, err := bson.Marshal(entry.Policy)
	if err != nil {
		return fmt.Errorf("mongodb: encode policy: %w", err)
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	doc := document{
		ID:        key,
		Value:     entry.Value,
		Namespace: entry.Namespace,
		Policy:    policyRaw,
		CreatedAt: createdAt,
		ExpiresAt: entry.ExpiresAt,
		Metadata:  entry.Metadata,
	}
	_, err = s.collection.ReplaceOne(ctx, bson.D{{Key: "_id", Value: key}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb: set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}})
	if err != nil {
		return fmt.Errorf("mongodb: delete: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *Store) Clear(ctx context.Context, namespace string) error {
	filter := bson.D{}
	if namespace != "" {
		filter = bson.D{{Key: "namespace", Value: namespace}}
	}
	_, err := s.collection.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("mongodb: clear: %w", err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	filter := bson.D{}
	if namespace != "" {
		filter = bson.D{{Key: "namespace", Value: namespace}}
	}
	cur, err := s.collection.Find(ctx, filter, options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}, {Key: "expires_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongodb: keys: %w", err)
	}
	defer cur.Close(ctx)

	now := time.Now()
	var keys []string
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb: decode: %w", err)
		}
		if doc.ExpiresAt != nil && now.After(*doc.ExpiresAt) {
			continue
		}
		keys = append(keys, doc.ID)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongodb: keys: %w", err)
	}
	return keys, nil
}

func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

func documentToEntry(key string, doc document) (storage.Entry, error) {
	entry := storage.Entry{
		Key:       key,
		Value:     doc.Value,
		Namespace: doc.Namespace,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
		Metadata:  doc.Metadata,
	}
	if len(doc.Policy) > 0 {
		if err := bson.Unmarshal(doc.Policy, &entry.Policy); err != nil {
			return storage.Entry{}, fmt.Errorf("mongodb: decode policy: %w", err)
		}
	}
	return entry, nil
}
