// Package mongostore implements the document-database adapter on MongoDB.
// Each table is a collection and the document id is stored as _id.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store"
	"github.com/BartekS5/docshift/pkg/utils"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const idField = "_id"

// Store persists documents in one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *logrus.Entry
	// ownsClient makes Close disconnect the client.
	ownsClient bool
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.TableLister = (*Store)(nil)
)

// New wraps an already connected client. Close disconnects it when owns is true.
func New(client *mongo.Client, database string, owns bool) *Store {
	return &Store{
		client:     client,
		db:         client.Database(database),
		ownsClient: owns,
		log:        logger.WithFields(logrus.Fields{"component": "mongostore", "database": database}),
	}
}

func (s *Store) Kind() models.Kind { return models.KindMongo }

func (s *Store) Capabilities() models.Capabilities {
	return models.DefaultCapabilities(models.KindMongo)
}

func (s *Store) coll(table string) *mongo.Collection {
	return s.db.Collection(table)
}

// fromBSON converts decoder output into plain documents, maps and slices.
func fromBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		out := make(models.Document, len(t))
		for k, val := range t {
			out[k] = fromBSON(val)
		}
		return out
	case bson.D:
		out := make(models.Document, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = fromBSON(val)
		}
		return out
	case map[string]interface{}:
		return fromBSON(bson.M(t))
	case []interface{}:
		return fromBSON(bson.A(t))
	default:
		return v
	}
}

// toDocument strips _id and returns the id as a string.
func toDocument(raw bson.M) (string, models.Document) {
	id := fmt.Sprint(raw[idField])
	if oid, ok := raw[idField].(primitive.ObjectID); ok {
		id = oid.Hex()
	}
	doc, _ := fromBSON(raw).(models.Document)
	delete(doc, idField)
	return id, doc
}

// idFilter matches id as stored and, when id is an ObjectID hex string, the
// native ObjectID that ReadAll reported as that string.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{idField: bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{idField: id}
}

func withID(id string, doc models.Document) bson.M {
	out := bson.M{}
	for k, v := range doc {
		if k == idField {
			continue
		}
		out[k] = v
	}
	out[idField] = id
	return out
}

func (s *Store) Create(ctx context.Context, table, id string, doc models.Document) (string, error) {
	if id == "" {
		id = store.NewID()
	}
	_, err := s.coll(table).InsertOne(ctx, withID(id, store.Stamp(doc)))
	if mongo.IsDuplicateKeyError(err) {
		return "", fmt.Errorf("%s/%s: %w", table, id, store.ErrAlreadyExists)
	}
	if err != nil {
		return "", fmt.Errorf("error inserting %s/%s: %w", table, id, err)
	}
	return id, nil
}

func (s *Store) findOne(ctx context.Context, table string, filter bson.M) (models.Document, error) {
	var raw bson.M
	err := s.coll(table).FindOne(ctx, filter).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	_, doc := toDocument(raw)
	return doc, nil
}

func (s *Store) find(ctx context.Context, table string, filter bson.M) (map[string]models.Document, error) {
	cursor, err := s.coll(table).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error reading collection %s: %w", table, err)
	}
	defer cursor.Close(ctx)

	var out map[string]models.Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			s.log.WithError(err).Warn("skipping undecodable document")
			continue
		}
		id, doc := toDocument(raw)
		if out == nil {
			out = make(map[string]models.Document)
		}
		out[id] = doc
	}
	return out, cursor.Err()
}

func (s *Store) Read(ctx context.Context, table, id string) (models.Document, error) {
	doc, err := s.findOne(ctx, table, idFilter(id))
	if err != nil {
		return nil, fmt.Errorf("error reading %s/%s: %w", table, id, err)
	}
	return doc, nil
}

func (s *Store) ReadAll(ctx context.Context, table string) (map[string]models.Document, error) {
	docs, err := s.find(ctx, table, bson.M{})
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = make(map[string]models.Document)
	}
	return docs, nil
}

func (s *Store) ReadBy(ctx context.Context, table, field string, value interface{}) (models.Document, error) {
	return s.findOne(ctx, table, bson.M{field: value})
}

func (s *Store) GetItemsByKeyValue(ctx context.Context, table, field string, value interface{}) (map[string]models.Document, error) {
	return s.find(ctx, table, bson.M{field: value})
}

func (s *Store) Update(ctx context.Context, table, id string, data models.Document) (models.Document, error) {
	set := bson.M{}
	for k, v := range data.Clone() {
		if k == idField {
			continue
		}
		set[k] = v
	}
	set[store.FieldUpdatedAt] = utils.FormatISO(store.Now())

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var raw bson.M
	err := s.coll(table).FindOneAndUpdate(ctx, idFilter(id), bson.M{"$set": set}, opts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s/%s: %w", table, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error updating %s/%s: %w", table, id, err)
	}
	_, doc := toDocument(raw)
	return doc, nil
}

func (s *Store) Delete(ctx context.Context, table, id string) (bool, error) {
	res, err := s.coll(table).DeleteOne(ctx, idFilter(id))
	if err != nil {
		return false, fmt.Errorf("error deleting %s/%s: %w", table, id, err)
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) DeleteAll(ctx context.Context, table string) (bool, error) {
	if _, err := s.coll(table).DeleteMany(ctx, bson.M{}); err != nil {
		return false, fmt.Errorf("error clearing collection %s: %w", table, err)
	}
	return true, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Upload streams file into GridFS under destinationPath.
func (s *Store) Upload(ctx context.Context, file io.Reader, destinationPath string) (*store.UploadResult, error) {
	bucket, err := gridfs.NewBucket(s.db)
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}

	meta := map[string]string{"path": destinationPath, "filename": path.Base(destinationPath)}
	opts := options.GridFSUpload().SetMetadata(bson.M{"path": destinationPath})
	cr := &countingReader{r: file}
	fileID, err := bucket.UploadFromStream(path.Base(destinationPath), cr, opts)
	if err != nil {
		return nil, fmt.Errorf("gridfs upload of %s failed: %w", destinationPath, err)
	}

	return &store.UploadResult{
		URL:      fmt.Sprintf("gridfs://%s/%s", s.db.Name(), fileID.Hex()),
		Path:     destinationPath,
		Size:     cr.n,
		Metadata: meta,
	}, nil
}

// Tables lists the collections of the database, excluding GridFS buckets.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if n == "fs.files" || n == "fs.chunks" {
			continue
		}
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Close(ctx context.Context) error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Disconnect(ctx)
}
