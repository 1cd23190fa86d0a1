package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/ajitpratap0/tabula/pkg/errors"
	"github.com/ajitpratap0/tabula/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoConfig locates the collections a MongoSource reads.
type MongoConfig struct {
	URI         string
	Database    string
	Collections []string
	Limit       int64
	Timeout     time.Duration
}

// MongoSource reads each configured collection as one source.
type MongoSource struct {
	config MongoConfig
	logger *zap.Logger
}

// NewMongoSource creates a MongoDB source.
func NewMongoSource(cfg MongoConfig, logger *zap.Logger) *MongoSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &MongoSource{config: cfg, logger: logger}
}

// Name returns the database name.
func (s *MongoSource) Name() string { return "mongo:" + s.config.Database }

// Load connects, reads every collection and disconnects.
func (s *MongoSource) Load(ctx context.Context) (models.SourceBatch, error) {
	if s.config.URI == "" || s.config.Database == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "mongo source requires uri and database")
	}
	if len(s.config.Collections) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "mongo source requires at least one collection")
	}

	clientOpts := options.Client().
		ApplyURI(s.config.URI).
		SetConnectTimeout(s.config.Timeout).
		SetServerSelectionTimeout(s.config.Timeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to MongoDB")
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			s.logger.Warn("failed to disconnect from MongoDB", zap.Error(err))
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to ping MongoDB")
	}

	db := client.Database(s.config.Database)
	batch := make(models.SourceBatch, len(s.config.Collections))
	for _, name := range s.config.Collections {
		records, err := s.readCollection(ctx, db.Collection(name))
		if err != nil {
			return nil, err
		}
		batch[name] = records
		s.logger.Debug("read collection",
			zap.String("collection", name),
			zap.Int("records", len(records)))
	}
	return batch, nil
}

func (s *MongoSource) readCollection(ctx context.Context, coll *mongo.Collection) ([]models.Record, error) {
	findOpts := options.Find()
	if s.config.Limit > 0 {
		findOpts.SetLimit(s.config.Limit)
	}

	cursor, err := coll.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to query collection").
			WithDetail("collection", coll.Name())
	}
	defer cursor.Close(ctx)

	var records []models.Record
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode document").
				WithDetail("collection", coll.Name())
		}
		records = append(records, normalizeBSON(doc).(map[string]interface{}))
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "cursor error").
			WithDetail("collection", coll.Name())
	}
	return records, nil
}

// normalizeBSON converts decoded BSON values into plain Go values: documents
// become maps, arrays become slices and driver types become strings or
// numbers the engine can classify.
func normalizeBSON(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case primitive.M:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = normalizeBSON(inner)
		}
		return out
	case primitive.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = normalizeBSON(e.Value)
		}
		return out
	case map[string]interface{}:
		return normalizeBSON(primitive.M(val))
	case []interface{}:
		return normalizeBSON(primitive.A(val))
	case primitive.A:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = normalizeBSON(inner)
		}
		return out
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC().Format(time.RFC3339)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case primitive.Decimal128:
		return val.String()
	case primitive.Binary:
		return base64.StdEncoding.EncodeToString(val.Data)
	case primitive.Null, primitive.Undefined:
		return nil
	case primitive.Regex:
		return val.String()
	case primitive.JavaScript:
		return string(val)
	case primitive.Symbol:
		return string(val)
	case string, bool, int32, int64, float64:
		return val
	default:
		return fmt.Sprint(val)
	}
}
