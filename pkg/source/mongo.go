package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
)

// maxDocuments caps every document query; unbounded collection scans are not
// allowed through this driver.
const maxDocuments = 1000

// mongoDriver implements Driver for document stores. Schema discovery samples
// a single document and is therefore best-effort, not authoritative.
type mongoDriver struct {
	logger *logrus.Logger
}

func newMongoDriver(logger *logrus.Logger) *mongoDriver {
	return &mongoDriver{logger: logger}
}

func (d *mongoDriver) connect(src *model.DataSource) (*mongo.Client, string, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(src.ConnectionString))
	if err != nil {
		return nil, "", fmt.Errorf("connect mongo: %w", err)
	}

	return client, databaseName(src), nil
}

// databaseName resolves the database from the source configuration, falling
// back to the connection string path and finally "test".
func databaseName(src *model.DataSource) string {
	if name, ok := src.Configuration["database"]; ok && name != "" {
		return name
	}

	if u, err := url.Parse(src.ConnectionString); err == nil {
		if name := strings.TrimPrefix(u.Path, "/"); name != "" {
			return name
		}
	}

	return "test"
}

func (d *mongoDriver) TestConnection(ctx context.Context, src *model.DataSource) *TestResult {
	start := time.Now()

	fail := func(err error) *TestResult {
		d.logger.WithError(err).Warnf("Connection test failed for %q", src.Name)

		return &TestResult{
			Success:   false,
			Message:   err.Error(),
			ElapsedMs: time.Since(start).Milliseconds(),
		}
	}

	client, _, err := d.connect(src)
	if err != nil {
		return fail(err)
	}
	defer disconnect(client)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		return fail(err)
	}

	return &TestResult{
		Success:   true,
		Message:   "connection successful",
		Details:   "MongoDB connection verified",
		ElapsedMs: time.Since(start).Milliseconds(),
	}
}

func (d *mongoDriver) DiscoverTables(ctx context.Context, src *model.DataSource) ([]string, error) {
	client, dbName, err := d.connect(src)
	if err != nil {
		return nil, err
	}
	defer disconnect(client)

	names, err := client.Database(dbName).ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	return names, nil
}

func (d *mongoDriver) DiscoverSchema(
	ctx context.Context, src *model.DataSource, table string,
) ([]model.DatasetColumn, error) {
	client, dbName, err := d.connect(src)
	if err != nil {
		return nil, err
	}
	defer disconnect(client)

	cursor, err := client.Database(dbName).Collection(table).
		Find(ctx, bson.M{}, options.Find().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", table, err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		return nil, cursor.Err()
	}

	var doc bson.D
	if err := cursor.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode sample document: %w", err)
	}

	columns := make([]model.DatasetColumn, 0, len(doc))
	for _, element := range doc {
		columns = append(columns, model.DatasetColumn{
			Name:         element.Key,
			DataType:     bsonTypeLabel(element.Value),
			IsNullable:   true,
			IsPrimaryKey: element.Key == "_id",
		})
	}

	return columns, nil
}

func (d *mongoDriver) Open(_ context.Context, src *model.DataSource) (Conn, error) {
	client, dbName, err := d.connect(src)
	if err != nil {
		return nil, err
	}

	return &mongoConn{client: client, dbName: dbName}, nil
}

type mongoConn struct {
	client *mongo.Client
	dbName string
}

// Query treats the query text as a JSON filter document. An empty filter
// matches everything; results are capped at maxDocuments.
func (c *mongoConn) Query(ctx context.Context, table, query string, _ ...any) (*Result, error) {
	filter, err := ParseFilter(query)
	if err != nil {
		return nil, err
	}

	return c.find(ctx, table, filter, maxDocuments)
}

func (c *mongoConn) Preview(ctx context.Context, table string, limit int) (*Result, error) {
	return c.find(ctx, table, bson.D{}, int64(limit))
}

func (c *mongoConn) find(ctx context.Context, table string, filter bson.D, limit int64) (*Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cursor, err := c.client.Database(c.dbName).Collection(table).
		Find(queryCtx, filter, options.Find().SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(queryCtx)

	result := &Result{}
	seen := map[string]struct{}{}

	for cursor.Next(queryCtx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}

		row := make(map[string]any, len(doc))
		for _, element := range doc {
			if _, ok := seen[element.Key]; !ok {
				seen[element.Key] = struct{}{}
				result.Columns = append(result.Columns, element.Key)
			}
			row[element.Key] = flattenBSONValue(element.Value)
		}
		result.Rows = append(result.Rows, row)
	}

	return result, cursor.Err()
}

func (c *mongoConn) Count(ctx context.Context, table string) (int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	count, err := c.client.Database(c.dbName).Collection(table).
		CountDocuments(queryCtx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}

	return count, nil
}

func (c *mongoConn) Write(
	ctx context.Context, table string, _ []string, rows []map[string]any,
	keyColumns []string, mode WriteMode,
) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	collection := c.client.Database(c.dbName).Collection(table)

	if mode == WriteModeUpsert {
		var written int64
		for _, row := range rows {
			filter := bson.M{}
			for _, key := range keyColumns {
				filter[key] = row[key]
			}
			if len(filter) == 0 {
				return written, fmt.Errorf("upsert requires at least one key column")
			}

			_, err := collection.ReplaceOne(writeCtx, filter, row,
				options.Replace().SetUpsert(true))
			if err != nil {
				return written, fmt.Errorf("upsert document: %w", err)
			}
			written++
		}

		return written, nil
	}

	documents := make([]any, len(rows))
	for i, row := range rows {
		documents[i] = row
	}

	inserted, err := collection.InsertMany(writeCtx, documents)
	if err != nil {
		return 0, fmt.Errorf("insert documents: %w", err)
	}

	return int64(len(inserted.InsertedIDs)), nil
}

func (c *mongoConn) Close() error {
	disconnect(c.client)
	return nil
}

func disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = client.Disconnect(ctx)
}

// ParseFilter turns a JSON filter document into BSON. Blank or "{}" filters
// match everything. Extended JSON types ($date, $oid, ...) are honored.
func ParseFilter(filterJSON string) (bson.D, error) {
	trimmed := strings.TrimSpace(filterJSON)
	if trimmed == "" || trimmed == "{}" {
		return bson.D{}, nil
	}

	if !gjson.Valid(trimmed) {
		return nil, fmt.Errorf("invalid filter document: %s", trimmed)
	}

	var filter bson.D
	if err := bson.UnmarshalExtJSON([]byte(trimmed), false, &filter); err != nil {
		return nil, fmt.Errorf("parse filter document: %w", err)
	}

	return filter, nil
}

// flattenBSONValue converts BSON values into plain scalars, lists and maps.
func flattenBSONValue(v any) any {
	switch value := v.(type) {
	case nil:
		return nil
	case bson.ObjectID:
		return value.Hex()
	case bson.DateTime:
		return value.Time().UTC()
	case bson.A:
		flattened := make([]any, len(value))
		for i, item := range value {
			flattened[i] = flattenBSONValue(item)
		}
		return flattened
	case bson.D:
		flattened := make(map[string]any, len(value))
		for _, element := range value {
			flattened[element.Key] = flattenBSONValue(element.Value)
		}
		return flattened
	case bson.M:
		flattened := make(map[string]any, len(value))
		for key, item := range value {
			flattened[key] = flattenBSONValue(item)
		}
		return flattened
	default:
		return value
	}
}

func bsonTypeLabel(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int32:
		return "int32"
	case int64:
		return "int64"
	case float64:
		return "double"
	case bool:
		return "boolean"
	case bson.DateTime:
		return "date"
	case bson.ObjectID:
		return "objectId"
	case bson.A:
		return "array"
	case bson.D, bson.M:
		return "document"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
