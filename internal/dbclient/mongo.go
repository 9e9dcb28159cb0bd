package dbclient

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"copyflat/internal/decode"
	"copyflat/internal/domain"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoLoader implements Loader for MongoDB: one collection per table,
// one document per decoded row.
type mongoLoader struct {
	client     *mongo.Client
	dbName     string
	groupDelim string
}

// buildMongoURI returns the connection URI and database name for a target.
// A host that is already a mongodb:// or mongodb+srv:// URI is used as given.
func buildMongoURI(t domain.LoadTarget) (string, string) {
	var uri string
	if strings.HasPrefix(t.Host, "mongodb+srv://") || strings.HasPrefix(t.Host, "mongodb://") {
		uri = t.Host
		// Replace <password> placeholder commonly found in Atlas connection strings
		if t.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", t.Password)
			uri = strings.ReplaceAll(uri, "<db_password>", t.Password)
		}
	} else {
		port := t.Port
		if port == 0 {
			port = 27017
		}
		if t.Username != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%d",
				url.QueryEscape(t.Username), url.QueryEscape(t.Password), t.Host, port)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%d", t.Host, port)
		}
	}

	dbName := t.Database
	if dbName == "" {
		dbName = databaseFromURI(uri)
	}
	return uri, dbName
}

// databaseFromURI extracts the path segment of user:pass@host/DB_NAME?params.
func databaseFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if at := strings.LastIndex(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	if slash := strings.Index(rest, "/"); slash != -1 {
		path := rest[slash+1:]
		if q := strings.Index(path, "?"); q != -1 {
			path = path[:q]
		}
		if path != "" {
			return path
		}
	}
	return "copyflat"
}

func newMongoLoader(t domain.LoadTarget, groupDelim string) (*mongoLoader, error) {
	uri, dbName := buildMongoURI(t)

	logURI := uri
	if t.Password != "" {
		logURI = strings.ReplaceAll(logURI, url.QueryEscape(t.Password), "***")
		logURI = strings.ReplaceAll(logURI, t.Password, "***")
	}
	log.Printf("[MONGO] Connecting with URI: %s (database %s)", logURI, dbName)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &mongoLoader{client: client, dbName: dbName, groupDelim: groupDelim}, nil
}

func (m *mongoLoader) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

// rowDocument turns decoded cells into a document. Group cells become arrays of members.
func rowDocument(columns []decode.LayoutRow, row []string, groupDelim string) bson.D {
	doc := make(bson.D, 0, len(columns))
	for i, c := range columns {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if c.IsGroup() && groupDelim != "" {
			doc = append(doc, bson.E{Key: c.Name, Value: strings.Split(cell, groupDelim)})
			continue
		}
		doc = append(doc, bson.E{Key: c.Name, Value: cell})
	}
	return doc
}

func (m *mongoLoader) Write(ctx context.Context, table string, columns []decode.LayoutRow, rows [][]string, mode domain.LoadMode) (int, error) {
	coll := m.client.Database(m.dbName).Collection(table)

	if mode == domain.LoadReplace {
		if err := coll.Drop(ctx); err != nil {
			return 0, fmt.Errorf("drop collection %s: %w", table, err)
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}

	docs := make([]any, len(rows))
	for i, row := range rows {
		docs[i] = rowDocument(columns, row, m.groupDelim)
	}
	res, err := coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return len(res.InsertedIDs), nil
}

func (m *mongoLoader) Introspect(ctx context.Context) (*SchemaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db := m.client.Database(m.dbName)
	collections, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	schema := &SchemaInfo{}
	for _, collName := range collections {
		// Sample one document to extract field names
		var doc bson.D
		err := db.Collection(collName).FindOne(ctx, bson.M{}).Decode(&doc)
		if err != nil {
			schema.Tables = append(schema.Tables, TableInfo{Name: collName})
			continue
		}
		cols := make([]ColumnInfo, 0, len(doc))
		for _, e := range doc {
			cols = append(cols, ColumnInfo{Name: e.Key, Type: fmt.Sprintf("%T", e.Value)})
		}
		schema.Tables = append(schema.Tables, TableInfo{Name: collName, Columns: cols})
	}
	return schema, nil
}

func (m *mongoLoader) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
