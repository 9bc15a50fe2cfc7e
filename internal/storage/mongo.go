package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"smartclass/internal/domain"
)

// MongoProjectStore implements domain.ProjectStore on a MongoDB collection.
type MongoProjectStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoProject struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Content   string    `bson:"content,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (m mongoProject) toDomain() domain.Project {
	return domain.Project{ID: m.ID, Name: m.Name, Content: m.Content, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

// MongoURI builds a connection string. A Host that already is a full
// mongodb:// or mongodb+srv:// URI is used as-is, with <password>
// placeholders filled in.
func MongoURI(opts Options) string {
	if opts.DSN != "" {
		return opts.DSN
	}
	if strings.HasPrefix(opts.Host, "mongodb+srv://") || strings.HasPrefix(opts.Host, "mongodb://") {
		uri := opts.Host
		if opts.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", opts.Password)
			uri = strings.ReplaceAll(uri, "<db_password>", opts.Password)
		}
		return uri
	}
	port := opts.Port
	if port == 0 {
		port = 27017
	}
	if opts.Username != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", opts.Username, opts.Password, opts.Host, port)
	}
	return fmt.Sprintf("mongodb://%s:%d", opts.Host, port)
}

func OpenMongo(ctx context.Context, opts Options) (*MongoProjectStore, error) {
	uri := MongoURI(opts)
	logURI := uri
	if opts.Password != "" {
		logURI = strings.ReplaceAll(logURI, opts.Password, "***")
	}
	log.Infof("mongo: connecting to %s", logURI)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	dbName := opts.Database
	if dbName == "" {
		dbName = "smartclass"
	}
	return &MongoProjectStore{client: client, coll: client.Database(dbName).Collection("projects")}, nil
}

func (s *MongoProjectStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoProjectStore) CreateProject(ctx context.Context, p *domain.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := s.coll.InsertOne(ctx, mongoProject{
		ID: p.ID, Name: p.Name, Content: p.Content, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *MongoProjectStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var doc mongoProject
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get project %s: %w", id, domain.ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	p := doc.toDomain()
	return &p, nil
}

func (s *MongoProjectStore) ListProjects(ctx context.Context) ([]domain.Project, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetProjection(bson.M{"content": 0})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.Project
	for cur.Next(ctx) {
		var doc mongoProject
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode project: %w", err)
		}
		out = append(out, doc.toDomain())
	}
	return out, cur.Err()
}

func (s *MongoProjectStore) SaveContent(ctx context.Context, id, content string) error {
	return s.set(ctx, id, bson.M{"content": content})
}

func (s *MongoProjectStore) RenameProject(ctx context.Context, id, name string) error {
	return s.set(ctx, id, bson.M{"name": name})
}

func (s *MongoProjectStore) set(ctx context.Context, id string, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update project %s: %w", id, domain.ErrProjectNotFound)
	}
	return nil
}

func (s *MongoProjectStore) DeleteProject(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete project %s: %w", id, domain.ErrProjectNotFound)
	}
	return nil
}
