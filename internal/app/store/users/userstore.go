package userstore

import (
	"context"
	"errors"

	"github.com/dalemusser/opportunityhub/internal/app/system/apperr"
	"github.com/dalemusser/opportunityhub/internal/app/system/indexes"
	"github.com/dalemusser/opportunityhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// summaryProjection matches the fields a provider join exposes.
var summaryProjection = bson.M{"_id": 1, "firstName": 1, "lastName": 1, "email": 1}

// Store reads the users collection. Users are owned by the account service,
// so there are no write paths here.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(indexes.Users)}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NewNotFound("User not found")
		}
		return nil, apperr.Store("get user", err)
	}
	return &u, nil
}

// Summaries resolves ids to provider summaries in one query. Ids with no
// matching user are absent from the result.
func (s *Store) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.ProviderSummary, error) {
	out := make(map[primitive.ObjectID]*models.ProviderSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	uniq := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}

	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": uniq}}, options.Find().SetProjection(summaryProjection))
	if err != nil {
		return nil, apperr.Store("find providers", err)
	}
	defer cur.Close(ctx)

	var rows []models.ProviderSummary
	if err := cur.All(ctx, &rows); err != nil {
		return nil, apperr.Store("decode providers", err)
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}
