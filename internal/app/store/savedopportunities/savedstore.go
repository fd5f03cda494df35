// internal/app/store/savedopportunities/savedstore.go
package savedstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/opportunityhub/internal/app/system/apperr"
	"github.com/dalemusser/opportunityhub/internal/app/system/indexes"
	"github.com/dalemusser/opportunityhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Opportunities is the slice of the opportunity store this package reads.
type Opportunities interface {
	Exists(ctx context.Context, id primitive.ObjectID) (bool, error)
	ViewsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.OpportunityView, error)
}

type Store struct {
	c       *mongo.Collection
	opps    *mongo.Collection
	catalog Opportunities
	log     *zap.Logger
}

func New(db *mongo.Database, catalog Opportunities, logger *zap.Logger) *Store {
	return &Store{
		c:       db.Collection(indexes.SavedOpportunities),
		opps:    db.Collection(indexes.Opportunities),
		catalog: catalog,
		log:     logger,
	}
}

func pair(userID, opportunityID primitive.ObjectID) bson.M {
	return bson.M{"user": userID, "opportunity": opportunityID}
}

// Exists reports whether userID has saved opportunityID.
func (s *Store) Exists(ctx context.Context, userID, opportunityID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, pair(userID, opportunityID), options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, apperr.Store("check saved opportunity", err)
}

// Save records that userID saved opportunityID. The opportunity must exist.
// A second save of the same pair fails with DuplicateSave; the unique index
// on (user, opportunity) makes that hold under concurrent requests.
func (s *Store) Save(ctx context.Context, userID, opportunityID primitive.ObjectID) (models.SavedOpportunity, error) {
	ok, err := s.catalog.Exists(ctx, opportunityID)
	if err != nil {
		return models.SavedOpportunity{}, err
	}
	if !ok {
		return models.SavedOpportunity{}, apperr.NewNotFound("Opportunity not found.")
	}

	row := models.SavedOpportunity{
		ID:          primitive.NewObjectID(),
		User:        userID,
		Opportunity: opportunityID,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.c.InsertOne(ctx, row); err != nil {
		if wafflemongo.IsDup(err) {
			return models.SavedOpportunity{}, apperr.NewDuplicateSave()
		}
		return models.SavedOpportunity{}, apperr.Store("save opportunity", err)
	}
	return row, nil
}

// Unsave removes the pair. NotFound when it was not saved.
func (s *Store) Unsave(ctx context.Context, userID, opportunityID primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, pair(userID, opportunityID))
	if err != nil {
		return apperr.Store("unsave opportunity", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NewNotFound("Saved opportunity not found.")
	}
	return nil
}

// ListSaved returns userID's saved rows, newest first, each joined with the
// full opportunity. Rows whose opportunity is gone are skipped and logged.
func (s *Store) ListSaved(ctx context.Context, userID primitive.ObjectID) ([]models.SavedOpportunityView, error) {
	find := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"user": userID}, find)
	if err != nil {
		return nil, apperr.Store("find saved opportunities", err)
	}
	defer cur.Close(ctx)

	var rows []models.SavedOpportunity
	if err := cur.All(ctx, &rows); err != nil {
		return nil, apperr.Store("decode saved opportunities", err)
	}

	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.Opportunity)
	}
	byID, err := s.catalog.ViewsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.SavedOpportunityView, 0, len(rows))
	for _, r := range rows {
		view, ok := byID[r.Opportunity]
		if !ok {
			s.log.Warn("saved opportunity references a missing opportunity",
				zap.String("saved_id", r.ID.Hex()),
				zap.String("user_id", r.User.Hex()),
				zap.String("opportunity_id", r.Opportunity.Hex()))
			continue
		}
		out = append(out, models.SavedOpportunityView{
			ID:          r.ID,
			User:        r.User,
			Opportunity: view,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, nil
}

// DeleteByOpportunity removes every saved row for opportunityID and returns
// how many were removed. It runs inside the caller's session when ctx
// carries one.
func (s *Store) DeleteByOpportunity(ctx context.Context, opportunityID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"opportunity": opportunityID})
	if err != nil {
		return 0, apperr.Store("delete saved rows", err)
	}
	return res.DeletedCount, nil
}

// DeleteOrphans removes saved rows whose opportunity no longer exists.
func (s *Store) DeleteOrphans(ctx context.Context) (int64, error) {
	raw, err := s.c.Distinct(ctx, "opportunity", bson.M{})
	if err != nil {
		return 0, apperr.Store("list saved opportunity ids", err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	referenced := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(primitive.ObjectID); ok {
			referenced = append(referenced, id)
		}
	}

	cur, err := s.opps.Find(ctx, bson.M{"_id": bson.M{"$in": referenced}}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, apperr.Store("find live opportunities", err)
	}
	var live []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	err = cur.All(ctx, &live)
	cur.Close(ctx)
	if err != nil {
		return 0, apperr.Store("decode live opportunities", err)
	}

	alive := make(map[primitive.ObjectID]struct{}, len(live))
	for _, l := range live {
		alive[l.ID] = struct{}{}
	}
	var missing []primitive.ObjectID
	for _, id := range referenced {
		if _, ok := alive[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	res, err := s.c.DeleteMany(ctx, bson.M{"opportunity": bson.M{"$in": missing}})
	if err != nil {
		return 0, apperr.Store("delete orphaned saved rows", err)
	}
	return res.DeletedCount, nil
}
