// internal/app/store/opportunities/opportunitystore.go
package opportunitystore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/opportunityhub/internal/app/system/apperr"
	"github.com/dalemusser/opportunityhub/internal/app/system/indexes"
	"github.com/dalemusser/opportunityhub/internal/app/system/txn"
	"github.com/dalemusser/opportunityhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const notFoundMsg = "Opportunity not found"

// ProviderResolver resolves owner ids to the summary joined into views.
type ProviderResolver interface {
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.ProviderSummary, error)
}

// Cascader removes rows that reference a deleted opportunity.
type Cascader interface {
	DeleteByOpportunity(ctx context.Context, opportunityID primitive.ObjectID) (int64, error)
}

type Store struct {
	c         *mongo.Collection
	client    *mongo.Client
	providers ProviderResolver
	cascade   Cascader
	log       *zap.Logger
}

func New(db *mongo.Database, providers ProviderResolver, logger *zap.Logger) *Store {
	return &Store{
		c:         db.Collection(indexes.Opportunities),
		client:    db.Client(),
		providers: providers,
		log:       logger,
	}
}

// SetCascade registers the relation cleaned up by Delete. Call it once
// during wiring, before serving requests.
func (s *Store) SetCascade(c Cascader) {
	s.cascade = c
}

// Create validates in, stamps ownership and system fields, inserts the
// document and returns it with the provider joined.
func (s *Store) Create(ctx context.Context, in Input, ownerID primitive.ObjectID, ownerName string, attachments []string) (models.OpportunityView, error) {
	o := in.build()
	if err := validate(&o, nil); err != nil {
		return models.OpportunityView{}, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	o.ID = primitive.NewObjectID()
	o.Provider = ownerID
	o.ProviderName = ownerName
	o.Attachments = append([]string{}, attachments...)
	o.IsActive = true
	o.CurrentApplicants = 0
	o.CreatedAt = now
	o.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, o); err != nil {
		return models.OpportunityView{}, apperr.Store("insert opportunity", err)
	}
	return s.view(ctx, o)
}

// GetByID returns an opportunity regardless of isActive.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.OpportunityView, error) {
	o, err := s.get(ctx, id)
	if err != nil {
		return models.OpportunityView{}, err
	}
	return s.view(ctx, o)
}

func (s *Store) get(ctx context.Context, id primitive.ObjectID) (models.Opportunity, error) {
	var o models.Opportunity
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Opportunity{}, apperr.NewNotFound(notFoundMsg)
		}
		return models.Opportunity{}, apperr.Store("get opportunity", err)
	}
	return o, nil
}

// Exists reports whether an opportunity with id is stored.
func (s *Store) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, apperr.Store("check opportunity", err)
}

// Update applies p to the stored document. Only provided fields are
// re-validated; a patched salary bound is checked against the stored one.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, p Patch) (models.OpportunityView, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return models.OpportunityView{}, err
	}

	next := current
	touched := p.apply(&next)
	if err := validate(&next, touched); err != nil {
		return models.OpportunityView{}, err
	}

	set := bson.M{"updatedAt": time.Now().UTC().Truncate(time.Millisecond)}
	unset := bson.M{}
	for key := range touched {
		switch {
		case key == "startDate" && next.StartDate == nil,
			key == "maxApplicants" && next.MaxApplicants == nil:
			unset[key] = ""
		default:
			set[key] = fieldValue(&next, key)
		}
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var updated models.Opportunity
	err = s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.OpportunityView{}, apperr.NewNotFound(notFoundMsg)
		}
		return models.OpportunityView{}, apperr.Store("update opportunity", err)
	}
	return s.view(ctx, updated)
}

// fieldValue returns the value stored under a patchable bson key.
func fieldValue(o *models.Opportunity, key string) any {
	switch key {
	case "title":
		return o.Title
	case "description":
		return o.Description
	case "type":
		return o.Type
	case "category":
		return o.Category
	case "location":
		return o.Location
	case "isRemote":
		return o.IsRemote
	case "salary":
		return o.Salary
	case "requirements":
		return o.Requirements
	case "benefits":
		return o.Benefits
	case "applicationDeadline":
		return o.ApplicationDeadline
	case "startDate":
		return o.StartDate
	case "duration":
		return o.Duration
	case "maxApplicants":
		return o.MaxApplicants
	case "currentApplicants":
		return o.CurrentApplicants
	case "isActive":
		return o.IsActive
	case "tags":
		return o.Tags
	case "contactEmail":
		return o.ContactEmail
	case "contactPhone":
		return o.ContactPhone
	case "website":
		return o.Website
	}
	return nil
}

// SetActive changes only the visibility flag.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) (models.OpportunityView, error) {
	update := bson.M{"$set": bson.M{
		"isActive":  active,
		"updatedAt": time.Now().UTC().Truncate(time.Millisecond),
	}}
	var o models.Opportunity
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.OpportunityView{}, apperr.NewNotFound(notFoundMsg)
		}
		return models.OpportunityView{}, apperr.Store("set opportunity status", err)
	}
	return s.view(ctx, o)
}

// Delete removes the opportunity and, when a Cascader is registered, the
// rows that reference it, in one transaction where the server allows.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	var removed int64
	err := txn.Run(ctx, s.client, s.log, func(ctx context.Context) error {
		res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return apperr.Store("delete opportunity", err)
		}
		if res.DeletedCount == 0 {
			return apperr.NewNotFound(notFoundMsg)
		}
		if s.cascade == nil {
			return nil
		}
		n, err := s.cascade.DeleteByOpportunity(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		return nil
	})
	if err != nil {
		return apperr.Store("delete opportunity", err)
	}
	if removed > 0 {
		s.log.Info("removed saved rows with opportunity",
			zap.String("opportunity_id", id.Hex()),
			zap.Int64("count", removed))
	}
	return nil
}

// ListByProvider returns every opportunity owned by providerID, active or
// not, newest first.
func (s *Store) ListByProvider(ctx context.Context, providerID primitive.ObjectID) ([]models.OpportunityView, error) {
	find := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return s.find(ctx, bson.M{"provider": providerID}, find)
}

// ViewsByIDs loads the given opportunities with providers joined, keyed by
// id. Missing ids are absent from the map.
func (s *Store) ViewsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.OpportunityView, error) {
	out := make(map[primitive.ObjectID]models.OpportunityView, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	views, err := s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		out[v.ID] = v
	}
	return out, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.OpportunityView, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Store("find opportunities", err)
	}
	defer cur.Close(ctx)

	var rows []models.Opportunity
	if err := cur.All(ctx, &rows); err != nil {
		return nil, apperr.Store("decode opportunities", err)
	}
	return s.join(ctx, rows)
}

func (s *Store) view(ctx context.Context, o models.Opportunity) (models.OpportunityView, error) {
	views, err := s.join(ctx, []models.Opportunity{o})
	if err != nil {
		return models.OpportunityView{}, err
	}
	return views[0], nil
}

// join attaches provider summaries. A missing provider leaves ProviderRef nil.
func (s *Store) join(ctx context.Context, rows []models.Opportunity) ([]models.OpportunityView, error) {
	out := make([]models.OpportunityView, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]primitive.ObjectID, len(rows))
	for i := range rows {
		ids[i] = rows[i].Provider
	}
	byID, err := s.providers.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		out[i] = models.OpportunityView{Opportunity: rows[i], ProviderRef: byID[rows[i].Provider]}
	}
	return out, nil
}
