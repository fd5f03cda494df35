// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection names shared with the stores.
const (
	Opportunities      = "opportunities"
	SavedOpportunities = "savedopportunities"
	Users              = "users"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem shows up and startup fails fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureOpportunities(ctx, db); err != nil {
		problems = append(problems, Opportunities+": "+err.Error())
	}
	// The unique (user, opportunity) index is what makes concurrent saves safe.
	if err := ensureSavedOpportunities(ctx, db); err != nil {
		problems = append(problems, SavedOpportunities+": "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Reconcile desired indexes for one collection                               */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func truthy(b *bool) bool { return b != nil && *b }

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return mongo.IsDuplicateKeyError(err)
}

func listIndexes(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out, cur.Err()
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing, err := listIndexes(ctx, coll)
	if err != nil {
		// A collection that does not exist yet has no indexes to reconcile.
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range models {
		var name string
		var unique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = m.Options.Unique
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()
		fields := []zap.Field{
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", truthy(unique)),
		}

		if ex, ok := existing[sig]; ok {
			if truthy(ex.Unique) == truthy(unique) && (name == "" || ex.Name == name) {
				zap.L().Info("reusing existing index", append(fields, zap.Duration("took", time.Since(start)))...)
				continue
			}
			// Same keys under another name, or uniqueness changed: drop and recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop %s failed: %v", coll.Name(), name, ex.Name, err))
				continue
			}
		}

		created, err := coll.Indexes().CreateOne(ctx, m)
		if err != nil {
			if isDuplicateKeyErr(err) && truthy(unique) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			zap.L().Warn("index ensure failed", append(fields, zap.Error(err))...)
			continue
		}
		zap.L().Info("index ensured", append(fields,
			zap.String("created_name", created),
			zap.Duration("took", time.Since(start)))...)
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                             */
/* -------------------------------------------------------------------------- */

func ensureOpportunities(ctx context.Context, db *mongo.Database) error {
	c := db.Collection(Opportunities)
	single := func(field string, dir int, name string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: dir}},
			Options: options.Index().SetName(name),
		}
	}
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Default discovery: active listings newest first.
		{
			Keys:    bson.D{{Key: "isActive", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_opp_active_created__id"),
		},
		{
			Keys:    bson.D{{Key: "isActive", Value: 1}, {Key: "type", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_opp_active_type_created"),
		},
		// Provider dashboards list their own postings, active or not.
		{
			Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_opp_provider_created"),
		},
		single("createdAt", -1, "idx_opp_created"),
		single("isRemote", 1, "idx_opp_remote"),
		single("category", 1, "idx_opp_category"),
		single("location", 1, "idx_opp_location"),
		single("applicationDeadline", 1, "idx_opp_deadline"),
		single("requirements.skills", 1, "idx_opp_skills"),
		single("tags", 1, "idx_opp_tags"),
	})
}

func ensureSavedOpportunities(ctx context.Context, db *mongo.Database) error {
	c := db.Collection(SavedOpportunities)
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Exactly one saved row per (user, opportunity).
		{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "opportunity", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_saved_user_opportunity"),
		},
		// A seeker's saved list, newest first.
		{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_saved_user_created"),
		},
		// Cascade delete and orphan sweep by opportunity.
		{
			Keys:    bson.D{{Key: "opportunity", Value: 1}},
			Options: options.Index().SetName("idx_saved_opportunity"),
		},
	})
}
