// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/opportunityhub/internal/app/system/indexes"
	"github.com/dalemusser/opportunityhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates the service's collections if missing and attaches
// JSON-Schema validators as a second line of defence behind the stores'
// own validation. Deployments without collMod support are logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure(indexes.Opportunities, opportunitiesSchema())
	ensure(indexes.SavedOpportunities, savedOpportunitiesSchema())

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection returns created==true only if this call created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	if exists, err := collectionExists(ctx, db, name); err == nil && exists {
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		// moderate: documents written before the validator existed can still be updated
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

func commandErr(err error) (mongo.CommandError, bool) {
	var ce mongo.CommandError
	ok := errors.As(err, &ce)
	return ce, ok
}

func isNamespaceExistsErr(err error) bool {
	if ce, ok := commandErr(err); ok && ce.Code == 48 {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if ce, ok := commandErr(err); ok && ce.Code == 59 {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if ce, ok := commandErr(err); ok && ce.Code == 115 {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func opportunitiesSchema() bson.M {
	types := make(bson.A, 0, len(models.OpportunityTypes))
	for _, t := range models.OpportunityTypes {
		types = append(types, t)
	}
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "description", "type", "category", "location",
				"provider", "providerName", "applicationDeadline", "isActive", "createdAt"},
			"properties": bson.M{
				"title":               nonBlank,
				"description":         nonBlank,
				"type":                bson.M{"enum": types},
				"category":            nonBlank,
				"location":            nonBlank,
				"provider":            bson.M{"bsonType": "objectId"},
				"providerName":        bson.M{"bsonType": "string"},
				"isRemote":            bson.M{"bsonType": "bool"},
				"isActive":            bson.M{"bsonType": "bool"},
				"applicationDeadline": bson.M{"bsonType": "date"},
				"currentApplicants":   bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"salary": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"min": bson.M{"bsonType": bson.A{"double", "int", "long"}, "minimum": 0},
					},
				},
			},
		},
	}
}

func savedOpportunitiesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user", "opportunity", "createdAt"},
			"properties": bson.M{
				"user":        bson.M{"bsonType": "objectId"},
				"opportunity": bson.M{"bsonType": "objectId"},
				"createdAt":   bson.M{"bsonType": "date"},
			},
		},
	}
}
