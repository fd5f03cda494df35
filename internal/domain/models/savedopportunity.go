// internal/domain/models/savedopportunity.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SavedOpportunity links one seeker to one opportunity they bookmarked.
// At most one document exists per (user, opportunity); rows are never updated.
type SavedOpportunity struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	User        primitive.ObjectID `bson:"user" json:"user"`
	Opportunity primitive.ObjectID `bson:"opportunity" json:"opportunity"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// SavedOpportunityView is a saved row joined with the full opportunity it references.
type SavedOpportunityView struct {
	ID          primitive.ObjectID `json:"_id"`
	User        primitive.ObjectID `json:"user"`
	Opportunity OpportunityView    `json:"opportunity"`
	CreatedAt   time.Time          `json:"createdAt"`
}
