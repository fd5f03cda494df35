// internal/domain/models/user.go
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles recognized by the opportunity service.
const (
	RoleAdmin    = "admin"
	RoleProvider = "provider"
	RoleSeeker   = "seeker"
)

// User is the identity record owned by the account service. This service only
// reads it, to resolve providers and to refresh session principals.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	FirstName string             `bson:"firstName" json:"firstName"`
	LastName  string             `bson:"lastName" json:"lastName"`
	Email     string             `bson:"email" json:"email"`
	Role      string             `bson:"role,omitempty" json:"role,omitempty"`
}

// DisplayName is the name denormalized onto opportunities a user creates.
func (u User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
