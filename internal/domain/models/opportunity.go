// internal/domain/models/opportunity.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Opportunity types. The set is closed; anything else fails validation.
const (
	TypeJob         = "job"
	TypeScholarship = "scholarship"
	TypeMentorship  = "mentorship"
	TypeFunding     = "funding"
	TypeInternship  = "internship"
)

// OpportunityTypes lists the accepted values of Opportunity.Type in display order.
var OpportunityTypes = []string{TypeJob, TypeScholarship, TypeMentorship, TypeFunding, TypeInternship}

// IsValidOpportunityType reports whether t is one of OpportunityTypes.
func IsValidOpportunityType(t string) bool {
	for _, v := range OpportunityTypes {
		if t == v {
			return true
		}
	}
	return false
}

// DefaultCurrency is applied when a salary is given without a currency code.
const DefaultCurrency = "USD"

// Salary is the compensation range of an opportunity. Max is optional.
type Salary struct {
	Min      float64  `bson:"min" json:"min"`
	Max      *float64 `bson:"max,omitempty" json:"max,omitempty"`
	Currency string   `bson:"currency" json:"currency"` // ISO code, stored uppercase
}

// Requirements describe what a seeker needs to apply.
type Requirements struct {
	Skills     []string `bson:"skills" json:"skills"`
	Experience string   `bson:"experience,omitempty" json:"experience,omitempty"`
	Education  string   `bson:"education,omitempty" json:"education,omitempty"`
	Languages  []string `bson:"languages" json:"languages"`
}

// Opportunity is a postable listing owned by exactly one provider.
//
// Documents live in the "opportunities" collection with camelCase keys,
// shared with the other services that read them.
type Opportunity struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Type        string             `bson:"type" json:"type"`
	Category    string             `bson:"category" json:"category"`

	// ProviderName is copied from the owner at creation time and never
	// refreshed afterwards.
	Provider     primitive.ObjectID `bson:"provider" json:"provider"`
	ProviderName string             `bson:"providerName" json:"providerName"`

	Location string `bson:"location" json:"location"`
	IsRemote bool   `bson:"isRemote" json:"isRemote"`

	Salary       Salary       `bson:"salary" json:"salary"`
	Requirements Requirements `bson:"requirements" json:"requirements"`
	Benefits     []string     `bson:"benefits" json:"benefits"`

	ApplicationDeadline time.Time  `bson:"applicationDeadline" json:"applicationDeadline"`
	StartDate           *time.Time `bson:"startDate,omitempty" json:"startDate,omitempty"`
	Duration            string     `bson:"duration,omitempty" json:"duration,omitempty"`

	MaxApplicants     *int `bson:"maxApplicants,omitempty" json:"maxApplicants,omitempty"`
	CurrentApplicants int  `bson:"currentApplicants" json:"currentApplicants"`
	IsActive          bool `bson:"isActive" json:"isActive"`

	Tags        []string `bson:"tags" json:"tags"`
	Attachments []string `bson:"attachments" json:"attachments"`

	ContactEmail string `bson:"contactEmail,omitempty" json:"contactEmail,omitempty"`
	ContactPhone string `bson:"contactPhone,omitempty" json:"contactPhone,omitempty"`
	Website      string `bson:"website,omitempty" json:"website,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// ProviderSummary is the slice of the owning user joined into responses.
type ProviderSummary struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	FirstName string             `bson:"firstName" json:"firstName"`
	LastName  string             `bson:"lastName" json:"lastName"`
	Email     string             `bson:"email,omitempty" json:"email,omitempty"`
}

// OpportunityView is an Opportunity with its provider resolved.
// It shadows the raw Provider reference; ProviderRef is nil when the owning
// user no longer exists.
type OpportunityView struct {
	Opportunity
	ProviderRef *ProviderSummary `json:"provider"`
}
