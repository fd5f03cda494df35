package opportunitystore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/opportunityhub/internal/app/system/apperr"
	"github.com/dalemusser/opportunityhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/urlutil"
)

// Date accepts RFC 3339 timestamps or plain YYYY-MM-DD dates in JSON.
type Date struct {
	time.Time
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// ParseDate parses s with the layouts Date accepts. Results are UTC.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{t.UTC()}, nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time.UTC().Format(time.RFC3339Nano))
}

// Nullable is a patch field for optional values. A missing key leaves the
// stored value alone, null clears it, anything else replaces it.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// Some is a Nullable that replaces the stored value with v.
func Some[T any](v T) Nullable[T] { return Nullable[T]{Set: true, Value: &v} }

// Null is a Nullable that clears the stored value.
func Null[T any]() Nullable[T] { return Nullable[T]{Set: true} }

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	n.Value = nil
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// SalaryInput is the salary block of a create request.
type SalaryInput struct {
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
	Currency string   `json:"currency"`
}

// Input is a create request. Provider, timestamps, counters and
// attachments are stamped by Create and cannot be supplied.
type Input struct {
	Title               string              `json:"title"`
	Description         string              `json:"description"`
	Type                string              `json:"type"`
	Category            string              `json:"category"`
	Location            string              `json:"location"`
	IsRemote            bool                `json:"isRemote"`
	Salary              *SalaryInput        `json:"salary"`
	Requirements        models.Requirements `json:"requirements"`
	Benefits            []string            `json:"benefits"`
	ApplicationDeadline *Date               `json:"applicationDeadline"`
	StartDate           *Date               `json:"startDate"`
	Duration            string              `json:"duration"`
	MaxApplicants       *int                `json:"maxApplicants"`
	Tags                []string            `json:"tags"`
	ContactEmail        string              `json:"contactEmail"`
	ContactPhone        string              `json:"contactPhone"`
	Website             string              `json:"website"`
}

// SalaryPatch changes individual salary fields. A null max removes the
// upper bound.
type SalaryPatch struct {
	Min      *float64          `json:"min"`
	Max      Nullable[float64] `json:"max"`
	Currency *string  `json:"currency"`
}

// RequirementsPatch changes individual requirement fields.
type RequirementsPatch struct {
	Skills     *[]string `json:"skills"`
	Experience *string   `json:"experience"`
	Education  *string   `json:"education"`
	Languages  *[]string `json:"languages"`
}

// Patch is a partial update. Nil fields are left untouched. The optional
// fields salary.max, startDate and maxApplicants are Nullable so a client
// can clear them with an explicit null.
type Patch struct {
	Title               *string            `json:"title"`
	Description         *string            `json:"description"`
	Type                *string            `json:"type"`
	Category            *string            `json:"category"`
	Location            *string            `json:"location"`
	IsRemote            *bool              `json:"isRemote"`
	Salary              *SalaryPatch       `json:"salary"`
	Requirements        *RequirementsPatch `json:"requirements"`
	Benefits            *[]string          `json:"benefits"`
	ApplicationDeadline *Date              `json:"applicationDeadline"`
	StartDate           Nullable[Date]     `json:"startDate"`
	Duration            *string            `json:"duration"`
	MaxApplicants       Nullable[int]      `json:"maxApplicants"`
	CurrentApplicants   *int               `json:"currentApplicants"`
	IsActive            *bool              `json:"isActive"`
	Tags                *[]string          `json:"tags"`
	ContactEmail        *string            `json:"contactEmail"`
	ContactPhone        *string            `json:"contactPhone"`
	Website             *string            `json:"website"`
}

// build turns a create request into a normalized entity. Ownership and
// system fields are filled in by Create.
func (in Input) build() models.Opportunity {
	o := models.Opportunity{
		Title:        in.Title,
		Description:  in.Description,
		Type:         in.Type,
		Category:     in.Category,
		Location:     in.Location,
		IsRemote:     in.IsRemote,
		Requirements: in.Requirements,
		Benefits:     in.Benefits,
		Duration:     in.Duration,
		Tags:         in.Tags,
		ContactEmail: in.ContactEmail,
		ContactPhone: in.ContactPhone,
		Website:      in.Website,
	}
	if in.Salary != nil {
		if in.Salary.Min != nil {
			o.Salary.Min = *in.Salary.Min
		}
		o.Salary.Max = in.Salary.Max
		o.Salary.Currency = in.Salary.Currency
	}
	if in.ApplicationDeadline != nil {
		o.ApplicationDeadline = in.ApplicationDeadline.Time
	}
	if in.StartDate != nil {
		t := in.StartDate.Time
		o.StartDate = &t
	}
	if in.MaxApplicants != nil {
		n := *in.MaxApplicants
		o.MaxApplicants = &n
	}
	normalize(&o)
	return o
}

// apply writes p onto o and returns the bson keys it touched.
func (p Patch) apply(o *models.Opportunity) map[string]bool {
	touched := map[string]bool{}
	setStr := func(key string, dst *string, v *string) {
		if v != nil {
			*dst = *v
			touched[key] = true
		}
	}
	setList := func(key string, dst *[]string, v *[]string) {
		if v != nil {
			*dst = *v
			touched[key] = true
		}
	}

	setStr("title", &o.Title, p.Title)
	setStr("description", &o.Description, p.Description)
	setStr("type", &o.Type, p.Type)
	setStr("category", &o.Category, p.Category)
	setStr("location", &o.Location, p.Location)
	setStr("duration", &o.Duration, p.Duration)
	setStr("contactEmail", &o.ContactEmail, p.ContactEmail)
	setStr("contactPhone", &o.ContactPhone, p.ContactPhone)
	setStr("website", &o.Website, p.Website)
	setList("benefits", &o.Benefits, p.Benefits)
	setList("tags", &o.Tags, p.Tags)

	if p.IsRemote != nil {
		o.IsRemote = *p.IsRemote
		touched["isRemote"] = true
	}
	if p.IsActive != nil {
		o.IsActive = *p.IsActive
		touched["isActive"] = true
	}
	if p.Salary != nil {
		if p.Salary.Min != nil {
			o.Salary.Min = *p.Salary.Min
		}
		if p.Salary.Max.Set {
			o.Salary.Max = p.Salary.Max.Value
		}
		if p.Salary.Currency != nil {
			o.Salary.Currency = *p.Salary.Currency
		}
		touched["salary"] = true
	}
	if p.Requirements != nil {
		r := p.Requirements
		setList("requirements", &o.Requirements.Skills, r.Skills)
		setStr("requirements", &o.Requirements.Experience, r.Experience)
		setStr("requirements", &o.Requirements.Education, r.Education)
		setList("requirements", &o.Requirements.Languages, r.Languages)
	}
	if p.ApplicationDeadline != nil {
		o.ApplicationDeadline = p.ApplicationDeadline.Time
		touched["applicationDeadline"] = true
	}
	if p.StartDate.Set {
		o.StartDate = nil
		if d := p.StartDate.Value; d != nil {
			t := d.Time
			o.StartDate = &t
		}
		touched["startDate"] = true
	}
	if p.MaxApplicants.Set {
		o.MaxApplicants = p.MaxApplicants.Value
		touched["maxApplicants"] = true
	}
	if p.CurrentApplicants != nil {
		o.CurrentApplicants = *p.CurrentApplicants
		touched["currentApplicants"] = true
	}

	normalize(o)
	return touched
}

// normalize trims text, folds the contact email, uppercases the currency
// and turns string lists into trimmed, de-duplicated, non-nil sets.
func normalize(o *models.Opportunity) {
	o.Title = strings.TrimSpace(o.Title)
	o.Description = strings.TrimSpace(o.Description)
	o.Type = strings.TrimSpace(o.Type)
	o.Category = strings.TrimSpace(o.Category)
	o.Location = strings.TrimSpace(o.Location)
	o.Duration = strings.TrimSpace(o.Duration)
	o.ContactEmail = strings.ToLower(strings.TrimSpace(o.ContactEmail))
	o.ContactPhone = strings.TrimSpace(o.ContactPhone)
	o.Website = strings.TrimSpace(o.Website)

	o.Salary.Currency = strings.ToUpper(strings.TrimSpace(o.Salary.Currency))
	if o.Salary.Currency == "" {
		o.Salary.Currency = models.DefaultCurrency
	}

	o.Requirements.Experience = strings.TrimSpace(o.Requirements.Experience)
	o.Requirements.Education = strings.TrimSpace(o.Requirements.Education)
	o.Requirements.Skills = stringSet(o.Requirements.Skills)
	o.Requirements.Languages = stringSet(o.Requirements.Languages)
	o.Benefits = stringSet(o.Benefits)
	o.Tags = stringSet(o.Tags)

	if o.Attachments == nil {
		o.Attachments = []string{}
	}
	o.ApplicationDeadline = o.ApplicationDeadline.UTC()
	if o.StartDate != nil {
		t := o.StartDate.UTC()
		o.StartDate = &t
	}
}

// stringSet keeps the first occurrence of each non-blank value.
func stringSet(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// validate checks o and reports every violation. When only is non-nil, rules
// run only for the bson keys it contains.
func validate(o *models.Opportunity, only map[string]bool) error {
	check := func(key string) bool { return only == nil || only[key] }
	var fe apperr.FieldErrors

	required := []struct {
		key, val string
	}{
		{"title", o.Title},
		{"description", o.Description},
		{"category", o.Category},
		{"location", o.Location},
	}
	for _, r := range required {
		if check(r.key) && r.val == "" {
			fe.Add(r.key, "is required")
		}
	}

	if check("type") {
		switch {
		case o.Type == "":
			fe.Add("type", "is required")
		case !models.IsValidOpportunityType(o.Type):
			fe.Add("type", "must be one of %s", strings.Join(models.OpportunityTypes, ", "))
		}
	}

	if check("applicationDeadline") && o.ApplicationDeadline.IsZero() {
		fe.Add("applicationDeadline", "is required")
	}

	if check("salary") {
		if o.Salary.Min < 0 {
			fe.Add("salary.min", "must be at least 0")
		}
		if o.Salary.Max != nil {
			if *o.Salary.Max < 0 {
				fe.Add("salary.max", "must be at least 0")
			} else if *o.Salary.Max < o.Salary.Min {
				fe.Add("salary.max", "must not be less than salary.min")
			}
		}
	}

	if check("maxApplicants") && o.MaxApplicants != nil && *o.MaxApplicants < 1 {
		fe.Add("maxApplicants", "must be at least 1")
	}
	if check("currentApplicants") && o.CurrentApplicants < 0 {
		fe.Add("currentApplicants", "must be at least 0")
	}
	if check("contactEmail") && o.ContactEmail != "" && !looksLikeEmail(o.ContactEmail) {
		fe.Add("contactEmail", "must be a valid email address")
	}
	if check("website") && o.Website != "" && !urlutil.IsValidAbsHTTPURL(o.Website) {
		fe.Add("website", "must be a valid http(s) URL")
	}

	return fe.Err()
}

// looksLikeEmail is a shape check only: one @, non-empty local part, and a
// dotted domain with no spaces.
func looksLikeEmail(s string) bool {
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	at := strings.IndexByte(s, '@')
	if at < 1 || at != strings.LastIndexByte(s, '@') {
		return false
	}
	domain := s[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}
