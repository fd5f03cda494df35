package opportunities

import (
	"strconv"
	"strings"

	opportunitystore "github.com/dalemusser/opportunityhub/internal/app/store/opportunities"
	"github.com/dalemusser/opportunityhub/internal/app/system/apperr"
)

var (
	errUploadsDisabled  = apperr.Invalid("attachments", "file uploads are not enabled")
	errIsActiveRequired = apperr.Invalid("isActive", "is required")
)

func badForm(err error) error {
	if strings.Contains(err.Error(), "too large") {
		return apperr.Invalid("body", "request body too large")
	}
	return apperr.Invalid("body", "malformed multipart form")
}

// form reads multipart text fields. Nested fields use bracket keys
// ("salary[min]") or dotted keys ("salary.min").
type form map[string][]string

func (f form) get(key string) (string, bool) {
	for _, k := range formKeys(key) {
		if vs, ok := f[k]; ok && len(vs) > 0 {
			return strings.TrimSpace(vs[0]), true
		}
	}
	return "", false
}

func (f form) str(key string) string {
	v, _ := f.get(key)
	return v
}

// list accepts repeated fields, "key[]" fields, and comma separated values.
func (f form) list(key string) []string {
	var out []string
	for _, k := range append(formKeys(key), key+"[]") {
		for _, v := range f[k] {
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}

func formKeys(key string) []string {
	dot := strings.IndexByte(key, '.')
	if dot < 0 {
		return []string{key}
	}
	return []string{key, key[:dot] + "[" + key[dot+1:] + "]"}
}

// formInput maps a multipart form onto a create request, collecting every
// malformed number or date instead of stopping at the first.
func formInput(values map[string][]string) (opportunitystore.Input, error) {
	f := form(values)
	var errs apperr.FieldErrors

	in := opportunitystore.Input{
		Title:        f.str("title"),
		Description:  f.str("description"),
		Type:         f.str("type"),
		Category:     f.str("category"),
		Location:     f.str("location"),
		IsRemote:     f.str("isRemote") == "true",
		Benefits:     f.list("benefits"),
		Duration:     f.str("duration"),
		Tags:         f.list("tags"),
		ContactEmail: f.str("contactEmail"),
		ContactPhone: f.str("contactPhone"),
		Website:      f.str("website"),
	}
	in.Requirements.Skills = f.list("requirements.skills")
	in.Requirements.Languages = f.list("requirements.languages")
	in.Requirements.Experience = f.str("requirements.experience")
	in.Requirements.Education = f.str("requirements.education")

	number := func(key string) *float64 {
		raw, ok := f.get(key)
		if !ok || raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs.Add(key, "must be a number")
			return nil
		}
		return &v
	}
	date := func(key string) *opportunitystore.Date {
		raw, ok := f.get(key)
		if !ok || raw == "" {
			return nil
		}
		d, err := opportunitystore.ParseDate(raw)
		if err != nil {
			errs.Add(key, "must be a date")
			return nil
		}
		return &d
	}

	lo, hi := number("salary.min"), number("salary.max")
	currency := f.str("salary.currency")
	if lo != nil || hi != nil || currency != "" {
		in.Salary = &opportunitystore.SalaryInput{Min: lo, Max: hi, Currency: currency}
	}
	in.ApplicationDeadline = date("applicationDeadline")
	in.StartDate = date("startDate")

	if raw, ok := f.get("maxApplicants"); ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs.Add("maxApplicants", "must be a whole number")
		} else {
			in.MaxApplicants = &n
		}
	}

	return in, errs.Err()
}
