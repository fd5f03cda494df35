package opportunities

import (
	"testing"
	"time"

	"github.com/dalemusser/opportunityhub/internal/app/system/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormInput_NestedAndListFields(t *testing.T) {
	in, err := formInput(map[string][]string{
		"title":                 {"  Data Fellow "},
		"type":                  {"scholarship"},
		"isRemote":              {"true"},
		"salary[min]":           {"500"},
		"salary.max":            {"900.5"},
		"salary[currency]":      {"kes"},
		"requirements[skills]":  {"go, sql", "docker"},
		"requirements.language": {"ignored"},
		"tags[]":                {"remote", "fellowship"},
		"applicationDeadline":   {"2030-06-01"},
		"maxApplicants":         {"25"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Data Fellow", in.Title)
	assert.Equal(t, "scholarship", in.Type)
	assert.True(t, in.IsRemote)
	require.NotNil(t, in.Salary)
	assert.Equal(t, 500.0, *in.Salary.Min)
	assert.Equal(t, 900.5, *in.Salary.Max)
	assert.Equal(t, "kes", in.Salary.Currency)
	assert.Equal(t, []string{"go", "sql", "docker"}, in.Requirements.Skills)
	assert.Empty(t, in.Requirements.Languages)
	assert.Equal(t, []string{"remote", "fellowship"}, in.Tags)
	require.NotNil(t, in.ApplicationDeadline)
	assert.True(t, in.ApplicationDeadline.Equal(time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, in.MaxApplicants)
	assert.Equal(t, 25, *in.MaxApplicants)
}

func TestFormInput_NoSalaryFields(t *testing.T) {
	in, err := formInput(map[string][]string{"title": {"x"}, "isRemote": {"yes"}})
	require.NoError(t, err)
	assert.Nil(t, in.Salary)
	assert.False(t, in.IsRemote)
}

func TestFormInput_CollectsMalformedValues(t *testing.T) {
	_, err := formInput(map[string][]string{
		"salary[min]":         {"lots"},
		"applicationDeadline": {"next week"},
		"maxApplicants":       {"2.5"},
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Validation))

	var fields []string
	for _, f := range err.(*apperr.Error).Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"salary.min", "applicationDeadline", "maxApplicants"}, fields)
}
