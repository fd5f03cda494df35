package apperr_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dalemusser/opportunityhub/internal/app/system/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldErrors_CollectsEveryField(t *testing.T) {
	var fe apperr.FieldErrors
	require.NoError(t, fe.Err())

	fe.Add("title", "is required")
	fe.Add("type", "must be one of %s", "job, internship")

	err := fe.Err()
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Validation))

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Len(t, ae.Fields, 2)
	assert.Equal(t, "title", ae.Fields[0].Field)
	assert.Contains(t, err.Error(), "type: must be one of job, internship")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperr.Invalid("title", "is required"), http.StatusBadRequest},
		{"duplicate save", apperr.NewDuplicateSave(), http.StatusBadRequest},
		{"not found", apperr.NewNotFound("Opportunity not found"), http.StatusNotFound},
		{"unauthorized", apperr.NewUnauthorized("missing token"), http.StatusUnauthorized},
		{"forbidden", apperr.NewForbidden("admin only"), http.StatusForbidden},
		{"transient", apperr.Store("find", context.DeadlineExceeded), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("outer: %w", apperr.NewNotFound("x")), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.HTTPStatus(tt.err))
		})
	}
}

func TestStore_ClassifiesTransient(t *testing.T) {
	err := apperr.Store("count opportunities", context.DeadlineExceeded)
	assert.Equal(t, apperr.TransientStoreFailure, apperr.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = apperr.Store("insert", errors.New("bad thing"))
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))

	assert.NoError(t, apperr.Store("noop", nil))

	nf := apperr.NewNotFound("gone")
	assert.Same(t, nf, apperr.Store("lookup", nf))
}

func TestPublicMessage_HidesInternals(t *testing.T) {
	assert.Equal(t, "Server error.", apperr.PublicMessage(errors.New("mongo: secret detail")))
	assert.Equal(t, "Server error.", apperr.PublicMessage(apperr.Store("x", errors.New("detail"))))
	assert.Equal(t, "Opportunity already saved.", apperr.PublicMessage(apperr.NewDuplicateSave()))
	assert.NotContains(t, apperr.PublicMessage(apperr.Store("x", context.Canceled)), "context")
}
