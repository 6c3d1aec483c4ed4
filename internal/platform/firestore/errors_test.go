package firestore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapErrorClassification(t *testing.T) {
	notFound := WrapError("orders.get", status.Error(codes.NotFound, "missing"))
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsConflict(notFound))
	assert.Contains(t, notFound.Error(), "orders.get")

	exists := WrapError("orders.create", status.Error(codes.AlreadyExists, "dup"))
	assert.True(t, IsConflict(exists))

	var fsErr *Error
	unavailable := WrapError("orders.query", status.Error(codes.Unavailable, "down"))
	if assert.True(t, errors.As(unavailable, &fsErr)) {
		assert.True(t, fsErr.IsUnavailable())
	}
}

func TestWrapErrorPassesThrough(t *testing.T) {
	assert.NoError(t, WrapError("x", nil))
	assert.ErrorIs(t, WrapError("x", context.Canceled), context.Canceled)

	sentinel := errors.New("order exists")
	wrapped := WrapError("transaction", fmt.Errorf("tx: %w", sentinel))
	assert.ErrorIs(t, wrapped, sentinel)
	assert.Same(t, wrapped, WrapError("outer", wrapped))
}
