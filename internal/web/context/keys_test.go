package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dragonbytelabs/dz/internal/models"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Equal(t, "abc", GetRequestID(SetRequestID(ctx, "abc")))
}

func TestCurrentUser(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, CurrentUser(ctx))
	assert.Empty(t, AuthMethod(ctx))

	u := &models.User{ID: 7, Email: "a@b.c"}
	ctx = SetCurrentUser(ctx, u, AuthBearer)
	assert.Same(t, u, CurrentUser(ctx))
	assert.Equal(t, AuthBearer, AuthMethod(ctx))
}
