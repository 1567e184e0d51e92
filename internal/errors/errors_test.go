package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderMetadata(t *testing.T) {
	t.Parallel()

	err := Newf("search returned status %d", 503).
		Component("musiccatalog").
		Category(CategoryCatalog).
		Context("status_code", 503).
		Timing("search", 250*time.Millisecond).
		Build()

	assert.Equal(t, "search returned status 503", err.Error())
	assert.Equal(t, CategoryCatalog, err.Category)
	assert.Equal(t, "musiccatalog", err.GetComponent())

	ctx := err.GetContext()
	assert.Equal(t, 503, ctx["status_code"])
	assert.Equal(t, int64(250), ctx["duration_ms"])
	assert.False(t, err.Timestamp.IsZero())
}

func TestDefaultCategory(t *testing.T) {
	t.Parallel()

	err := Newf("boom").Build()
	assert.Equal(t, CategoryGeneric, err.Category)
}

func TestIsCategoryThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := Newf("no row").Category(CategoryNotFound).Build()
	wrapped := fmt.Errorf("loading entry: %w", inner)

	assert.True(t, IsCategory(wrapped, CategoryNotFound))
	assert.False(t, IsCategory(wrapped, CategoryDatabase))
	assert.False(t, IsCategory(fmt.Errorf("plain"), CategoryNotFound))
}

func TestUnwrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("connection refused")
	err := Newf("fetch failed: %w", cause).Category(CategoryNetwork).Build()

	require.ErrorIs(t, err, cause)
}

func TestContextCopyIsIsolated(t *testing.T) {
	t.Parallel()

	err := Newf("x").Context("key", "value").Build()
	ctx := err.GetContext()
	ctx["key"] = "mutated"

	assert.Equal(t, "value", err.GetContext()["key"])
}
