package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("noop", nil))

	base := errors.New("connection reset")
	err := Wrap("loading membership", base)

	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, "loading membership: connection reset", err.Error())

	// Re-wrapping keeps the innermost operation
	again := Wrap("outer", fmt.Errorf("ctx: %w", err))
	var se *StorageError
	assert.True(t, errors.As(again, &se))
	assert.Equal(t, "loading membership", se.Op)
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsNotFound(Wrap("get", gorm.ErrRecordNotFound)))
	assert.False(t, IsNotFound(Wrap("get", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicate(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
}
