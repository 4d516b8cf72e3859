package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_JSON(t *testing.T) {
	data, err := json.Marshal(ErrUnrecognizedQuery)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":400,"error":"not_recognized","reason":"Format of input query is not valid"}`, string(data))
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", selectError("boom"))

	assert.True(t, errors.Is(err, ErrSelect))
	assert.True(t, errors.Is(err, &Error{Kind: KindSelect, Reason: "boom"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindSelect, Reason: "other"}))
	assert.False(t, errors.Is(err, ErrPivot))
	assert.Equal(t, "select_error: boom", selectError("boom").Error())
}
