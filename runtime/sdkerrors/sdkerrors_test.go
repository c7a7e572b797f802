package sdkerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestError(t *testing.T) {
	err := NewRequestError("no document with id %d", 7)
	require.Equal(t, "no document with id 7", err.Error())
	require.ErrorIs(t, err, ErrRequest)
	require.NotErrorIs(t, err, ErrUsage)
	require.NotErrorIs(t, err, ErrInternal)

	wrapped := fmt.Errorf("running handler: %w", err)
	require.True(t, IsRequestError(wrapped))
	typed, ok := AsRequestError(wrapped)
	require.True(t, ok)
	require.Equal(t, "no document with id 7", typed.Message)

	_, ok = AsRequestError(errors.New("plain"))
	require.False(t, ok)
	require.False(t, IsRequestError(nil))
}

func TestUsageError(t *testing.T) {
	err := NewUsageError("function %q already registered", "wordcount.count")
	require.Equal(t, `function "wordcount.count" already registered`, err.Error())
	require.ErrorIs(t, err, ErrUsage)
	require.NotErrorIs(t, err, ErrRequest)

	require.True(t, IsUsageError(fmt.Errorf("deploy: %w", err)))
	require.False(t, IsUsageError(errors.New("plain")))
	require.False(t, IsUsageError(nil))
}

func TestInternalError(t *testing.T) {
	err := NewInternalError("future %s resolved twice", "call-3")
	require.Equal(t, "internal: future call-3 resolved twice", err.Error())
	require.ErrorIs(t, err, ErrInternal)
	require.NotErrorIs(t, err, ErrUsage)
}

func TestFunctionErrorRendering(t *testing.T) {
	cause := errors.New("connection reset")

	retried := NewFunctionError("wordcount.count", 3, cause)
	require.Equal(t, `function "wordcount.count" failed after 3 attempts`, retried.Error())
	require.ErrorIs(t, retried, cause)

	single := NewFunctionError("wordcount.count", 1, cause)
	require.Equal(t, `function "wordcount.count" failed`, single.Error())
}

func TestFunctionErrorKeepsRequestClassification(t *testing.T) {
	cause := NewRequestError("document too large")
	err := NewFunctionError("pdf.split", 1, cause)

	require.True(t, IsRequestError(err))
	typed, ok := AsRequestError(err)
	require.True(t, ok)
	require.Equal(t, "document too large", typed.Message)
}

func TestNilReceiversRender(t *testing.T) {
	require.Equal(t, "request error", (*RequestError)(nil).Error())
	require.Equal(t, "sdk usage error", (*UsageError)(nil).Error())
	require.Equal(t, "internal error", (*InternalError)(nil).Error())
	require.Equal(t, "function error", (*FunctionError)(nil).Error())
	require.NoError(t, (*FunctionError)(nil).Unwrap())
}
