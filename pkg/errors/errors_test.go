package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestKind_Retryable(t *testing.T) {
	retryable := []Kind{KindNetwork, KindDependency, KindStorage}
	for _, k := range retryable {
		assert.True(t, k.Retryable(), "kind %s should be retryable", k)
	}

	notRetryable := []Kind{KindValidation, KindAuth, KindBusiness, KindSystem}
	for _, k := range notRetryable {
		assert.False(t, k.Retryable(), "kind %s should not be retryable", k)
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := Wrap(KindNetwork, "dial upstream", inner)

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Contains(t, err.Error(), "dial upstream")
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindSystem, KindOf(errors.New("boom")))
	assert.Equal(t, KindSystem, KindOf(nil))
}

func TestKindOf_WrappedDeep(t *testing.T) {
	err := New(KindValidation, "bad payload")
	wrapped := fmt.Errorf("handler: %w", err)

	assert.Equal(t, KindValidation, KindOf(wrapped))
}

func TestBreakerOpenError(t *testing.T) {
	retryAt := time.Now().Add(30 * time.Second)
	err := &BreakerOpenError{Service: "payment-gateway", RetryAt: retryAt}

	assert.Contains(t, err.Error(), "payment-gateway")

	var boe *BreakerOpenError
	require.True(t, errors.As(fmt.Errorf("call failed: %w", err), &boe))
	assert.Equal(t, retryAt, boe.RetryAt)
	assert.True(t, IsBreakerOpen(err))
	assert.False(t, IsBreakerOpen(errors.New("other")))
}

func TestClassify_Network(t *testing.T) {
	assert.Equal(t, KindNetwork, Classify(fmt.Errorf("read tcp: connection reset by peer")))
	assert.Equal(t, KindNetwork, Classify(context.DeadlineExceeded))
}

func TestClassify_Gorm(t *testing.T) {
	assert.Equal(t, KindBusiness, Classify(gorm.ErrRecordNotFound))
}

func TestClassify_MySQL(t *testing.T) {
	dup := &mysqldriver.MySQLError{Number: 1062, Message: "duplicate entry"}
	assert.Equal(t, KindValidation, Classify(dup))

	deadlock := &mysqldriver.MySQLError{Number: 1213, Message: "deadlock found"}
	assert.Equal(t, KindStorage, Classify(deadlock))

	unknown := &mysqldriver.MySQLError{Number: 1105, Message: "unknown error"}
	assert.Equal(t, KindStorage, Classify(unknown))
}

func TestClassify_Fallback(t *testing.T) {
	assert.Equal(t, KindSystem, Classify(errors.New("something odd")))
}
