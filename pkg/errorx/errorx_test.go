package errorx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrapf(cause, CodeDBError, "保存消息 %s", "m1")

	assert.Equal(t, CodeDBError, GetCode(err))
	assert.Equal(t, "保存消息 m1", GetMsg(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "保存消息 m1: duplicate key", err.Error())
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("join: %w", Wrap(errors.New("x"), CodeForbidden, "非会话成员"))

	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestGetCodeDefaultsToServerBusy(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, CodeServerBusy, GetCode(err))
	assert.Equal(t, ErrServerBusy.Msg, GetMsg(err))
	assert.False(t, IsNotFound(err))
	assert.True(t, IsNotFound(Wrap(err, CodeNotFound, "会话不存在")))
}
