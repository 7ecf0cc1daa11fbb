package mongodb

import (
	"errors"
	"testing"

	"course_chat_server/pkg/errorx"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestWrapMongoError(t *testing.T) {
	assert.NoError(t, wrapMongoError(nil, "noop"))

	err := wrapMongoError(mongo.ErrNoDocuments, "查询会话 %s", "C1")
	assert.True(t, errorx.IsNotFound(err))
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	err = wrapMongoError(errors.New("connection reset"), "保存消息")
	assert.Equal(t, errorx.CodeDBError, errorx.GetCode(err))
}
