package snowflake

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
)

// Init 初始化雪花算法节点，machineID 范围 0-1023，多实例部署时需唯一
// 重复调用只有第一次生效
func Init(machineID int64) {
	nodeOnce.Do(func() {
		if machineID < 0 || machineID > 1023 {
			zap.L().Warn("invalid snowflake machine id, fallback to 1", zap.Int64("machineID", machineID))
			machineID = 1
		}
		var err error
		node, err = snowflake.NewNode(machineID)
		if err != nil {
			zap.L().Fatal("init snowflake node failed", zap.Error(err))
		}
		zap.L().Info("snowflake node initialized", zap.Int64("machineID", machineID))
	})
}

// GenerateID 生成雪花 ID，同一节点内单调递增
func GenerateID() int64 {
	Init(1)
	return node.Generate().Int64()
}

// GenerateIDString 生成带前缀的字符串 ID，用于会话和课程群
func GenerateIDString(prefix string) string {
	Init(1)
	return prefix + node.Generate().String()
}
