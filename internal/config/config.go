// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找
package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// MainConfig 主配置
type MainConfig struct {
	AppName  string `toml:"appName"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Mode     string `toml:"mode"`     // dev / release
	ForceTLS bool   `toml:"forceTLS"` // 是否启用 HTTP -> HTTPS 重定向
}

// MysqlConfig MySQL 连接配置
type MysqlConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

// MongoConfig MongoDB 连接配置
type MongoConfig struct {
	URI          string `toml:"uri"`
	DatabaseName string `toml:"databaseName"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Password string `toml:"password"`
	Db       int    `toml:"db"`
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`
	FileName   string `toml:"fileName"`
	MaxSize    int    `toml:"maxSize"`    // MB
	MaxBackups int    `toml:"maxBackups"` // 个
	MaxAge     int    `toml:"maxAge"`     // 天
	Level      string `toml:"level"`
}

// KafkaConfig 跨节点广播总线配置
type KafkaConfig struct {
	MessageMode string        `toml:"messageMode"` // channel: 单机直接投递; kafka: 经 Kafka 广播到所有节点
	HostPort    string        `toml:"hostPort"`
	ChatTopic   string        `toml:"chatTopic"`
	GroupPrefix string        `toml:"groupPrefix"` // 每个节点独立消费组，组名为 前缀-节点ID
	Timeout     time.Duration `toml:"timeout"`     // 秒
}

// JWTConfig JWT 校验配置
type JWTConfig struct {
	Secret            string `toml:"secret"`
	AccessTokenExpiry int    `toml:"accessTokenExpiry"` // 分钟
}

// MachineIDEnv 覆盖 machineId 的环境变量，多实例部署时由编排系统按节点注入
const MachineIDEnv = "COURSE_CHAT_MACHINE_ID"

// maxMachineID 雪花算法节点位为 10 位
const maxMachineID = 1023

// SnowflakeConfig 雪花算法配置
type SnowflakeConfig struct {
	MachineID int64 `toml:"machineId"` // 0-1023，负数表示按主机名派生；多实例部署时每个节点需唯一
}

// NodeMachineID 解析本节点的雪花机器号
// 优先级：环境变量 > 配置中的非负值 > 主机名哈希
// derived 为 true 表示由主机名派生，不同主机之间仍有小概率冲突
func (c SnowflakeConfig) NodeMachineID() (id int64, derived bool, err error) {
	if raw := os.Getenv(MachineIDEnv); raw != "" {
		id, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 || id > maxMachineID {
			return 0, false, fmt.Errorf("%s=%q 不是 0-%d 之间的整数", MachineIDEnv, raw, maxMachineID)
		}
		return id, false, nil
	}
	if c.MachineID > maxMachineID {
		return 0, false, fmt.Errorf("machineId %d 超出范围 0-%d", c.MachineID, maxMachineID)
	}
	if c.MachineID >= 0 {
		return c.MachineID, false, nil
	}
	host, err := os.Hostname()
	if err != nil {
		return 0, false, fmt.Errorf("获取主机名失败: %w", err)
	}
	return machineIDFromHost(host), true, nil
}

func machineIDFromHost(host string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(host))
	return int64(h.Sum32() % (maxMachineID + 1))
}

// ChatConfig 聊天核心配置
type ChatConfig struct {
	StoreDriver       string `toml:"storeDriver"`  // mysql / mongo / memory
	UnreadDriver      string `toml:"unreadDriver"` // redis / memory
	TypingQuietMillis int    `toml:"typingQuietMillis"`
	HistoryPageSize   int    `toml:"historyPageSize"`
	MaxContentLength  int    `toml:"maxContentLength"`
	SendBufferSize    int    `toml:"sendBufferSize"`
	StatsCron         string `toml:"statsCron"`
	InternalToken     string `toml:"internalToken"` // 课程服务回调 /internal 接口的共享令牌
}

// TypingQuiet 静默超时
func (c ChatConfig) TypingQuiet() time.Duration {
	return time.Duration(c.TypingQuietMillis) * time.Millisecond
}

// Config 应用程序总配置
type Config struct {
	MainConfig      `toml:"mainConfig"`
	MysqlConfig     `toml:"mysqlConfig"`
	MongoConfig     `toml:"mongoConfig"`
	RedisConfig     `toml:"redisConfig"`
	LogConfig       `toml:"logConfig"`
	KafkaConfig     `toml:"kafkaConfig"`
	JWTConfig       `toml:"jwtConfig"`
	SnowflakeConfig `toml:"snowflakeConfig"`
	ChatConfig      `toml:"chatConfig"`
}

var (
	config     *Config
	configOnce sync.Once
)

// searchPaths 候选配置文件路径，本地配置优先
var searchPaths = []string{
	"configs/config_local.toml",
	"configs/config.toml",
	"../../configs/config_local.toml",
	"../../configs/config.toml",
}

// Load 按顺序尝试 paths，返回第一个可解析的配置
func Load(paths ...string) (*Config, error) {
	for _, path := range paths {
		c := new(Config)
		if _, err := toml.DecodeFile(path, c); err == nil {
			c.applyDefaults()
			return c, nil
		}
	}
	return nil, fmt.Errorf("could not find configuration file in any of the search paths")
}

// GetConfig 获取全局配置实例，首次调用时加载
// 找不到配置文件时使用默认值
func GetConfig() *Config {
	configOnce.Do(func() {
		c, err := Load(searchPaths...)
		if err != nil {
			c = new(Config)
			c.applyDefaults()
		}
		config = c
	})
	return config
}

// applyDefaults 补全未配置的字段
func (c *Config) applyDefaults() {
	if c.AppName == "" {
		c.AppName = "course_chat_server"
	}
	if c.MainConfig.Host == "" {
		c.MainConfig.Host = "0.0.0.0"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8000
	}
	if c.Mode == "" {
		c.Mode = "dev"
	}
	if c.LogPath == "" {
		c.LogPath = "./logs"
	}
	if c.MessageMode == "" {
		c.MessageMode = "channel"
	}
	if c.ChatTopic == "" {
		c.ChatTopic = "course_chat_events"
	}
	if c.GroupPrefix == "" {
		c.GroupPrefix = "course-chat-node"
	}
	if c.KafkaConfig.Timeout == 0 {
		c.KafkaConfig.Timeout = 1
	}
	if c.AccessTokenExpiry == 0 {
		c.AccessTokenExpiry = 60
	}
	if c.StoreDriver == "" {
		c.StoreDriver = "mysql"
	}
	if c.UnreadDriver == "" {
		c.UnreadDriver = "redis"
	}
	if c.TypingQuietMillis <= 0 {
		c.TypingQuietMillis = 2000
	}
	if c.HistoryPageSize <= 0 {
		c.HistoryPageSize = 50
	}
	if c.MaxContentLength <= 0 {
		c.MaxContentLength = 4000
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 256
	}
	if c.StatsCron == "" {
		c.StatsCron = "@every 1m"
	}
}
