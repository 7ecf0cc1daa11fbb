// Package mysql 建立 MySQL 连接、迁移表结构并构建 Repository 层
package mysql

import (
	"fmt"

	"course_chat_server/internal/config"
	"course_chat_server/internal/dao/mysql/repository"
	"course_chat_server/internal/model"

	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// DSN 由配置拼接 MySQL 连接串
func DSN(c config.MysqlConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DatabaseName)
}

// Init 连接数据库并自动迁移
// TranslateError 开启后唯一索引冲突会转换为 gorm.ErrDuplicatedKey
func Init(c config.MysqlConfig) (*repository.Repositories, error) {
	db, err := gorm.Open(mysqldriver.Open(DSN(c)), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return repository.NewRepositories(db), nil
}

// Migrate 创建或更新表结构，不会删除已有字段
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Conversation{},
		&model.Room{},
		&model.RoomMember{},
		&model.Message{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
