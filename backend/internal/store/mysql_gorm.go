package store

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// InitMySQL 打开连接并建表
func InitMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ParticipantSession{}); err != nil {
		return nil, err
	}
	return db, nil
}
