package db

import "gorm.io/gorm"

// ContactMessage 保存访客通过联系表单提交的留言
// IPHash 为客户端 IP 的哈希，不保存原始地址
type ContactMessage struct {
	gorm.Model
	Name          string `gorm:"size:120;not null"`
	Email         string `gorm:"size:255;not null"`
	Message       string `gorm:"type:text;not null"`
	IPHash        string `gorm:"size:64;index"`
	Delivered     bool
	DeliveryError string `gorm:"size:500"`
}
