package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User 定义了用户模型
type User struct {
	gorm.Model
	Email    string `gorm:"size:255;uniqueIndex;not null"`
	Password string `gorm:"not null"`
	Role     string `gorm:"size:20;not null;default:user"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// EnsureAdmin 存在性检查：邮箱不存在时创建一个 bcrypt 哈希的管理员账号，
// 已存在时只提升为管理员，不修改密码。created 表示是否新建。
func EnsureAdmin(conn *gorm.DB, email, password string) (created bool, err error) {
	trimmedEmail := strings.ToLower(strings.TrimSpace(email))
	if trimmedEmail == "" || password == "" {
		return false, errors.New("admin email and password are required")
	}
	if conn == nil {
		return false, errors.New("database not initialized")
	}

	var existing User
	if err := conn.Where("email = ?", trimmedEmail).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return false, err
		}

		return true, conn.Create(&User{Email: trimmedEmail, Password: string(hashed), Role: RoleAdmin}).Error
	}

	if existing.Role == RoleAdmin {
		return false, nil
	}
	return false, conn.Model(&existing).Update("role", RoleAdmin).Error
}
