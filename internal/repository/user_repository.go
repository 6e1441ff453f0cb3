package repository

import (
	"phynetix_backend/internal/model"

	"gorm.io/gorm"
)

// UserRepository 只读访问。账号的注册、改密、角色变更由账号服务负责，
// 这里只为榜单等展示场景补全考生信息。
type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// FindByIDs 批量取用户，查不到的 ID 静默缺席
func (r *UserRepository) FindByIDs(ids []uint) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []model.User
	err := r.DB.Where("id IN ?", ids).Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
