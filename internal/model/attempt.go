package model

import (
	"encoding/json"
	"time"
)

// Attempt 学生对一套试卷的一次作答。CompletedAt 为空表示进行中；
// 结算后 Answers / TimePerQuestion 冻结，只读。
// swagger:model Attempt
type Attempt struct {
	UUIDBase
	TestID uint  `gorm:"index:idx_attempt_test_user;type:bigint unsigned" json:"testId"`
	Test   *Test `gorm:"foreignKey:TestID" json:"test,omitempty"`
	UserID uint  `gorm:"index:idx_attempt_test_user;type:bigint unsigned" json:"userId"`

	// 自动保存只更新这三个字段
	Answers             json.RawMessage `gorm:"type:json" json:"answers,omitempty"`         // questionId -> 原始答案
	TimePerQuestion     json.RawMessage `gorm:"type:json" json:"timePerQuestion,omitempty"` // questionId -> 累计秒数
	FullscreenExitCount int             `gorm:"default:0" json:"fullscreenExitCount"`

	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// 结算后填充
	Score            int             `json:"score"`
	TotalMarks       int             `json:"totalMarks"`
	TimeTakenSeconds int             `json:"timeTakenSeconds"`
	SubmitTrigger    string          `gorm:"size:30" json:"submitTrigger,omitempty"` // user | time_expired | max_violations | reconciled
	Rank             *int64          `json:"rank,omitempty"`
	Percentile       *float64        `json:"percentile,omitempty"`
	ResultDetails    json.RawMessage `gorm:"type:json" json:"resultDetails,omitempty"` // 提交响应内嵌的逐题判分结果
}

func (Attempt) TableName() string {
	return "attempts"
}

// InProgress 进行中判定：以 CompletedAt 是否为空为准
func (a *Attempt) InProgress() bool {
	return a.CompletedAt == nil
}
