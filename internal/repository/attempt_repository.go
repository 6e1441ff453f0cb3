package repository

import (
	"context"
	"encoding/json"
	"time"

	"phynetix_backend/internal/model"
	"phynetix_backend/internal/util"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// Create 进行中唯一性的数据库防线：仅当该学生该试卷没有进行中记录时
// 插入。Redis 锁故障放行的并发 start 在这里只会有一个建档成功，输掉
// 的一方拿到 ErrAttemptExists，上层转为恢复已有记录。
func (r *AttemptRepository) Create(attempt *model.Attempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	now := time.Now()
	res := r.DB.Exec(
		"INSERT INTO attempts (id, test_id, user_id, started_at, created_at, updated_at)"+
			" SELECT ?, ?, ?, ?, ?, ? FROM DUAL"+
			" WHERE NOT EXISTS (SELECT 1 FROM attempts a"+
			" WHERE a.test_id = ? AND a.user_id = ? AND a.completed_at IS NULL AND a.deleted_at IS NULL)",
		attempt.ID, attempt.TestID, attempt.UserID, attempt.StartedAt, now, now,
		attempt.TestID, attempt.UserID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrAttemptExists
	}
	return nil
}

func (r *AttemptRepository) FindByID(id string) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.DB.Where("id = ?", id).First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FindByIDs 批量取记录，榜单回填考生信息用
func (r *AttemptRepository) FindByIDs(ids []string) ([]model.Attempt, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var attempts []model.Attempt
	err := r.DB.Where("id IN ?", ids).Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// FindInProgress 同一学生同一试卷至多一条进行中记录
func (r *AttemptRepository) FindInProgress(testID, userID uint) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.DB.
		Where("test_id = ? AND user_id = ? AND completed_at IS NULL", testID, userID).
		Order("started_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// SaveProgress 自动保存的落盘端：只更新进度三字段，WHERE 带上
// completed_at IS NULL，迟到的自动保存不可能覆盖已结算的记录。
// 违规计数取 GREATEST，带旧计数的写不论到达顺序都压不低它。
func (r *AttemptRepository) SaveProgress(ctx context.Context, attemptID string, answers, timeSpent []byte, fullscreenExits int) error {
	return r.DB.WithContext(ctx).
		Model(&model.Attempt{}).
		Where("id = ? AND completed_at IS NULL", attemptID).
		Updates(map[string]interface{}{
			"answers":               json.RawMessage(answers),
			"time_per_question":     json.RawMessage(timeSpent),
			"fullscreen_exit_count": gorm.Expr("GREATEST(fullscreen_exit_count, ?)", fullscreenExits),
		}).Error
}

// FinalizeParams 结算时一次写入的全部字段
type FinalizeParams struct {
	Answers          json.RawMessage
	TimePerQuestion  json.RawMessage
	FullscreenExits  int
	Score            int
	TotalMarks       int
	TimeTakenSeconds int
	SubmitTrigger    string
	ResultDetails    json.RawMessage
}

// Finalize 结算写入。同样以 completed_at IS NULL 做守卫，两个并发的
// 结算请求只有一个能生效，输掉的一方拿到 ErrAttemptCompleted。
func (r *AttemptRepository) Finalize(ctx context.Context, attemptID string, p FinalizeParams) error {
	now := time.Now()
	res := r.DB.WithContext(ctx).
		Model(&model.Attempt{}).
		Where("id = ? AND completed_at IS NULL", attemptID).
		Updates(map[string]interface{}{
			"answers":               p.Answers,
			"time_per_question":     p.TimePerQuestion,
			"fullscreen_exit_count": p.FullscreenExits,
			"completed_at":          now,
			"score":                 p.Score,
			"total_marks":           p.TotalMarks,
			"time_taken_seconds":    p.TimeTakenSeconds,
			"submit_trigger":        p.SubmitTrigger,
			"result_details":        p.ResultDetails,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrAttemptCompleted
	}
	return nil
}

func (r *AttemptRepository) UpdateStanding(attemptID string, rank int64, percentile float64) error {
	return r.DB.
		Model(&model.Attempt{}).
		Where("id = ?", attemptID).
		Updates(map[string]interface{}{
			"rank":       rank,
			"percentile": percentile,
		}).Error
}

// ListExpiredInProgress 兜底结算扫描：开考时间早于「时长 + 宽限」的
// 进行中记录。正常路径里这类记录早该被强制交卷了。
func (r *AttemptRepository) ListExpiredInProgress(ctx context.Context, grace time.Duration, limit int) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.WithContext(ctx).
		Joins("JOIN tests ON tests.id = attempts.test_id").
		Where("attempts.completed_at IS NULL").
		Where("attempts.started_at < DATE_SUB(NOW(), INTERVAL tests.duration_minutes MINUTE) - INTERVAL ? SECOND", int(grace.Seconds())).
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// CountCompleted 某试卷已结算人数，算百分位用
func (r *AttemptRepository) CountCompleted(testID uint) (int64, error) {
	var count int64
	err := r.DB.
		Model(&model.Attempt{}).
		Where("test_id = ? AND completed_at IS NOT NULL", testID).
		Count(&count).Error
	return count, err
}
