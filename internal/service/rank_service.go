package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"phynetix_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RankService 排名与并发控制。每套试卷一个 ZSET（member 是 attemptId，
// score 是得分），排名、百分位、榜单都从这一个结构出。Redis 不可用时
// 排名字段缺省，判分结果不受影响。
type RankService struct {
	Redis *redis.Client
}

func NewRankService(rdb *redis.Client) *RankService {
	return &RankService{Redis: rdb}
}

func scoreKey(testID uint) string {
	return fmt.Sprintf("exam:scores:%d", testID)
}

func startLockKey(testID, userID uint) string {
	return fmt.Sprintf("exam:startlock:%d:%d", testID, userID)
}

// AcquireStartLock 开考/续考入口的互斥：同一学生对同一试卷的并发
// start 请求只放一个进来，避免建出两条进行中记录。
func (s *RankService) AcquireStartLock(ctx context.Context, testID, userID uint) (func(), bool) {
	if s.Redis == nil {
		return func() {}, true
	}

	key := startLockKey(testID, userID)
	ok, err := s.Redis.SetNX(ctx, key, 1, 10*time.Second).Result()
	if err != nil {
		// Redis 故障时放行，退化为数据库层面的最后防线
		logger.Log.Warn("Start lock unavailable", zap.Error(err))
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return func() { s.Redis.Del(context.Background(), key) }, true
}

// RecordScore 结算后登记得分
func (s *RankService) RecordScore(ctx context.Context, testID uint, attemptID string, score int) {
	if s.Redis == nil {
		return
	}
	err := s.Redis.ZAdd(ctx, scoreKey(testID), &redis.Z{
		Score:  float64(score),
		Member: attemptID,
	}).Err()
	if err != nil {
		logger.Log.Warn("Failed to record score for ranking",
			zap.String("attemptId", attemptID), zap.Error(err))
	}
}

// Standing 名次与百分位。名次 = 严格高分人数 + 1，同分并列同名次；
// 百分位 = 打败（严格低分）了百分之多少的人。
func (s *RankService) Standing(ctx context.Context, testID uint, attemptID string) (rank int64, percentile float64, ok bool) {
	if s.Redis == nil {
		return 0, 0, false
	}

	key := scoreKey(testID)
	score, err := s.Redis.ZScore(ctx, key, attemptID).Result()
	if err != nil {
		return 0, 0, false
	}
	total, err := s.Redis.ZCard(ctx, key).Result()
	if err != nil || total == 0 {
		return 0, 0, false
	}

	scoreStr := strconv.FormatFloat(score, 'f', -1, 64)
	above, err := s.Redis.ZCount(ctx, key, "("+scoreStr, "+inf").Result()
	if err != nil {
		return 0, 0, false
	}
	beaten, err := s.Redis.ZCount(ctx, key, "-inf", "("+scoreStr).Result()
	if err != nil {
		return 0, 0, false
	}

	rank = above + 1
	percentile = float64(beaten) / float64(total) * 100
	return rank, percentile, true
}

// LeaderboardEntry 榜单一行。UserName 由编排层回填，Redis 里只存 attemptId。
type LeaderboardEntry struct {
	Rank      int64  `json:"rank"`
	AttemptID string `json:"attemptId"`
	UserName  string `json:"userName,omitempty"`
	Score     int    `json:"score"`
}

func (s *RankService) Leaderboard(ctx context.Context, testID uint, limit int) ([]LeaderboardEntry, error) {
	if s.Redis == nil {
		return []LeaderboardEntry{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	rows, err := s.Redis.ZRevRangeWithScores(ctx, scoreKey(testID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		member, _ := row.Member.(string)
		entries = append(entries, LeaderboardEntry{
			Rank:      int64(i + 1),
			AttemptID: member,
			Score:     int(row.Score),
		})
	}
	return entries, nil
}
