package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"phynetix_backend/internal/catalog"
	"phynetix_backend/internal/config"
	"phynetix_backend/internal/model"
	"phynetix_backend/internal/repository"
	"phynetix_backend/internal/scoring"
	"phynetix_backend/internal/session"
	"phynetix_backend/internal/util"
	"phynetix_backend/pkg/logger"
	"phynetix_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExamService 考试会话的编排层：开考/续考、作答与导航事件转发、三条
// 触发路径共用的结算、断电兜底结算。判分本身是纯函数，这里只负责把
// 数据喂进去再把结果落盘。
type ExamService struct {
	Tests    *repository.TestRepository
	Attempts *repository.AttemptRepository
	Users    *repository.UserRepository
	Resolver *catalog.Resolver
	Sessions *session.Manager
	Rank     *RankService
	Storage  *StorageService

	mu     sync.RWMutex
	policy config.ExamConfig
}

func NewExamService(
	tests *repository.TestRepository,
	attempts *repository.AttemptRepository,
	users *repository.UserRepository,
	sessions *session.Manager,
	rank *RankService,
	storage *StorageService,
	policy config.ExamConfig,
) *ExamService {
	return &ExamService{
		Tests:    tests,
		Attempts: attempts,
		Users:    users,
		Resolver: catalog.NewResolver(tests),
		Sessions: sessions,
		Rank:     rank,
		Storage:  storage,
		policy:   policy,
	}
}

// UpdatePolicy 配置热更新入口。只影响之后建立的会话，进行中的会话
// 沿用建立时的策略。
func (s *ExamService) UpdatePolicy(policy config.ExamConfig) {
	s.mu.Lock()
	s.policy = policy
	s.mu.Unlock()
	logger.Log.Info("Exam policy updated",
		zap.Int("autoSaveSeconds", policy.AutoSaveSeconds),
		zap.Int("maxFullscreenExits", policy.MaxFullscreenExits))
}

func (s *ExamService) currentPolicy() config.ExamConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// StartResult 开考/续考响应
type StartResult struct {
	AttemptID           string                  `json:"attemptId"`
	TestID              uint                    `json:"testId"`
	Title               string                  `json:"title"`
	DurationMinutes     int                     `json:"durationMinutes"`
	RemainingSeconds    int                     `json:"remainingSeconds"`
	Resumed             bool                    `json:"resumed"`
	Completed           bool                    `json:"completed"` // 续考时发现时间早已耗尽，直接结算
	FullscreenExitCount int                     `json:"fullscreenExitCount"`
	Questions           []catalog.Question      `json:"questions"`
	Navigation          session.NavigationState `json:"navigation"`
}

// StartOrResume 开考入口。已有进行中的记录就恢复：剩余时间按开考
// 时刻推算继续走，绝不重置；没有才建新记录。并发的 start 请求用
// Redis 锁串行化。
func (s *ExamService) StartOrResume(ctx context.Context, testID, userID uint) (*StartResult, error) {
	test, err := s.Tests.FindPublishedByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotPublished
		}
		return nil, err
	}

	release, ok := s.Rank.AcquireStartLock(ctx, testID, userID)
	if !ok {
		return nil, util.ErrStartLocked
	}
	defer release()

	questions, err := s.Resolver.Resolve(ctx, testID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.Attempts.FindInProgress(testID, userID)
	resumed := true
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		resumed = false
		attempt = &model.Attempt{
			TestID:    testID,
			UserID:    userID,
			StartedAt: time.Now(),
		}
		if err := s.Attempts.Create(attempt); err != nil {
			if !errors.Is(err, util.ErrAttemptExists) {
				return nil, err
			}
			// Redis 锁失效时并发建档输掉的一方：改走恢复已有记录
			attempt, err = s.Attempts.FindInProgress(testID, userID)
			if err != nil {
				return nil, err
			}
			resumed = true
		}
	}

	remaining := remainingSeconds(test, attempt)
	if remaining <= 0 {
		// 离线期间时间耗尽：按到点结算处理，不再给作答机会
		if err := s.finalizeFromRecord(ctx, attempt, session.TriggerTimeExpired); err != nil && !errors.Is(err, util.ErrAttemptCompleted) {
			return nil, err
		}
		return &StartResult{
			AttemptID:           attempt.ID,
			TestID:              testID,
			Title:               test.Title,
			DurationMinutes:     test.DurationMinutes,
			Resumed:             true,
			Completed:           true,
			FullscreenExitCount: attempt.FullscreenExitCount,
		}, nil
	}

	ctrl, err := s.attachSession(test, attempt, questions, remaining)
	if err != nil {
		return nil, err
	}

	return &StartResult{
		AttemptID:           attempt.ID,
		TestID:              testID,
		Title:               test.Title,
		DurationMinutes:     test.DurationMinutes,
		RemainingSeconds:    ctrl.Remaining(),
		Resumed:             resumed,
		FullscreenExitCount: ctrl.FullscreenExits(),
		Questions:           s.presentQuestions(ctx, questions),
		Navigation:          ctrl.Store().Navigation(),
	}, nil
}

// attachSession 装配并注册会话运行时。Manager 对同一 attemptId 去重，
// 并发 start 也只会有一套倒计时。
func (s *ExamService) attachSession(test *model.Test, attempt *model.Attempt, questions []catalog.Question, remaining int) (*session.Controller, error) {
	store := session.NewAnswerStore(questions)

	answers, err := scoring.ParseAnswerSet(attempt.Answers)
	if err != nil {
		logger.Log.Warn("Stored answers unreadable, resuming with empty sheet",
			zap.String("attemptId", attempt.ID), zap.Error(err))
		answers = scoring.AnswerSet{}
	}
	timeSpent := map[string]int{}
	if len(attempt.TimePerQuestion) > 0 {
		if err := json.Unmarshal(attempt.TimePerQuestion, &timeSpent); err != nil {
			timeSpent = map[string]int{}
		}
	}
	store.Restore(answers, timeSpent)

	policy := s.currentPolicy()
	attemptID := attempt.ID
	ctrl := session.NewController(session.Config{
		AttemptID:        attemptID,
		RemainingSeconds: remaining,
		AutoSaveInterval: time.Duration(policy.AutoSaveSeconds) * time.Second,
		SubmitRetryLimit: policy.SubmitRetryLimit,
		Store:            store,
		Monitor:          session.NewIntegrityMonitor(attempt.FullscreenExitCount, policy.MaxFullscreenExits),
		Sink:             s.Attempts,
		Submit: func(ctx context.Context, trigger session.SubmitTrigger) error {
			return s.finalizeAttempt(ctx, attemptID, trigger)
		},
	})
	return s.Sessions.Attach(ctrl), nil
}

// sessionFor 取会话并校验归属。服务重启后内存会话丢失，这里按持久化
// 进度透明重建，客户端无感。
func (s *ExamService) sessionFor(ctx context.Context, attemptID string, userID uint) (*session.Controller, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}

	if ctrl, ok := s.Sessions.Get(attemptID); ok {
		return ctrl, nil
	}

	if !attempt.InProgress() {
		return nil, util.ErrAttemptCompleted
	}

	test, err := s.Tests.FindByID(attempt.TestID)
	if err != nil {
		return nil, err
	}
	questions, err := s.Resolver.Resolve(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}
	remaining := remainingSeconds(test, attempt)
	if remaining <= 0 {
		if err := s.finalizeFromRecord(ctx, attempt, session.TriggerTimeExpired); err != nil && !errors.Is(err, util.ErrAttemptCompleted) {
			return nil, err
		}
		return nil, util.ErrAttemptCompleted
	}

	logger.Log.Info("Rebuilding exam session from persisted progress",
		zap.String("attemptId", attemptID))
	return s.attachSession(test, attempt, questions, remaining)
}

// Questions 试卷题面（不含答案），开考前预览用
func (s *ExamService) Questions(ctx context.Context, testID uint) ([]catalog.Question, error) {
	if _, err := s.Tests.FindPublishedByID(testID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotPublished
		}
		return nil, err
	}
	questions, err := s.Resolver.Resolve(ctx, testID)
	if err != nil {
		return nil, err
	}
	return s.presentQuestions(ctx, questions), nil
}

// presentQuestions 出库前把选项配图的对象键换成预签名 URL。正确答案
// 字段不参与序列化，天然不出网。
func (s *ExamService) presentQuestions(ctx context.Context, questions []catalog.Question) []catalog.Question {
	out := make([]catalog.Question, len(questions))
	copy(out, questions)
	for i := range out {
		if len(out[i].Options) == 0 {
			continue
		}
		opts := make([]catalog.Option, len(out[i].Options))
		copy(opts, out[i].Options)
		for j := range opts {
			opts[j].ImageRef = s.Storage.PresignImage(ctx, opts[j].ImageRef)
		}
		out[i].Options = opts
	}
	return out
}

// Answer 作答事件。timeDeltaSeconds 是客户端上报的离开上一题的停留时长。
func (s *ExamService) Answer(ctx context.Context, attemptID string, userID uint, questionID, value string, timeDeltaSeconds int) error {
	ctrl, err := s.sessionFor(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	if err := ctrl.Store().SetAnswer(questionID, value); err != nil {
		return err
	}
	return ctrl.Store().AccumulateTime(questionID, timeDeltaSeconds)
}

func (s *ExamService) ClearAnswer(ctx context.Context, attemptID string, userID uint, questionID string) error {
	ctrl, err := s.sessionFor(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	return ctrl.Store().ClearAnswer(questionID)
}

// Visit 记录到访。停留时长记在刚离开的那道题上。
func (s *ExamService) Visit(ctx context.Context, attemptID string, userID uint, questionID, previousQuestionID string, secondsOnPrevious int) error {
	ctrl, err := s.sessionFor(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	if err := ctrl.Store().Visit(questionID); err != nil {
		return err
	}
	if previousQuestionID != "" {
		return ctrl.Store().AccumulateTime(previousQuestionID, secondsOnPrevious)
	}
	return nil
}

func (s *ExamService) ToggleReview(ctx context.Context, attemptID string, userID uint, questionID string) error {
	ctrl, err := s.sessionFor(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	return ctrl.Store().ToggleMarkForReview(questionID)
}

func (s *ExamService) FullscreenExit(ctx context.Context, attemptID string, userID uint) (count int, forced bool, err error) {
	ctrl, err := s.sessionFor(ctx, attemptID, userID)
	if err != nil {
		return 0, false, err
	}
	return ctrl.RecordFullscreenExit()
}

func (s *ExamService) State(ctx context.Context, attemptID string, userID uint) (*session.View, error) {
	ctrl, err := s.sessionFor(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	view := ctrl.Snapshot()
	return &view, nil
}

// Submit 用户确认交卷
func (s *ExamService) Submit(ctx context.Context, attemptID string, userID uint) (*AttemptResult, error) {
	ctrl, err := s.sessionFor(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if err := ctrl.SubmitByUser(ctx); err != nil {
		return nil, err
	}

	go s.Sessions.Remove(attemptID)
	return s.Result(ctx, attemptID, userID)
}

// finalizeAttempt 会话注入 Controller 的结算回调。重复结算由数据库
// 守卫兜住，这里把「已经结算过」折叠成成功让会话正常收尾。
func (s *ExamService) finalizeAttempt(ctx context.Context, attemptID string, trigger session.SubmitTrigger) error {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return err
	}

	ctrl, ok := s.Sessions.Get(attemptID)
	if !ok {
		return s.finalizeFromRecord(ctx, attempt, trigger)
	}

	questions, err := s.Resolver.Resolve(ctx, attempt.TestID)
	if err != nil {
		return err
	}

	store := ctrl.Store()
	err = s.persistResult(ctx, attempt, questions, store.Answers(), store.TimeSpent(), ctrl.FullscreenExits(), trigger)
	if errors.Is(err, util.ErrAttemptCompleted) {
		logger.Log.Warn("Attempt already finalized, treating submit as done",
			zap.String("attemptId", attemptID))
		return nil
	}
	return err
}

// finalizeFromRecord 没有在线会话时的结算路径：续考发现超时、兜底
// 结算扫描都走这里，以持久化的最后一次自动保存为准。
func (s *ExamService) finalizeFromRecord(ctx context.Context, attempt *model.Attempt, trigger session.SubmitTrigger) error {
	questions, err := s.Resolver.Resolve(ctx, attempt.TestID)
	if err != nil {
		return err
	}
	answers, err := scoring.ParseAnswerSet(attempt.Answers)
	if err != nil {
		answers = scoring.AnswerSet{}
	}
	timeSpent := map[string]int{}
	if len(attempt.TimePerQuestion) > 0 {
		if err := json.Unmarshal(attempt.TimePerQuestion, &timeSpent); err != nil {
			timeSpent = map[string]int{}
		}
	}
	return s.persistResult(ctx, attempt, questions, answers, timeSpent, attempt.FullscreenExitCount, trigger)
}

func (s *ExamService) persistResult(
	ctx context.Context,
	attempt *model.Attempt,
	questions []catalog.Question,
	answers scoring.AnswerSet,
	timeSpent map[string]int,
	fullscreenExits int,
	trigger session.SubmitTrigger,
) error {
	result := scoring.Grade(questions, answers)

	details, err := json.Marshal(result)
	if err != nil {
		return err
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	timesJSON, err := json.Marshal(timeSpent)
	if err != nil {
		return err
	}

	test, err := s.Tests.FindByID(attempt.TestID)
	if err != nil {
		return err
	}
	timeTaken := int(time.Since(attempt.StartedAt).Seconds())
	if limit := test.DurationMinutes * 60; limit > 0 && timeTaken > limit {
		timeTaken = limit
	}

	err = s.Attempts.Finalize(ctx, attempt.ID, repository.FinalizeParams{
		Answers:          answersJSON,
		TimePerQuestion:  timesJSON,
		FullscreenExits:  fullscreenExits,
		Score:            result.Score,
		TotalMarks:       result.TotalMarks,
		TimeTakenSeconds: timeTaken,
		SubmitTrigger:    string(trigger),
		ResultDetails:    details,
	})
	if err != nil {
		return err
	}

	monitoring.SubmissionCounter.WithLabelValues(string(trigger)).Inc()
	logger.Log.Info("Attempt finalized",
		zap.String("attemptId", attempt.ID),
		zap.String("trigger", string(trigger)),
		zap.Int("score", result.Score),
		zap.Int("totalMarks", result.TotalMarks))

	s.Rank.RecordScore(ctx, attempt.TestID, attempt.ID, result.Score)
	if rank, percentile, ok := s.Rank.Standing(ctx, attempt.TestID, attempt.ID); ok {
		if err := s.Attempts.UpdateStanding(attempt.ID, rank, percentile); err != nil {
			logger.Log.Warn("Failed to persist standing",
				zap.String("attemptId", attempt.ID), zap.Error(err))
		}
	}
	return nil
}

// AttemptResult 成绩单
type AttemptResult struct {
	AttemptID        string          `json:"attemptId"`
	TestID           uint            `json:"testId"`
	Score            int             `json:"score"`
	TotalMarks       int             `json:"totalMarks"`
	Correct          int             `json:"correct"`
	Incorrect        int             `json:"incorrect"`
	Skipped          int             `json:"skipped"`
	TimeTakenSeconds int             `json:"timeTakenSeconds"`
	SubmitTrigger    string          `json:"submitTrigger,omitempty"`
	Rank             *int64          `json:"rank,omitempty"`
	Percentile       *float64        `json:"percentile,omitempty"`
	Details          *scoring.Result `json:"details,omitempty"`
}

// Result 成绩查询。结算时内嵌的判分明细直接用（tier 1）；老数据没有
// 明细就按当前题目定义重新判一遍，输入相同输出必然相同。
func (s *ExamService) Result(ctx context.Context, attemptID string, userID uint) (*AttemptResult, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if attempt.InProgress() {
		return nil, util.ErrSessionNotActive
	}

	out := &AttemptResult{
		AttemptID:        attempt.ID,
		TestID:           attempt.TestID,
		Score:            attempt.Score,
		TotalMarks:       attempt.TotalMarks,
		TimeTakenSeconds: attempt.TimeTakenSeconds,
		SubmitTrigger:    attempt.SubmitTrigger,
		Rank:             attempt.Rank,
		Percentile:       attempt.Percentile,
	}

	if len(attempt.ResultDetails) > 0 {
		var details scoring.Result
		if err := json.Unmarshal(attempt.ResultDetails, &details); err == nil {
			out.Details = &details
		}
	}
	if out.Details == nil {
		questions, err := s.Resolver.Resolve(ctx, attempt.TestID)
		if err != nil {
			return nil, err
		}
		answers, err := scoring.ParseAnswerSet(attempt.Answers)
		if err != nil {
			answers = scoring.AnswerSet{}
		}
		out.Details = scoring.Grade(questions, answers)
	}

	out.Correct = out.Details.Correct
	out.Incorrect = out.Details.Incorrect
	out.Skipped = out.Details.Skipped

	// 排名字段落盘时 Redis 不可用的话，这里再试一次
	if out.Rank == nil {
		if rank, percentile, ok := s.Rank.Standing(ctx, attempt.TestID, attempt.ID); ok {
			out.Rank = &rank
			out.Percentile = &percentile
		}
	}
	return out, nil
}

// Leaderboard 某套试卷的得分榜。Redis 里只有 attemptId，出榜前回查
// 数据库补上考生姓名；补不上只影响展示，榜单照常返回。
func (s *ExamService) Leaderboard(ctx context.Context, testID uint, limit int) ([]LeaderboardEntry, error) {
	if _, err := s.Tests.FindPublishedByID(testID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotPublished
		}
		return nil, err
	}

	entries, err := s.Rank.Leaderboard(ctx, testID, limit)
	if err != nil || len(entries) == 0 {
		return entries, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.AttemptID)
	}
	attempts, err := s.Attempts.FindByIDs(ids)
	if err != nil {
		logger.Log.Warn("Leaderboard name lookup failed", zap.Error(err))
		return entries, nil
	}
	attemptUser := make(map[string]uint, len(attempts))
	userIDs := make([]uint, 0, len(attempts))
	for _, a := range attempts {
		attemptUser[a.ID] = a.UserID
		userIDs = append(userIDs, a.UserID)
	}
	users, err := s.Users.FindByIDs(userIDs)
	if err != nil {
		logger.Log.Warn("Leaderboard name lookup failed", zap.Error(err))
		return entries, nil
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	attachEntryNames(entries, attemptUser, names)
	return entries, nil
}

// attachEntryNames 把榜单行的 attemptId 映射回考生姓名，查不到的行留空
func attachEntryNames(entries []LeaderboardEntry, attemptUser map[string]uint, names map[uint]string) {
	for i := range entries {
		if uid, ok := attemptUser[entries[i].AttemptID]; ok {
			entries[i].UserName = names[uid]
		}
	}
}

// ReconcileExpired 兜底结算：进程崩溃、强制交卷重试耗尽都可能留下
// 超时未结算的记录，周期扫描把它们按持久化进度补判。
func (s *ExamService) ReconcileExpired(ctx context.Context) {
	policy := s.currentPolicy()
	grace := time.Duration(policy.ReconcileGraceSecs) * time.Second

	attempts, err := s.Attempts.ListExpiredInProgress(ctx, grace, 50)
	if err != nil {
		logger.Log.Error("Reconciliation scan failed", zap.Error(err))
		return
	}

	for i := range attempts {
		attempt := &attempts[i]
		if _, ok := s.Sessions.Get(attempt.ID); ok {
			// 在线会话自己会走到点结算，不抢
			continue
		}
		if err := s.finalizeFromRecord(ctx, attempt, session.TriggerReconciled); err != nil {
			if !errors.Is(err, util.ErrAttemptCompleted) {
				logger.Log.Error("Reconciliation failed for attempt",
					zap.String("attemptId", attempt.ID), zap.Error(err))
			}
			continue
		}
		logger.Log.Info("Overdue attempt reconciled", zap.String("attemptId", attempt.ID))
	}
}

// remainingSeconds 剩余时间以开考时刻推算，续考继续走而不是重新开始
func remainingSeconds(test *model.Test, attempt *model.Attempt) int {
	total := test.DurationMinutes * 60
	if total <= 0 {
		return 0
	}
	elapsed := int(time.Since(attempt.StartedAt).Seconds())
	remaining := total - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
