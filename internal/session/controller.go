package session

import (
	"context"
	"sync"
	"time"

	"phynetix_backend/internal/util"
	"phynetix_backend/pkg/logger"
	"phynetix_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// State 会话状态机。Loading → Active ⇄（导航下可重入）→ Submitting →
// Completed；Loading 与 Submitting 可进入 Error。
type State string

const (
	StateLoading    State = "loading"
	StateActive     State = "active"
	StateSubmitting State = "submitting"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// SubmitTrigger 结算触发方
type SubmitTrigger string

const (
	TriggerUser          SubmitTrigger = "user"
	TriggerTimeExpired   SubmitTrigger = "time_expired"
	TriggerMaxViolations SubmitTrigger = "max_violations"
	TriggerReconciled    SubmitTrigger = "reconciled"
)

// Forced 时间归零、违规超限、兜底结算都不允许静默丢失
func (t SubmitTrigger) Forced() bool {
	return t != TriggerUser
}

// ProgressSink 进度持久化网关：只写 answers / timePerQuestion /
// fullscreenExitCount 三个字段，永不触碰判分字段。
type ProgressSink interface {
	SaveProgress(ctx context.Context, attemptID string, answers, timeSpent []byte, fullscreenExits int) error
}

// SubmitFunc 唯一的结算入口，由上层注入。三条触发路径（用户确认、
// 倒计时归零、违规超限）全部收敛到这里。
type SubmitFunc func(ctx context.Context, trigger SubmitTrigger) error

type Config struct {
	AttemptID        string
	RemainingSeconds int
	AutoSaveInterval time.Duration
	SubmitRetryLimit int
	Store            *AnswerStore
	Monitor          *IntegrityMonitor
	Sink             ProgressSink
	Submit           SubmitFunc
}

// Controller 一次考试会话的运行时。独占持有 AnswerStore，驱动一秒
// 倒计时与周期自动保存，保证一次 Attempt 至多结算一次。
type Controller struct {
	attemptID        string
	autoSaveInterval time.Duration
	submitRetryLimit int
	store            *AnswerStore
	monitor          *IntegrityMonitor
	sink             ProgressSink
	submit           SubmitFunc

	retryBackoff time.Duration // 首次重试等待，之后指数递增

	mu            sync.Mutex
	state         State
	remaining     int
	submitStarted bool // 结算单次执行守卫：tick 与用户点击竞争也只会提交一次
	saveInFlight  bool // 自动保存串行化：任一时刻至多一个写在途
	savedVersion  uint64

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewController(cfg Config) *Controller {
	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = 30 * time.Second
	}
	if cfg.SubmitRetryLimit <= 0 {
		cfg.SubmitRetryLimit = 5
	}
	return &Controller{
		attemptID:        cfg.AttemptID,
		autoSaveInterval: cfg.AutoSaveInterval,
		submitRetryLimit: cfg.SubmitRetryLimit,
		store:            cfg.Store,
		monitor:          cfg.Monitor,
		sink:             cfg.Sink,
		submit:           cfg.Submit,
		retryBackoff:     time.Second,
		state:            StateLoading,
		remaining:        cfg.RemainingSeconds,
		stopCh:           make(chan struct{}),
	}
}

func (c *Controller) AttemptID() string { return c.attemptID }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Controller) Store() *AnswerStore { return c.store }

func (c *Controller) FullscreenExits() int { return c.monitor.Count() }

// Start 进入 Active 并启动倒计时与自动保存循环
func (c *Controller) Start() {
	c.mu.Lock()
	if c.state != StateLoading {
		c.mu.Unlock()
		return
	}
	c.state = StateActive
	c.mu.Unlock()

	go c.run()
}

func (c *Controller) run() {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	save := time.NewTicker(c.autoSaveInterval)
	defer save.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-tick.C:
			c.tick()
		case <-save.C:
			c.autoSave()
		}
	}
}

// tick 每秒一跳：剩余时间减一，归零时走唯一的强制结算路径
func (c *Controller) tick() {
	c.mu.Lock()
	if c.state != StateActive || c.remaining <= 0 {
		c.mu.Unlock()
		return
	}
	c.remaining--
	expired := c.remaining == 0
	c.mu.Unlock()

	if expired {
		c.forceSubmit(TriggerTimeExpired)
	}
}

// autoSave 周期保存。失败只记日志等下个周期重试，从不打断会话；
// 在途写未归还时跳过本轮，保证后写不会被迟到的旧写覆盖。
func (c *Controller) autoSave() {
	c.mu.Lock()
	if c.state != StateActive || c.saveInFlight {
		c.mu.Unlock()
		return
	}
	answers, timeSpent, version, err := c.store.Snapshot()
	if err != nil {
		c.mu.Unlock()
		logger.Log.Error("snapshot for auto-save failed", zap.String("attemptId", c.attemptID), zap.Error(err))
		return
	}
	if version == c.savedVersion {
		c.mu.Unlock()
		return
	}
	c.saveInFlight = true
	c.mu.Unlock()

	exits := c.monitor.Count()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		saveErr := c.sink.SaveProgress(ctx, c.attemptID, answers, timeSpent, exits)

		c.mu.Lock()
		c.saveInFlight = false
		if saveErr == nil {
			c.savedVersion = version
		}
		c.mu.Unlock()

		if saveErr != nil {
			monitoring.AutoSaveFailures.Inc()
			logger.Log.Warn("auto-save failed, will retry on next tick",
				zap.String("attemptId", c.attemptID), zap.Error(saveErr))
		}
	}()
}

// RecordFullscreenExit 防作弊事件入口：计数、顺手持久化，超限则强制交卷
func (c *Controller) RecordFullscreenExit() (count int, forced bool, err error) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return c.monitor.Count(), false, util.ErrSessionNotActive
	}
	c.mu.Unlock()

	count, exceeded := c.monitor.RecordExit()
	monitoring.IntegrityViolations.Inc()

	// 计数变化推进版本后走自动保存的串行通道落盘。在途写未归还时
	// 本轮跳过，版本差保证下个周期补上；旧快照绝不会在新计数之后
	// 再落一次盘。
	c.store.TouchVersion()
	c.autoSave()

	if exceeded {
		logger.Log.Info("fullscreen exit limit exceeded, forcing submission",
			zap.String("attemptId", c.attemptID), zap.Int("count", count))
		go c.forceSubmit(TriggerMaxViolations)
	}
	return count, exceeded, nil
}

// SubmitByUser 用户确认交卷。失败回到 Active，允许重试。
func (c *Controller) SubmitByUser(ctx context.Context) error {
	if !c.beginSubmit() {
		return util.ErrSubmitInProgress
	}

	err := c.submit(ctx, TriggerUser)
	if err != nil {
		c.mu.Lock()
		c.submitStarted = false
		c.state = StateActive
		c.mu.Unlock()
		return err
	}

	c.finish()
	return nil
}

// forceSubmit 时间归零 / 违规超限的结算路径。学生已无法再操作，
// 这里有限次指数退避重试；全部失败则进入 Error 并留给兜底结算扫描，
// 保证强制交卷不会被静默丢失。
func (c *Controller) forceSubmit(trigger SubmitTrigger) {
	if !c.beginSubmit() {
		return
	}

	backoff := c.retryBackoff
	for i := 0; i < c.submitRetryLimit; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.submit(ctx, trigger)
		cancel()

		if err == nil {
			c.finish()
			return
		}

		logger.Log.Error("forced submission failed",
			zap.String("attemptId", c.attemptID),
			zap.String("trigger", string(trigger)),
			zap.Int("attempt", i+1),
			zap.Error(err))

		select {
		case <-c.stopCh:
			i = c.submitRetryLimit // 会话被拆除，交给兜底结算
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	c.mu.Lock()
	c.state = StateError
	c.mu.Unlock()
	logger.Log.Error("forced submission exhausted retries, left for reconciliation",
		zap.String("attemptId", c.attemptID), zap.String("trigger", string(trigger)))
}

// beginSubmit 三条触发路径共用的单次执行守卫
func (c *Controller) beginSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitStarted || c.state == StateCompleted || c.state == StateError {
		return false
	}
	c.submitStarted = true
	c.state = StateSubmitting
	return true
}

func (c *Controller) finish() {
	c.mu.Lock()
	c.state = StateCompleted
	c.mu.Unlock()

	c.store.Freeze()
	c.stopTimers()
}

func (c *Controller) stopTimers() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Stop 会话拆除（下线、服务停机）。定时器必须清掉；在途的结算调用
// 任其完成，丢一次提交比多一次网络调用严重得多。进行中状态做一次
// 同步兜底保存。
func (c *Controller) Stop() {
	c.stopTimers()

	c.mu.Lock()
	active := c.state == StateActive
	c.mu.Unlock()
	if !active {
		return
	}

	answers, timeSpent, _, err := c.store.Snapshot()
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.sink.SaveProgress(ctx, c.attemptID, answers, timeSpent, c.monitor.Count()); err != nil {
		logger.Log.Warn("final save on teardown failed",
			zap.String("attemptId", c.attemptID), zap.Error(err))
	}
}

// View 状态查询接口用的运行时快照
type View struct {
	State            State           `json:"state"`
	RemainingSeconds int             `json:"remainingSeconds"`
	FullscreenExits  int             `json:"fullscreenExitCount"`
	Navigation       NavigationState `json:"navigation"`
}

func (c *Controller) Snapshot() View {
	c.mu.Lock()
	state := c.state
	remaining := c.remaining
	c.mu.Unlock()

	return View{
		State:            state,
		RemainingSeconds: remaining,
		FullscreenExits:  c.monitor.Count(),
		Navigation:       c.store.Navigation(),
	}
}
