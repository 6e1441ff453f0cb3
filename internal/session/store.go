package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"phynetix_backend/internal/catalog"
	"phynetix_backend/internal/scoring"
	"phynetix_backend/internal/util"
)

// AnswerStore 一次进行中作答的全部可变状态：答案、到访、标记、单题耗时。
// 归属关系固定：生命周期内只被所属的 Controller 驱动。冻结后任何
// 变更操作都会报错，已冻结的数据不会被破坏。
type AnswerStore struct {
	mu     sync.Mutex
	frozen bool

	answers   scoring.AnswerSet
	visited   map[string]bool
	marked    map[string]bool
	timeSpent map[string]int // 累计秒数

	types map[string]catalog.QuestionType
	order []string // 目录顺序的题目 ID，用于导航

	version uint64 // 每次变更递增，自动保存据此跳过无变化的写
}

func NewAnswerStore(questions []catalog.Question) *AnswerStore {
	s := &AnswerStore{
		answers:   scoring.AnswerSet{},
		visited:   make(map[string]bool),
		marked:    make(map[string]bool),
		timeSpent: make(map[string]int),
		types:     make(map[string]catalog.QuestionType, len(questions)),
		order:     make([]string, 0, len(questions)),
	}
	for _, q := range questions {
		s.types[q.ID] = q.Type
		s.order = append(s.order, q.ID)
	}
	return s
}

// Restore 恢复中断前保存的答案与耗时（续考路径）
func (s *AnswerStore) Restore(answers scoring.AnswerSet, timeSpent map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range answers {
		if _, known := s.types[id]; known {
			s.answers[id] = v
		}
	}
	for id, sec := range timeSpent {
		if _, known := s.types[id]; known && sec > 0 {
			s.timeSpent[id] = sec
		}
	}
	s.version++
}

// SetAnswer 按题型语义写入：单选覆盖，多选切换标签的有无，数值题先
// 清洗成「数字 + 可选前导负号」再落盘。
func (s *AnswerStore) SetAnswer(questionID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return util.ErrAttemptFrozen
	}

	qType, ok := s.types[questionID]
	if !ok {
		return fmt.Errorf("unknown question %q", questionID)
	}

	switch qType {
	case catalog.MultipleChoice:
		s.toggleChoice(questionID, value)
	case catalog.Integer:
		sanitized := sanitizeIntegerAnswer(value)
		if sanitized == "" {
			delete(s.answers, questionID)
		} else {
			s.answers[questionID] = scoring.AnswerValue{Choice: sanitized}
		}
	default:
		s.answers[questionID] = scoring.AnswerValue{Choice: value}
	}

	s.version++
	return nil
}

func (s *AnswerStore) toggleChoice(questionID, label string) {
	current := s.answers[questionID].Labels()
	next := make([]string, 0, len(current)+1)
	removed := false
	for _, l := range current {
		if l == label {
			removed = true
			continue
		}
		next = append(next, l)
	}
	if !removed {
		next = append(next, label)
	}

	// 切空即视同从未作答，判分时不会被扣负分
	if len(next) == 0 {
		delete(s.answers, questionID)
		return
	}
	s.answers[questionID] = scoring.AnswerValue{Choices: next}
}

// ClearAnswer 整键删除。清除后与从未作答不可区分。
func (s *AnswerStore) ClearAnswer(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return util.ErrAttemptFrozen
	}
	delete(s.answers, questionID)
	s.version++
	return nil
}

// Visit 幂等记录到访
func (s *AnswerStore) Visit(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return util.ErrAttemptFrozen
	}
	if _, ok := s.types[questionID]; !ok {
		return fmt.Errorf("unknown question %q", questionID)
	}
	if !s.visited[questionID] {
		s.visited[questionID] = true
		s.version++
	}
	return nil
}

// ToggleMarkForReview 幂等切换标记
func (s *AnswerStore) ToggleMarkForReview(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return util.ErrAttemptFrozen
	}
	if s.marked[questionID] {
		delete(s.marked, questionID)
	} else {
		s.marked[questionID] = true
	}
	s.version++
	return nil
}

// AccumulateTime 离开题目时累加停留秒数，非正值忽略
func (s *AnswerStore) AccumulateTime(questionID string, seconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return util.ErrAttemptFrozen
	}
	if seconds <= 0 {
		return nil
	}
	if _, ok := s.types[questionID]; !ok {
		return nil
	}
	s.timeSpent[questionID] += seconds
	s.version++
	return nil
}

// TouchVersion 答题状态之外的变更（目前只有违规计数）推进版本，
// 让下一次自动保存必然落盘，不会被「无变化跳过」挡住。
func (s *AnswerStore) TouchVersion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
}

// Freeze 结算后冻结，之后的一切变更操作报错
func (s *AnswerStore) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

// Snapshot 序列化当前答案与耗时，供持久化
func (s *AnswerStore) Snapshot() (answers, timeSpent []byte, version uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers, err = json.Marshal(s.answers)
	if err != nil {
		return nil, nil, 0, err
	}
	timeSpent, err = json.Marshal(s.timeSpent)
	if err != nil {
		return nil, nil, 0, err
	}
	return answers, timeSpent, s.version, nil
}

// Version 当前变更序号
func (s *AnswerStore) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Answers 答案集拷贝，供判分使用
func (s *AnswerStore) Answers() scoring.AnswerSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(scoring.AnswerSet, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// TimeSpent 耗时拷贝
func (s *AnswerStore) TimeSpent() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.timeSpent))
	for k, v := range s.timeSpent {
		out[k] = v
	}
	return out
}

// TotalTimeSeconds 全卷累计作答秒数
func (s *AnswerStore) TotalTimeSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, sec := range s.timeSpent {
		total += sec
	}
	return total
}

// NavigationState 供状态查询接口返回的导航视图
type NavigationState struct {
	Answers         scoring.AnswerSet `json:"answers"`
	Visited         []string          `json:"visited"`
	MarkedForReview []string          `json:"markedForReview"`
	TimePerQuestion map[string]int    `json:"timePerQuestion"`
}

func (s *AnswerStore) Navigation() NavigationState {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := NavigationState{
		Answers:         make(scoring.AnswerSet, len(s.answers)),
		Visited:         make([]string, 0, len(s.visited)),
		MarkedForReview: make([]string, 0, len(s.marked)),
		TimePerQuestion: make(map[string]int, len(s.timeSpent)),
	}
	for k, v := range s.answers {
		ns.Answers[k] = v
	}
	// 按目录顺序输出，避免 map 乱序
	for _, id := range s.order {
		if s.visited[id] {
			ns.Visited = append(ns.Visited, id)
		}
	}
	for _, id := range s.order {
		if s.marked[id] {
			ns.MarkedForReview = append(ns.MarkedForReview, id)
		}
	}
	for k, v := range s.timeSpent {
		ns.TimePerQuestion[k] = v
	}
	return ns
}

// sanitizeIntegerAnswer 数值题输入清洗：仅保留数字与可选的前导负号
func sanitizeIntegerAnswer(v string) string {
	v = strings.TrimSpace(v)
	var b strings.Builder
	for i, r := range v {
		if r == '-' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "-" {
		return ""
	}
	return out
}
