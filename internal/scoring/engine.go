package scoring

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"phynetix_backend/internal/catalog"
)

// integerTolerance 数值题允许的误差，吸收字符串与浮点往返的噪声
const integerTolerance = 0.01

// QuestionResult 单题判分结果
type QuestionResult struct {
	QuestionID    string `json:"questionId"`
	Subject       string `json:"subject"`
	Attempted     bool   `json:"attempted"`
	IsCorrect     bool   `json:"isCorrect"`
	IsBonus       bool   `json:"isBonus"`
	MarksObtained int    `json:"marksObtained"` // 有符号：答错扣 negativeMarks
	Marks         int    `json:"marks"`
	NegativeMarks int    `json:"negativeMarks"`
}

// SubjectScore 科目维度聚合
type SubjectScore struct {
	Correct        int     `json:"correct"`
	Incorrect      int     `json:"incorrect"`
	Skipped        int     `json:"skipped"`
	Total          int     `json:"total"`
	MarksEarned    int     `json:"marksEarned"`
	MarksAvailable int     `json:"marksAvailable"`
	Accuracy       float64 `json:"accuracy"` // correct/(correct+incorrect)，跳过不进分母
}

// Result 整卷判分结果
type Result struct {
	Score         int                      `json:"score"` // 不做零分下限，允许为负
	TotalMarks    int                      `json:"totalMarks"`
	Correct       int                      `json:"correct"`
	Incorrect     int                      `json:"incorrect"`
	Skipped       int                      `json:"skipped"`
	PerQuestion   []QuestionResult         `json:"perQuestion"`
	SubjectScores map[string]*SubjectScore `json:"subjectScores"`
}

// Grade 纯函数判分：同一份 (questions, answers) 输入永远得到同一份输出。
// 不做任何 I/O，不看钟。
func Grade(questions []catalog.Question, answers AnswerSet) *Result {
	res := &Result{
		PerQuestion:   make([]QuestionResult, 0, len(questions)),
		SubjectScores: make(map[string]*SubjectScore),
	}

	for _, q := range questions {
		qr := gradeQuestion(q, answers)

		res.Score += qr.MarksObtained
		res.TotalMarks += q.Marks

		switch {
		case qr.IsCorrect:
			res.Correct++
		case qr.Attempted:
			res.Incorrect++
		default:
			res.Skipped++
		}

		bucket := res.SubjectScores[qr.Subject]
		if bucket == nil {
			bucket = &SubjectScore{}
			res.SubjectScores[qr.Subject] = bucket
		}
		bucket.Total++
		bucket.MarksAvailable += q.Marks
		bucket.MarksEarned += qr.MarksObtained
		switch {
		case qr.IsCorrect:
			bucket.Correct++
		case qr.Attempted:
			bucket.Incorrect++
		default:
			bucket.Skipped++
		}

		res.PerQuestion = append(res.PerQuestion, qr)
	}

	for _, bucket := range res.SubjectScores {
		if n := bucket.Correct + bucket.Incorrect; n > 0 {
			bucket.Accuracy = float64(bucket.Correct) / float64(n) * 100
		}
	}

	return res
}

func gradeQuestion(q catalog.Question, answers AnswerSet) QuestionResult {
	qr := QuestionResult{
		QuestionID:    q.ID,
		Subject:       q.Subject,
		IsBonus:       q.IsBonus,
		Marks:         q.Marks,
		NegativeMarks: q.NegativeMarks,
	}

	answer, present := answers[q.ID]
	attempted := present && !answer.IsEmpty()
	qr.Attempted = attempted

	// 废题保底：无论是否作答、答了什么，一律给满分并计为正确
	if q.IsBonus {
		qr.IsCorrect = true
		qr.MarksObtained = q.Marks
		return qr
	}

	// 跳过：零分，不计负分，与答错分开统计
	if !attempted {
		return qr
	}

	correct := false
	switch q.Type {
	case catalog.SingleChoice:
		correct = answer.Primary() == q.CorrectChoice && q.CorrectChoice != ""
	case catalog.MultipleChoice:
		correct = labelSetsEqual(answer.Labels(), q.CorrectChoices)
	case catalog.Integer:
		correct = numericallyEqual(answer.Primary(), q.CorrectValue)
	}

	qr.IsCorrect = correct
	if correct {
		qr.MarksObtained = q.Marks
	} else {
		qr.MarksObtained = -q.NegativeMarks
	}
	return qr
}

// labelSetsEqual 集合相等：排序后逐一比较，选多了或选少了都算错
func labelSetsEqual(got, want []string) bool {
	if len(want) == 0 {
		return false
	}
	if len(got) != len(want) {
		return false
	}

	a := append([]string(nil), got...)
	b := append([]string(nil), want...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// numericallyEqual 数值比较而非字符串比较："4" 与 "4.005" 视为相等
func numericallyEqual(got, want string) bool {
	g, err := strconv.ParseFloat(strings.TrimSpace(got), 64)
	if err != nil {
		return false
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(want), 64)
	if err != nil {
		return false
	}
	return math.Abs(g-w) < integerTolerance
}
