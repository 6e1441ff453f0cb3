package repository

import (
	"context"

	"phynetix_backend/internal/catalog"
	"phynetix_backend/internal/model"

	"gorm.io/gorm"
)

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

func (r *TestRepository) FindByID(id uint) (*model.Test, error) {
	var test model.Test
	err := r.DB.First(&test, id).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *TestRepository) FindPublishedByID(id uint) (*model.Test, error) {
	var test model.Test
	err := r.DB.Where("id = ? AND is_published = ?", id, true).First(&test).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

// QuestionRows 规范化路径：试卷题目引用 join 题库，科目经 chapter→course 带出
func (r *TestRepository) QuestionRows(ctx context.Context, testID uint) ([]catalog.QuestionRow, error) {
	var rows []catalog.QuestionRow
	err := r.DB.WithContext(ctx).
		Table("test_questions").
		Select(`test_questions.question_id AS question_id,
			test_questions.order AS `+"`order`"+`,
			test_questions.section_type AS section_type,
			questions.question_type AS question_type,
			questions.content AS content,
			questions.options AS options,
			questions.correct_answer AS correct_answer,
			questions.marks AS marks,
			questions.negative_marks AS negative_marks,
			questions.is_bonus AS is_bonus,
			courses.name AS subject,
			chapters.name AS chapter,
			questions.topic AS topic`).
		Joins("JOIN questions ON questions.id = test_questions.question_id AND questions.deleted_at IS NULL").
		Joins("LEFT JOIN chapters ON chapters.id = questions.chapter_id AND chapters.deleted_at IS NULL").
		Joins("LEFT JOIN courses ON courses.id = chapters.course_id AND courses.deleted_at IS NULL").
		Where("test_questions.test_id = ? AND test_questions.deleted_at IS NULL", testID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SectionRows 旧版扁平路径：科目→节→自包含题目行
func (r *TestRepository) SectionRows(ctx context.Context, testID uint) ([]catalog.SectionRow, error) {
	var rows []catalog.SectionRow
	err := r.DB.WithContext(ctx).
		Table("section_questions").
		Select(`section_questions.id AS row_id,
			test_subjects.name AS subject_name,
			test_subjects.order AS subject_order,
			test_sections.name AS section_name,
			test_sections.section_type AS section_type,
			test_sections.order AS section_order,
			section_questions.question_number AS question_number,
			section_questions.question_type AS question_type,
			section_questions.content AS content,
			section_questions.options AS options,
			section_questions.correct_answer AS correct_answer,
			section_questions.marks AS marks,
			section_questions.negative_marks AS negative_marks,
			section_questions.is_bonus AS is_bonus,
			section_questions.chapter_name AS chapter,
			section_questions.topic_name AS topic`).
		Joins("JOIN test_sections ON test_sections.id = section_questions.section_id AND test_sections.deleted_at IS NULL").
		Joins("JOIN test_subjects ON test_subjects.id = test_sections.subject_id AND test_subjects.deleted_at IS NULL").
		Where("test_subjects.test_id = ? AND section_questions.deleted_at IS NULL", testID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
