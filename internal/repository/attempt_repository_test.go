package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"phynetix_backend/internal/model"
	"phynetix_backend/internal/util"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newAttemptRepo(t *testing.T) (*AttemptRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	return NewAttemptRepository(gdb), mock
}

// 建档必须带 NOT EXISTS 守卫：同一学生同一试卷已有进行中记录时插入
// 零行，并发建档只有一个能赢。
func TestCreateGuardsAgainstDuplicateInProgress(t *testing.T) {
	t.Run("first start inserts", func(t *testing.T) {
		repo, mock := newAttemptRepo(t)
		mock.ExpectExec("INSERT INTO attempts.+WHERE NOT EXISTS").
			WillReturnResult(sqlmock.NewResult(0, 1))

		attempt := &model.Attempt{TestID: 5, UserID: 9, StartedAt: time.Now()}
		if err := repo.Create(attempt); err != nil {
			t.Fatal(err)
		}
		if attempt.ID == "" {
			t.Error("attempt id not assigned before insert")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("concurrent loser gets ErrAttemptExists", func(t *testing.T) {
		repo, mock := newAttemptRepo(t)
		mock.ExpectExec("INSERT INTO attempts.+WHERE NOT EXISTS").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Create(&model.Attempt{TestID: 5, UserID: 9, StartedAt: time.Now()})
		if !errors.Is(err, util.ErrAttemptExists) {
			t.Errorf("err = %v, want ErrAttemptExists", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}

// 进度保存的违规计数走 GREATEST，带旧计数的迟到写压不低已落盘的值
func TestSaveProgressKeepsExitCountMonotonic(t *testing.T) {
	repo, mock := newAttemptRepo(t)
	mock.ExpectExec("UPDATE .attempts. SET .+GREATEST\\(fullscreen_exit_count, \\?\\).+WHERE id = \\? AND completed_at IS NULL").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveProgress(context.Background(), "attempt-1", []byte(`{}`), []byte(`{}`), 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

// 结算守卫：completed_at 已非空时更新零行，输掉的一方拿 ErrAttemptCompleted
func TestFinalizeLoserGetsAttemptCompleted(t *testing.T) {
	repo, mock := newAttemptRepo(t)
	mock.ExpectExec("UPDATE .attempts. SET .+WHERE id = \\? AND completed_at IS NULL").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Finalize(context.Background(), "attempt-1", FinalizeParams{
		Answers:         []byte(`{}`),
		TimePerQuestion: []byte(`{}`),
		SubmitTrigger:   "user",
	})
	if !errors.Is(err, util.ErrAttemptCompleted) {
		t.Errorf("err = %v, want ErrAttemptCompleted", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
