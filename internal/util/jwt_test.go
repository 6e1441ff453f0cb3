package util

import (
	"testing"
	"time"

	"phynetix_backend/internal/model"
)

func TestGenerateAndParseJWT(t *testing.T) {
	user := &model.User{
		BaseModel: model.BaseModel{ID: 42},
		Name:      "张三",
		Email:     "zhangsan@example.com",
		Role:      model.Student,
	}

	token, err := GenerateJWT(user, "test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := ParseJWT(token, "test-secret")
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 42 {
		t.Errorf("userID = %d, want 42", claims.UserID)
	}
	if claims.Role != model.Student {
		t.Errorf("role = %s, want student", claims.Role)
	}
	if claims.Email != user.Email {
		t.Errorf("email = %s, want %s", claims.Email, user.Email)
	}
}

func TestParseJWTRejectsWrongSecret(t *testing.T) {
	user := &model.User{BaseModel: model.BaseModel{ID: 1}, Role: model.Student}
	token, err := GenerateJWT(user, "right-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseJWT(token, "wrong-secret"); err == nil {
		t.Error("token with wrong secret accepted")
	}
}

func TestParseJWTRejectsExpiredToken(t *testing.T) {
	user := &model.User{BaseModel: model.BaseModel{ID: 1}, Role: model.Student}
	token, err := GenerateJWT(user, "test-secret", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseJWT(token, "test-secret"); err == nil {
		t.Error("expired token accepted")
	}
}
