package auth

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateAndValidate(t *testing.T) {
	t.Parallel()
	svc := NewJWTService("test-secret", 24)
	userID := uuid.New()

	token, err := svc.Generate(userID, "ana@example.com", "Ana", "https://example.com/a.png")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("user id = %s, want %s", claims.UserID, userID)
	}
	if claims.Email != "ana@example.com" || claims.Name != "Ana" {
		t.Errorf("claims = %+v", claims)
	}

	sess := claims.Session()
	if !sess.SignedIn() {
		t.Errorf("session from valid claims should be signed in")
	}
	if sess.UserID != userID.String() || sess.Name != "Ana" || sess.Avatar != "https://example.com/a.png" {
		t.Errorf("session = %+v", sess)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	t.Parallel()
	token, err := NewJWTService("secret-a", 24).Generate(uuid.New(), "a@b.c", "A", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := NewJWTService("secret-b", 24).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	t.Parallel()
	svc := NewJWTService("test-secret", 24)

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.Validate(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate(%q) err = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	t.Parallel()
	svc := NewJWTService("test-secret", -1)

	token, err := svc.Generate(uuid.New(), "a@b.c", "A", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token err = %v, want ErrInvalidToken", err)
	}
}
