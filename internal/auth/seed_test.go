package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func TestSeedAdmin_CreatesOnEmptyDB(t *testing.T) {
	repo := NewOperatorRepository(testDB(t))
	ctx := context.Background()

	password, err := SeedAdmin(ctx, repo, slog.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password == "" {
		t.Fatal("SeedAdmin() should return generated password")
	}

	op, err := Authenticate(ctx, repo, SeedAdminUsername, password)
	if err != nil {
		t.Fatalf("Authenticate() with seed password error = %v", err)
	}
	if op.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", op.Role, RoleAdmin)
	}
}

func TestSeedAdmin_SkipsWhenOperatorsExist(t *testing.T) {
	repo := NewOperatorRepository(testDB(t))
	seedTestOperator(t, repo, "tech", RoleOperator)

	password, err := SeedAdmin(context.Background(), repo, slog.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password != "" {
		t.Error("SeedAdmin() should skip when operators exist")
	}
	if count, _ := repo.Count(context.Background()); count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestAuthenticate(t *testing.T) {
	repo := NewOperatorRepository(testDB(t))
	ctx := context.Background()
	seedTestOperator(t, repo, "tech", RoleOperator)
	inactive := seedTestOperator(t, repo, "former", RoleOperator)
	inactive.IsActive = false
	if err := repo.Update(ctx, inactive); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"valid", "tech", "test-password", nil},
		{"wrong password", "tech", "nope", ErrInvalidCredentials},
		{"unknown user", "ghost", "test-password", ErrInvalidCredentials},
		{"inactive", "former", "test-password", ErrOperatorInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := Authenticate(ctx, repo, tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && op.Username != tt.username {
				t.Errorf("Username = %q, want %q", op.Username, tt.username)
			}
		})
	}
}
