package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kjannette/pulse-backend/internal/models"
	"github.com/kjannette/pulse-backend/internal/repository"
	"github.com/kjannette/pulse-backend/internal/testutil"
	"github.com/kjannette/pulse-backend/internal/uid"
)

// ---------- UserRepo ----------

func TestUserRepo(t *testing.T) {
	pool := testutil.SetupPool(t)
	testutil.CreateUsersTable(t, pool)
	repo := repository.NewUserRepo(pool)
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	alloc := uid.NewAllocator(repo)
	id, err := alloc.Allocate(ctx)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	// Insert
	u, err := repo.Insert(ctx, &models.User{
		UID:          id,
		Email:        fmt.Sprintf("user%d@example.com", suffix),
		Username:     fmt.Sprintf("user%d", suffix),
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected non-zero ID")
	}
	t.Logf("Inserted user: id=%d uid=%s", u.ID, u.UID)

	// ExistsByUID
	exists, err := repo.ExistsByUID(ctx, id)
	if err != nil {
		t.Fatalf("ExistsByUID: %v", err)
	}
	if !exists {
		t.Fatal("expected uid to exist after insert")
	}

	// Duplicate uid is rejected by the constraint
	_, err = repo.Insert(ctx, &models.User{
		UID:          id,
		Email:        fmt.Sprintf("other%d@example.com", suffix),
		Username:     fmt.Sprintf("other%d", suffix),
		PasswordHash: "x",
	})
	if !errors.Is(err, repository.ErrUIDTaken) {
		t.Fatalf("expected ErrUIDTaken, got %v", err)
	}

	// Duplicate email is rejected by the constraint
	other, _ := alloc.Allocate(ctx)
	_, err = repo.Insert(ctx, &models.User{
		UID:          other,
		Email:        u.Email,
		Username:     fmt.Sprintf("third%d", suffix),
		PasswordHash: "x",
	})
	if !errors.Is(err, repository.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	// GetByID / GetByEmail
	byID, err := repo.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.UID != id {
		t.Fatalf("uid mismatch: got %s", byID.UID)
	}
	if _, err := repo.GetByEmail(ctx, u.Email); err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if _, err := repo.GetByID(ctx, -1); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// UpdateUID
	updated, err := repo.UpdateUID(ctx, u.ID, other)
	if err != nil {
		t.Fatalf("UpdateUID: %v", err)
	}
	if updated.UID != other {
		t.Fatalf("uid not updated: got %s", updated.UID)
	}
	t.Logf("UpdateUID: %s -> %s", id, updated.UID)
}
