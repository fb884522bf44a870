package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ngconnect/marketplace-api/internal/model"
	"github.com/ngconnect/marketplace-api/internal/repository"
	"github.com/ngconnect/marketplace-api/internal/utils"
)

func TestUserRepo_CreateAndFetch(t *testing.T) {
	db := openTestDB(t)
	r := repository.NewUserRepo(db)
	ctx := context.Background()

	u := model.User{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "  Grace@Navy.mil ",
		Role:      model.RoleBusiness,
		Password:  "compile-it",
	}
	if err := r.Create(ctx, &u, 4); err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected UUID assigned")
	}
	if u.Password == "compile-it" {
		t.Fatal("password stored unhashed")
	}
	if !utils.VerifyPassword(u.Password, "compile-it") {
		t.Fatal("hash does not verify")
	}

	got, err := r.GetByEmail(ctx, "GRACE@navy.mil")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != u.ID || got.Email != "grace@navy.mil" {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := r.GetByID(ctx, "nope"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	db := openTestDB(t)
	r := repository.NewUserRepo(db)
	ctx := context.Background()

	u := model.User{FirstName: "A", LastName: "B", Email: "dup@test.com", Role: model.RoleUser, Password: "pw"}
	if err := r.Create(ctx, &u, 4); err != nil {
		t.Fatalf("first create: %v", err)
	}
	again := model.User{FirstName: "C", LastName: "D", Email: "DUP@test.com", Role: model.RoleUser, Password: "pw"}
	if err := r.Create(ctx, &again, 4); !errors.Is(err, repository.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}
