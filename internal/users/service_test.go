package users

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/errors"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:users_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(conn)
	service, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, repo
}

func seedUser(t *testing.T, repo *Repository, role enums.UserRole) *models.User {
	t.Helper()
	user, err := repo.Create(context.Background(), CreateUserDTO{
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		Name:         "Test User",
		Role:         role,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func strPtr(s string) *string { return &s }

func TestGetProfileOmitsCredentials(t *testing.T) {
	conn := openTestDB(t)
	service, repo := newTestService(t, conn)
	user := seedUser(t, repo, enums.UserRoleUser)

	profile, err := service.GetProfile(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.ID != user.ID || profile.Email != user.Email {
		t.Fatalf("profile = %+v", profile)
	}
	if profile.Role != enums.UserRoleUser {
		t.Fatalf("role = %s, want USER", profile.Role)
	}
}

func TestGetProfileUnknownUser(t *testing.T) {
	conn := openTestDB(t)
	service, _ := newTestService(t, conn)

	_, err := service.GetProfile(context.Background(), uuid.New())
	if !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateProfilePartial(t *testing.T) {
	conn := openTestDB(t)
	service, repo := newTestService(t, conn)
	user := seedUser(t, repo, enums.UserRoleUser)

	profile, err := service.UpdateProfile(context.Background(), UpdateProfileInput{
		UserID:   user.ID,
		Bio:      strPtr("  Final year CS student  "),
		Subjects: []string{"algorithms", "databases"},
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if profile.Bio == nil || *profile.Bio != "Final year CS student" {
		t.Fatalf("bio = %v", profile.Bio)
	}
	if len(profile.Subjects) != 2 || profile.Subjects[0] != "algorithms" {
		t.Fatalf("subjects = %v", profile.Subjects)
	}
	if profile.Name != "Test User" {
		t.Fatalf("name changed unexpectedly: %q", profile.Name)
	}
}

func TestUpdateProfileRejectsEmptyName(t *testing.T) {
	conn := openTestDB(t)
	service, repo := newTestService(t, conn)
	user := seedUser(t, repo, enums.UserRoleUser)

	_, err := service.UpdateProfile(context.Background(), UpdateProfileInput{
		UserID: user.ID,
		Name:   strPtr("   "),
	})
	if !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateProfileNoChanges(t *testing.T) {
	conn := openTestDB(t)
	service, repo := newTestService(t, conn)
	user := seedUser(t, repo, enums.UserRoleUser)

	profile, err := service.UpdateProfile(context.Background(), UpdateProfileInput{UserID: user.ID})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if profile.Name != "Test User" {
		t.Fatalf("name = %q", profile.Name)
	}
}

func TestBecomeNoteMaker(t *testing.T) {
	conn := openTestDB(t)
	service, repo := newTestService(t, conn)
	user := seedUser(t, repo, enums.UserRoleUser)

	profile, err := service.BecomeNoteMaker(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("become notemaker: %v", err)
	}
	if profile.Role != enums.UserRoleNoteMaker {
		t.Fatalf("role = %s, want NOTEMAKER", profile.Role)
	}

	stored, err := repo.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if stored.Role != enums.UserRoleNoteMaker {
		t.Fatalf("stored role = %s", stored.Role)
	}
}

func TestBecomeNoteMakerIdempotent(t *testing.T) {
	conn := openTestDB(t)
	service, repo := newTestService(t, conn)
	admin := seedUser(t, repo, enums.UserRoleAdmin)

	profile, err := service.BecomeNoteMaker(context.Background(), admin.ID)
	if err != nil {
		t.Fatalf("become notemaker: %v", err)
	}
	if profile.Role != enums.UserRoleAdmin {
		t.Fatalf("admin role changed: %s", profile.Role)
	}

	maker := seedUser(t, repo, enums.UserRoleNoteMaker)
	profile, err = service.BecomeNoteMaker(context.Background(), maker.ID)
	if err != nil {
		t.Fatalf("become notemaker: %v", err)
	}
	if profile.Role != enums.UserRoleNoteMaker {
		t.Fatalf("role = %s", profile.Role)
	}
}
