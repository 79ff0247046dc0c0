package studyaids

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/notemarket/backend/internal/notes"
	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/errors"
)

type stubAccess struct {
	allowed map[uuid.UUID]bool
}

func (s *stubAccess) CanAccessAIFeatures(ctx context.Context, userID *uuid.UUID, note *models.Note) (bool, error) {
	if userID == nil {
		return false, nil
	}
	return s.allowed[*userID], nil
}

type fakeGenerator struct {
	lastKind  Kind
	lastPages int
	payload   json.RawMessage
	err       error
}

func (f *fakeGenerator) Generate(ctx context.Context, kind Kind, note *models.Note, pages []models.NotePage) (json.RawMessage, error) {
	f.lastKind = kind
	f.lastPages = len(pages)
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

type fixture struct {
	conn      *gorm.DB
	access    *stubAccess
	generator *fakeGenerator
	service   Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:studyaids_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Note{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	access := &stubAccess{allowed: map[uuid.UUID]bool{}}
	generator := &fakeGenerator{payload: json.RawMessage(`{"summary":"short","key_points":["a"]}`)}
	service, err := NewService(Deps{
		NotesRepo: notes.NewRepository(conn),
		Access:    access,
		Generator: generator,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{conn: conn, access: access, generator: generator, service: service}
}

func (f *fixture) seedNote(t *testing.T, status enums.NoteStatus, pageCount int) *models.Note {
	t.Helper()
	var pages []models.NotePage
	for i := 1; i <= pageCount; i++ {
		pages = append(pages, models.NotePage{PageNumber: i, Content: fmt.Sprintf("page %d", i)})
	}
	encoded, _ := json.Marshal(pages)
	note := &models.Note{
		Title:       "Microeconomics",
		Subject:     "economics",
		Description: "supply and demand",
		Pages:       encoded,
		PriceCents:  3000,
		CreatorID:   uuid.New(),
		Status:      status,
	}
	if err := f.conn.Create(note).Error; err != nil {
		t.Fatalf("seed note: %v", err)
	}
	return note
}

func TestGenerateForEntitledUser(t *testing.T) {
	f := newFixture(t)
	note := f.seedNote(t, enums.NoteStatusActive, 4)
	user := uuid.New()
	f.access.allowed[user] = true

	aid, err := f.service.Generate(context.Background(), GenerateInput{
		UserID: user,
		NoteID: note.ID,
		Kind:   KindQuiz,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if aid.Kind != KindQuiz || aid.NoteID != note.ID {
		t.Fatalf("aid = %+v", aid)
	}
	if f.generator.lastKind != KindQuiz {
		t.Fatalf("generator kind = %s, want quiz", f.generator.lastKind)
	}
	if f.generator.lastPages != 4 {
		t.Fatalf("generator saw %d pages, want all 4", f.generator.lastPages)
	}
}

func TestGenerateDeniedWithoutEntitlement(t *testing.T) {
	f := newFixture(t)
	note := f.seedNote(t, enums.NoteStatusActive, 2)

	_, err := f.service.Generate(context.Background(), GenerateInput{
		UserID: uuid.New(),
		NoteID: note.ID,
		Kind:   KindSummary,
	})
	if !errors.HasCode(err, errors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if f.generator.lastKind != "" {
		t.Fatal("generator must not run for denied callers")
	}
}

func TestGenerateValidation(t *testing.T) {
	f := newFixture(t)
	note := f.seedNote(t, enums.NoteStatusActive, 1)
	user := uuid.New()
	f.access.allowed[user] = true

	cases := []struct {
		name  string
		input GenerateInput
	}{
		{"missing user", GenerateInput{NoteID: note.ID, Kind: KindSummary}},
		{"missing note", GenerateInput{UserID: user, Kind: KindSummary}},
		{"bad kind", GenerateInput{UserID: user, NoteID: note.ID, Kind: Kind("poem")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.service.Generate(context.Background(), tc.input); !errors.HasCode(err, errors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGenerateHiddenNotes(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	f.access.allowed[user] = true

	draft := f.seedNote(t, enums.NoteStatusDraft, 1)
	if _, err := f.service.Generate(context.Background(), GenerateInput{
		UserID: user,
		NoteID: draft.ID,
		Kind:   KindFlashcards,
	}); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("draft: expected not found, got %v", err)
	}

	if _, err := f.service.Generate(context.Background(), GenerateInput{
		UserID: user,
		NoteID: uuid.New(),
		Kind:   KindFlashcards,
	}); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("missing: expected not found, got %v", err)
	}
}

func TestGeneratePropagatesGeneratorError(t *testing.T) {
	f := newFixture(t)
	note := f.seedNote(t, enums.NoteStatusActive, 1)
	user := uuid.New()
	f.access.allowed[user] = true
	f.generator.err = errors.New(errors.CodeDependency, "model unavailable")

	_, err := f.service.Generate(context.Background(), GenerateInput{
		UserID: user,
		NoteID: note.ID,
		Kind:   KindSummary,
	})
	if !errors.HasCode(err, errors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
