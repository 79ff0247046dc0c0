package studyaids

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/internal/notes"
	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/errors"
)

// AIAccessChecker gates study aid generation: the caller must be entitled to
// the note's AI features, not just its preview.
type AIAccessChecker interface {
	CanAccessAIFeatures(ctx context.Context, userID *uuid.UUID, note *models.Note) (bool, error)
}

// Service generates AI study aids for notes the caller is entitled to.
type Service interface {
	Generate(ctx context.Context, input GenerateInput) (*StudyAid, error)
}

// GenerateInput requests one study aid for a note.
type GenerateInput struct {
	UserID uuid.UUID
	NoteID uuid.UUID
	Kind   Kind
}

// StudyAid is the generated document alongside its provenance.
type StudyAid struct {
	NoteID  uuid.UUID       `json:"note_id"`
	Kind    Kind            `json:"kind"`
	Content json.RawMessage `json:"content"`
}

type service struct {
	notesRepo notes.Repository
	access    AIAccessChecker
	generator Generator
}

// Deps collects the study aid service collaborators.
type Deps struct {
	NotesRepo notes.Repository
	Access    AIAccessChecker
	Generator Generator
}

// NewService wires the study aid service.
func NewService(deps Deps) (Service, error) {
	if deps.NotesRepo == nil {
		return nil, fmt.Errorf("notes repository required")
	}
	if deps.Access == nil {
		return nil, fmt.Errorf("access checker required")
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("generator required")
	}
	return &service{
		notesRepo: deps.NotesRepo,
		access:    deps.Access,
		generator: deps.Generator,
	}, nil
}

func (s *service) Generate(ctx context.Context, input GenerateInput) (*StudyAid, error) {
	if input.UserID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	if input.NoteID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "note id is required")
	}
	if !input.Kind.IsValid() {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("invalid study aid kind %q", input.Kind))
	}

	note, err := s.notesRepo.GetByID(ctx, input.NoteID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "note not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading note")
	}
	if note.IsDeleted || note.Status != enums.NoteStatusActive {
		return nil, errors.New(errors.CodeNotFound, "note not found")
	}

	allowed, err := s.access.CanAccessAIFeatures(ctx, &input.UserID, note)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errors.New(errors.CodeForbidden, "study aids require a purchase or an active subscription")
	}

	pages, err := note.DecodePages()
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "decoding pages")
	}

	content, err := s.generator.Generate(ctx, input.Kind, note, pages)
	if err != nil {
		return nil, err
	}
	return &StudyAid{
		NoteID:  note.ID,
		Kind:    input.Kind,
		Content: content,
	}, nil
}
