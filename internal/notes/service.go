package notes

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	dbpkg "github.com/notemarket/backend/pkg/db"
	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/errors"
	"github.com/notemarket/backend/pkg/outbox"
	"github.com/notemarket/backend/pkg/pagination"
)

// AccessChecker resolves whether a viewer may read a note's full content.
type AccessChecker interface {
	CanAccessContent(ctx context.Context, userID *uuid.UUID, note *models.Note) (bool, error)
}

// Service defines note authoring and catalog operations.
type Service interface {
	CreateNote(ctx context.Context, input CreateNoteInput) (*models.Note, error)
	UpdateNote(ctx context.Context, input UpdateNoteInput) (*models.Note, error)
	PublishNote(ctx context.Context, noteID, actorID uuid.UUID) (*models.Note, error)
	DeleteNote(ctx context.Context, noteID, actorID uuid.UUID) error
	GetNoteDetail(ctx context.Context, noteID uuid.UUID, viewerID *uuid.UUID) (*NoteDetail, error)
	Marketplace(ctx context.Context, input MarketplaceInput) (*pagination.Page[models.Note], error)
	ListMine(ctx context.Context, creatorID uuid.UUID) ([]models.Note, error)
}

// CreateNoteInput captures a new draft note. ActorRole gates authoring to
// notemakers and admins.
type CreateNoteInput struct {
	CreatorID    uuid.UUID
	ActorRole    enums.UserRole
	Title        string
	Subject      string
	Description  string
	Pages        []models.NotePage
	PriceCents   int64
	PreviewPages int
	Tags         []string
}

// UpdateNoteInput mutates an existing note owned by the actor. Nil pointers
// leave the field untouched.
type UpdateNoteInput struct {
	NoteID       uuid.UUID
	ActorID      uuid.UUID
	Title        *string
	Subject      *string
	Description  *string
	Pages        []models.NotePage
	PriceCents   *int64
	PreviewPages *int
	Tags         []string
}

// NoteDetail is a note plus the pages the viewer is entitled to see.
type NoteDetail struct {
	Note       *models.Note
	Pages      []models.NotePage
	HasAccess  bool
	TotalPages int
}

// MarketplaceInput filters the public catalog.
type MarketplaceInput struct {
	Subject       string
	Query         string
	FreeOnly      bool
	MinPriceCents *int64
	MaxPriceCents *int64
	Sort          Sort
	Page          pagination.Params
}

type service struct {
	repo   Repository
	db     *dbpkg.Client
	access AccessChecker
	events *outbox.Service
}

// NewService wires a notes service. The outbox service may be nil when event
// emission is not configured.
func NewService(repo Repository, client *dbpkg.Client, access AccessChecker, events *outbox.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notes repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if access == nil {
		return nil, fmt.Errorf("access checker required")
	}
	return &service{repo: repo, db: client, access: access, events: events}, nil
}

func (s *service) CreateNote(ctx context.Context, input CreateNoteInput) (*models.Note, error) {
	if input.CreatorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "creator id is required")
	}
	if input.ActorRole != enums.UserRoleNoteMaker && input.ActorRole != enums.UserRoleAdmin {
		return nil, errors.New(errors.CodeForbidden, "only notemakers can publish notes")
	}
	if err := validateContent(input.Title, input.Subject, input.Description, input.Pages, input.PriceCents); err != nil {
		return nil, err
	}

	preview := input.PreviewPages
	if preview <= 0 {
		preview = 3
	}

	pages, err := json.Marshal(input.Pages)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "encoding pages")
	}

	note := &models.Note{
		Title:        strings.TrimSpace(input.Title),
		Subject:      strings.TrimSpace(input.Subject),
		Description:  strings.TrimSpace(input.Description),
		Pages:        pages,
		PriceCents:   input.PriceCents,
		CreatorID:    input.CreatorID,
		Status:       enums.NoteStatusDraft,
		PreviewPages: preview,
		Tags:         pq.StringArray(input.Tags),
	}
	if err := s.repo.Create(ctx, note); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "creating note")
	}
	return note, nil
}

func (s *service) UpdateNote(ctx context.Context, input UpdateNoteInput) (*models.Note, error) {
	note, err := s.ownedNote(ctx, input.NoteID, input.ActorID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, errors.New(errors.CodeValidation, "title cannot be empty")
		}
		updates["title"] = strings.TrimSpace(*input.Title)
	}
	if input.Subject != nil {
		if strings.TrimSpace(*input.Subject) == "" {
			return nil, errors.New(errors.CodeValidation, "subject cannot be empty")
		}
		updates["subject"] = strings.TrimSpace(*input.Subject)
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Pages != nil {
		if err := validatePages(input.Pages); err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(input.Pages)
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "encoding pages")
		}
		updates["pages"] = encoded
	}
	if input.PriceCents != nil {
		if *input.PriceCents < 0 {
			return nil, errors.New(errors.CodeValidation, "price must not be negative")
		}
		updates["price_cents"] = *input.PriceCents
	}
	if input.PreviewPages != nil {
		if *input.PreviewPages < 0 {
			return nil, errors.New(errors.CodeValidation, "preview pages must not be negative")
		}
		updates["preview_pages"] = *input.PreviewPages
	}
	if input.Tags != nil {
		updates["tags"] = pq.StringArray(input.Tags)
	}
	if len(updates) == 0 {
		return note, nil
	}

	if err := s.repo.Update(ctx, note.ID, updates); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "updating note")
	}
	updated, err := s.repo.GetByID(ctx, note.ID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "reloading note")
	}
	return updated, nil
}

func (s *service) PublishNote(ctx context.Context, noteID, actorID uuid.UUID) (*models.Note, error) {
	note, err := s.ownedNote(ctx, noteID, actorID)
	if err != nil {
		return nil, err
	}
	if note.Status == enums.NoteStatusActive {
		return note, nil
	}
	if note.Status != enums.NoteStatusDraft {
		return nil, errors.New(errors.CodeStateConflict, fmt.Sprintf("cannot publish a %s note", note.Status))
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, note.ID, map[string]any{"status": enums.NoteStatusActive}); err != nil {
			return err
		}
		if s.events != nil {
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.OutboxEventNotePublished,
				AggregateType: enums.OutboxAggregateNote,
				AggregateID:   note.ID,
				Actor:         &outbox.ActorRef{UserID: actorID},
				Data: map[string]any{
					"note_id":     note.ID,
					"title":       note.Title,
					"price_cents": note.PriceCents,
				},
				Version: 1,
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "publishing note")
	}

	note.Status = enums.NoteStatusActive
	return note, nil
}

func (s *service) DeleteNote(ctx context.Context, noteID, actorID uuid.UUID) error {
	note, err := s.ownedNote(ctx, noteID, actorID)
	if err != nil {
		return err
	}
	if note.IsDeleted {
		return nil
	}
	if err := s.repo.Update(ctx, note.ID, map[string]any{"is_deleted": true}); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "deleting note")
	}
	return nil
}

// GetNoteDetail returns the note with either the full page set or the
// preview slice, depending on the viewer's entitlement. Views are counted on
// every successful read.
func (s *service) GetNoteDetail(ctx context.Context, noteID uuid.UUID, viewerID *uuid.UUID) (*NoteDetail, error) {
	if noteID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "note id is required")
	}
	note, err := s.repo.GetByID(ctx, noteID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "note not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading note")
	}
	if note.IsDeleted {
		return nil, errors.New(errors.CodeNotFound, "note not found")
	}
	isOwner := viewerID != nil && *viewerID == note.CreatorID
	if note.Status != enums.NoteStatusActive && !isOwner {
		return nil, errors.New(errors.CodeNotFound, "note not found")
	}

	pages, err := note.DecodePages()
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "decoding pages")
	}

	hasAccess := isOwner
	if !hasAccess {
		hasAccess, err = s.access.CanAccessContent(ctx, viewerID, note)
		if err != nil {
			return nil, err
		}
	}

	visible := pages
	if !hasAccess {
		cut := note.PreviewPages
		if cut > len(pages) {
			cut = len(pages)
		}
		visible = pages[:cut]
	}

	if err := s.repo.IncrementViews(ctx, note.ID); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting view")
	}

	return &NoteDetail{
		Note:       note,
		Pages:      visible,
		HasAccess:  hasAccess,
		TotalPages: len(pages),
	}, nil
}

func (s *service) Marketplace(ctx context.Context, input MarketplaceInput) (*pagination.Page[models.Note], error) {
	sort := input.Sort
	if sort == "" {
		sort = SortNewest
	}
	if !sort.IsValid() {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("invalid sort %q", input.Sort))
	}
	if input.MinPriceCents != nil && *input.MinPriceCents < 0 {
		return nil, errors.New(errors.CodeValidation, "min price must not be negative")
	}
	if input.MaxPriceCents != nil && *input.MaxPriceCents < 0 {
		return nil, errors.New(errors.CodeValidation, "max price must not be negative")
	}

	cursor, err := pagination.ParseCursor(input.Page.Cursor)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Page.Limit)
	filter := MarketplaceFilter{
		Subject:       input.Subject,
		Query:         input.Query,
		FreeOnly:      input.FreeOnly,
		MinPriceCents: input.MinPriceCents,
		MaxPriceCents: input.MaxPriceCents,
		Sort:          sort,
		Limit:         limit + 1,
	}
	// The keyset cursor only composes with the newest-first order.
	if cursor != nil && sort == SortNewest {
		filter.Before = cursor.CreatedAt
		filter.BeforeID = cursor.ID
	}

	rows, err := s.repo.ListMarketplace(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing marketplace")
	}

	page := &pagination.Page[models.Note]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		if sort == SortNewest {
			last := page.Items[limit-1]
			page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
				CreatedAt: last.CreatedAt,
				ID:        last.ID,
			})
		}
	}
	return page, nil
}

func (s *service) ListMine(ctx context.Context, creatorID uuid.UUID) ([]models.Note, error) {
	if creatorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "creator id is required")
	}
	rows, err := s.repo.ListByCreator(ctx, creatorID, false)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing creator notes")
	}
	return rows, nil
}

func (s *service) ownedNote(ctx context.Context, noteID, actorID uuid.UUID) (*models.Note, error) {
	if noteID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "note id is required")
	}
	if actorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "actor id is required")
	}
	note, err := s.repo.GetByID(ctx, noteID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "note not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading note")
	}
	if note.IsDeleted {
		return nil, errors.New(errors.CodeNotFound, "note not found")
	}
	if note.CreatorID != actorID {
		return nil, errors.New(errors.CodeForbidden, "not the note owner")
	}
	return note, nil
}

func validateContent(title, subject, description string, pages []models.NotePage, priceCents int64) error {
	if strings.TrimSpace(title) == "" {
		return errors.New(errors.CodeValidation, "title is required")
	}
	if strings.TrimSpace(subject) == "" {
		return errors.New(errors.CodeValidation, "subject is required")
	}
	if strings.TrimSpace(description) == "" {
		return errors.New(errors.CodeValidation, "description is required")
	}
	if priceCents < 0 {
		return errors.New(errors.CodeValidation, "price must not be negative")
	}
	return validatePages(pages)
}

func validatePages(pages []models.NotePage) error {
	if len(pages) == 0 {
		return errors.New(errors.CodeValidation, "at least one page is required")
	}
	for i, page := range pages {
		if page.PageNumber != i+1 {
			return errors.New(errors.CodeValidation, fmt.Sprintf("page %d has number %d; pages must be sequential from 1", i+1, page.PageNumber))
		}
		if strings.TrimSpace(page.Content) == "" {
			return errors.New(errors.CodeValidation, fmt.Sprintf("page %d has no content", page.PageNumber))
		}
	}
	return nil
}
