package forum

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/notemarket/backend/pkg/db"
	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/errors"
)

// Service exposes the discussion boards: forums, their threads, replies,
// and like toggles.
type Service interface {
	ListForums(ctx context.Context) ([]ForumSummary, error)
	GetForum(ctx context.Context, forumID uuid.UUID) (*ForumSummary, error)
	ListThreads(ctx context.Context, input ListThreadsInput) ([]ThreadListRow, error)
	CreateThread(ctx context.Context, input CreateThreadInput) (*models.ForumThread, error)
	GetThread(ctx context.Context, threadID uuid.UUID) (*ThreadDetail, error)
	AddReply(ctx context.Context, input AddReplyInput) (*models.ForumReply, error)
	ToggleThreadLike(ctx context.Context, threadID, userID uuid.UUID) (*LikeResult, error)
	ToggleReplyLike(ctx context.Context, replyID, userID uuid.UUID) (*LikeResult, error)
}

// ForumSummary is a forum with its activity counters resolved.
type ForumSummary struct {
	Forum       models.Forum `json:"forum"`
	ThreadCount int64        `json:"thread_count"`
	MemberCount int64        `json:"member_count"`
}

// ListThreadsInput narrows a forum's thread listing.
type ListThreadsInput struct {
	ForumID uuid.UUID
	Sort    ThreadSort
	Query   string
	Limit   int
}

// CreateThreadInput opens a new thread; the author joins the forum as a
// side effect.
type CreateThreadInput struct {
	ForumID  uuid.UUID
	AuthorID uuid.UUID
	Title    string
	Content  string
	Tags     []string
}

// AddReplyInput appends a reply and bumps the thread's activity clock.
type AddReplyInput struct {
	ThreadID uuid.UUID
	AuthorID uuid.UUID
	Content  string
}

// ThreadDetail is a thread with its author, like count, and replies.
type ThreadDetail struct {
	Thread     models.ForumThread `json:"thread"`
	AuthorName string             `json:"author_name"`
	LikeCount  int64              `json:"like_count"`
	Replies    []ReplyListRow     `json:"replies"`
}

// LikeResult reports the state of a like after a toggle.
type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

type service struct {
	repo Repository
	db   *dbpkg.Client
	now  func() time.Time
}

// NewService wires the forum service.
func NewService(repo Repository, client *dbpkg.Client) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("forum repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, db: client, now: time.Now}, nil
}

func (s *service) ListForums(ctx context.Context) ([]ForumSummary, error) {
	forums, err := s.repo.ListForums(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing forums")
	}
	threadCounts, err := s.repo.ThreadCounts(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting threads")
	}
	memberCounts, err := s.repo.MemberCounts(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting members")
	}

	summaries := make([]ForumSummary, 0, len(forums))
	for _, forum := range forums {
		summaries = append(summaries, ForumSummary{
			Forum:       forum,
			ThreadCount: threadCounts[forum.ID],
			MemberCount: memberCounts[forum.ID],
		})
	}
	return summaries, nil
}

func (s *service) GetForum(ctx context.Context, forumID uuid.UUID) (*ForumSummary, error) {
	if forumID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "forum id is required")
	}
	forum, err := s.repo.GetForum(ctx, forumID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "forum not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading forum")
	}
	threads, err := s.repo.CountThreads(ctx, forumID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting threads")
	}
	members, err := s.repo.CountMembers(ctx, forumID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting members")
	}
	return &ForumSummary{Forum: *forum, ThreadCount: threads, MemberCount: members}, nil
}

func (s *service) ListThreads(ctx context.Context, input ListThreadsInput) ([]ThreadListRow, error) {
	if input.ForumID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "forum id is required")
	}
	if _, err := s.repo.GetForum(ctx, input.ForumID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "forum not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading forum")
	}
	rows, err := s.repo.ListThreads(ctx, ThreadFilter{
		ForumID: input.ForumID,
		Sort:    input.Sort,
		Query:   input.Query,
		Limit:   input.Limit,
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing threads")
	}
	return rows, nil
}

func (s *service) CreateThread(ctx context.Context, input CreateThreadInput) (*models.ForumThread, error) {
	if input.ForumID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "forum id is required")
	}
	if input.AuthorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "author id is required")
	}
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" || content == "" {
		return nil, errors.New(errors.CodeValidation, "title and content are required")
	}

	if _, err := s.repo.GetForum(ctx, input.ForumID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "forum not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading forum")
	}

	thread := &models.ForumThread{
		ForumID:        input.ForumID,
		AuthorID:       input.AuthorID,
		Title:          title,
		Content:        content,
		Tags:           input.Tags,
		LastActivityAt: s.now().UTC(),
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateThread(ctx, thread); err != nil {
			return err
		}
		return repo.AddMember(ctx, input.ForumID, input.AuthorID)
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "creating thread")
	}
	return thread, nil
}

// GetThread counts the view before loading, so the returned view counter
// already includes this read.
func (s *service) GetThread(ctx context.Context, threadID uuid.UUID) (*ThreadDetail, error) {
	if threadID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "thread id is required")
	}
	if err := s.repo.IncrementThreadViews(ctx, threadID); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting view")
	}
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "thread not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading thread")
	}
	likes, err := s.repo.CountThreadLikes(ctx, threadID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting likes")
	}
	replies, err := s.repo.ListReplies(ctx, threadID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing replies")
	}
	authorName, err := s.repo.AuthorName(ctx, thread.AuthorID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "resolving author")
	}
	return &ThreadDetail{
		Thread:     *thread,
		AuthorName: authorName,
		LikeCount:  likes,
		Replies:    replies,
	}, nil
}

func (s *service) AddReply(ctx context.Context, input AddReplyInput) (*models.ForumReply, error) {
	if input.ThreadID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "thread id is required")
	}
	if input.AuthorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "author id is required")
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, errors.New(errors.CodeValidation, "reply content is required")
	}

	if _, err := s.repo.GetThread(ctx, input.ThreadID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "thread not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading thread")
	}

	reply := &models.ForumReply{
		ThreadID: input.ThreadID,
		AuthorID: input.AuthorID,
		Content:  content,
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateReply(ctx, reply); err != nil {
			return err
		}
		return repo.TouchThreadActivity(ctx, input.ThreadID, s.now().UTC())
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "posting reply")
	}
	return reply, nil
}

func (s *service) ToggleThreadLike(ctx context.Context, threadID, userID uuid.UUID) (*LikeResult, error) {
	if threadID == uuid.Nil || userID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "thread id and user id are required")
	}
	if _, err := s.repo.GetThread(ctx, threadID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "thread not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading thread")
	}
	liked, err := s.repo.ToggleThreadLike(ctx, threadID, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "toggling like")
	}
	count, err := s.repo.CountThreadLikes(ctx, threadID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting likes")
	}
	return &LikeResult{Liked: liked, LikeCount: count}, nil
}

func (s *service) ToggleReplyLike(ctx context.Context, replyID, userID uuid.UUID) (*LikeResult, error) {
	if replyID == uuid.Nil || userID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "reply id and user id are required")
	}
	if _, err := s.repo.GetReply(ctx, replyID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "reply not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading reply")
	}
	liked, err := s.repo.ToggleReplyLike(ctx, replyID, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "toggling like")
	}
	count, err := s.repo.CountReplyLikes(ctx, replyID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "counting likes")
	}
	return &LikeResult{Liked: liked, LikeCount: count}, nil
}
