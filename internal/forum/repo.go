package forum

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/db/models"
)

// ThreadSort orders a forum's thread listing.
type ThreadSort string

const (
	SortRecent     ThreadSort = "recent"
	SortPopular    ThreadSort = "popular"
	SortUnanswered ThreadSort = "unanswered"
)

// ThreadFilter narrows a thread listing. Query matches title or content,
// case-insensitive.
type ThreadFilter struct {
	ForumID uuid.UUID
	Sort    ThreadSort
	Query   string
	Limit   int
}

// ThreadListRow is one row of a thread listing with its author and reply
// count resolved.
type ThreadListRow struct {
	ID             uuid.UUID `gorm:"column:id"`
	Title          string    `gorm:"column:title"`
	AuthorID       uuid.UUID `gorm:"column:author_id"`
	AuthorName     string    `gorm:"column:author_name"`
	ReplyCount     int64     `gorm:"column:reply_count"`
	Views          int64     `gorm:"column:views"`
	IsPinned       bool      `gorm:"column:is_pinned"`
	LastActivityAt time.Time `gorm:"column:last_activity_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

// ReplyListRow is one reply with its author and like count resolved.
type ReplyListRow struct {
	ID         uuid.UUID `gorm:"column:id"`
	Content    string    `gorm:"column:content"`
	AuthorID   uuid.UUID `gorm:"column:author_id"`
	AuthorName string    `gorm:"column:author_name"`
	LikeCount  int64     `gorm:"column:like_count"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// Repository manages persistence for forums, threads, replies, and likes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListForums(ctx context.Context) ([]models.Forum, error)
	GetForum(ctx context.Context, forumID uuid.UUID) (*models.Forum, error)
	ThreadCounts(ctx context.Context) (map[uuid.UUID]int64, error)
	MemberCounts(ctx context.Context) (map[uuid.UUID]int64, error)
	CountThreads(ctx context.Context, forumID uuid.UUID) (int64, error)
	CountMembers(ctx context.Context, forumID uuid.UUID) (int64, error)
	AddMember(ctx context.Context, forumID, userID uuid.UUID) error
	CreateThread(ctx context.Context, thread *models.ForumThread) error
	GetThread(ctx context.Context, threadID uuid.UUID) (*models.ForumThread, error)
	ListThreads(ctx context.Context, filter ThreadFilter) ([]ThreadListRow, error)
	IncrementThreadViews(ctx context.Context, threadID uuid.UUID) error
	TouchThreadActivity(ctx context.Context, threadID uuid.UUID, at time.Time) error
	CreateReply(ctx context.Context, reply *models.ForumReply) error
	GetReply(ctx context.Context, replyID uuid.UUID) (*models.ForumReply, error)
	ListReplies(ctx context.Context, threadID uuid.UUID) ([]ReplyListRow, error)
	CountThreadLikes(ctx context.Context, threadID uuid.UUID) (int64, error)
	ToggleThreadLike(ctx context.Context, threadID, userID uuid.UUID) (bool, error)
	ToggleReplyLike(ctx context.Context, replyID, userID uuid.UUID) (bool, error)
	CountReplyLikes(ctx context.Context, replyID uuid.UUID) (int64, error)
	AuthorName(ctx context.Context, userID uuid.UUID) (string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a forum repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListForums(ctx context.Context) ([]models.Forum, error) {
	var forums []models.Forum
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&forums).Error; err != nil {
		return nil, err
	}
	return forums, nil
}

func (r *repository) GetForum(ctx context.Context, forumID uuid.UUID) (*models.Forum, error) {
	var forum models.Forum
	if err := r.db.WithContext(ctx).First(&forum, "id = ?", forumID).Error; err != nil {
		return nil, err
	}
	return &forum, nil
}

type idCount struct {
	ID    uuid.UUID `gorm:"column:group_id"`
	Count int64     `gorm:"column:n"`
}

func (r *repository) ThreadCounts(ctx context.Context) (map[uuid.UUID]int64, error) {
	return r.groupCounts(ctx, &models.ForumThread{}, "forum_id")
}

func (r *repository) MemberCounts(ctx context.Context) (map[uuid.UUID]int64, error) {
	return r.groupCounts(ctx, &models.ForumMember{}, "forum_id")
}

func (r *repository) groupCounts(ctx context.Context, model any, column string) (map[uuid.UUID]int64, error) {
	var rows []idCount
	err := r.db.WithContext(ctx).Model(model).
		Select(column + " AS group_id, COUNT(*) AS n").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.ID] = row.Count
	}
	return counts, nil
}

func (r *repository) CountThreads(ctx context.Context, forumID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ForumThread{}).
		Where("forum_id = ?", forumID).Count(&n).Error
	return n, err
}

func (r *repository) CountMembers(ctx context.Context, forumID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ForumMember{}).
		Where("forum_id = ?", forumID).Count(&n).Error
	return n, err
}

// AddMember joins the user to the forum; joining twice is a no-op.
func (r *repository) AddMember(ctx context.Context, forumID, userID uuid.UUID) error {
	var existing int64
	err := r.db.WithContext(ctx).Model(&models.ForumMember{}).
		Where("forum_id = ? AND user_id = ?", forumID, userID).
		Count(&existing).Error
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&models.ForumMember{ForumID: forumID, UserID: userID}).Error
}

func (r *repository) CreateThread(ctx context.Context, thread *models.ForumThread) error {
	return r.db.WithContext(ctx).Create(thread).Error
}

func (r *repository) GetThread(ctx context.Context, threadID uuid.UUID) (*models.ForumThread, error) {
	var thread models.ForumThread
	if err := r.db.WithContext(ctx).First(&thread, "id = ?", threadID).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *repository) ListThreads(ctx context.Context, filter ThreadFilter) ([]ThreadListRow, error) {
	query := r.db.WithContext(ctx).Model(&models.ForumThread{}).
		Select(`forum_threads.id, forum_threads.title, forum_threads.author_id,
			users.name AS author_name,
			(SELECT COUNT(*) FROM forum_replies WHERE forum_replies.thread_id = forum_threads.id) AS reply_count,
			forum_threads.views, forum_threads.is_pinned,
			forum_threads.last_activity_at, forum_threads.created_at`).
		Joins("JOIN users ON users.id = forum_threads.author_id").
		Where("forum_threads.forum_id = ?", filter.ForumID)

	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(forum_threads.title) LIKE ? OR LOWER(forum_threads.content) LIKE ?", pattern, pattern)
	}

	switch filter.Sort {
	case SortPopular:
		query = query.Order("forum_threads.views DESC").Order("forum_threads.id ASC")
	case SortUnanswered:
		query = query.Order("reply_count ASC").Order("forum_threads.created_at DESC")
	default:
		query = query.Order("forum_threads.last_activity_at DESC").Order("forum_threads.id ASC")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []ThreadListRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) IncrementThreadViews(ctx context.Context, threadID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.ForumThread{}).
		Where("id = ?", threadID).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

func (r *repository) TouchThreadActivity(ctx context.Context, threadID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.ForumThread{}).
		Where("id = ?", threadID).
		UpdateColumn("last_activity_at", at).Error
}

func (r *repository) CreateReply(ctx context.Context, reply *models.ForumReply) error {
	return r.db.WithContext(ctx).Create(reply).Error
}

func (r *repository) GetReply(ctx context.Context, replyID uuid.UUID) (*models.ForumReply, error) {
	var reply models.ForumReply
	if err := r.db.WithContext(ctx).First(&reply, "id = ?", replyID).Error; err != nil {
		return nil, err
	}
	return &reply, nil
}

func (r *repository) ListReplies(ctx context.Context, threadID uuid.UUID) ([]ReplyListRow, error) {
	var rows []ReplyListRow
	err := r.db.WithContext(ctx).Model(&models.ForumReply{}).
		Select(`forum_replies.id, forum_replies.content, forum_replies.author_id,
			users.name AS author_name,
			(SELECT COUNT(*) FROM forum_reply_likes WHERE forum_reply_likes.reply_id = forum_replies.id) AS like_count,
			forum_replies.created_at`).
		Joins("JOIN users ON users.id = forum_replies.author_id").
		Where("forum_replies.thread_id = ?", threadID).
		Order("forum_replies.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountThreadLikes(ctx context.Context, threadID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ForumThreadLike{}).
		Where("thread_id = ?", threadID).Count(&n).Error
	return n, err
}

func (r *repository) CountReplyLikes(ctx context.Context, replyID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ForumReplyLike{}).
		Where("reply_id = ?", replyID).Count(&n).Error
	return n, err
}

func (r *repository) AuthorName(ctx context.Context, userID uuid.UUID) (string, error) {
	var name string
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Pluck("name", &name).Error
	return name, err
}

// ToggleThreadLike removes the user's like when present, adds it otherwise.
// The bool result reports whether the like is set after the call.
func (r *repository) ToggleThreadLike(ctx context.Context, threadID, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Delete(&models.ForumThreadLike{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	if err := r.db.WithContext(ctx).Create(&models.ForumThreadLike{ThreadID: threadID, UserID: userID}).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *repository) ToggleReplyLike(ctx context.Context, replyID, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("reply_id = ? AND user_id = ?", replyID, userID).
		Delete(&models.ForumReplyLike{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	if err := r.db.WithContext(ctx).Create(&models.ForumReplyLike{ReplyID: replyID, UserID: userID}).Error; err != nil {
		return false, err
	}
	return true, nil
}
