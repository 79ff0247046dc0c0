package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Forum is a named discussion board. Membership is implicit: posting a
// thread joins the author.
type Forum struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null;uniqueIndex:ux_forums_name"`
	Description string    `gorm:"column:description;not null"`
	Icon        string    `gorm:"column:icon;not null;default:''"`
	Color       string    `gorm:"column:color;not null;default:'blue'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (f *Forum) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// ForumMember records one user's membership in one forum.
type ForumMember struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ForumID uuid.UUID `gorm:"column:forum_id;type:uuid;not null;uniqueIndex:ux_forum_members_forum_user"`
	UserID  uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_forum_members_forum_user"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (m *ForumMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ForumThread is a top-level post. LastActivityAt moves forward on every
// reply and drives the default listing order.
type ForumThread struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ForumID  uuid.UUID `gorm:"column:forum_id;type:uuid;not null;index"`
	AuthorID uuid.UUID `gorm:"column:author_id;type:uuid;not null;index"`
	Title    string    `gorm:"column:title;not null"`
	Content  string    `gorm:"column:content;not null"`

	Tags     pq.StringArray `gorm:"column:tags;type:text[]"`
	IsPinned bool           `gorm:"column:is_pinned;not null;default:false"`
	Views    int64          `gorm:"column:views;not null;default:0"`

	LastActivityAt time.Time `gorm:"column:last_activity_at;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *ForumThread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.LastActivityAt.IsZero() {
		t.LastActivityAt = time.Now().UTC()
	}
	return nil
}

// ForumReply is one response inside a thread.
type ForumReply struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ThreadID uuid.UUID `gorm:"column:thread_id;type:uuid;not null;index"`
	AuthorID uuid.UUID `gorm:"column:author_id;type:uuid;not null"`
	Content  string    `gorm:"column:content;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (r *ForumReply) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ForumThreadLike marks one user's like on a thread; the unique index makes
// the like toggle idempotent under races.
type ForumThreadLike struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ThreadID uuid.UUID `gorm:"column:thread_id;type:uuid;not null;uniqueIndex:ux_forum_thread_likes_thread_user"`
	UserID   uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_forum_thread_likes_thread_user"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (l *ForumThreadLike) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// ForumReplyLike marks one user's like on a reply.
type ForumReplyLike struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ReplyID uuid.UUID `gorm:"column:reply_id;type:uuid;not null;uniqueIndex:ux_forum_reply_likes_reply_user"`
	UserID  uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_forum_reply_likes_reply_user"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (l *ForumReplyLike) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
