package controllers

import (
	"net/http"
	"strings"

	"github.com/notemarket/backend/api/responses"
	"github.com/notemarket/backend/api/validators"
	forumsvc "github.com/notemarket/backend/internal/forum"
	"github.com/notemarket/backend/pkg/logger"
)

type createThreadRequest struct {
	Title   string   `json:"title" validate:"required,min=1,max=200"`
	Content string   `json:"content" validate:"required,min=1,max=20000"`
	Tags    []string `json:"tags,omitempty" validate:"omitempty,dive,min=1"`
}

type replyRequest struct {
	Content string `json:"content" validate:"required,min=1,max=20000"`
}

// ForumList returns every board with its activity counters.
func ForumList(svc forumsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forums, err := svc.ListForums(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"forums": forums})
	}
}

// ForumGet returns one board.
func ForumGet(svc forumsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forumID, err := pathUUID(r, "forumId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		forum, err := svc.GetForum(r.Context(), forumID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, forum)
	}
}

// ForumThreads lists a board's threads. sort takes recent, popular, or
// unanswered; q filters on title and content.
func ForumThreads(svc forumsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forumID, err := pathUUID(r, "forumId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sort := forumsvc.ThreadSort(strings.TrimSpace(r.URL.Query().Get("sort")))
		if sort == "" {
			sort = forumsvc.SortRecent
		}
		threads, err := svc.ListThreads(r.Context(), forumsvc.ListThreadsInput{
			ForumID: forumID,
			Sort:    sort,
			Query:   r.URL.Query().Get("q"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"threads": threads})
	}
}

// ForumThreadCreate opens a new thread on a board.
func ForumThreadCreate(svc forumsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		forumID, err := pathUUID(r, "forumId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createThreadRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		thread, err := svc.CreateThread(r.Context(), forumsvc.CreateThreadInput{
			ForumID:  forumID,
			AuthorID: uid,
			Title:    payload.Title,
			Content:  payload.Content,
			Tags:     payload.Tags,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, thread)
	}
}

// ForumThreadGet returns a thread with its replies and counts the view.
func ForumThreadGet(svc forumsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		threadID, err := pathUUID(r, "threadId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		thread, err := svc.GetThread(r.Context(), threadID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, thread)
	}
}

// ForumReplyCreate appends a reply to a thread.
func ForumReplyCreate(svc forumsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		threadID, err := pathUUID(r, "threadId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload replyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reply, err := svc.AddReply(r.Context(), forumsvc.AddReplyInput{
			ThreadID: threadID,
			AuthorID: uid,
			Content:  payload.Content,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reply)
	}
}

// ForumThreadLike toggles the caller's like on a thread.
func ForumThreadLike(svc forumsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		threadID, err := pathUUID(r, "threadId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ToggleThreadLike(r.Context(), threadID, uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ForumReplyLike toggles the caller's like on a reply.
func ForumReplyLike(svc forumsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		replyID, err := pathUUID(r, "replyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ToggleReplyLike(r.Context(), replyID, uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
