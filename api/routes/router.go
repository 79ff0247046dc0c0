package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/notemarket/backend/api/controllers"
	"github.com/notemarket/backend/api/middleware"
	adminsvc "github.com/notemarket/backend/internal/admin"
	authsvc "github.com/notemarket/backend/internal/auth"
	forumsvc "github.com/notemarket/backend/internal/forum"
	notessvc "github.com/notemarket/backend/internal/notes"
	purchasesvc "github.com/notemarket/backend/internal/purchases"
	reviewsvc "github.com/notemarket/backend/internal/reviews"
	studyaidssvc "github.com/notemarket/backend/internal/studyaids"
	subssvc "github.com/notemarket/backend/internal/subscriptions"
	tutoringsvc "github.com/notemarket/backend/internal/tutoring"
	userssvc "github.com/notemarket/backend/internal/users"
	walletsvc "github.com/notemarket/backend/internal/wallet"
	"github.com/notemarket/backend/pkg/auth/session"
	"github.com/notemarket/backend/pkg/config"
	"github.com/notemarket/backend/pkg/db"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/logger"
	"github.com/notemarket/backend/pkg/redis"
)

// Services bundles everything the router mounts.
type Services struct {
	Auth          authsvc.Service
	Users         userssvc.Service
	Notes         notessvc.Service
	Purchases     purchasesvc.Service
	Wallet        walletsvc.Service
	Subscriptions subssvc.Service
	StudyAids     studyaidssvc.Service
	Tutoring      tutoringsvc.Service
	Reviews       reviewsvc.Service
	Forum         forumsvc.Service
	Admin         adminsvc.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	svcs Services,
	metricsRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if metricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegister(svcs.Auth, logg))
		r.Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(svcs.Auth, cfg.JWT, logg))
	})

	// Public catalog. A token is honored when present so buyers see their
	// own entitlements, but nothing here requires one.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, sessions, logg))
		r.Get("/api/v1/marketplace", controllers.Marketplace(svcs.Notes, logg))
		r.Get("/api/v1/notes/{noteId}", controllers.NoteDetail(svcs.Notes, logg))
		r.Get("/api/v1/notes/{noteId}/reviews", controllers.ReviewList(svcs.Reviews, logg))
		r.Get("/api/v1/forums", controllers.ForumList(svcs.Forum, logg))
		r.Get("/api/v1/forums/{forumId}", controllers.ForumGet(svcs.Forum, logg))
		r.Get("/api/v1/forums/{forumId}/threads", controllers.ForumThreads(svcs.Forum, logg))
		r.Get("/api/v1/forums/threads/{threadId}", controllers.ForumThreadGet(svcs.Forum, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", controllers.UserProfile(svcs.Users, logg))
			r.Patch("/", controllers.UserUpdateProfile(svcs.Users, logg))
			r.Post("/become-notemaker", controllers.UserBecomeNoteMaker(svcs.Users, logg))
		})

		maker := middleware.RequireRole(logg, string(enums.UserRoleNoteMaker), string(enums.UserRoleAdmin))

		r.Route("/notes", func(r chi.Router) {
			r.With(maker).Post("/", controllers.NoteCreate(svcs.Notes, logg))
			r.With(maker).Get("/mine", controllers.NoteListMine(svcs.Notes, logg))
			r.Route("/{noteId}", func(r chi.Router) {
				r.With(maker).Patch("/", controllers.NoteUpdate(svcs.Notes, logg))
				r.With(maker).Delete("/", controllers.NoteDelete(svcs.Notes, logg))
				r.With(maker).Post("/publish", controllers.NotePublish(svcs.Notes, logg))
				r.Post("/purchase", controllers.PurchaseNote(svcs.Purchases, logg))
				r.Post("/open", controllers.PurchaseOpen(svcs.Purchases, logg))
				r.Post("/annotations", controllers.PurchaseAnnotate(svcs.Purchases, logg))
				r.Post("/comments", controllers.PurchaseComment(svcs.Purchases, logg))
				r.Post("/reviews", controllers.ReviewSubmit(svcs.Reviews, logg))
				r.Patch("/reviews", controllers.ReviewUpdate(svcs.Reviews, logg))
				r.Post("/study-aids/{kind}", controllers.StudyAidGenerate(svcs.StudyAids, logg))
			})
		})

		r.Get("/purchases", controllers.PurchaseList(svcs.Purchases, logg))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletSummary(svcs.Wallet, logg))
			r.Post("/top-up", controllers.WalletTopUp(svcs.Wallet, logg))
			r.Get("/transactions", controllers.WalletTransactions(svcs.Wallet, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", controllers.SubscriptionPurchase(svcs.Subscriptions, logg))
			r.Get("/status", controllers.SubscriptionStatus(svcs.Subscriptions, logg))
		})

		r.Route("/forums", func(r chi.Router) {
			r.Post("/{forumId}/threads", controllers.ForumThreadCreate(svcs.Forum, logg))
			r.Post("/threads/{threadId}/replies", controllers.ForumReplyCreate(svcs.Forum, logg))
			r.Post("/threads/{threadId}/like", controllers.ForumThreadLike(svcs.Forum, logg))
			r.Post("/replies/{replyId}/like", controllers.ForumReplyLike(svcs.Forum, logg))
		})

		admin := middleware.RequireRole(logg, string(enums.UserRoleAdmin))
		r.Route("/admin", func(r chi.Router) {
			r.Use(admin)
			r.Get("/review-queue", controllers.AdminReviewQueue(svcs.Admin, logg))
			r.Get("/stats", controllers.AdminStats(svcs.Admin, logg))
			r.Post("/notes/{noteId}/approve", controllers.AdminNoteApprove(svcs.Admin, logg))
			r.Post("/notes/{noteId}/reject", controllers.AdminNoteReject(svcs.Admin, logg))
		})

		r.Route("/tutoring", func(r chi.Router) {
			r.Post("/", controllers.TutoringRequest(svcs.Tutoring, logg))
			r.Get("/open", controllers.TutoringListOpen(svcs.Tutoring, logg))
			r.Get("/mine", controllers.TutoringListMine(svcs.Tutoring, logg))
			r.Route("/{sessionId}", func(r chi.Router) {
				r.Post("/accept", controllers.TutoringAccept(svcs.Tutoring, logg))
				r.Post("/complete", controllers.TutoringComplete(svcs.Tutoring, logg))
				r.Post("/cancel", controllers.TutoringCancel(svcs.Tutoring, logg))
			})
		})
	})

	return r
}
