package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kaung2240/VoteX/controllers"
	"github.com/Kaung2240/VoteX/middleware"
)

// SetupRouter mounts every API route on a new engine.
func SetupRouter(h *controllers.Handler) *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(h.Cfg.TrustedProxies); err != nil {
		h.Logger.Error().Err(err).Msg("invalid trusted proxies, trusting none")
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(h.Logger),
		middleware.Metrics(),
		cors.New(cors.Config{
			AllowOrigins:     h.Cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposeHeaders:    []string{"Retry-After", "X-Request-ID", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := h.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := middleware.JWTAuthMiddleware(h.Issuer)
	optionalAuth := middleware.OptionalJWTAuth(h.Issuer)
	// One bucket per caller across the event resource, votes included.
	throttle := middleware.NewThrottle(h.Cfg.VoteRate, h.Cfg.AnonVoteRate).Middleware()

	api := router.Group("/api")

	// Auth routes
	api.POST("/token/", h.Login)
	api.POST("/token/refresh/", h.RefreshToken)
	api.POST("/auth/register/", h.RegisterUser)
	api.POST("/auth/reset-password/", h.RequestPasswordReset)
	api.POST("/auth/password/reset/", h.RequestPasswordReset)
	api.POST("/auth/password/reset/validate_token/", h.ValidateResetToken)
	api.POST("/auth/password/reset/confirm/", h.ConfirmPasswordReset)

	// Public reads; a token, when present, personalizes the response
	public := api.Group("/")
	public.Use(optionalAuth)
	public.GET("/categories/", h.ListCategories)
	public.GET("/events/", throttle, h.ListEvents)
	public.GET("/events/:id/", throttle, h.GetEvent)
	public.GET("/events/:id/results/", h.GetResults)
	public.GET("/events/:id/results/stream/", h.StreamResults)
	public.GET("/events/:id/results/export/", h.ExportResults)
	public.POST("/events/:id/receipt/verify/", h.VerifyReceipt)
	public.GET("/events/:id/candidates/", h.ListCandidates)
	public.GET("/events/:id/candidates/:cid/", h.GetCandidate)
	public.GET("/events/:id/comments/", h.ListComments)
	public.GET("/events/:id/comments/:cid/", h.GetComment)

	// Protected routes
	protected := api.Group("/")
	protected.Use(requireAuth)
	protected.POST("/events/", throttle, h.CreateEvent)
	protected.PUT("/events/:id/", throttle, h.UpdateEvent)
	protected.PATCH("/events/:id/", throttle, h.UpdateEvent)
	protected.DELETE("/events/:id/", throttle, h.DeleteEvent)
	protected.POST("/events/:id/favorite/", throttle, h.FavoriteEvent)
	protected.DELETE("/events/:id/favorite/", throttle, h.FavoriteEvent)
	protected.POST("/events/:id/vote/", throttle, h.CastVote)

	protected.PUT("/events/:id/candidates/:cid/", h.UpdateCandidate)
	protected.PATCH("/events/:id/candidates/:cid/", h.UpdateCandidate)
	protected.DELETE("/events/:id/candidates/:cid/", h.DeleteCandidate)

	protected.POST("/events/:id/comments/", h.CreateComment)
	protected.PUT("/events/:id/comments/:cid/", h.UpdateComment)
	protected.PATCH("/events/:id/comments/:cid/", h.UpdateComment)
	protected.DELETE("/events/:id/comments/:cid/", h.DeleteComment)

	protected.GET("/users/me/", h.GetMe)
	protected.PATCH("/users/me/", h.UpdateMe)
	protected.GET("/users/events/", h.MyEvents)
	protected.GET("/users/favorites/", h.MyFavorites)
	protected.PATCH("/user/profile/", h.UpdateProfile)

	protected.GET("/notifications/", h.ListNotifications)
	protected.POST("/notifications/mark_all_read/", h.MarkAllNotificationsRead)
	protected.GET("/notifications/:id/", h.GetNotification)
	protected.PATCH("/notifications/:id/", h.UpdateNotification)
	protected.DELETE("/notifications/:id/", h.DeleteNotification)

	protected.GET("/reports/", h.ListReports)
	protected.POST("/reports/", h.CreateReport)
	protected.GET("/reports/:id/", h.GetReport)
	protected.PATCH("/reports/:id/", h.UpdateReport)
	protected.DELETE("/reports/:id/", h.DeleteReport)

	protected.GET("/activity/", h.ListActivity)

	return router
}
