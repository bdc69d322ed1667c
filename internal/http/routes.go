package http

import (
	"time"

	"github.com/labstack/echo/v4"

	"campus-errands.com/campus-errands/internal/auth"
	middleware "campus-errands.com/campus-errands/internal/http/middlewares"
)

func Register(e *echo.Echo, h *Handler, tokens *auth.TokenService, rateLimitPerMinute int) {
	e.Validator = NewRequestValidator()
	e.Use(middleware.RateLimiter(rateLimitPerMinute, time.Minute))

	e.POST("/auth/register", h.Register)
	e.POST("/auth/login", h.Login)

	api := e.Group("", auth.Middleware(tokens))

	api.POST("/errands", h.CreateErrand)
	api.GET("/errands", h.ListErrands)
	api.GET("/errands/:id", h.GetErrand)
	api.PATCH("/errands/:id", h.EditErrand)
	api.DELETE("/errands/:id", h.DeleteErrand)

	api.POST("/errands/:id/offers", h.SubmitOffer)
	api.GET("/errands/:id/offers", h.ListOffers)
	api.POST("/errands/:id/offers/:runnerId/accept", h.AcceptOffer)

	api.POST("/errands/:id/claim", h.ClaimErrand)
	api.POST("/errands/:id/unclaim", h.UnclaimErrand)
	api.POST("/errands/:id/complete", h.CompleteErrand)

	api.GET("/errands/:id/chat", h.ListMessages)
	api.POST("/errands/:id/chat", h.SendMessage)
	api.POST("/errands/:id/chat/delivered", h.MarkMessagesDelivered)
	api.POST("/errands/:id/chat/read", h.MarkMessagesRead)
	api.GET("/errands/:id/chat/unread", h.UnreadCount)
	api.POST("/errands/:id/chat/suggest", h.SuggestReplies)

	api.GET("/users/:id", h.GetUser)
	api.PATCH("/users/:id", h.UpdateProfile)
	api.POST("/users/:id/ratings", h.SubmitRating)

	api.POST("/refine/description", h.RefineDescription)
	api.POST("/media", h.UploadMedia)
}
