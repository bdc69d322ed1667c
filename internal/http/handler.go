package http

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"campus-errands.com/campus-errands/internal/auth"
	"campus-errands.com/campus-errands/internal/constants"
	apperrors "campus-errands.com/campus-errands/internal/errors"
	"campus-errands.com/campus-errands/internal/media"
	"campus-errands.com/campus-errands/internal/refine"
	repository "campus-errands.com/campus-errands/internal/repositories"
	"campus-errands.com/campus-errands/internal/services"
)

type Handler struct {
	auth       *auth.Service
	errands    *services.ErrandService
	offers     *services.OfferService
	completion *services.CompletionService
	chat       *services.ChatService
	users      *repository.UserRepository
	refiner    refine.Refiner
	media      media.Store
}

func NewHandler(
	authService *auth.Service,
	errands *services.ErrandService,
	offers *services.OfferService,
	completion *services.CompletionService,
	chat *services.ChatService,
	users *repository.UserRepository,
	refiner refine.Refiner,
	mediaStore media.Store,
) *Handler {
	return &Handler{
		auth:       authService,
		errands:    errands,
		offers:     offers,
		completion: completion,
		chat:       chat,
		users:      users,
		refiner:    refiner,
		media:      mediaStore,
	}
}

// domainError maps a service error onto the HTTP status the taxonomy assigns.
func domainError(err error) error {
	return echo.NewHTTPError(apperrors.StatusCode(err), err.Error())
}

// --- Auth ---

type registerRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,min=8"`
	DisplayName string   `json:"displayName" validate:"required"`
	Campuses    []string `json:"campuses"`
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.auth.Register(c.Request().Context(), auth.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Campuses:    req.Campuses,
	})
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	token, user, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  user,
	})
}

// --- Errand lifecycle ---

type createErrandRequest struct {
	Title                string     `json:"title" validate:"required"`
	Description          string     `json:"description" validate:"required"`
	Campus               string     `json:"campus" validate:"required"`
	PriceOffered         *float64   `json:"priceOffered" validate:"omitempty,gte=0"`
	Location             *string    `json:"location"`
	ExpectedCompletionAt *time.Time `json:"expectedCompletionAt"`
	Media                []string   `json:"media"`
}

func (h *Handler) CreateErrand(c echo.Context) error {
	var req createErrandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	errand, err := h.errands.Create(c.Request().Context(), auth.CallerID(c), services.CreateErrandInput{
		Title:                req.Title,
		Description:          req.Description,
		Campus:               req.Campus,
		PriceOffered:         req.PriceOffered,
		Location:             req.Location,
		ExpectedCompletionAt: req.ExpectedCompletionAt,
		Media:                req.Media,
	})
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, errand)
}

func (h *Handler) ListErrands(c echo.Context) error {
	q := repository.ErrandQuery{
		Status:        constants.ErrandStatus(c.QueryParam("status")),
		Campus:        c.QueryParam("campus"),
		RequesterID:   c.QueryParam("requester"),
		RunnerID:      c.QueryParam("runner"),
		CreatedAtDesc: c.QueryParam("order") == "desc",
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		q.Limit = limit
	}

	errands, err := h.errands.List(c.Request().Context(), q)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count":   len(errands),
		"errands": errands,
	})
}

func (h *Handler) GetErrand(c echo.Context) error {
	errand, err := h.errands.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, errand)
}

type editErrandRequest struct {
	Title                     *string    `json:"title"`
	Description               *string    `json:"description"`
	Campus                    *string    `json:"campus"`
	PriceOffered              *float64   `json:"priceOffered" validate:"omitempty,gte=0"`
	ClearPriceOffered         bool       `json:"clearPriceOffered"`
	Location                  *string    `json:"location"`
	ClearLocation             bool       `json:"clearLocation"`
	ExpectedCompletionAt      *time.Time `json:"expectedCompletionAt"`
	ClearExpectedCompletionAt bool       `json:"clearExpectedCompletionAt"`
	Media                     []string   `json:"media"`
}

func (h *Handler) EditErrand(c echo.Context) error {
	var req editErrandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	errand, err := h.errands.Edit(c.Request().Context(), c.Param("id"), auth.CallerID(c), services.ErrandPatch{
		Title:                     req.Title,
		Description:               req.Description,
		Campus:                    req.Campus,
		PriceOffered:              req.PriceOffered,
		ClearPriceOffered:         req.ClearPriceOffered,
		Location:                  req.Location,
		ClearLocation:             req.ClearLocation,
		ExpectedCompletionAt:      req.ExpectedCompletionAt,
		ClearExpectedCompletionAt: req.ClearExpectedCompletionAt,
		Media:                     req.Media,
	})
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, errand)
}

func (h *Handler) DeleteErrand(c echo.Context) error {
	if err := h.errands.Delete(c.Request().Context(), c.Param("id"), auth.CallerID(c)); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ClaimErrand(c echo.Context) error {
	errand, err := h.errands.Claim(c.Request().Context(), c.Param("id"), auth.CallerID(c))
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, errand)
}

func (h *Handler) UnclaimErrand(c echo.Context) error {
	errand, err := h.errands.Unclaim(c.Request().Context(), c.Param("id"), auth.CallerID(c))
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, errand)
}

// --- Offers ---

func (h *Handler) SubmitOffer(c echo.Context) error {
	if err := h.offers.Submit(c.Request().Context(), c.Param("id"), auth.CallerID(c)); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListOffers(c echo.Context) error {
	candidates, err := h.offers.List(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count":  len(candidates),
		"offers": candidates,
	})
}

func (h *Handler) AcceptOffer(c echo.Context) error {
	errand, err := h.offers.Accept(
		c.Request().Context(),
		c.Param("id"),
		auth.CallerID(c),
		c.Param("runnerId"),
	)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, errand)
}

// --- Completion & rating ---

// CompleteErrand resolves which side of the handshake the caller is on from
// the errand itself: the bound runner flips the runner flag, the requester
// flips the client flag.
func (h *Handler) CompleteErrand(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	caller := auth.CallerID(c)

	errand, err := h.errands.Get(ctx, id)
	if err != nil {
		return domainError(err)
	}

	var prompt *services.RatingPrompt
	switch {
	case errand.RunnerID != nil && *errand.RunnerID == caller:
		errand, prompt, err = h.completion.MarkRunnerComplete(ctx, id, caller)
	case errand.RequesterID == caller:
		errand, prompt, err = h.completion.MarkClientComplete(ctx, id, caller)
	default:
		err = apperrors.ErrForbidden
	}
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"errand":       errand,
		"finished":     errand.Finished(),
		"ratingPrompt": prompt,
	})
}

type submitRatingRequest struct {
	Role  string `json:"role" validate:"required"`
	Stars int    `json:"stars" validate:"required,min=1,max=5"`
}

func (h *Handler) SubmitRating(c echo.Context) error {
	var req submitRatingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := h.completion.SubmitRating(
		c.Request().Context(),
		c.Param("id"),
		constants.RatingRole(req.Role),
		req.Stars,
	)
	if err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetUser(c echo.Context) error {
	user, err := h.users.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":              user.ID,
		"displayName":     user.DisplayName,
		"photoUrl":        user.PhotoURL,
		"campuses":        user.Campuses,
		"requesterRating": user.RequesterRating(),
		"runnerRating":    user.RunnerRating(),
	})
}

type updateProfileRequest struct {
	DisplayName *string  `json:"displayName"`
	PhotoURL    *string  `json:"photoUrl"`
	Campuses    []string `json:"campuses"`
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	user, err := h.auth.UpdateProfile(c.Request().Context(), c.Param("id"), auth.CallerID(c), auth.ProfilePatch{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
		Campuses:    req.Campuses,
	})
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// --- Chat ---

type sendMessageRequest struct {
	Text  *string  `json:"text"`
	Media []string `json:"media"`
}

func (h *Handler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	msg, err := h.chat.Send(c.Request().Context(), c.Param("id"), auth.CallerID(c), req.Text, req.Media)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *Handler) ListMessages(c echo.Context) error {
	msgs, err := h.chat.Messages(c.Request().Context(), c.Param("id"), auth.CallerID(c))
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count":    len(msgs),
		"messages": msgs,
	})
}

func (h *Handler) MarkMessagesDelivered(c echo.Context) error {
	if err := h.chat.MarkDelivered(c.Request().Context(), c.Param("id"), auth.CallerID(c)); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkMessagesRead(c echo.Context) error {
	if err := h.chat.MarkRead(c.Request().Context(), c.Param("id"), auth.CallerID(c)); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UnreadCount(c echo.Context) error {
	count, err := h.chat.UnreadCount(c.Request().Context(), c.Param("id"), auth.CallerID(c))
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": count})
}

// --- Collaborators ---

type refineRequest struct {
	Text string `json:"text" validate:"required"`
}

// RefineDescription rewrites free text through the refinement collaborator.
// Collaborator failures degrade to the original text instead of erroring.
func (h *Handler) RefineDescription(c echo.Context) error {
	var req refineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	refined, err := h.refiner.RefineDescription(c.Request().Context(), req.Text)
	if err != nil {
		log.Printf("refine: falling back to original text: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"text": req.Text, "refined": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"text": refined, "refined": true})
}

type suggestRepliesRequest struct {
	Text string `json:"text" validate:"required"`
}

// SuggestReplies proposes short answers to an incoming chat message. Only the
// errand's participants can ask, and failures degrade to an empty list.
func (h *Handler) SuggestReplies(c echo.Context) error {
	var req suggestRepliesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	caller := auth.CallerID(c)
	errand, err := h.errands.Get(ctx, c.Param("id"))
	if err != nil {
		return domainError(err)
	}
	if errand.RequesterID != caller && (errand.RunnerID == nil || *errand.RunnerID != caller) {
		return domainError(apperrors.ErrForbidden)
	}

	replies, err := h.refiner.SuggestReplies(ctx, req.Text, errand.Title)
	if err != nil {
		log.Printf("refine: reply suggestion failed: %v", err)
		replies = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{"replies": replies})
}

type uploadMediaRequest struct {
	Name string `json:"name" validate:"required"`
	Data string `json:"data" validate:"required"`
}

func (h *Handler) UploadMedia(c echo.Context) error {
	var req uploadMediaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	path, err := h.media.Upload(c.Request().Context(), req.Name, req.Data)
	if err != nil {
		log.Printf("media: upload failed: %v", err)
		return domainError(apperrors.ErrTransient)
	}
	return c.JSON(http.StatusCreated, echo.Map{"path": path})
}
