package server

import (
	"net/http"
	"strconv"

	"github.com/Digital-Creators-Team/spin-rewards/auth"
	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/queue"
	"github.com/Digital-Creators-Team/spin-rewards/wheel"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WheelHandler handles the wheel, queue and ingestion controls.
//
// Flow: HTTP Request -> WheelHandler -> engine.Engine command -> engine loop
type WheelHandler struct {
	app    *App
	logger zerolog.Logger
}

// NewWheelHandler creates a new wheel handler
func NewWheelHandler(app *App) *WheelHandler {
	return &WheelHandler{
		app:    app,
		logger: app.logger.With().Str("handler", "wheel").Logger(),
	}
}

// SegmentsRequest replaces the wheel.
type SegmentsRequest struct {
	Segments []wheel.Segment `json:"segments" binding:"required"`
}

// SegmentRequest adds one segment.
type SegmentRequest struct {
	Label  string `json:"label" binding:"required"`
	Weight string `json:"weight"`
}

// WeightRequest changes one segment's weight.
type WeightRequest struct {
	Weight string `json:"weight"`
}

// ToggleRequest switches a mode on or off.
type ToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ParticipantRequest adds a manual entry.
type ParticipantRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	DisplayName   string `json:"display_name"`
}

func (h *WheelHandler) operator(c *gin.Context) string {
	if id, ok := auth.GetOperatorID(c); ok {
		return id
	}
	return "unknown"
}

func pathIndex(c *gin.Context, name string) (int, error) {
	idx, err := strconv.Atoi(c.Param(name))
	if err != nil || idx < 0 {
		return 0, errors.NewWithDebug(errors.ErrInvalidRequest, "Invalid "+name, c.Param(name))
	}
	return idx, nil
}

// respondState replies with the state after a successful command.
func (h *WheelHandler) respondState(c *gin.Context) {
	state, err := h.app.engine.State(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, state)
}

// GetState godoc
// @Summary      Get wheel state
// @Description  Returns status, segments, queue, log totals and the spin in progress
// @Tags         wheel
// @Produce      json
// @Success      200  {object}  BaseResponse{data=engine.State}
// @Failure      401  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /wheel/state [get]
func (h *WheelHandler) GetState(c *gin.Context) {
	h.respondState(c)
}

// SetSegments godoc
// @Summary      Replace segments
// @Description  Replaces the wheel. Labels must be prize amounts; weights are checked at the next draw
// @Tags         wheel
// @Accept       json
// @Produce      json
// @Param        request  body      SegmentsRequest  true  "Segments"
// @Success      200  {object}  BaseResponse{data=engine.State}
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /wheel/segments [put]
func (h *WheelHandler) SetSegments(c *gin.Context) {
	var req SegmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	if err := h.app.engine.SetSegments(c.Request.Context(), wheel.Segments(req.Segments)); err != nil {
		HandleAppError(c, err)
		return
	}
	h.logger.Info().Str("operator", h.operator(c)).Int("segments", len(req.Segments)).Msg("Segments replaced")
	h.respondState(c)
}

// AddSegment godoc
// @Summary      Add segment
// @Tags         wheel
// @Accept       json
// @Produce      json
// @Param        request  body      SegmentRequest  true  "Segment"
// @Success      200  {object}  BaseResponse{data=engine.State}
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /wheel/segments [post]
func (h *WheelHandler) AddSegment(c *gin.Context) {
	var req SegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	if err := h.app.engine.AddSegment(c.Request.Context(), wheel.Segment{Label: req.Label, Weight: req.Weight}); err != nil {
		HandleAppError(c, err)
		return
	}
	h.respondState(c)
}

// ReweightSegment godoc
// @Summary      Change segment weight
// @Description  The distribution is not re-normalized; an invalid sum refuses the next draw
// @Tags         wheel
// @Accept       json
// @Produce      json
// @Param        index    path      int            true  "Segment index"
// @Param        request  body      WeightRequest  true  "Weight"
// @Success      200  {object}  BaseResponse{data=engine.State}
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /wheel/segments/{index}/weight [put]
func (h *WheelHandler) ReweightSegment(c *gin.Context) {
	idx, err := pathIndex(c, "index")
	if err != nil {
		HandleAppError(c, err)
		return
	}
	var req WeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	if err := h.app.engine.ReweightSegment(c.Request.Context(), idx, req.Weight); err != nil {
		HandleAppError(c, err)
		return
	}
	h.respondState(c)
}

// RemoveSegment godoc
// @Summary      Remove segment
// @Tags         wheel
// @Produce      json
// @Param        index  path      int  true  "Segment index"
// @Success      200  {object}  BaseResponse{data=engine.State}
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /wheel/segments/{index} [delete]
func (h *WheelHandler) RemoveSegment(c *gin.Context) {
	idx, err := pathIndex(c, "index")
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if err := h.app.engine.RemoveSegment(c.Request.Context(), idx); err != nil {
		HandleAppError(c, err)
		return
	}
	h.respondState(c)
}

// Spin godoc
// @Summary      Spin the wheel
// @Description  Draws the head of the queue. Refused while a spin is animating or the weights are invalid
// @Tags         wheel
// @Produce      json
// @Success      202  {object}  BaseResponse{data=engine.State}
// @Failure      409  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /wheel/spin [post]
func (h *WheelHandler) Spin(c *gin.Context) {
	if err := h.app.engine.Spin(c.Request.Context()); err != nil {
		HandleAppError(c, err)
		return
	}
	state, err := h.app.engine.State(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}
	Success(c, http.StatusAccepted, state)
}

// SetAutoSpin godoc
// @Summary      Toggle auto-spin
// @Tags         wheel
// @Accept       json
// @Produce      json
// @Param        request  body      ToggleRequest  true  "Toggle"
// @Success      200  {object}  BaseResponse{data=engine.State}
// @Security     BearerAuth
// @Router       /wheel/auto [post]
func (h *WheelHandler) SetAutoSpin(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	if err := h.app.engine.SetAutoSpin(c.Request.Context(), *req.Enabled); err != nil {
		HandleAppError(c, err)
		return
	}
	h.respondState(c)
}

// SetAutoIngest godoc
// @Summary      Toggle redemption ingestion
// @Description  Enabling polls immediately, then every poll interval while the queue is empty
// @Tags         ingestion
// @Accept       json
// @Produce      json
// @Param        request  body      ToggleRequest  true  "Toggle"
// @Success      200  {object}  BaseResponse{data=engine.State}
// @Failure      500  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /ingestion [post]
func (h *WheelHandler) SetAutoIngest(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	if err := h.app.engine.SetAutoIngest(c.Request.Context(), *req.Enabled); err != nil {
		HandleAppError(c, err)
		return
	}
	h.logger.Info().Str("operator", h.operator(c)).Bool("enabled", *req.Enabled).Msg("Ingestion toggled")
	h.respondState(c)
}

// PollNow godoc
// @Summary      Poll redemptions now
// @Tags         ingestion
// @Produce      json
// @Success      202  {object}  BaseResponse{data=engine.State}
// @Failure      409  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /ingestion/poll [post]
func (h *WheelHandler) PollNow(c *gin.Context) {
	if err := h.app.engine.PollNow(c.Request.Context()); err != nil {
		HandleAppError(c, err)
		return
	}
	state, err := h.app.engine.State(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}
	Success(c, http.StatusAccepted, state)
}

// AddParticipant godoc
// @Summary      Add participant
// @Description  Enqueues a manual entry. The address must be 0x plus 40 hex characters
// @Tags         participants
// @Accept       json
// @Produce      json
// @Param        request  body      ParticipantRequest  true  "Participant"
// @Success      201  {object}  BaseResponse{data=queue.Participant}
// @Failure      422  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /participants [post]
func (h *WheelHandler) AddParticipant(c *gin.Context) {
	var req ParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	p, err := h.app.engine.AddParticipant(c.Request.Context(), req.WalletAddress, req.DisplayName)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	h.logger.Info().
		Str("operator", h.operator(c)).
		Str("wallet", p.WalletAddress).
		Msg("Participant added")
	Created(c, p)
}

// RemoveParticipant godoc
// @Summary      Remove participant
// @Description  Removes a pending entry. Redemption entries are canceled and refunded at the source
// @Tags         participants
// @Produce      json
// @Param        position  path      int  true  "Queue position, 0 is the head"
// @Success      200  {object}  BaseResponse{data=queue.Participant}
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /participants/{position} [delete]
func (h *WheelHandler) RemoveParticipant(c *gin.Context) {
	pos, err := pathIndex(c, "position")
	if err != nil {
		HandleAppError(c, err)
		return
	}
	var removed queue.Participant
	if removed, err = h.app.engine.RemoveParticipant(c.Request.Context(), pos); err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, removed)
}
