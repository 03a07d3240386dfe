package server

import (
	"net/http"
	"strconv"

	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/settlement"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SettlementHandler exposes the payout flow and the CSV export.
type SettlementHandler struct {
	app    *App
	logger zerolog.Logger
}

// NewSettlementHandler creates a new settlement handler
func NewSettlementHandler(app *App) *SettlementHandler {
	return &SettlementHandler{
		app:    app,
		logger: app.logger.With().Str("handler", "settlement").Logger(),
	}
}

// ExportResponse is the export as clipboard text.
type ExportResponse struct {
	FileName string `json:"file_name"`
	Checksum string `json:"checksum"`
	Rows     int    `json:"rows"`
	Content  string `json:"content"`
}

// manager returns the settlement manager, replying 503 when none is configured.
func (h *SettlementHandler) manager(c *gin.Context) (*settlement.Manager, bool) {
	if h.app.settlement == nil {
		Error(c, http.StatusServiceUnavailable,
			errors.New(errors.ErrServiceUnavailable, "Settlement is not configured"))
		return nil, false
	}
	return h.app.settlement, true
}

// GetSession godoc
// @Summary      Get wallet session
// @Description  Reads chain, allowance and balance from the wallet. cached=true returns the last read instead
// @Tags         settlement
// @Produce      json
// @Param        cached  query     bool  false  "Return the cached session"
// @Success      200  {object}  BaseResponse{data=settlement.Session}
// @Failure      502  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /settlement/session [get]
func (h *SettlementHandler) GetSession(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	if cached, _ := strconv.ParseBool(c.Query("cached")); cached {
		if session := m.CachedSession(); session != nil {
			OK(c, session)
			return
		}
	}
	session, err := m.RefreshSession(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, session)
}

// Approve godoc
// @Summary      Approve payout allowance
// @Description  Switches the wallet to the required network, checks the balance and approves the payout contract for the total owed
// @Tags         settlement
// @Produce      json
// @Success      200  {object}  BaseResponse{data=settlement.ApproveResult}
// @Failure      409  {object}  ErrorResponse
// @Failure      412  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Failure      499  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /settlement/approve [post]
func (h *SettlementHandler) Approve(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	result, err := m.Approve(c.Request.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Approve failed")
		HandleAppError(c, err)
		return
	}
	OK(c, result)
}

// Settle godoc
// @Summary      Settle the log
// @Description  Pays every winner in one batch transfer. Requires a prior approval covering the total owed
// @Tags         settlement
// @Produce      json
// @Success      200  {object}  BaseResponse{data=settlement.Record}
// @Failure      409  {object}  ErrorResponse
// @Failure      412  {object}  ErrorResponse
// @Failure      499  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /settlement/settle [post]
func (h *SettlementHandler) Settle(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	record, err := m.Settle(c.Request.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Settle failed")
		HandleAppError(c, err)
		return
	}
	OK(c, record)
}

// GetHistory godoc
// @Summary      Settlement history
// @Tags         settlement
// @Produce      json
// @Success      200  {object}  BaseResponse{data=[]settlement.Record}
// @Security     BearerAuth
// @Router       /settlement/history [get]
func (h *SettlementHandler) GetHistory(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}
	OK(c, m.History())
}

// Export godoc
// @Summary      Export the log
// @Description  Renders the completed log as CSV text for the clipboard
// @Tags         export
// @Produce      json
// @Success      200  {object}  BaseResponse{data=ExportResponse}
// @Failure      500  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /export [get]
func (h *SettlementHandler) Export(c *gin.Context) {
	doc, err := h.app.exporter.Render()
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, ExportResponse{
		FileName: doc.FileName,
		Checksum: doc.Checksum,
		Rows:     doc.Rows,
		Content:  doc.Text(),
	})
}

// DownloadExport godoc
// @Summary      Download the log
// @Description  Same content as the export, as a date-named CSV attachment
// @Tags         export
// @Produce      text/csv
// @Success      200  {file}  file
// @Failure      500  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /export/download [get]
func (h *SettlementHandler) DownloadExport(c *gin.Context) {
	doc, err := h.app.exporter.Render()
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.Header("X-Checksum-Sha256", doc.Checksum)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", doc.Data)
}
