package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotekeeper/internal/app"
	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
)

// importFormField is the multipart field carrying an uploaded export file.
const importFormField = "file"

// QuoteHandler serves the quote manager over HTTP.
type QuoteHandler struct {
	manager     *app.QuoteManager
	sync        *app.SyncEngine
	importLimit int64
}

// QuoteOption customizes a QuoteHandler.
type QuoteOption func(*QuoteHandler)

// WithImportLimit caps the bytes read from an import request.
// Non-positive values keep config.DefaultMaxRequestSize.
func WithImportLimit(maxBytes int64) QuoteOption {
	return func(h *QuoteHandler) {
		if maxBytes > 0 {
			h.importLimit = maxBytes
		}
	}
}

// NewQuoteHandler creates a quote handler. sync may be nil, which disables
// the sync endpoints.
func NewQuoteHandler(manager *app.QuoteManager, sync *app.SyncEngine, opts ...QuoteOption) *QuoteHandler {
	h := &QuoteHandler{
		manager:     manager,
		sync:        sync,
		importLimit: config.DefaultMaxRequestSize,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func toQuoteResponse(q domain.Quote) dto.QuoteResponse {
	return dto.QuoteResponse{Text: q.Text, Category: q.Category}
}

func toDisplayResponse(d app.Display) dto.DisplayResponse {
	resp := dto.DisplayResponse{Text: d.Text, Empty: d.Empty}
	if d.Quote != nil {
		q := toQuoteResponse(*d.Quote)
		resp.Quote = &q
	}

	return resp
}

// ListQuotes handles GET /api/v1/quotes
// Returns the quotes matching the selected category.
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	category, quotes := h.manager.Filtered()

	resp := dto.QuoteListResponse{
		Category: category,
		Count:    len(quotes),
		Quotes:   make([]dto.QuoteResponse, 0, len(quotes)),
	}
	for _, q := range quotes {
		resp.Quotes = append(resp.Quotes, toQuoteResponse(q))
	}

	c.JSON(http.StatusOK, resp)
}

// RandomQuote handles GET /api/v1/quotes/random
// Picks a new quote from the filtered view.
func (h *QuoteHandler) RandomQuote(c *gin.Context) {
	c.JSON(http.StatusOK, toDisplayResponse(h.manager.ShowRandom(c.Request.Context())))
}

// CurrentQuote handles GET /api/v1/quotes/current
// Returns the quote last shown in this session.
func (h *QuoteHandler) CurrentQuote(c *gin.Context) {
	c.JSON(http.StatusOK, toDisplayResponse(h.manager.CurrentQuote(c.Request.Context())))
}

// AddQuote handles POST /api/v1/quotes
//
// @Summary Add a quote
// @Accept json
// @Produce json
// @Success 201 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/quotes [post]
func (h *QuoteHandler) AddQuote(c *gin.Context) {
	var req dto.AddQuoteRequest

	if err := dto.BindAndValidate(c, &req); err != nil {
		if errors.Is(err, dto.ErrBinding) {
			dto.RespondWithCode(c, dto.ErrorCodeBadRequest, "request body must be a JSON object")
			return
		}

		c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithDetails(
			dto.ErrorCodeValidation,
			dto.MessageIncompleteQuote,
			dto.ValidationErrors(err),
		).WithTraceID(dto.GetTraceID(c)))

		return
	}

	quote, err := h.manager.AddQuote(c.Request.Context(), req.Text, req.Category)
	if err != nil {
		if domain.IsValidation(err) {
			dto.RespondWithCode(c, dto.ErrorCodeValidation, dto.MessageIncompleteQuote)
			return
		}

		dto.HandleError(c, err)

		return
	}

	c.JSON(http.StatusCreated, toQuoteResponse(quote))
}

// Categories handles GET /api/v1/categories
func (h *QuoteHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, dto.CategoriesResponse{Categories: h.manager.Categories()})
}

// GetFilter handles GET /api/v1/filter
func (h *QuoteHandler) GetFilter(c *gin.Context) {
	c.JSON(http.StatusOK, dto.FilterResponse{Category: h.manager.SelectedCategory()})
}

// SetFilter handles PUT /api/v1/filter
// Unknown categories are accepted and simply match nothing.
func (h *QuoteHandler) SetFilter(c *gin.Context) {
	var req dto.FilterRequest

	if err := dto.BindAndValidate(c, &req); err != nil {
		if errors.Is(err, dto.ErrBinding) {
			dto.RespondWithCode(c, dto.ErrorCodeBadRequest, "request body must be a JSON object")
			return
		}

		c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithDetails(
			dto.ErrorCodeValidation,
			"invalid filter",
			dto.ValidationErrors(err),
		).WithTraceID(dto.GetTraceID(c)))

		return
	}

	if err := h.manager.SetSelectedCategory(c.Request.Context(), req.Category); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FilterResponse{Category: h.manager.SelectedCategory()})
}

// Export handles GET /api/v1/quotes/export
// Streams the whole collection as a downloadable JSON file.
func (h *QuoteHandler) Export(c *gin.Context) {
	payload, err := h.manager.Export()
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", app.ExportFileName))
	c.Data(http.StatusOK, app.ExportContentType, payload)
}

// Import handles POST /api/v1/quotes/import
// Accepts the file as the raw body or as the multipart field "file".
func (h *QuoteHandler) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.importLimit)

	payload, err := readImportPayload(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			dto.RespondWithCode(c, dto.ErrorCodeTooLarge,
				fmt.Sprintf("import exceeds %d bytes", tooLarge.Limit))

			return
		}

		dto.RespondWithCode(c, dto.ErrorCodeBadRequest, err.Error())

		return
	}

	count, err := h.manager.Import(c.Request.Context(), payload)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ImportResponse{Imported: count})
}

func readImportPayload(c *gin.Context) ([]byte, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}

		return payload, nil
	}

	header, err := c.FormFile(importFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, tooLarge
		}

		return nil, fmt.Errorf("multipart field %q is required", importFormField)
	}

	return readFormFile(header)
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer func() { _ = file.Close() }()

	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	return payload, nil
}

// TriggerSync handles POST /api/v1/sync
// Starts a manual sync and returns before it completes.
func (h *QuoteHandler) TriggerSync(c *gin.Context) {
	h.sync.Trigger(c.Request.Context())

	c.JSON(http.StatusAccepted, h.sync.Status())
}

// SyncStatus handles GET /api/v1/sync
func (h *QuoteHandler) SyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.Status())
}

// Notifications handles GET /api/v1/notifications
// Returns notices that have not expired yet.
func (h *QuoteHandler) Notifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": h.manager.Notifier().Active()})
}

// RegisterQuoteRoutes registers the quote API on the given router group.
func (h *QuoteHandler) RegisterQuoteRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.GET("", h.ListQuotes)
	quotes.POST("", h.AddQuote)
	quotes.GET("/random", h.RandomQuote)
	quotes.GET("/current", h.CurrentQuote)
	quotes.GET("/export", h.Export)
	quotes.POST("/import", h.Import)

	rg.GET("/categories", h.Categories)
	rg.GET("/filter", h.GetFilter)
	rg.PUT("/filter", h.SetFilter)
	rg.GET("/notifications", h.Notifications)

	if h.sync != nil {
		rg.GET("/sync", h.SyncStatus)
		rg.POST("/sync", h.TriggerSync)
	}
}
