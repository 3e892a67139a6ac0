package management

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"herald/internal/constants"
	"herald/internal/logger"
	"herald/pkg/cel"
	"herald/pkg/errors"
)

const HeaderUserID = "X-User-ID"

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

func (h *BaseHandler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
}

// AuditContextMiddleware carries the caller identity and address into the
// request context for audit entries.
func AuditContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithClientIP(c.Request.Context(), c.ClientIP())
		if user := strings.TrimSpace(c.GetHeader(HeaderUserID)); user != "" {
			ctx = WithChangedBy(ctx, user)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

type Handler struct {
	BaseHandler
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		tmpls := v1.Group("/templates")
		{
			tmpls.GET("", h.ListTemplates)
			tmpls.POST("", h.CreateTemplate)
			tmpls.GET("/:id", h.GetTemplate)
			tmpls.PUT("/:id", h.UpdateTemplate)
			tmpls.DELETE("/:id", h.DeleteTemplate)
			tmpls.GET("/:id/versions", h.GetTemplateVersions)
			tmpls.GET("/:id/audit", h.GetTemplateAuditLogs)
		}

		audit := v1.Group("/audit")
		{
			audit.GET("/logs", h.GetAuditLogs)
		}

		v1.GET("/conditions/examples", h.GetConditionExamples)
	}
}

// GetConditionExamples godoc
// @Summary      Condition examples
// @Description  Sample CEL conditions a template may carry
// @Tags         templates
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /conditions/examples [get]
func (h *Handler) GetConditionExamples(c *gin.Context) {
	c.JSON(http.StatusOK, cel.ConditionExamples)
}

// ListTemplates godoc
// @Summary      List templates
// @Description  List message templates, optionally for a single tenant
// @Tags         templates
// @Accept       json
// @Produce      json
// @Param        tenant_id  query     string  false  "Tenant ID"
// @Success      200        {array}   TemplateView
// @Failure      500        {object}  errors.ErrorResponse
// @Router       /templates [get]
func (h *Handler) ListTemplates(c *gin.Context) {
	list, err := h.Service.ListTemplates(c.Request.Context(), c.Query("tenant_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateTemplate godoc
// @Summary      Create a template
// @Description  Create a message template bound to a subject and verb
// @Tags         templates
// @Accept       json
// @Produce      json
// @Param        template  body      CreateTemplateRequest  true  "Template data"
// @Success      201       {object}  TemplateView
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      409       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /templates [post]
func (h *Handler) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	tmpl, err := h.Service.CreateTemplate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tmpl)
}

// GetTemplate godoc
// @Summary      Get a template
// @Tags         templates
// @Produce      json
// @Param        id   path      string  true  "Template ID"
// @Success      200  {object}  TemplateView
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /templates/{id} [get]
func (h *Handler) GetTemplate(c *gin.Context) {
	tmpl, err := h.Service.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// UpdateTemplate godoc
// @Summary      Update a template
// @Description  Partially update a template; omitted fields are kept
// @Tags         templates
// @Accept       json
// @Produce      json
// @Param        id        path      string                 true  "Template ID"
// @Param        template  body      UpdateTemplateRequest  true  "Fields to change"
// @Success      200       {object}  TemplateView
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      404       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /templates/{id} [put]
func (h *Handler) UpdateTemplate(c *gin.Context) {
	var req UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	tmpl, err := h.Service.UpdateTemplate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// DeleteTemplate godoc
// @Summary      Delete a template
// @Tags         templates
// @Param        id   path      string  true  "Template ID"
// @Success      204
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /templates/{id} [delete]
func (h *Handler) DeleteTemplate(c *gin.Context) {
	if err := h.Service.DeleteTemplate(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetTemplateVersions godoc
// @Summary      List template versions
// @Tags         templates
// @Produce      json
// @Param        id   path      string  true  "Template ID"
// @Success      200  {array}   TemplateVersion
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /templates/{id}/versions [get]
func (h *Handler) GetTemplateVersions(c *gin.Context) {
	versions, err := h.Service.GetTemplateVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// GetTemplateAuditLogs godoc
// @Summary      Get audit logs for a template
// @Tags         audit
// @Produce      json
// @Param        id     path      string  true   "Template ID"
// @Param        limit  query     int     false  "Maximum entries"
// @Success      200    {array}   AuditLog
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /templates/{id}/audit [get]
func (h *Handler) GetTemplateAuditLogs(c *gin.Context) {
	id := c.Param("id")
	logs, err := h.Service.GetAuditLogs(c.Request.Context(), &id, ResourceTemplate, parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetAuditLogs godoc
// @Summary      Get audit logs
// @Description  Get audit logs, optionally filtered by resource
// @Tags         audit
// @Produce      json
// @Param        resource_id    query     string  false  "Resource ID"
// @Param        resource_type  query     string  false  "Resource type (template, preferences)"
// @Param        limit          query     int     false  "Maximum entries"
// @Success      200            {array}   AuditLog
// @Failure      500            {object}  errors.ErrorResponse
// @Router       /audit/logs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	var resourceID *string
	if id := c.Query("resource_id"); id != "" {
		resourceID = &id
	}

	logs, err := h.Service.GetAuditLogs(c.Request.Context(), resourceID, c.Query("resource_type"), parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}

type PreferencesHandler struct {
	BaseHandler
}

func NewPreferencesHandler(service Service, log logger.Logger) *PreferencesHandler {
	return &PreferencesHandler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

func (h *PreferencesHandler) RegisterPreferencesRoutes(router *gin.Engine) {
	prefs := router.Group("/api/v1/preferences")
	{
		prefs.GET("/:recipient", h.ListPreferences)
		prefs.GET("/:recipient/:sender", h.GetPreferences)
		prefs.PUT("/:recipient/:sender", h.PutPreferences)
		prefs.DELETE("/:recipient/:sender", h.DeletePreferences)
	}
}

// ListPreferences godoc
// @Summary      List a recipient's preferences
// @Tags         preferences
// @Produce      json
// @Param        recipient  path      string  true  "Recipient address"
// @Success      200        {array}   PreferencesView
// @Failure      500        {object}  errors.ErrorResponse
// @Router       /preferences/{recipient} [get]
func (h *PreferencesHandler) ListPreferences(c *gin.Context) {
	list, err := h.Service.ListPreferences(c.Request.Context(), c.Param("recipient"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetPreferences godoc
// @Summary      Get preferences for one sender
// @Tags         preferences
// @Produce      json
// @Param        recipient  path      string  true  "Recipient address"
// @Param        sender     path      string  true  "Sender"
// @Success      200        {object}  PreferencesView
// @Failure      404        {object}  errors.ErrorResponse
// @Failure      500        {object}  errors.ErrorResponse
// @Router       /preferences/{recipient}/{sender} [get]
func (h *PreferencesHandler) GetPreferences(c *gin.Context) {
	p, err := h.Service.GetPreferences(c.Request.Context(), c.Param("recipient"), c.Param("sender"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// PutPreferences godoc
// @Summary      Create or replace preferences
// @Description  allowed_classes may be a JSON array or a comma-delimited string
// @Tags         preferences
// @Accept       json
// @Produce      json
// @Param        recipient    path      string                 true  "Recipient address"
// @Param        sender       path      string                 true  "Sender"
// @Param        preferences  body      PutPreferencesRequest  true  "Preferences"
// @Success      200          {object}  PreferencesView
// @Failure      400          {object}  errors.ErrorResponse
// @Failure      500          {object}  errors.ErrorResponse
// @Router       /preferences/{recipient}/{sender} [put]
func (h *PreferencesHandler) PutPreferences(c *gin.Context) {
	var req PutPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	p, err := h.Service.PutPreferences(c.Request.Context(), c.Param("recipient"), c.Param("sender"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeletePreferences godoc
// @Summary      Delete preferences for one sender
// @Tags         preferences
// @Param        recipient  path      string  true  "Recipient address"
// @Param        sender     path      string  true  "Sender"
// @Success      204
// @Failure      500        {object}  errors.ErrorResponse
// @Router       /preferences/{recipient}/{sender} [delete]
func (h *PreferencesHandler) DeletePreferences(c *gin.Context) {
	if err := h.Service.DeletePreferences(c.Request.Context(), c.Param("recipient"), c.Param("sender")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type DeliveryHandler struct {
	BaseHandler
}

func NewDeliveryHandler(service Service, log logger.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

func (h *DeliveryHandler) RegisterDeliveryRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/deliveries", h.ListDeliveries)
		v1.GET("/deliveries/:id", h.GetDelivery)
		v1.POST("/evaluate", h.Evaluate)
	}
}

// ListDeliveries godoc
// @Summary      List deliveries for a recipient
// @Description  Newest first
// @Tags         deliveries
// @Produce      json
// @Param        recipient  query     string  true   "Recipient address"
// @Param        limit      query     int     false  "Maximum entries"
// @Success      200        {array}   decision.DeliveryRecord
// @Failure      400        {object}  errors.ErrorResponse
// @Failure      500        {object}  errors.ErrorResponse
// @Router       /deliveries [get]
func (h *DeliveryHandler) ListDeliveries(c *gin.Context) {
	records, err := h.Service.ListDeliveries(c.Request.Context(), c.Query("recipient"), parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetDelivery godoc
// @Summary      Get a delivery record
// @Tags         deliveries
// @Produce      json
// @Param        id   path      string  true  "Delivery ID"
// @Success      200  {object}  decision.DeliveryRecord
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /deliveries/{id} [get]
func (h *DeliveryHandler) GetDelivery(c *gin.Context) {
	rec, err := h.Service.GetDelivery(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Evaluate godoc
// @Summary      Dry-run an event
// @Description  Evaluate a hypothetical event against the tenant's templates without recording or publishing anything
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Param        event  body      EvaluateRequest  true  "Event"
// @Success      200    {object}  EvaluateResponse
// @Failure      400    {object}  errors.ErrorResponse
// @Failure      502    {object}  errors.ErrorResponse
// @Router       /evaluate [post]
func (h *DeliveryHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	resp, err := h.Service.Evaluate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
