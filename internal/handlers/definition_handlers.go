package handlers

import (
	"net/http"

	"github.com/epeers/nexus/internal/middleware"
	"github.com/epeers/nexus/internal/models"
	"github.com/epeers/nexus/internal/services"
	"github.com/gin-gonic/gin"
)

// DefinitionHandler handles Portfolio and Nexus Code endpoints
type DefinitionHandler struct {
	definitionSvc *services.DefinitionService
}

// NewDefinitionHandler creates a new DefinitionHandler
func NewDefinitionHandler(definitionSvc *services.DefinitionService) *DefinitionHandler {
	return &DefinitionHandler{
		definitionSvc: definitionSvc,
	}
}

func refFromPath(c *gin.Context) (models.DefinitionRef, bool) {
	ref := models.DefinitionRef{
		Kind: models.DefinitionKind(c.Param("kind")),
		Code: c.Param("code"),
	}
	if !ref.Kind.Valid() {
		badRequest(c, "kind must be 'portfolio' or 'nexus'")
		return ref, false
	}
	return ref, true
}

func bindSaveRequest(c *gin.Context) (*models.SaveDefinitionRequest, bool) {
	var req models.SaveDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return nil, false
	}
	if !req.Kind.Valid() {
		badRequest(c, "kind must be 'portfolio' or 'nexus'")
		return nil, false
	}
	return &req, true
}

// Save handles POST /definitions
// @Summary Save a definition
// @Description Validate and store a Portfolio or Nexus Code. Set originalCode to edit or rename an existing code.
// @Tags definitions
// @Accept json
// @Produce json
// @Param X-User-ID header int true "User ID"
// @Param request body models.SaveDefinitionRequest true "Definition"
// @Success 200 {object} models.Definition
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ValidationErrorResponse
// @Router /definitions [post]
func (h *DefinitionHandler) Save(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	req, ok := bindSaveRequest(c)
	if !ok {
		return
	}

	def, err := h.definitionSvc.SaveDefinition(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, def)
}

// Validate handles POST /definitions/validate
// @Summary Validate a definition
// @Description Run every save-time check without storing anything
// @Tags definitions
// @Accept json
// @Produce json
// @Param request body models.SaveDefinitionRequest true "Definition"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ValidationErrorResponse
// @Router /definitions/validate [post]
func (h *DefinitionHandler) Validate(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	req, ok := bindSaveRequest(c)
	if !ok {
		return
	}

	if err := h.definitionSvc.ValidateDefinition(c.Request.Context(), userID, req); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// Get handles GET /definitions/:kind/:code
// @Summary Get a definition
// @Tags definitions
// @Produce json
// @Param kind path string true "portfolio or nexus"
// @Param code path string true "Code"
// @Success 200 {object} models.Definition
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /definitions/{kind}/{code} [get]
func (h *DefinitionHandler) Get(c *gin.Context) {
	ref, ok := refFromPath(c)
	if !ok {
		return
	}

	def, err := h.definitionSvc.GetDefinition(c.Request.Context(), ref)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, def)
}

// Delete handles DELETE /definitions/:kind/:code
// @Summary Delete a definition
// @Tags definitions
// @Param X-User-ID header int true "User ID"
// @Param kind path string true "portfolio or nexus"
// @Param code path string true "Code"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /definitions/{kind}/{code} [delete]
func (h *DefinitionHandler) Delete(c *gin.Context) {
	ref, ok := refFromPath(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	if err := h.definitionSvc.DeleteDefinition(c.Request.Context(), userID, ref); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Resolve handles POST /definitions/:kind/:code/resolve
// @Summary Preview a resolution
// @Description Resolve a stored definition into weighted tickers without pricing or trading
// @Tags definitions
// @Accept json
// @Produce json
// @Param kind path string true "portfolio or nexus"
// @Param code path string true "Code"
// @Param request body models.ResolveRequest false "Resolution options"
// @Success 200 {object} models.ResolveResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /definitions/{kind}/{code}/resolve [post]
func (h *DefinitionHandler) Resolve(c *gin.Context) {
	ref, ok := refFromPath(c)
	if !ok {
		return
	}

	var req models.ResolveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	resp, err := h.definitionSvc.PreviewResolution(c.Request.Context(), ref, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ImportComponentsCSV handles POST /definitions/components/csv
// @Summary Parse components from CSV
// @Description Upload a CSV with kind,value,weight columns (kind optional, defaults to Ticker)
// @Tags definitions
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Components CSV"
// @Success 200 {object} models.ComponentsCSVResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /definitions/components/csv [post]
func (h *DefinitionHandler) ImportComponentsCSV(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	f, err := file.Open()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	defer f.Close()

	components, err := ParseComponentsCSV(f)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if components == nil {
		components = []models.Component{}
	}

	c.JSON(http.StatusOK, models.ComponentsCSVResponse{Components: components})
}
