package handlers

import (
	"net/http"
	"strconv"

	"github.com/epeers/nexus/internal/services"
	"github.com/gin-gonic/gin"
)

// UserHandler handles user-related endpoints
type UserHandler struct {
	definitionSvc *services.DefinitionService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(definitionSvc *services.DefinitionService) *UserHandler {
	return &UserHandler{
		definitionSvc: definitionSvc,
	}
}

// ListDefinitions handles GET /users/:user_id/definitions
// @Summary List user's definitions
// @Description Get all Portfolios and Nexus Codes belonging to a user, newest first
// @Tags users
// @Produce json
// @Param user_id path int true "User ID"
// @Success 200 {array} models.DefinitionListItem
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /users/{user_id}/definitions [get]
func (h *UserHandler) ListDefinitions(c *gin.Context) {
	userIDStr := c.Param("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		badRequest(c, "invalid user ID")
		return
	}

	definitions, err := h.definitionSvc.ListDefinitions(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, definitions)
}
