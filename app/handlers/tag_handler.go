package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/florelabs/leaftag/app/dto"
	"github.com/florelabs/leaftag/app/middleware"
	businessflow "github.com/florelabs/leaftag/business_flow"
	"github.com/florelabs/leaftag/mirror"
	"github.com/florelabs/leaftag/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// TagHandlerInterface defines the contract for tag identity handlers
type TagHandlerInterface interface {
	ListTags(c fiber.Ctx) error
	GetTag(c fiber.Ctx) error
	Scan(c fiber.Ctx) error
	Register(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Disconnect(c fiber.Ctx) error
	Deactivate(c fiber.Ctx) error
	Link(c fiber.Ctx) error
	Unlink(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
}

// TagHandler handles tag identity HTTP requests
type TagHandler struct {
	tagFlow   businessflow.TagFlow
	queryFlow businessflow.TagQueryFlow
	validator *validator.Validate
}

// NewTagHandler creates a new tag handler
func NewTagHandler(tagFlow businessflow.TagFlow, queryFlow businessflow.TagQueryFlow) TagHandlerInterface {
	handler := &TagHandler{
		tagFlow:   tagFlow,
		queryFlow: queryFlow,
		validator: validator.New(),
	}

	handler.setupCustomValidations()

	return handler
}

func (h *TagHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *TagHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ListTags returns the caller's active tags
// @Summary List Tags
// @Description List the authenticated user's active tags, newest first
// @Tags Tags
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} dto.APIResponse{data=dto.ListTagsResult} "Tags retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/tags [get]
func (h *TagHandler) ListTags(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	result, err := h.queryFlow.ListTags(h.createRequestContext(c, "/api/v1/tags"), userID, limit, offset)
	if err != nil {
		log.Println("List tags failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list tags", "LIST_TAGS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tags retrieved successfully", result)
}

// GetTag returns a single tag by public UUID
// @Summary Get Tag
// @Description Retrieve one of the authenticated user's tags by UUID
// @Tags Tags
// @Produce json
// @Param uuid path string true "Tag UUID"
// @Success 200 {object} dto.APIResponse{data=dto.NFCTagDTO} "Tag retrieved successfully"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/tags/{uuid} [get]
func (h *TagHandler) GetTag(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	tagUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tag UUID", "INVALID_TAG_UUID", nil)
	}

	tag, err := h.queryFlow.GetTag(h.createRequestContext(c, "/api/v1/tags/:uuid"), tagUUID, userID)
	if err != nil {
		if businessflow.IsTagNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tag not found", "TAG_NOT_FOUND", nil)
		}
		log.Println("Get tag failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve tag", "GET_TAG_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tag retrieved successfully", tag)
}

// Scan resolves a tag from the ASCII mirror of a physical scan
// @Summary Scan Tag
// @Description Resolve a tag from the 20-character ASCII mirror written by the chip
// @Tags Tags
// @Accept json
// @Produce json
// @Param request body dto.ScanTagRequest true "Scanned mirror payload"
// @Success 200 {object} dto.APIResponse{data=dto.ScanTagResult} "Tag resolved successfully"
// @Failure 400 {object} dto.APIResponse "Malformed mirror"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/tags/scan [post]
func (h *TagHandler) Scan(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	var req dto.ScanTagRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.validationErrorResponse(c, err)
	}

	result, err := h.queryFlow.ScanLookup(h.createRequestContext(c, "/api/v1/tags/scan"), &req, userID)
	if err != nil {
		if mirror.IsFormatError(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Malformed mirror payload", "MALFORMED_MIRROR", err.Error())
		}
		if businessflow.IsTagNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tag not found", "TAG_NOT_FOUND", nil)
		}
		log.Println("Scan lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resolve scan", "SCAN_FAILED", nil)
	}

	middleware.ObserveScan(result.Replayed)

	return h.SuccessResponse(c, fiber.StatusOK, "Tag resolved successfully", result)
}

// Register claims a tag by chip UID, minting it on first sight
// @Summary Register Tag
// @Description Register a tag to the authenticated user by chip UID
// @Tags Tags
// @Accept json
// @Produce json
// @Param request body dto.RegisterTagRequest true "Chip UID"
// @Success 200 {object} dto.APIResponse{data=dto.RegisterTagResult} "Tag registered successfully"
// @Success 201 {object} dto.APIResponse{data=dto.RegisterTagResult} "Tag minted and registered"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Tag not available"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/tags/register [post]
func (h *TagHandler) Register(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	var req dto.RegisterTagRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.validationErrorResponse(c, err)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(c.Get(businessflow.RequestIDKey))

	result, err := h.tagFlow.Register(h.createRequestContext(c, "/api/v1/tags/register"), &req, userID, metadata)
	if err != nil {
		if mirror.IsFormatError(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid chip UID", "INVALID_UID", err.Error())
		}
		if businessflow.IsTagNotRegistrable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Tag is not available to register", "TAG_NOT_REGISTRABLE", nil)
		}
		log.Println("Register tag failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to register tag", "REGISTER_TAG_FAILED", nil)
	}

	status := fiber.StatusOK
	if result.Created {
		status = fiber.StatusCreated
	}
	return h.SuccessResponse(c, status, "Tag registered successfully", result)
}

// Update rewrites the mutable fields of a tag
// @Summary Update Tag
// @Description Update the label of one of the authenticated user's tags
// @Tags Tags
// @Accept json
// @Produce json
// @Param uuid path string true "Tag UUID"
// @Param request body dto.UpdateTagRequest true "Fields to update"
// @Success 200 {object} dto.APIResponse{data=dto.NFCTagDTO} "Tag updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/tags/{uuid} [put]
func (h *TagHandler) Update(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	tagUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tag UUID", "INVALID_TAG_UUID", nil)
	}

	var req dto.UpdateTagRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.validationErrorResponse(c, err)
	}

	tag, err := h.tagFlow.Update(h.createRequestContext(c, "/api/v1/tags/:uuid"), tagUUID, userID, &req)
	if err != nil {
		if businessflow.IsTagNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tag not found", "TAG_NOT_FOUND", nil)
		}
		log.Println("Update tag failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update tag", "UPDATE_TAG_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tag updated successfully", tag)
}

// Disconnect releases ownership of a tag
// @Summary Disconnect Tag
// @Description Release ownership of a tag so it becomes registrable again
// @Tags Tags
// @Produce json
// @Param uuid path string true "Tag UUID"
// @Success 200 {object} dto.APIResponse{data=dto.NFCTagDTO} "Tag disconnected successfully"
// @Failure 400 {object} dto.APIResponse "Tag not owned"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/tags/{uuid}/disconnect [post]
func (h *TagHandler) Disconnect(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	tagUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tag UUID", "INVALID_TAG_UUID", nil)
	}

	tag, err := h.tagFlow.Disconnect(h.createRequestContext(c, "/api/v1/tags/:uuid/disconnect"), tagUUID, userID)
	if err != nil {
		if businessflow.IsTagNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tag not found", "TAG_NOT_FOUND", nil)
		}
		if businessflow.IsTagNotOwned(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Tag is not registered to this account", "TAG_NOT_OWNED", nil)
		}
		log.Println("Disconnect tag failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to disconnect tag", "DISCONNECT_TAG_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tag disconnected successfully", tag)
}

// Deactivate retires a tag permanently
// @Summary Deactivate Tag
// @Description Retire a tag; deactivated tags can never be registered again
// @Tags Tags
// @Produce json
// @Param uuid path string true "Tag UUID"
// @Success 200 {object} dto.APIResponse{data=dto.NFCTagDTO} "Tag deactivated successfully"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/tags/{uuid}/deactivate [post]
func (h *TagHandler) Deactivate(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	tagUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tag UUID", "INVALID_TAG_UUID", nil)
	}

	tag, err := h.tagFlow.Deactivate(h.createRequestContext(c, "/api/v1/tags/:uuid/deactivate"), tagUUID, userID)
	if err != nil {
		if businessflow.IsTagNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tag not found", "TAG_NOT_FOUND", nil)
		}
		log.Println("Deactivate tag failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to deactivate tag", "DEACTIVATE_TAG_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tag deactivated successfully", tag)
}

// Link attaches the tag to an application entity
// @Summary Link Tag
// @Description Attach a tag to an application entity such as a plant or specimen
// @Tags Tags
// @Accept json
// @Produce json
// @Param uuid path string true "Tag UUID"
// @Param request body dto.LinkTagRequest true "Link target"
// @Success 200 {object} dto.APIResponse{data=dto.NFCTagDTO} "Tag linked successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Failure 409 {object} dto.APIResponse "Tag already linked"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/tags/{uuid}/link [post]
func (h *TagHandler) Link(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	tagUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tag UUID", "INVALID_TAG_UUID", nil)
	}

	var req dto.LinkTagRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.validationErrorResponse(c, err)
	}

	tag, err := h.tagFlow.Link(h.createRequestContext(c, "/api/v1/tags/:uuid/link"), tagUUID, userID, &req)
	if err != nil {
		if businessflow.IsTagNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tag not found", "TAG_NOT_FOUND", nil)
		}
		if businessflow.IsUnknownLinkKind(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown link kind", "UNKNOWN_LINK_KIND", nil)
		}
		if businessflow.IsLinkKeyMismatch(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Link object key does not match the kind", "LINK_KEY_MISMATCH", nil)
		}
		if businessflow.IsTagAlreadyLinked(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Tag already carries a link", "TAG_ALREADY_LINKED", nil)
		}
		log.Println("Link tag failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to link tag", "LINK_TAG_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tag linked successfully", tag)
}

// Unlink detaches the tag from its linked entity
// @Summary Unlink Tag
// @Description Remove the tag's link to an application entity
// @Tags Tags
// @Produce json
// @Param uuid path string true "Tag UUID"
// @Success 200 {object} dto.APIResponse{data=dto.NFCTagDTO} "Tag unlinked successfully"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/tags/{uuid}/unlink [post]
func (h *TagHandler) Unlink(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	tagUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tag UUID", "INVALID_TAG_UUID", nil)
	}

	tag, err := h.tagFlow.Unlink(h.createRequestContext(c, "/api/v1/tags/:uuid/unlink"), tagUUID, userID)
	if err != nil {
		if businessflow.IsTagNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tag not found", "TAG_NOT_FOUND", nil)
		}
		log.Println("Unlink tag failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to unlink tag", "UNLINK_TAG_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tag unlinked successfully", tag)
}

// Delete removes a tag permanently
// @Summary Delete Tag
// @Description Permanently remove one of the authenticated user's tags
// @Tags Tags
// @Produce json
// @Param uuid path string true "Tag UUID"
// @Success 200 {object} dto.APIResponse "Tag deleted successfully"
// @Failure 400 {object} dto.APIResponse "Storage failure"
// @Failure 404 {object} dto.APIResponse "Tag not found"
// @Router /api/v1/tags/{uuid} [delete]
func (h *TagHandler) Delete(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	tagUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tag UUID", "INVALID_TAG_UUID", nil)
	}

	if err := h.tagFlow.Delete(h.createRequestContext(c, "/api/v1/tags/:uuid"), tagUUID, userID); err != nil {
		if businessflow.IsTagNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tag not found", "TAG_NOT_FOUND", nil)
		}
		log.Println("Delete tag failed", err)
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Failed to delete tag", "DELETE_TAG_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tag deleted successfully", nil)
}

func (h *TagHandler) validationErrorResponse(c fiber.Ctx, err error) error {
	var validationErrors []string
	for _, err := range err.(validator.ValidationErrors) {
		validationErrors = append(validationErrors, getValidationErrorMessage(err))
	}
	return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
}

func (h *TagHandler) setupCustomValidations() {
	// Chip UID: 14 hex characters, case-insensitive
	h.validator.RegisterValidation("uid_hex", func(fl validator.FieldLevel) bool {
		return mirror.ValidateUID(fl.Field().String()) == nil
	})
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *TagHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *TagHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
