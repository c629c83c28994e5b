package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/florelabs/leaftag/app/dto"
	businessflow "github.com/florelabs/leaftag/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTagFlow satisfies businessflow.TagFlow with canned results so handler
// status mapping can be tested without a store.
type stubTagFlow struct {
	deleteErr error
}

func (s *stubTagFlow) Mint(ctx context.Context, uid string) (*dto.NFCTagDTO, error) {
	return &dto.NFCTagDTO{}, nil
}

func (s *stubTagFlow) Register(ctx context.Context, req *dto.RegisterTagRequest, userID uint, metadata *businessflow.ClientMetadata) (*dto.RegisterTagResult, error) {
	return &dto.RegisterTagResult{}, nil
}

func (s *stubTagFlow) Update(ctx context.Context, tagUUID uuid.UUID, userID uint, req *dto.UpdateTagRequest) (*dto.NFCTagDTO, error) {
	return &dto.NFCTagDTO{}, nil
}

func (s *stubTagFlow) Disconnect(ctx context.Context, tagUUID uuid.UUID, userID uint) (*dto.NFCTagDTO, error) {
	return &dto.NFCTagDTO{}, nil
}

func (s *stubTagFlow) Deactivate(ctx context.Context, tagUUID uuid.UUID, userID uint) (*dto.NFCTagDTO, error) {
	return &dto.NFCTagDTO{}, nil
}

func (s *stubTagFlow) Link(ctx context.Context, tagUUID uuid.UUID, userID uint, req *dto.LinkTagRequest) (*dto.NFCTagDTO, error) {
	return &dto.NFCTagDTO{}, nil
}

func (s *stubTagFlow) Unlink(ctx context.Context, tagUUID uuid.UUID, userID uint) (*dto.NFCTagDTO, error) {
	return &dto.NFCTagDTO{}, nil
}

func (s *stubTagFlow) Delete(ctx context.Context, tagUUID uuid.UUID, userID uint) error {
	return s.deleteErr
}

type stubTagQueryFlow struct{}

func (s *stubTagQueryFlow) ListTags(ctx context.Context, userID uint, limit, offset int) (*dto.ListTagsResult, error) {
	return &dto.ListTagsResult{}, nil
}

func (s *stubTagQueryFlow) GetTag(ctx context.Context, tagUUID uuid.UUID, userID uint) (*dto.NFCTagDTO, error) {
	return &dto.NFCTagDTO{}, nil
}

func (s *stubTagQueryFlow) ScanLookup(ctx context.Context, req *dto.ScanTagRequest, userID uint) (*dto.ScanTagResult, error) {
	return &dto.ScanTagResult{}, nil
}

type apiErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newDeleteTestApp(tagFlow businessflow.TagFlow) *fiber.App {
	handler := NewTagHandler(tagFlow, &stubTagQueryFlow{})

	app := fiber.New()
	app.Use(func(c fiber.Ctx) error {
		c.Locals("user_id", uint(1))
		return c.Next()
	})
	app.Delete("/api/v1/tags/:uuid", handler.Delete)
	return app
}

func TestDeleteTagStorageFailureReturnsBadRequest(t *testing.T) {
	flow := &stubTagFlow{
		deleteErr: fmt.Errorf("failed to delete tag: %w", errors.New("connection refused")),
	}
	app := newDeleteTestApp(flow)

	req := httptest.NewRequest(fiber.MethodDelete, "/api/v1/tags/"+uuid.NewString(), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body apiErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "DELETE_TAG_FAILED", body.Error.Code)
}

func TestDeleteTagNotFound(t *testing.T) {
	app := newDeleteTestApp(&stubTagFlow{deleteErr: businessflow.ErrTagNotFound})

	req := httptest.NewRequest(fiber.MethodDelete, "/api/v1/tags/"+uuid.NewString(), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body apiErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "TAG_NOT_FOUND", body.Error.Code)
}

func TestDeleteTagSucceeds(t *testing.T) {
	app := newDeleteTestApp(&stubTagFlow{})

	req := httptest.NewRequest(fiber.MethodDelete, "/api/v1/tags/"+uuid.NewString(), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestDeleteTagInvalidUUID(t *testing.T) {
	app := newDeleteTestApp(&stubTagFlow{})

	req := httptest.NewRequest(fiber.MethodDelete, "/api/v1/tags/not-a-uuid", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body apiErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "INVALID_TAG_UUID", body.Error.Code)
}
