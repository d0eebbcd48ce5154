package recipients

import (
	"errors"

	"davetjet-backend/internal/middleware"
	"davetjet-backend/internal/pkg/response"
	"davetjet-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// POST /api/v1/recipients
func (h *Handlers) CreateRecipient(c *fiber.Ctx) error {
	var body struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phone_number"`
		Address     string `json:"address"`
	}
	if err := c.BodyParser(&body); err != nil || body.Name == "" {
		return response.Error(c, "Name is required", 400, nil)
	}
	if body.Email == "" && body.PhoneNumber == "" {
		return response.Error(c, "An email or phone number is required", 400, nil)
	}
	if body.Email != "" && !validation.IsValidEmail(body.Email) {
		return response.Error(c, "Invalid email address", 400, nil)
	}

	actor := middleware.GetUser(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	rec, err := h.Service.CreateRecipient(c.Context(), CreateInput{
		OwnerID:     actor.UserID,
		Name:        body.Name,
		Email:       body.Email,
		PhoneNumber: body.PhoneNumber,
		Address:     body.Address,
	})
	if err != nil {
		return response.Error(c, err.Error(), 400, nil)
	}
	return response.SuccessCreated(c, "Recipient created successfully", rec, nil)
}

// GET /api/v1/recipients
func (h *Handlers) ListRecipients(c *fiber.Ctx) error {
	actor := middleware.GetUser(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	recs, err := h.Service.ListRecipients(c.Context(), actor.UserID)
	if err != nil {
		return response.Error(c, err.Error(), 400, nil)
	}
	return response.Success(c, "Recipients fetched successfully", recs, nil)
}

// PATCH /api/v1/recipients/:id
func (h *Handlers) UpdateRecipient(c *fiber.Ctx) error {
	actor := middleware.GetUser(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid recipient id", 400, nil)
	}

	var body struct {
		Name        *string `json:"name"`
		Email       *string `json:"email"`
		PhoneNumber *string `json:"phone_number"`
		Address     *string `json:"address"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}

	rec, report, err := h.Service.UpdateRecipient(c.Context(), actor.UserID, id, UpdateInput{
		Name:        body.Name,
		Email:       body.Email,
		PhoneNumber: body.PhoneNumber,
		Address:     body.Address,
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, "Recipient updated successfully", rec, fiber.Map{"dispatch": report})
}

// DELETE /api/v1/recipients/:id
func (h *Handlers) DeleteRecipient(c *fiber.Ctx) error {
	actor := middleware.GetUser(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid recipient id", 400, nil)
	}

	if err := h.Service.DeleteRecipient(c.Context(), actor.UserID, id); err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, "Recipient deleted successfully", nil, nil)
}

// POST /api/v1/invitations/:id/recipients
func (h *Handlers) AttachRecipients(c *fiber.Ctx) error {
	actor := middleware.GetUser(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	invitationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid invitation id", 400, nil)
	}

	var body struct {
		RecipientIDs []string `json:"recipient_ids"`
	}
	if err := c.BodyParser(&body); err != nil || len(body.RecipientIDs) == 0 {
		return response.Error(c, "recipient_ids is required", 400, nil)
	}
	ids := make([]uuid.UUID, 0, len(body.RecipientIDs))
	for _, raw := range body.RecipientIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return response.Error(c, "Invalid recipient id", 400, nil)
		}
		ids = append(ids, id)
	}

	report, err := h.Service.AttachRecipients(c.Context(), actor.UserID, invitationID, ids)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, "Recipients attached successfully", report, nil)
}

// DELETE /api/v1/invitations/:id/recipients/:recipientId
func (h *Handlers) DetachRecipient(c *fiber.Ctx) error {
	actor := middleware.GetUser(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	invitationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid invitation id", 400, nil)
	}
	recipientID, err := uuid.Parse(c.Params("recipientId"))
	if err != nil {
		return response.Error(c, "Invalid recipient id", 400, nil)
	}

	if err := h.Service.DetachRecipient(c.Context(), actor.UserID, invitationID, recipientID); err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, "Recipient detached successfully", nil, nil)
}

func (h *Handlers) serviceError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvitationNotFound) {
		return response.NotFound(c, err.Error())
	}
	return response.Error(c, err.Error(), 400, nil)
}
