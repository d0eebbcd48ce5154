package invitations

import (
	"errors"
	"time"

	"davetjet-backend/internal/dispatch"
	"davetjet-backend/internal/domain"
	"davetjet-backend/internal/middleware"
	"davetjet-backend/internal/pkg/response"
	"davetjet-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// POST /api/v1/invitations
func (h *Handlers) CreateInvitation(c *fiber.Ctx) error {
	var body struct {
		Name           string    `json:"name"`
		Message        string    `json:"message"`
		Location       string    `json:"location"`
		Template       string    `json:"template"`
		InvitationDate time.Time `json:"invitation_date"`
		Reminders      bool      `json:"reminders"`
		ReminderConfig []int     `json:"reminder_config"`
		MaxReminders   int       `json:"max_reminders"`
		Password       string    `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil || body.Name == "" {
		return response.Error(c, "Name is required", 400, nil)
	}
	if body.Password != "" && !validation.IsValidPassword(body.Password) {
		return response.Error(c, "Password must be at least 8 characters with letters and numbers", 400, nil)
	}

	actor := middleware.GetUser(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	inv, err := h.Service.CreateInvitation(c.Context(), CreateInput{
		OwnerID:        actor.UserID,
		Name:           body.Name,
		Message:        body.Message,
		Location:       body.Location,
		Template:       body.Template,
		InvitationDate: body.InvitationDate,
		Reminders:      body.Reminders,
		ReminderConfig: body.ReminderConfig,
		MaxReminders:   body.MaxReminders,
		Password:       body.Password,
	})
	if err != nil {
		return response.Error(c, err.Error(), 400, nil)
	}
	return response.SuccessCreated(c, "Invitation created successfully", inv, nil)
}

// GET /api/v1/invitations
func (h *Handlers) ListInvitations(c *fiber.Ctx) error {
	actor := middleware.GetUser(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	invitations, err := h.Service.ListInvitations(c.Context(), actor.UserID)
	if err != nil {
		return response.Error(c, err.Error(), 400, nil)
	}
	return response.Success(c, "Invitations fetched successfully", invitations, nil)
}

// GET /api/v1/invitations/:id
func (h *Handlers) GetInvitation(c *fiber.Ctx) error {
	actor := middleware.GetUser(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid invitation id", 400, nil)
	}

	inv, err := h.Service.GetInvitation(c.Context(), actor.UserID, id)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, "Invitation fetched successfully", inv, nil)
}

// PATCH /api/v1/invitations/:id
func (h *Handlers) UpdateInvitation(c *fiber.Ctx) error {
	actor := middleware.GetUser(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid invitation id", 400, nil)
	}

	var body struct {
		Name           *string    `json:"name"`
		Message        *string    `json:"message"`
		Location       *string    `json:"location"`
		Template       *string    `json:"template"`
		InvitationDate *time.Time `json:"invitation_date"`
		Reminders      *bool      `json:"reminders"`
		ReminderConfig []int      `json:"reminder_config"`
		Password       *string    `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}

	inv, err := h.Service.UpdateInvitation(c.Context(), actor.UserID, id, UpdateInput{
		Name:           body.Name,
		Message:        body.Message,
		Location:       body.Location,
		Template:       body.Template,
		InvitationDate: body.InvitationDate,
		Reminders:      body.Reminders,
		ReminderConfig: body.ReminderConfig,
		Password:       body.Password,
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, "Invitation updated successfully", inv, nil)
}

// DELETE /api/v1/invitations/:id
func (h *Handlers) DeleteInvitation(c *fiber.Ctx) error {
	actor := middleware.GetUser(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid invitation id", 400, nil)
	}

	if err := h.Service.DeleteInvitation(c.Context(), actor.UserID, id); err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, "Invitation deleted successfully", nil, nil)
}

// POST /api/v1/invitations/:id/publish
func (h *Handlers) Publish(c *fiber.Ctx) error {
	actor := middleware.GetUser(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid invitation id", 400, nil)
	}

	report, err := h.Service.Publish(c.Context(), actor.UserID, id)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, "Invitation published successfully", report, nil)
}

// POST /api/v1/invitations/:id/schedule-send
func (h *Handlers) ScheduleSend(c *fiber.Ctx) error {
	actor := middleware.GetUser(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid invitation id", 400, nil)
	}

	var body dispatch.ScheduleSendRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}

	report, err := h.Service.ScheduleSend(c.Context(), actor.UserID, id, body)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, "Delivery scheduled successfully", report, nil)
}

// POST /api/v1/public/invitations/:slug/check-access (no auth)
func (h *Handlers) CheckAccess(c *fiber.Ctx) error {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}

	inv, err := h.Service.CheckAccess(c.Context(), c.Params("slug"), body.Token, body.Password)
	if err != nil {
		if errors.Is(err, ErrAccessDenied) {
			return response.Unauthorized(c, "Access denied")
		}
		return h.serviceError(c, err)
	}
	return response.Success(c, "Access granted", publicView(inv), nil)
}

// POST /api/v1/public/invitations/:slug/rsvp (no auth)
func (h *Handlers) SubmitRSVP(c *fiber.Ctx) error {
	var body struct {
		RecipientID string `json:"recipient_id"`
		Status      string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil || body.RecipientID == "" || body.Status == "" {
		return response.Error(c, "Recipient and status are required", 400, nil)
	}
	recipientID, err := uuid.Parse(body.RecipientID)
	if err != nil {
		return response.Error(c, "Invalid recipient id", 400, nil)
	}

	if err := h.Service.SubmitRSVP(c.Context(), c.Params("slug"), recipientID, body.Status); err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, "RSVP recorded successfully", nil, nil)
}

func (h *Handlers) serviceError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrNotFound) {
		return response.NotFound(c, err.Error())
	}
	return response.Error(c, err.Error(), 400, nil)
}

// publicView strips owner-only fields from the public payload.
func publicView(inv *domain.Invitation) fiber.Map {
	return fiber.Map{
		"slug":            inv.Slug,
		"name":            inv.Name,
		"message":         inv.Message,
		"location":        inv.Location,
		"template":        inv.Template,
		"invitation_date": inv.InvitationDate,
		"recipients":      inv.Recipients,
	}
}
