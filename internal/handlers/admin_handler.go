package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/Yetunde495/mentorr-me/internal/models"
)

type userDirectory interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	ListByRole(ctx context.Context, role string) ([]models.User, error)
}

type mentorAssigner interface {
	AssignMentor(ctx context.Context, menteeID, mentorID int64) error
}

// AdminHandler covers the pairing workflow: mentees are matched to a mentor
// by an operator, never by self-service.
type AdminHandler struct {
	userRepo    userDirectory
	profileRepo mentorAssigner
}

func NewAdminHandler(userRepo userDirectory, profileRepo mentorAssigner) *AdminHandler {
	return &AdminHandler{
		userRepo:    userRepo,
		profileRepo: profileRepo,
	}
}

type assignMentorRequest struct {
	MenteeID int64 `json:"mentee_id"`
	MentorID int64 `json:"mentor_id"`
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	if !isAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	role := c.Query("role")
	if role != models.RoleMentor && role != models.RoleMentee {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "role must be mentor or mentee"})
	}

	users, err := h.userRepo.ListByRole(c.Context(), role)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list users"})
	}

	return c.JSON(fiber.Map{"users": users})
}

func (h *AdminHandler) AssignMentor(c *fiber.Ctx) error {
	if !isAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req assignMentorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.MenteeID <= 0 || req.MentorID <= 0 || req.MenteeID == req.MentorID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pairing"})
	}

	mentee, err := h.userRepo.GetByID(c.Context(), req.MenteeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mentee not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch user"})
	}
	mentor, err := h.userRepo.GetByID(c.Context(), req.MentorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mentor not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch user"})
	}
	if mentee.Role != models.RoleMentee || mentor.Role != models.RoleMentor {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Pairing must be a mentee and a mentor"})
	}

	if err := h.profileRepo.AssignMentor(c.Context(), req.MenteeID, req.MentorID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to assign mentor"})
	}

	return c.JSON(fiber.Map{
		"mentee_id": req.MenteeID,
		"mentor_id": req.MentorID,
	})
}

func isAdmin(c *fiber.Ctx) bool {
	role, ok := c.Locals("role").(string)
	return ok && role == models.RoleAdmin
}
