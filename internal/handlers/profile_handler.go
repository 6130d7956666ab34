package handlers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Yetunde495/mentorr-me/internal/models"
	"github.com/Yetunde495/mentorr-me/internal/repository"
	"github.com/Yetunde495/mentorr-me/internal/services"
)

const maxPhotoSizeBytes = 5 * 1024 * 1024

type profileStore interface {
	GetByUserID(ctx context.Context, userID int64) (*models.Profile, error)
	Update(ctx context.Context, userID int64, input repository.UpdateProfileInput) (*models.Profile, error)
}

type ProfileHandler struct {
	profileRepo    profileStore
	storageService services.StorageService
}

func NewProfileHandler(profileRepo profileStore, storageService services.StorageService) *ProfileHandler {
	return &ProfileHandler{
		profileRepo:    profileRepo,
		storageService: storageService,
	}
}

type updateProfileRequest struct {
	FullName   *string `json:"full_name"`
	Profession *string `json:"profession"`
	SkillFocus *string `json:"skill_focus"`
	Bio        *string `json:"bio"`
}

func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, _, err := chatActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	profile, err := h.profileRepo.GetByUserID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profile"})
	}

	return c.JSON(fiber.Map{
		"profile":             profile,
		"onboarding_complete": profile.OnboardingComplete,
	})
}

func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, _, err := chatActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if validationErr := validateProfileUpdateRequest(req); validationErr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr})
	}

	profile, err := h.profileRepo.Update(c.Context(), userID, repository.UpdateProfileInput{
		FullName:   req.FullName,
		Profession: req.Profession,
		SkillFocus: req.SkillFocus,
		Bio:        req.Bio,
	})
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	return c.JSON(fiber.Map{
		"profile":             profile,
		"onboarding_complete": profile.OnboardingComplete,
	})
}

func (h *ProfileHandler) UploadPhoto(c *fiber.Ctx) error {
	userID, _, err := chatActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if h.storageService == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage service is not configured"})
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "photo file is required"})
	}
	if fileHeader.Size <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "photo file is empty"})
	}
	if fileHeader.Size > maxPhotoSizeBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "photo file exceeds 5MB limit"})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "photo must be a jpg, jpeg, png, or webp file"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to open photo file"})
	}
	defer file.Close()

	filename := fmt.Sprintf("%d-%d%s", userID, time.Now().UnixNano(), ext)
	photoURL, err := h.storageService.UploadFile(c.Context(), file, filename, "profiles/photos")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload photo"})
	}

	current, err := h.profileRepo.GetByUserID(c.Context(), userID)
	if err == nil && current.PhotoURL != nil && *current.PhotoURL != "" && *current.PhotoURL != photoURL {
		_ = h.storageService.DeleteFile(c.Context(), *current.PhotoURL)
	}

	profile, err := h.profileRepo.Update(c.Context(), userID, repository.UpdateProfileInput{
		PhotoURL: &photoURL,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	return c.JSON(fiber.Map{
		"photo_url": photoURL,
		"profile":   profile,
	})
}

// GetMentor returns the assigned mentor's profile for the calling mentee,
// which is what the client needs to open the conversation.
func (h *ProfileHandler) GetMentor(c *fiber.Ctx) error {
	userID, role, err := chatActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != models.RoleMentee {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	profile, err := h.profileRepo.GetByUserID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profile"})
	}
	if profile.MentorID == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No mentor assigned"})
	}

	mentor, err := h.profileRepo.GetByUserID(c.Context(), *profile.MentorID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mentor profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch mentor profile"})
	}

	return c.JSON(fiber.Map{
		"mentor_id": strconv.FormatInt(*profile.MentorID, 10),
		"profile":   mentor,
	})
}
