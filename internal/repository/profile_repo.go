package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Yetunde495/mentorr-me/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) CreateEmpty(ctx context.Context, userID int64) error {
	query := `INSERT INTO profiles (user_id) VALUES ($1)`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.Profile, error) {
	query := `
		SELECT id, user_id, full_name, profession, skill_focus, bio, photo_url,
			   mentor_id, onboarding_complete, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	var profile models.Profile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.FullName,
		&profile.Profession,
		&profile.SkillFocus,
		&profile.Bio,
		&profile.PhotoURL,
		&profile.MentorID,
		&profile.OnboardingComplete,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

type UpdateProfileInput struct {
	FullName   *string
	Profession *string
	SkillFocus *string
	Bio        *string
	PhotoURL   *string
}

func (r *ProfileRepository) Update(ctx context.Context, userID int64, input UpdateProfileInput) (*models.Profile, error) {
	query := `
		UPDATE profiles
		SET full_name = COALESCE($1, full_name),
			profession = COALESCE($2, profession),
			skill_focus = COALESCE($3, skill_focus),
			bio = COALESCE($4, bio),
			photo_url = COALESCE($5, photo_url),
			onboarding_complete = TRUE,
			updated_at = NOW()
		WHERE user_id = $6
		RETURNING id, user_id, full_name, profession, skill_focus, bio, photo_url,
				  mentor_id, onboarding_complete, created_at, updated_at
	`
	var profile models.Profile
	err := r.db.QueryRow(ctx, query,
		input.FullName,
		input.Profession,
		input.SkillFocus,
		input.Bio,
		input.PhotoURL,
		userID,
	).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.FullName,
		&profile.Profession,
		&profile.SkillFocus,
		&profile.Bio,
		&profile.PhotoURL,
		&profile.MentorID,
		&profile.OnboardingComplete,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// AssignMentor records the admin pairing on the mentee's profile. It does not
// create the conversation; the first message does, so re-assignment can never
// wipe chat history.
func (r *ProfileRepository) AssignMentor(ctx context.Context, menteeID, mentorID int64) error {
	query := `
		UPDATE profiles
		SET mentor_id = $1,
			updated_at = NOW()
		WHERE user_id = $2
	`
	tag, err := r.db.Exec(ctx, query, mentorID, menteeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}
