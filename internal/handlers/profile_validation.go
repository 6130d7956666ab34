package handlers

import "strings"

const (
	maxFullNameLength   = 120
	maxProfessionLength = 120
	maxSkillFocusLength = 160
	maxBioLength        = 2000
)

func validateProfileUpdateRequest(req updateProfileRequest) string {
	if req.FullName != nil {
		trimmed := strings.TrimSpace(*req.FullName)
		if trimmed == "" {
			return "full_name cannot be empty"
		}
		if len(trimmed) > maxFullNameLength {
			return "full_name is too long"
		}
	}
	if req.Profession != nil && len(strings.TrimSpace(*req.Profession)) > maxProfessionLength {
		return "profession is too long"
	}
	if req.SkillFocus != nil && len(strings.TrimSpace(*req.SkillFocus)) > maxSkillFocusLength {
		return "skill_focus is too long"
	}
	if req.Bio != nil && len(strings.TrimSpace(*req.Bio)) > maxBioLength {
		return "bio is too long"
	}
	return ""
}
