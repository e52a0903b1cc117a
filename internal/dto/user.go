package dto

// ── users ──

// UpdateProfileRequest PUT /users/me
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=2,max=100"`
}

// UpdateSkillsRequest PUT /users/me/skills
type UpdateSkillsRequest struct {
	Skills []string `json:"skills" binding:"tag_list"`
}

// UpdateCompanyRequest PUT /users/me/company
type UpdateCompanyRequest struct {
	CompanyName string   `json:"company_name" binding:"omitempty,max=255"`
	CompanyICO  string   `json:"company_ico"  binding:"required,max=32"`
	LookingFor  []string `json:"looking_for"  binding:"tag_list"`
}

// CompanyResponse public company card
type CompanyResponse struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	CompanyName string   `json:"company_name"`
	CompanyICO  string   `json:"company_ico"`
	Email       string   `json:"email"`
	LookingFor  []string `json:"looking_for"`
}
