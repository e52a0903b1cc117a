package model

import "github.com/lib/pq"

// Roles. The role is fixed at signup.
const (
	RoleStudent     = "student"
	RoleCompany     = "company"
	RoleCoordinator = "coordinator"
	RoleAdmin       = "admin" // served by the coordinator surfaces
	RoleVisitor     = "visitor"
)

// User users table
type User struct {
	UserID       string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Email        string         `gorm:"type:varchar(255);not null"                     json:"email"`
	PasswordHash string         `gorm:"type:varchar(255);not null"                     json:"-"`
	DisplayName  string         `gorm:"type:varchar(255);not null;default:''"          json:"display_name"`
	Role         string         `gorm:"type:varchar(20);not null"                      json:"role"`
	Skills       pq.StringArray `gorm:"type:text[];not null;default:'{}'"              json:"skills"`
	CompanyName  string         `gorm:"type:varchar(255);not null;default:''"          json:"company_name"`
	CompanyICO   string         `gorm:"column:company_ico;type:varchar(32);not null;default:''" json:"company_ico"`
	LookingFor   pq.StringArray `gorm:"type:text[];not null;default:'{}'"              json:"looking_for"`
	SoftDeleteModel
}

// TableName users
func (User) TableName() string { return "users" }

// IsCoordinator coordinators and admins share review rights
func IsCoordinator(role string) bool {
	return role == RoleCoordinator || role == RoleAdmin
}

// ValidSignupRole roles a visitor may register as
func ValidSignupRole(role string) bool {
	switch role {
	case RoleStudent, RoleCompany, RoleCoordinator:
		return true
	}
	return false
}
