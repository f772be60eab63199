package model

import "gorm.io/gorm"

// Directory entities. This service does not own their lifecycle; it keeps a
// replicated membership view used to seed chat room participants.

type Organization struct {
	gorm.Model
	Name    string `gorm:"not null" json:"name"`
	OwnerID uint   `gorm:"not null" json:"owner_id"`
}

type OrganizationMember struct {
	gorm.Model
	OrganizationID uint `gorm:"not null;uniqueIndex:idx_org_member" json:"organization_id"`
	UserID         uint `gorm:"not null;uniqueIndex:idx_org_member" json:"user_id"`
}

type Department struct {
	gorm.Model
	OrganizationID uint   `gorm:"not null" json:"organization_id"`
	Name           string `gorm:"not null" json:"name"`
	ManagerID      uint   `gorm:"not null" json:"manager_id"`
}

type DepartmentMember struct {
	gorm.Model
	DepartmentID uint `gorm:"not null;uniqueIndex:idx_department_member" json:"department_id"`
	UserID       uint `gorm:"not null;uniqueIndex:idx_department_member" json:"user_id"`
}

type Team struct {
	gorm.Model
	Name     string `gorm:"not null" json:"name"`
	LeaderID uint   `gorm:"not null" json:"leader_id"`
}

type TeamMember struct {
	gorm.Model
	TeamID uint `gorm:"not null;uniqueIndex:idx_team_member" json:"team_id"`
	UserID uint `gorm:"not null;uniqueIndex:idx_team_member" json:"user_id"`
}

type Project struct {
	gorm.Model
	Name    string `gorm:"not null" json:"name"`
	OwnerID uint   `gorm:"not null" json:"owner_id"`
	TeamID  *uint  `json:"team_id"`
}

type ProjectMember struct {
	gorm.Model
	ProjectID uint `gorm:"not null;uniqueIndex:idx_project_member" json:"project_id"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_project_member" json:"user_id"`
}

type Task struct {
	gorm.Model
	ProjectID  uint   `gorm:"not null" json:"project_id"`
	Title      string `gorm:"not null" json:"title"`
	CreatedBy  uint   `gorm:"not null" json:"created_by"`
	AssignedTo *uint  `json:"assigned_to"`
}
