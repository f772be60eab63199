package directory

import (
	"errors"

	"chat-service/apperror"
	"chat-service/model"

	"gorm.io/gorm"
)

// Directory resolves the entity a chat room is bound to and enumerates the
// users that should seed its participant set.
type Directory struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// ResolveMembers checks that the entity exists and returns its member user
// ids, deduplicated. The roster depends on the entity kind: organizations,
// departments, teams and projects enumerate their member tables plus the
// owning user; tasks resolve creator, assignee and project owner.
func (d *Directory) ResolveMembers(entityType string, entityID uint) ([]uint, error) {
	switch entityType {
	case model.EntityOrganization:
		org := new(model.Organization)
		if err := d.db.First(org, entityID).Error; err != nil {
			return nil, translate(err, "Organization not found")
		}
		members, err := d.memberIDs(&model.OrganizationMember{OrganizationID: entityID}, "user_id")
		if err != nil {
			return nil, err
		}
		return dedupe(append(members, org.OwnerID)), nil

	case model.EntityDepartment:
		dept := new(model.Department)
		if err := d.db.First(dept, entityID).Error; err != nil {
			return nil, translate(err, "Department not found")
		}
		members, err := d.memberIDs(&model.DepartmentMember{DepartmentID: entityID}, "user_id")
		if err != nil {
			return nil, err
		}
		return dedupe(append(members, dept.ManagerID)), nil

	case model.EntityTeam:
		team := new(model.Team)
		if err := d.db.First(team, entityID).Error; err != nil {
			return nil, translate(err, "Team not found")
		}
		members, err := d.memberIDs(&model.TeamMember{TeamID: entityID}, "user_id")
		if err != nil {
			return nil, err
		}
		return dedupe(append(members, team.LeaderID)), nil

	case model.EntityProject:
		project := new(model.Project)
		if err := d.db.First(project, entityID).Error; err != nil {
			return nil, translate(err, "Project not found")
		}
		members, err := d.memberIDs(&model.ProjectMember{ProjectID: entityID}, "user_id")
		if err != nil {
			return nil, err
		}
		return dedupe(append(members, project.OwnerID)), nil

	case model.EntityTask:
		task := new(model.Task)
		if err := d.db.First(task, entityID).Error; err != nil {
			return nil, translate(err, "Task not found")
		}
		ids := []uint{task.CreatedBy}
		if task.AssignedTo != nil {
			ids = append(ids, *task.AssignedTo)
		}
		project := new(model.Project)
		if err := d.db.First(project, task.ProjectID).Error; err == nil {
			ids = append(ids, project.OwnerID)
		}
		return dedupe(ids), nil

	default:
		return nil, apperror.NewValidation("Unknown entity type")
	}
}

// ResolveOwner returns the user responsible for the entity: organization and
// project owner, department manager, team leader, task creator.
func (d *Directory) ResolveOwner(entityType string, entityID uint) (uint, error) {
	switch entityType {
	case model.EntityOrganization:
		org := new(model.Organization)
		if err := d.db.First(org, entityID).Error; err != nil {
			return 0, translate(err, "Organization not found")
		}
		return org.OwnerID, nil

	case model.EntityDepartment:
		dept := new(model.Department)
		if err := d.db.First(dept, entityID).Error; err != nil {
			return 0, translate(err, "Department not found")
		}
		return dept.ManagerID, nil

	case model.EntityTeam:
		team := new(model.Team)
		if err := d.db.First(team, entityID).Error; err != nil {
			return 0, translate(err, "Team not found")
		}
		return team.LeaderID, nil

	case model.EntityProject:
		project := new(model.Project)
		if err := d.db.First(project, entityID).Error; err != nil {
			return 0, translate(err, "Project not found")
		}
		return project.OwnerID, nil

	case model.EntityTask:
		task := new(model.Task)
		if err := d.db.First(task, entityID).Error; err != nil {
			return 0, translate(err, "Task not found")
		}
		return task.CreatedBy, nil

	default:
		return 0, apperror.NewValidation("Unknown entity type")
	}
}

func (d *Directory) memberIDs(cond any, column string) ([]uint, error) {
	var ids []uint
	if err := d.db.Model(cond).Where(cond).Pluck(column, &ids).Error; err != nil {
		return nil, apperror.NewUnexpected(err)
	}
	return ids, nil
}

func translate(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NewNotFound(message)
	}
	return apperror.NewUnexpected(err)
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
