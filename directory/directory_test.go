package directory

import (
	"testing"

	"chat-service/apperror"
	"chat-service/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDirectory(t *testing.T) (*Directory, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Organization{}, &model.OrganizationMember{},
		&model.Department{}, &model.DepartmentMember{},
		&model.Team{}, &model.TeamMember{},
		&model.Project{}, &model.ProjectMember{},
		&model.Task{},
	))
	return New(db), db
}

func TestResolveOrganizationMembers(t *testing.T) {
	d, db := newTestDirectory(t)

	org := &model.Organization{Name: "Acme", OwnerID: 1}
	require.NoError(t, db.Create(org).Error)
	require.NoError(t, db.Create(&model.OrganizationMember{OrganizationID: org.ID, UserID: 2}).Error)
	// The owner also appears in the member table; the roster stays deduplicated.
	require.NoError(t, db.Create(&model.OrganizationMember{OrganizationID: org.ID, UserID: 1}).Error)

	members, err := d.ResolveMembers(model.EntityOrganization, org.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 2}, members)
}

func TestResolveDepartmentMembers(t *testing.T) {
	d, db := newTestDirectory(t)

	dept := &model.Department{OrganizationID: 1, Name: "Engineering", ManagerID: 3}
	require.NoError(t, db.Create(dept).Error)
	require.NoError(t, db.Create(&model.DepartmentMember{DepartmentID: dept.ID, UserID: 4}).Error)

	members, err := d.ResolveMembers(model.EntityDepartment, dept.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{3, 4}, members)
}

func TestResolveTeamMembers(t *testing.T) {
	d, db := newTestDirectory(t)

	team := &model.Team{Name: "Core", LeaderID: 5}
	require.NoError(t, db.Create(team).Error)
	require.NoError(t, db.Create(&model.TeamMember{TeamID: team.ID, UserID: 6}).Error)
	require.NoError(t, db.Create(&model.TeamMember{TeamID: team.ID, UserID: 7}).Error)

	members, err := d.ResolveMembers(model.EntityTeam, team.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{5, 6, 7}, members)
}

func TestResolveProjectMembers(t *testing.T) {
	d, db := newTestDirectory(t)

	project := &model.Project{Name: "Launch", OwnerID: 8}
	require.NoError(t, db.Create(project).Error)
	require.NoError(t, db.Create(&model.ProjectMember{ProjectID: project.ID, UserID: 9}).Error)

	members, err := d.ResolveMembers(model.EntityProject, project.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{8, 9}, members)
}

func TestResolveTaskMembers(t *testing.T) {
	d, db := newTestDirectory(t)

	project := &model.Project{Name: "Launch", OwnerID: 10}
	require.NoError(t, db.Create(project).Error)

	assignee := uint(11)
	task := &model.Task{ProjectID: project.ID, Title: "Ship", CreatedBy: 12, AssignedTo: &assignee}
	require.NoError(t, db.Create(task).Error)

	members, err := d.ResolveMembers(model.EntityTask, task.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{10, 11, 12}, members)
}

func TestResolveTaskWithoutAssignee(t *testing.T) {
	d, db := newTestDirectory(t)

	project := &model.Project{Name: "Launch", OwnerID: 10}
	require.NoError(t, db.Create(project).Error)
	task := &model.Task{ProjectID: project.ID, Title: "Triage", CreatedBy: 10}
	require.NoError(t, db.Create(task).Error)

	members, err := d.ResolveMembers(model.EntityTask, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{10}, members)
}

func TestResolveMissingEntity(t *testing.T) {
	d, _ := newTestDirectory(t)

	for _, entityType := range []string{
		model.EntityOrganization, model.EntityDepartment, model.EntityTeam,
		model.EntityProject, model.EntityTask,
	} {
		_, err := d.ResolveMembers(entityType, 9999)
		require.Error(t, err, entityType)
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound), entityType)
	}
}

func TestResolveUnknownEntityType(t *testing.T) {
	d, _ := newTestDirectory(t)

	_, err := d.ResolveMembers("WORKSPACE", 1)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestResolveOwner(t *testing.T) {
	d, db := newTestDirectory(t)

	org := &model.Organization{Name: "Acme", OwnerID: 1}
	require.NoError(t, db.Create(org).Error)
	dept := &model.Department{OrganizationID: org.ID, Name: "Engineering", ManagerID: 2}
	require.NoError(t, db.Create(dept).Error)
	team := &model.Team{Name: "Core", LeaderID: 3}
	require.NoError(t, db.Create(team).Error)
	project := &model.Project{Name: "Launch", OwnerID: 4}
	require.NoError(t, db.Create(project).Error)
	task := &model.Task{ProjectID: project.ID, Title: "Ship", CreatedBy: 5}
	require.NoError(t, db.Create(task).Error)

	cases := []struct {
		entityType string
		entityID   uint
		owner      uint
	}{
		{model.EntityOrganization, org.ID, 1},
		{model.EntityDepartment, dept.ID, 2},
		{model.EntityTeam, team.ID, 3},
		{model.EntityProject, project.ID, 4},
		{model.EntityTask, task.ID, 5},
	}
	for _, tc := range cases {
		owner, err := d.ResolveOwner(tc.entityType, tc.entityID)
		require.NoError(t, err, tc.entityType)
		assert.Equal(t, tc.owner, owner, tc.entityType)
	}
}

func TestResolveOwnerMissingEntity(t *testing.T) {
	d, _ := newTestDirectory(t)

	_, err := d.ResolveOwner(model.EntityTeam, 9999)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	_, err = d.ResolveOwner("WORKSPACE", 1)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}
