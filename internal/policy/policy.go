// Package policy decides, per request, whether the acting user may
// perform an action on a resource instance. Predicates are pure
// functions over (actor, resource); they hold no state and never touch
// the database, so handlers and tests call them directly.
//
// An admin override is evaluated before every per-action branch: a user
// whose role resolves to admin passes every check regardless of
// ownership. Roles outside the fixed enum degrade to the plain "user"
// role (see models.ParseRole), never to an error.
package policy

import (
	"github.com/devmorchid/secureboard/internal/models"
)

func isAdmin(actor *models.User) bool {
	return actor != nil && actor.HasRole(models.RoleAdmin)
}

func isManager(actor *models.User) bool {
	return actor != nil && actor.HasRole(models.RoleManager)
}

// Users

func CanViewAnyUsers(actor *models.User) bool {
	return isAdmin(actor)
}

func CanViewUser(actor *models.User, target *models.User) bool {
	if isAdmin(actor) {
		return true
	}
	return actor != nil && target != nil && actor.ID == target.ID
}

func CanCreateUser(actor *models.User) bool {
	return isAdmin(actor)
}

func CanUpdateUser(actor *models.User, target *models.User) bool {
	if isAdmin(actor) {
		return true
	}
	return actor != nil && target != nil && actor.ID == target.ID
}

func CanDeleteUser(actor *models.User, target *models.User) bool {
	return isAdmin(actor)
}

// Projects

func CanViewAnyProjects(actor *models.User) bool {
	return actor != nil
}

func CanViewProject(actor *models.User, project *models.Project) bool {
	if isAdmin(actor) {
		return true
	}
	if actor == nil || project == nil {
		return false
	}
	return project.OwnerID == actor.ID || isManager(actor)
}

func CanCreateProject(actor *models.User) bool {
	return isAdmin(actor) || isManager(actor)
}

func CanUpdateProject(actor *models.User, project *models.Project) bool {
	if isAdmin(actor) {
		return true
	}
	if actor == nil || project == nil {
		return false
	}
	return project.OwnerID == actor.ID || isManager(actor)
}

func CanDeleteProject(actor *models.User, project *models.Project) bool {
	return isAdmin(actor) || isManager(actor)
}

// Tasks

func CanViewAnyTasks(actor *models.User) bool {
	return actor != nil
}

func CanViewTask(actor *models.User, task *models.Task) bool {
	if isAdmin(actor) {
		return true
	}
	if actor == nil || task == nil {
		return false
	}
	if task.AssignedTo != nil && *task.AssignedTo == actor.ID {
		return true
	}
	return task.CreatedBy == actor.ID || isManager(actor)
}

// CanCreateTask admits every authenticated user: managers and admins,
// and plain users creating tasks for themselves.
func CanCreateTask(actor *models.User) bool {
	return actor != nil
}

func CanUpdateTask(actor *models.User, task *models.Task) bool {
	if isAdmin(actor) {
		return true
	}
	if actor == nil || task == nil {
		return false
	}
	// the assignee may update (e.g. move status); managers everything
	if task.AssignedTo != nil && *task.AssignedTo == actor.ID {
		return true
	}
	return isManager(actor)
}

func CanDeleteTask(actor *models.User, task *models.Task) bool {
	return isAdmin(actor) || isManager(actor)
}
