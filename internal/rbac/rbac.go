package rbac

import "github.com/samruddhi2909/gitlabhq/internal/discussion"

type AccessLevel int
type Action string

const (
	NoAccess   AccessLevel = 0
	Guest      AccessLevel = 10
	Reporter   AccessLevel = 20
	Developer  AccessLevel = 30
	Maintainer AccessLevel = 40
	Owner      AccessLevel = 50
)

const (
	ActionRead         Action = "read"
	ActionComment      Action = "comment"
	ActionPushCode     Action = "push_code"
	ActionAdminProject Action = "admin_project"
)

func Can(level AccessLevel, action Action) bool {
	switch action {
	case ActionRead, ActionComment:
		return level >= Guest
	case ActionPushCode:
		return level >= Developer
	case ActionAdminProject:
		return level >= Maintainer
	default:
		return false
	}
}

// Normalize maps a stored access level onto the nearest known level at or below it.
func Normalize(level int) AccessLevel {
	switch {
	case level >= int(Owner):
		return Owner
	case level >= int(Maintainer):
		return Maintainer
	case level >= int(Developer):
		return Developer
	case level >= int(Reporter):
		return Reporter
	case level >= int(Guest):
		return Guest
	default:
		return NoAccess
	}
}

func (l AccessLevel) String() string {
	switch l {
	case Guest:
		return "guest"
	case Reporter:
		return "reporter"
	case Developer:
		return "developer"
	case Maintainer:
		return "maintainer"
	case Owner:
		return "owner"
	default:
		return "none"
	}
}

// TeamPolicy answers push questions from a project's loaded member list.
type TeamPolicy struct {
	ProjectID int64
	Members   map[int64]AccessLevel
}

func (p TeamPolicy) Level(userID int64) AccessLevel {
	return p.Members[userID]
}

func (p TeamPolicy) CanPush(user *discussion.User, project *discussion.Project) bool {
	if user == nil || project == nil || project.ID != p.ProjectID {
		return false
	}
	return Can(p.Level(user.ID), ActionPushCode)
}
