package constants

type ErrandStatus string

const (
	StatusOpen      ErrandStatus = "open"
	StatusClaimed   ErrandStatus = "claimed"
	StatusCompleted ErrandStatus = "completed"
	StatusCancelled ErrandStatus = "cancelled"
)

// RatingRole names the capacity in which a user is being rated.
type RatingRole string

const (
	RoleRequester RatingRole = "requester"
	RoleRunner    RatingRole = "runner"
)

func ValidRole(r RatingRole) bool {
	return r == RoleRequester || r == RoleRunner
}

const (
	CampusBurnaby   = "burnaby"
	CampusSurrey    = "surrey"
	CampusVancouver = "vancouver"
)

// Campuses is the fixed set of supported campus values, stored lowercase.
var Campuses = []string{CampusBurnaby, CampusSurrey, CampusVancouver}

func ValidCampus(c string) bool {
	for _, campus := range Campuses {
		if c == campus {
			return true
		}
	}
	return false
}

const (
	MinStars = 1
	MaxStars = 5
)
