package domain

import "time"

// MemberRole - роль в команде
type MemberRole string

const (
	RoleLeader MemberRole = "leader"
	RoleMember MemberRole = "member"
)

type TeamMember struct {
	Role MemberRole `json:"role"`
	IGN  string     `json:"ign"`
	UID  string     `json:"uid"`
}

// Team is created once per team join and only changes through its leader.
type Team struct {
	ID           string       `json:"id"`
	TournamentID string       `json:"tournament_id"`
	LeaderID     string       `json:"leader_id"`
	Members      []TeamMember `json:"members"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`

	Version int64 `json:"-"`
}

// Leader returns the member with the leader role.
func (t *Team) Leader() (TeamMember, bool) {
	for _, m := range t.Members {
		if m.Role == RoleLeader {
			return m, true
		}
	}
	return TeamMember{}, false
}

// Ref builds the copy embedded in the tournament participant list.
func (t *Team) Ref() *TeamRef {
	members := make([]TeamMember, len(t.Members))
	copy(members, t.Members)
	return &TeamRef{TeamID: t.ID, LeaderID: t.LeaderID, Members: members}
}
