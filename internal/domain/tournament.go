package domain

import (
	"sort"
	"time"
)

// Mode - формат участия
type Mode string

const (
	ModeSolo  Mode = "solo"
	ModeDuo   Mode = "duo"
	ModeSquad Mode = "squad"
)

// TeamSizeRule bounds the number of players (leader included) per entry.
type TeamSizeRule struct {
	Min int
	Max int
}

var teamSizeRules = map[Mode]TeamSizeRule{
	ModeSolo:  {Min: 1, Max: 1},
	ModeDuo:   {Min: 2, Max: 2},
	ModeSquad: {Min: 2, Max: 4},
}

// SizeRule returns the team-size rule for the mode.
func (m Mode) SizeRule() (TeamSizeRule, bool) {
	r, ok := teamSizeRules[m]
	return r, ok
}

// IsTeam reports whether entries in this mode are teams.
func (m Mode) IsTeam() bool {
	return m == ModeDuo || m == ModeSquad
}

// Status - статус турнира
type Status string

const (
	StatusActive    Status = "active"
	StatusOngoing   Status = "ongoing"
	StatusEnded     Status = "ended"
	StatusCompleted Status = "completed" // no transition produces it
	StatusCancelled Status = "cancelled"
)

// ParticipantKind tags the Participant union.
type ParticipantKind string

const (
	ParticipantIndividual ParticipantKind = "individual"
	ParticipantTeam       ParticipantKind = "team"
)

// Individual is a solo entry.
type Individual struct {
	CustomUID string `json:"custom_uid"`
	IGN       string `json:"ign"`
	AuthUID   string `json:"auth_uid,omitempty"`
}

// TeamRef is the tournament's copy of a team entry.
type TeamRef struct {
	TeamID   string       `json:"team_id"`
	LeaderID string       `json:"leader_id,omitempty"`
	Members  []TeamMember `json:"members"`
}

// Participant is either an Individual or a TeamRef, decided by the tournament mode.
type Participant struct {
	Kind       ParticipantKind `json:"kind"`
	Individual *Individual     `json:"individual,omitempty"`
	Team       *TeamRef        `json:"team,omitempty"`
}

// AuthUID returns the account that paid for the entry.
func (p Participant) AuthUID() string {
	switch p.Kind {
	case ParticipantIndividual:
		if p.Individual != nil {
			return p.Individual.AuthUID
		}
	case ParticipantTeam:
		if p.Team != nil {
			return p.Team.LeaderID
		}
	}
	return ""
}

// Matches reports whether (uid, ign) identifies this entry. For teams only the leader qualifies.
func (p Participant) Matches(uid, ign string) bool {
	switch p.Kind {
	case ParticipantIndividual:
		return p.Individual != nil && p.Individual.CustomUID == uid && p.Individual.IGN == ign
	case ParticipantTeam:
		if p.Team == nil {
			return false
		}
		for _, m := range p.Team.Members {
			if m.Role == RoleLeader && m.UID == uid && m.IGN == ign {
				return true
			}
		}
	}
	return false
}

// Winner records the payout for one position.
type Winner struct {
	UID              string `json:"uid"`
	IGN              string `json:"ign"`
	AuthUID          string `json:"auth_uid,omitempty"`
	PrizeDistributed bool   `json:"prize_distributed"`
	PrizeAmount      int64  `json:"prize_amount"`
}

// Tournament is the document mutated by the lifecycle, registration and distribution services.
type Tournament struct {
	ID                      string             `json:"id"`
	Name                    string             `json:"name"`
	Mode                    Mode               `json:"mode"`
	HostID                  string             `json:"host_id"`
	MaxPlayers              int                `json:"max_players"`
	FilledSpots             int                `json:"filled_spots"`
	EntryFee                int64              `json:"entry_fee"`
	PrizeDistribution       map[string]int     `json:"prize_distribution,omitempty"`
	ManualPrizePool         map[string]int64   `json:"manual_prize_pool,omitempty"`
	Status                  Status             `json:"status"`
	ScheduledStart          time.Time          `json:"scheduled_start"`
	Participants            []Participant      `json:"participants"`
	CurrentPrizePool        int64              `json:"current_prize_pool"`
	Winners                 map[string]*Winner `json:"winners,omitempty"`
	TTL                     *time.Time         `json:"ttl,omitempty"`
	TotalPrizesDistributed  int64              `json:"total_prizes_distributed"`
	HostEarningsDistributed bool               `json:"host_earnings_distributed"`
	HostEarningsAmount      int64              `json:"host_earnings_amount"`
	CreatedAt               time.Time          `json:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at"`

	// Version is owned by the store and used for conditional writes.
	Version int64 `json:"-"`
}

// IsManual reports whether prizes are fixed amounts funded by the host.
func (t *Tournament) IsManual() bool {
	return t.EntryFee == 0
}

// IsFull reports whether no spot is left.
func (t *Tournament) IsFull() bool {
	return t.FilledSpots >= t.MaxPlayers
}

// HasParticipant matches by authUid for individuals and leaderId for teams.
func (t *Tournament) HasParticipant(authUID string) bool {
	for _, p := range t.Participants {
		if p.AuthUID() == authUID {
			return true
		}
	}
	return false
}

// GameUIDTaken reports whether an in-game uid is already registered, as an individual entry or
// on any team roster other than skipTeam.
func (t *Tournament) GameUIDTaken(uid, skipTeam string) bool {
	for _, p := range t.Participants {
		switch {
		case p.Kind == ParticipantIndividual && p.Individual != nil:
			if p.Individual.CustomUID == uid {
				return true
			}
		case p.Kind == ParticipantTeam && p.Team != nil:
			if p.Team.TeamID == skipTeam {
				continue
			}
			for _, m := range p.Team.Members {
				if m.UID == uid {
					return true
				}
			}
		}
	}
	return false
}

// FindEntry returns the entry identified by (uid, ign).
func (t *Tournament) FindEntry(uid, ign string) (Participant, bool) {
	for _, p := range t.Participants {
		if p.Matches(uid, ign) {
			return p, true
		}
	}
	return Participant{}, false
}

// CollectedPool is the pool before any payout: what remains plus what has already left.
func (t *Tournament) CollectedPool() int64 {
	return t.CurrentPrizePool + t.TotalPrizesDistributed + t.HostEarningsAmount
}

// Positions returns the prize positions in a stable order.
func (t *Tournament) Positions() []string {
	var out []string
	if t.IsManual() {
		for p := range t.ManualPrizePool {
			out = append(out, p)
		}
	} else {
		for p := range t.PrizeDistribution {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// HasPosition reports whether the position carries a prize.
func (t *Tournament) HasPosition(position string) bool {
	if t.IsManual() {
		_, ok := t.ManualPrizePool[position]
		return ok
	}
	_, ok := t.PrizeDistribution[position]
	return ok
}

// Distributed reports whether the position was already paid.
func (t *Tournament) Distributed(position string) bool {
	w, ok := t.Winners[position]
	return ok && w != nil && w.PrizeDistributed
}

// Redacted returns a copy safe for anonymous readers: account ids of entrants and winners are
// cleared, in-game identities stay.
func (t *Tournament) Redacted() *Tournament {
	out := *t
	out.Participants = make([]Participant, len(t.Participants))
	for i, p := range t.Participants {
		switch {
		case p.Individual != nil:
			ind := *p.Individual
			ind.AuthUID = ""
			p.Individual = &ind
		case p.Team != nil:
			ref := *p.Team
			ref.LeaderID = ""
			ref.Members = append([]TeamMember(nil), p.Team.Members...)
			p.Team = &ref
		}
		out.Participants[i] = p
	}
	out.Winners = make(map[string]*Winner, len(t.Winners))
	for pos, w := range t.Winners {
		if w == nil {
			continue
		}
		cp := *w
		cp.AuthUID = ""
		out.Winners[pos] = &cp
	}
	return &out
}
