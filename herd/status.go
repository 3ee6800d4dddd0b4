/*
status.go - Named status enumerations and transition tables

PURPOSE:
  The original data model drove the breeding lifecycle off raw lookup-table
  integers (PdStatus id 3 = Pregnant, AiStatus id 2 = Failed, ...). Those ids
  are a wire contract consumed by the frontend, so they are preserved here as
  the numeric values of named constants, with the legal transitions written
  down as an explicit table instead of being implied by scattered if-checks.

STATE MACHINES:
  AiStatus:  Pending(3) -> Success(1) | Failed(2). Terminal after that.

  PdStatus:  New(7) -> Pending(1) -> Failed(2) | Pregnant(3)
             Pregnant(3) -> LateGestation(6)
             LateGestation(6) -> Gestation(5) | Complete(8) | StillBirth(9)

  New->Pending and Pregnant->LateGestation belong to the aging job; every
  other edge is a user action. The AI-failure cascade is an explicit override
  that forces PdStatusFailed from ANY prior state and is deliberately not
  part of the transition table.

SEE ALSO:
  - breeding.go: applies the transitions and the cascade
  - aging.go: the scheduler-owned edges
*/
package herd

// =============================================================================
// AI RECORD STATUS
// =============================================================================

type AiStatus int

const (
	AiStatusSuccess AiStatus = 1
	AiStatusFailed  AiStatus = 2
	AiStatusPending AiStatus = 3
)

func (s AiStatus) String() string {
	switch s {
	case AiStatusSuccess:
		return "Success"
	case AiStatusFailed:
		return "Failed"
	case AiStatusPending:
		return "Pending"
	default:
		return "Unknown"
	}
}

// Valid reports whether the value is a known AI status code.
func (s AiStatus) Valid() bool {
	return s == AiStatusSuccess || s == AiStatusFailed || s == AiStatusPending
}

// CanTransitionTo reports whether s -> next is a legal AI status edge.
// Only the forward edges out of Pending are modeled; there is no way back.
func (s AiStatus) CanTransitionTo(next AiStatus) bool {
	return s == AiStatusPending && (next == AiStatusSuccess || next == AiStatusFailed)
}

// =============================================================================
// PREGNANCY DIAGNOSIS STATUS
// =============================================================================

type PdStatus int

const (
	PdStatusPending       PdStatus = 1
	PdStatusFailed        PdStatus = 2
	PdStatusPregnant      PdStatus = 3
	PdStatusNoPregnant    PdStatus = 4
	PdStatusGestation     PdStatus = 5
	PdStatusLateGestation PdStatus = 6
	PdStatusNew           PdStatus = 7
	PdStatusComplete      PdStatus = 8
	PdStatusStillBirth    PdStatus = 9
)

func (s PdStatus) String() string {
	switch s {
	case PdStatusPending:
		return "Pending"
	case PdStatusFailed:
		return "AI Failed"
	case PdStatusPregnant:
		return "Pregnant"
	case PdStatusNoPregnant:
		return "No Pregnant"
	case PdStatusGestation:
		return "Gestation"
	case PdStatusLateGestation:
		return "Late Gestation"
	case PdStatusNew:
		return "New"
	case PdStatusComplete:
		return "Complete"
	case PdStatusStillBirth:
		return "Still Birth"
	default:
		return "Unknown"
	}
}

func (s PdStatus) Valid() bool {
	return s >= PdStatusPending && s <= PdStatusStillBirth
}

// pdTransitions is the full PD state machine. The AI-failure cascade is NOT
// listed: it is an override applied by UpdateAiStatus regardless of state.
var pdTransitions = map[PdStatus][]PdStatus{
	PdStatusNew:           {PdStatusPending},
	PdStatusPending:       {PdStatusFailed, PdStatusPregnant, PdStatusNoPregnant},
	PdStatusPregnant:      {PdStatusLateGestation},
	PdStatusLateGestation: {PdStatusGestation, PdStatusComplete, PdStatusStillBirth},
}

// CanTransitionTo reports whether s -> next is a legal PD edge.
func (s PdStatus) CanTransitionTo(next PdStatus) bool {
	for _, n := range pdTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist from s (other than
// the failure cascade, which can hit any state).
func (s PdStatus) Terminal() bool {
	return len(pdTransitions[s]) == 0
}

// =============================================================================
// COW STATUS / GENDER / ROLE
// =============================================================================

type CowStatus int

const (
	CowStatusActive  CowStatus = 1
	CowStatusCull    CowStatus = 2
	CowStatusDead    CowStatus = 3
	CowStatusNewBorn CowStatus = 4
	CowStatusGrowing CowStatus = 5
)

func (s CowStatus) String() string {
	switch s {
	case CowStatusActive:
		return "Active"
	case CowStatusCull:
		return "Cull"
	case CowStatusDead:
		return "Dead"
	case CowStatusNewBorn:
		return "New Born"
	case CowStatusGrowing:
		return "Growing"
	default:
		return "Unknown"
	}
}

func (s CowStatus) Valid() bool {
	return s >= CowStatusActive && s <= CowStatusGrowing
}

type CowGender int

const (
	GenderFemale CowGender = 1
	GenderMale   CowGender = 2
)

func (g CowGender) String() string {
	switch g {
	case GenderFemale:
		return "Female"
	case GenderMale:
		return "Male"
	default:
		return "Unknown"
	}
}

func (g CowGender) Valid() bool { return g == GenderFemale || g == GenderMale }

type CowRole int

const (
	RoleDam  CowRole = 1
	RoleSire CowRole = 2
	RoleCalf CowRole = 3
)

func (r CowRole) String() string {
	switch r {
	case RoleDam:
		return "Dam"
	case RoleSire:
		return "Sire"
	case RoleCalf:
		return "Calf"
	default:
		return "Unknown"
	}
}

func (r CowRole) Valid() bool { return r == RoleDam || r == RoleSire || r == RoleCalf }

// roleGenders mirrors the cow_role_gender link table: which genders a role
// accepts. A calf can be either sex; breeding roles are single-sex.
var roleGenders = map[CowRole][]CowGender{
	RoleDam:  {GenderFemale},
	RoleSire: {GenderMale},
	RoleCalf: {GenderFemale, GenderMale},
}

// AllowsGender reports whether the role is valid for the given gender.
func (r CowRole) AllowsGender(g CowGender) bool {
	for _, allowed := range roleGenders[r] {
		if allowed == g {
			return true
		}
	}
	return false
}

// statusRoles mirrors the cow_status_role link table: which roles a lifecycle
// status applies to. Cull and Dead apply to any role.
var statusRoles = map[CowStatus][]CowRole{
	CowStatusActive:  {RoleDam, RoleSire},
	CowStatusCull:    {RoleDam, RoleSire, RoleCalf},
	CowStatusDead:    {RoleDam, RoleSire, RoleCalf},
	CowStatusNewBorn: {RoleCalf},
	CowStatusGrowing: {RoleCalf},
}

// AllowsRole reports whether the status is valid for the given role.
func (s CowStatus) AllowsRole(r CowRole) bool {
	for _, allowed := range statusRoles[s] {
		if allowed == r {
			return true
		}
	}
	return false
}
