package domain

import "time"

type Engine string

const (
	EngineProgression Engine = "progression"
	EnginePopulation  Engine = "population"
	EngineControl     Engine = "control"
	EngineOrders      Engine = "orders"
	EngineImpact      Engine = "impact"
)

var Engines = []Engine{EngineProgression, EnginePopulation, EngineControl, EngineOrders, EngineImpact}

func (e Engine) Valid() bool {
	switch e {
	case EngineProgression, EnginePopulation, EngineControl, EngineOrders, EngineImpact:
		return true
	}
	return false
}

const ScopeAll = "all"

// Scope is a set of engines frozen by a maintenance command.
type Scope []Engine

// ParseScope accepts engine names or the single value "all".
func ParseScope(values []string) (Scope, error) {
	if len(values) == 0 {
		return nil, NewError(CodeInvalidRequest, "scope must not be empty")
	}
	seen := make(map[Engine]bool)
	var scope Scope
	for _, v := range values {
		if v == ScopeAll {
			return append(Scope(nil), Engines...), nil
		}
		e := Engine(v)
		if !e.Valid() {
			return nil, WithMetadata(CodeInvalidRequest, "unknown scope engine", map[string]string{"engine": v})
		}
		if !seen[e] {
			seen[e] = true
			scope = append(scope, e)
		}
	}
	return scope, nil
}

func (s Scope) Contains(e Engine) bool {
	for _, x := range s {
		if x == e {
			return true
		}
	}
	return false
}

func (s Scope) Overlaps(other Scope) bool {
	for _, e := range other {
		if s.Contains(e) {
			return true
		}
	}
	return false
}

type MaintenanceStatus string

const (
	MaintenanceAccepted   MaintenanceStatus = "accepted"
	MaintenanceRejected   MaintenanceStatus = "rejected"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
)

// Open reports whether the command still holds or will hold a freeze.
func (s MaintenanceStatus) Open() bool {
	return s == MaintenanceAccepted || s == MaintenanceInProgress
}

type MaintenanceCommand struct {
	CommandID        ID                `json:"commandId"`
	Reason           string            `json:"reason"`
	InitiatedBy      string            `json:"initiatedBy"`
	Scope            Scope             `json:"scope"`
	StartAt          time.Time         `json:"startAt"`
	ExpectedResumeAt *time.Time        `json:"expectedResumeAt,omitempty"`
	Status           MaintenanceStatus `json:"status"`
	RejectionReason  string            `json:"rejectionReason,omitempty"`
	CompletedAt      *time.Time        `json:"completedAt,omitempty"`
}

type MaintenanceRequest struct {
	Reason           string     `json:"reason"`
	InitiatedBy      string     `json:"initiatedBy"`
	Scope            []string   `json:"scope"`
	StartAt          *time.Time `json:"startAt,omitempty"`
	ExpectedResumeAt *time.Time `json:"expectedResumeAt,omitempty"`
}
