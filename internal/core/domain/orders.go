package domain

import (
	"fmt"
	"time"
)

type Order struct {
	OrderID      ID       `json:"orderId"`
	SubmitterID  string   `json:"submitterId"`
	TemplateCode string   `json:"templateCode"`
	ZoneID       string   `json:"zoneId"`
	Objectives   []string `json:"objectives"`
	Description  string   `json:"description,omitempty"`
	FactionID    string   `json:"factionId,omitempty"`
	Budget       int64    `json:"budget,omitempty"`
}

type Category string

const (
	CategoryTerritory    Category = "territory"
	CategorySanctions    Category = "sanctions"
	CategoryLegal        Category = "legal"
	CategoryToxicity     Category = "toxicity"
	CategoryBudgetBounds Category = "budgetBounds"
	CategoryDuplicates   Category = "duplicates"
)

// Categories lists every validation category in report order.
var Categories = []Category{
	CategoryTerritory,
	CategorySanctions,
	CategoryLegal,
	CategoryToxicity,
	CategoryBudgetBounds,
	CategoryDuplicates,
}

type Status string

const (
	StatusPass Status = "PASS"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

func (s Status) rank() (int, bool) {
	switch s {
	case StatusPass:
		return 0, true
	case StatusWarn:
		return 1, true
	case StatusFail:
		return 2, true
	default:
		return 0, false
	}
}

// Valid reports whether s is one of PASS, WARN or FAIL.
func (s Status) Valid() bool {
	_, ok := s.rank()
	return ok
}

// Worse returns the more severe of s and other.
// Statuses only come from NewCategoryResult, so an unknown one is a bug and panics.
func (s Status) Worse(other Status) Status {
	a, ok := s.rank()
	if !ok {
		panic(fmt.Sprintf("domain: unknown validation status %q", s))
	}
	b, ok := other.rank()
	if !ok {
		panic(fmt.Sprintf("domain: unknown validation status %q", other))
	}
	if b > a {
		return other
	}
	return s
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type ValidationIssue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Blocking bool     `json:"blocking"`
	Message  string   `json:"message"`
}

const IssueCategoryTimeout = "CATEGORY_TIMEOUT"

type CategoryResult struct {
	Category Category          `json:"category"`
	Status   Status            `json:"status"`
	Issues   []ValidationIssue `json:"issues"`
}

// NewCategoryResult derives the status from the issues so a FAIL always has a blocking issue.
func NewCategoryResult(category Category, issues []ValidationIssue) CategoryResult {
	status := StatusPass
	for _, issue := range issues {
		if issue.Blocking {
			status = StatusFail
			break
		}
		status = StatusWarn
	}
	if issues == nil {
		issues = []ValidationIssue{}
	}
	return CategoryResult{Category: category, Status: status, Issues: issues}
}

type ValidationSummary struct {
	OverallStatus  Status    `json:"overallStatus"`
	BlockingIssues int       `json:"blockingIssues"`
	PolicyVersion  string    `json:"policyVersion"`
	AuditTraceID   ID        `json:"auditTraceId"`
	ValidatedAt    time.Time `json:"validatedAt"`
}

type ValidationChecklist struct {
	OrderID     ID                          `json:"orderId"`
	SubmitterID string                      `json:"submitterId"`
	Fingerprint string                      `json:"fingerprint"`
	Categories  map[Category]CategoryResult `json:"categories"`
	Summary     ValidationSummary           `json:"summary"`
}

// Summarize folds category results into a summary. Missing categories are not counted.
func Summarize(results map[Category]CategoryResult) (Status, int) {
	overall := StatusPass
	blocking := 0
	for _, category := range Categories {
		result, ok := results[category]
		if !ok {
			continue
		}
		overall = overall.Worse(result.Status)
		for _, issue := range result.Issues {
			if issue.Blocking {
				blocking++
			}
		}
	}
	return overall, blocking
}
