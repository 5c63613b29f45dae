package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy holds every tunable constant of the engines. It is loaded from YAML once at startup.
type Policy struct {
	Version     string            `yaml:"version"`
	Progression ProgressionPolicy `yaml:"progression"`
	Population  PopulationPolicy  `yaml:"population"`
	Control     ControlPolicy     `yaml:"control"`
	Orders      OrdersPolicy      `yaml:"orders"`
	Impact      ImpactPolicy      `yaml:"impact"`
	Catalog     CatalogPolicy     `yaml:"catalog"`
}

type CurvePoint struct {
	Ratio float64 `yaml:"ratio"`
	Value float64 `yaml:"value"`
}

type ProgressionPolicy struct {
	DecayCurve      []CurvePoint  `yaml:"decay_curve"`
	TailValue       float64       `yaml:"tail_value"`
	TailSlope       float64       `yaml:"tail_slope"`
	FatigueWeight   float64       `yaml:"fatigue_weight"`
	DayRolloverHour int           `yaml:"day_rollover_hour"`
	TimeZone        string        `yaml:"time_zone"`
	CeilingFactor   float64       `yaml:"ceiling_factor"`
	EntryRetention  time.Duration `yaml:"entry_retention"`
	Recommendations []string      `yaml:"recommendations"`
}

// Location resolves TimeZone, defaulting to UTC.
func (p ProgressionPolicy) Location() (*time.Location, error) {
	if p.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(p.TimeZone)
}

type PopulationPolicy struct {
	AlertRatio float64 `yaml:"alert_ratio"`
}

type ControlPolicy struct {
	SupplyWeight       float64  `yaml:"supply_weight"`
	RaidWeight         float64  `yaml:"raid_weight"`
	ReputationWeight   float64  `yaml:"reputation_weight"`
	OwnershipThreshold float64  `yaml:"ownership_threshold"`
	ApprovalThreshold  float64  `yaml:"approval_threshold"`
	CapMin             *float64 `yaml:"cap_min"`
	CapMax             *float64 `yaml:"cap_max"`
}

type OrdersPolicy struct {
	DedupWindow        time.Duration `yaml:"dedup_window"`
	ToxicTerms         []string      `yaml:"toxic_terms"`
	ToxicityWarnRatio  float64       `yaml:"toxicity_warn_ratio"`
	ToxicityBlockRatio float64       `yaml:"toxicity_block_ratio"`
	ForbiddenTerms     []string      `yaml:"forbidden_terms"`
}

type ImpactPolicy struct {
	RollingWindow     time.Duration `yaml:"rolling_window"`
	MediumThreshold   float64       `yaml:"medium_threshold"`
	HighThreshold     float64       `yaml:"high_threshold"`
	CriticalThreshold float64       `yaml:"critical_threshold"`
	CrisisThreshold   float64       `yaml:"crisis_threshold"`
	DefaultActions    []string      `yaml:"default_actions"`
}

type SkillEntry struct {
	SkillID string  `yaml:"skill_id"`
	Name    string  `yaml:"name"`
	SoftCap float64 `yaml:"soft_cap"`
}

type ZoneEntry struct {
	ZoneID    string `yaml:"zone_id"`
	RegionID  string `yaml:"region_id"`
	MaxRating int    `yaml:"max_rating"`
}

type TemplateEntry struct {
	TemplateCode    string   `yaml:"template_code"`
	AllowedFactions []string `yaml:"allowed_factions"`
	Rating          int      `yaml:"rating"`
	Banned          bool     `yaml:"banned"`
	MinBudget       int64    `yaml:"min_budget"`
	MaxBudget       int64    `yaml:"max_budget"`
	MaxObjectives   int      `yaml:"max_objectives"`
}

type RegionEntry struct {
	RegionID     string  `yaml:"region_id"`
	Owner        string  `yaml:"owner"`
	ControlScore float64 `yaml:"control_score"`
}

// CatalogPolicy is the static reference data used when no remote catalog is configured.
type CatalogPolicy struct {
	Skills    []SkillEntry    `yaml:"skills"`
	Zones     []ZoneEntry     `yaml:"zones"`
	Templates []TemplateEntry `yaml:"templates"`
	Regions   []RegionEntry   `yaml:"regions"`
}

func LoadPolicy(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return ParsePolicy(raw)
}

func ParsePolicy(raw []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("policy.yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) Validate() error {
	var errs []error

	if p.Version == "" {
		errs = append(errs, fmt.Errorf("version is required"))
	}
	errs = append(errs, p.Progression.validate()...)

	if p.Population.AlertRatio <= 0 {
		errs = append(errs, fmt.Errorf("population.alert_ratio must be positive, got %v", p.Population.AlertRatio))
	}

	errs = append(errs, p.Control.validate()...)
	errs = append(errs, p.Orders.validate()...)
	errs = append(errs, p.Impact.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("policy validation failed:\n  %w", errors.Join(errs...))
	}
	return nil
}

func (p ProgressionPolicy) validate() []error {
	var errs []error

	if len(p.DecayCurve) == 0 {
		errs = append(errs, fmt.Errorf("progression.decay_curve must have at least one point"))
	} else {
		first := p.DecayCurve[0]
		if first.Ratio != 0 || first.Value != 1 {
			errs = append(errs, fmt.Errorf("progression.decay_curve must start at ratio 0 with value 1"))
		}
		for i := 1; i < len(p.DecayCurve); i++ {
			prev, cur := p.DecayCurve[i-1], p.DecayCurve[i]
			if cur.Ratio <= prev.Ratio || cur.Ratio > 1 {
				errs = append(errs, fmt.Errorf("progression.decay_curve ratios must increase within [0,1] (point %d)", i))
			}
			if cur.Value > prev.Value || cur.Value <= 0 {
				errs = append(errs, fmt.Errorf("progression.decay_curve values must be positive and non-increasing (point %d)", i))
			}
		}
		last := p.DecayCurve[len(p.DecayCurve)-1]
		if p.TailValue <= 0 || p.TailValue > last.Value {
			errs = append(errs, fmt.Errorf("progression.tail_value must be in (0, %v], got %v", last.Value, p.TailValue))
		}
	}

	if p.TailSlope < 0 {
		errs = append(errs, fmt.Errorf("progression.tail_slope must not be negative, got %v", p.TailSlope))
	}
	if p.FatigueWeight < 0 {
		errs = append(errs, fmt.Errorf("progression.fatigue_weight must not be negative, got %v", p.FatigueWeight))
	}
	if p.DayRolloverHour < 0 || p.DayRolloverHour > 23 {
		errs = append(errs, fmt.Errorf("progression.day_rollover_hour must be between 0 and 23, got %d", p.DayRolloverHour))
	}
	if _, err := p.Location(); err != nil {
		errs = append(errs, fmt.Errorf("progression.time_zone: %w", err))
	}
	if p.CeilingFactor != 0 && p.CeilingFactor < 1 {
		errs = append(errs, fmt.Errorf("progression.ceiling_factor must be 0 (disabled) or at least 1, got %v", p.CeilingFactor))
	}
	if p.EntryRetention <= 0 {
		errs = append(errs, fmt.Errorf("progression.entry_retention must be positive"))
	}

	return errs
}

func (p ControlPolicy) validate() []error {
	var errs []error

	if p.SupplyWeight < 0 || p.RaidWeight < 0 || p.ReputationWeight < 0 {
		errs = append(errs, fmt.Errorf("control weights must not be negative"))
	}
	if p.OwnershipThreshold <= 0 {
		errs = append(errs, fmt.Errorf("control.ownership_threshold must be positive, got %v", p.OwnershipThreshold))
	}
	if p.ApprovalThreshold < p.OwnershipThreshold {
		errs = append(errs, fmt.Errorf("control.approval_threshold must be at least ownership_threshold"))
	}
	if p.CapMin != nil && p.CapMax != nil && *p.CapMin > *p.CapMax {
		errs = append(errs, fmt.Errorf("control.cap_min must not exceed cap_max"))
	}

	return errs
}

func (p OrdersPolicy) validate() []error {
	var errs []error

	if p.DedupWindow <= 0 {
		errs = append(errs, fmt.Errorf("orders.dedup_window must be positive"))
	}
	if p.ToxicityWarnRatio <= 0 || p.ToxicityBlockRatio < p.ToxicityWarnRatio || p.ToxicityBlockRatio > 1 {
		errs = append(errs, fmt.Errorf("orders toxicity ratios must satisfy 0 < warn <= block <= 1"))
	}

	return errs
}

func (p ImpactPolicy) validate() []error {
	var errs []error

	if p.RollingWindow <= 0 {
		errs = append(errs, fmt.Errorf("impact.rolling_window must be positive"))
	}
	if !(0 < p.MediumThreshold && p.MediumThreshold <= p.HighThreshold &&
		p.HighThreshold <= p.CriticalThreshold && p.CriticalThreshold <= 1) {
		errs = append(errs, fmt.Errorf("impact thresholds must satisfy 0 < medium <= high <= critical <= 1"))
	}
	if p.CrisisThreshold <= 0 || p.CrisisThreshold > 1 {
		errs = append(errs, fmt.Errorf("impact.crisis_threshold must be in (0, 1], got %v", p.CrisisThreshold))
	}

	return errs
}
