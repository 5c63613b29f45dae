package catalog

import (
	"context"
	"fmt"

	"world-state-engine/internal/config"
	"world-state-engine/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Static serves reference data loaded from the policy file.
type Static struct {
	skills    map[string]domain.SkillDefinition
	zones     map[string]domain.ZoneDefinition
	templates map[string]domain.TemplateDefinition
}

func NewStatic(p config.CatalogPolicy) (*Static, error) {
	s := &Static{
		skills:    make(map[string]domain.SkillDefinition, len(p.Skills)),
		zones:     make(map[string]domain.ZoneDefinition, len(p.Zones)),
		templates: make(map[string]domain.TemplateDefinition, len(p.Templates)),
	}
	for _, sk := range p.Skills {
		s.skills[sk.SkillID] = domain.SkillDefinition{
			SkillID: sk.SkillID,
			Name:    sk.Name,
			SoftCap: decimal.NewFromFloat(sk.SoftCap),
		}
	}
	for _, z := range p.Zones {
		regionID, err := domain.ParseID(z.RegionID)
		if err != nil {
			return nil, fmt.Errorf("zone %s: region id: %w", z.ZoneID, err)
		}
		s.zones[z.ZoneID] = domain.ZoneDefinition{ZoneID: z.ZoneID, RegionID: regionID, MaxRating: z.MaxRating}
	}
	for _, t := range p.Templates {
		s.templates[t.TemplateCode] = domain.TemplateDefinition{
			TemplateCode:    t.TemplateCode,
			AllowedFactions: t.AllowedFactions,
			Rating:          t.Rating,
			Banned:          t.Banned,
			MinBudget:       t.MinBudget,
			MaxBudget:       t.MaxBudget,
			MaxObjectives:   t.MaxObjectives,
		}
	}
	return s, nil
}

func (s *Static) GetSkill(ctx context.Context, skillID string) (*domain.SkillDefinition, error) {
	sk, ok := s.skills[skillID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sk, nil
}

func (s *Static) GetZone(ctx context.Context, zoneID string) (*domain.ZoneDefinition, error) {
	z, ok := s.zones[zoneID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &z, nil
}

func (s *Static) GetTemplate(ctx context.Context, templateCode string) (*domain.TemplateDefinition, error) {
	t, ok := s.templates[templateCode]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}
