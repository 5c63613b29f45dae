package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"world-state-engine/internal/core/domain"

	"golang.org/x/text/cases"
)

type checkFunc func(ctx context.Context, in *orderInput) ([]domain.ValidationIssue, error)

func blocking(code, format string, args ...any) domain.ValidationIssue {
	return domain.ValidationIssue{Code: code, Severity: domain.SeverityCritical, Blocking: true, Message: fmt.Sprintf(format, args...)}
}

func warning(code, format string, args ...any) domain.ValidationIssue {
	return domain.ValidationIssue{Code: code, Severity: domain.SeverityWarning, Message: fmt.Sprintf(format, args...)}
}

func (s *Service) checks() map[domain.Category]checkFunc {
	return map[domain.Category]checkFunc{
		domain.CategoryTerritory:    s.checkTerritory,
		domain.CategorySanctions:    s.checkSanctions,
		domain.CategoryLegal:        s.checkLegal,
		domain.CategoryToxicity:     s.checkToxicity,
		domain.CategoryBudgetBounds: s.checkBudgetBounds,
		domain.CategoryDuplicates:   s.checkDuplicates,
	}
}

func (s *Service) checkTerritory(ctx context.Context, in *orderInput) ([]domain.ValidationIssue, error) {
	zone, err := in.zone()
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.ValidationIssue{blocking("UNKNOWN_ZONE", "zone %q does not exist", in.order.ZoneID)}, nil
	}
	if err != nil {
		return nil, err
	}

	var issues []domain.ValidationIssue
	faction := strings.TrimSpace(in.order.FactionID)
	if faction == "" {
		return issues, nil
	}

	fold := cases.Fold()
	if template, err := in.template(); err == nil && len(template.AllowedFactions) > 0 {
		allowed := slices.ContainsFunc(template.AllowedFactions, func(f string) bool {
			return fold.String(f) == fold.String(faction)
		})
		if !allowed {
			issues = append(issues, blocking("FACTION_NOT_ALLOWED", "faction %q may not run template %s", faction, template.TemplateCode))
		}
	}

	if s.regions != nil && zone.RegionID != domain.NilID {
		region, err := s.regions.GetRegion(ctx, zone.RegionID)
		switch {
		case err == nil:
			if fold.String(region.CurrentOwner) != fold.String(faction) {
				issues = append(issues, warning("CONTESTED_TERRITORY", "zone %s lies in a region held by %s", zone.ZoneID, region.CurrentOwner))
			}
		case !errors.Is(err, domain.ErrRegionNotFound):
			return nil, err
		}
	}
	return issues, nil
}

func (s *Service) checkSanctions(ctx context.Context, in *orderInput) ([]domain.ValidationIssue, error) {
	sanctions, err := s.store.ListActiveSanctions(ctx, in.at)
	if err != nil {
		return nil, err
	}

	var issues []domain.ValidationIssue
	for _, sanction := range sanctions {
		if !sanction.ActiveAt(in.at) || !sanction.Matches(in.order.SubmitterID, in.order.ZoneID) {
			continue
		}
		if sanction.Severity == domain.SanctionBlock {
			issues = append(issues, blocking("SANCTIONED", "active sanction %s: %s", sanction.SanctionID, sanction.Reason))
		} else {
			issues = append(issues, warning("SANCTION_WARNING", "active sanction %s: %s", sanction.SanctionID, sanction.Reason))
		}
	}
	return issues, nil
}

func (s *Service) checkLegal(ctx context.Context, in *orderInput) ([]domain.ValidationIssue, error) {
	var issues []domain.ValidationIssue

	template, err := in.template()
	switch {
	case errors.Is(err, domain.ErrNotFound):
		issues = append(issues, blocking("UNKNOWN_TEMPLATE", "template %q does not exist", in.order.TemplateCode))
	case err != nil:
		return nil, err
	default:
		if template.Banned {
			issues = append(issues, blocking("TEMPLATE_BANNED", "template %s is banned", template.TemplateCode))
		}
		if zone, err := in.zone(); err == nil && zone.MaxRating > 0 && template.Rating > zone.MaxRating {
			issues = append(issues, blocking("RATING_EXCEEDS_ZONE", "template rating %d exceeds zone limit %d", template.Rating, zone.MaxRating))
		}
	}

	text := " " + strings.Join(words(in.text()), " ") + " "
	for _, term := range s.forbidden {
		if strings.Contains(text, " "+term+" ") {
			issues = append(issues, blocking("FORBIDDEN_TERM", "order mentions forbidden term %q", term))
		}
	}
	return issues, nil
}

func (s *Service) checkToxicity(ctx context.Context, in *orderInput) ([]domain.ValidationIssue, error) {
	ratio, hits := s.toxicity.ratio(in.text())
	switch {
	case ratio.GreaterThanOrEqual(s.blockRatio):
		return []domain.ValidationIssue{blocking("TOXIC_CONTENT", "toxicity ratio %s (%s)", ratio.StringFixed(2), strings.Join(hits, ", "))}, nil
	case ratio.GreaterThanOrEqual(s.warnRatio):
		return []domain.ValidationIssue{warning("TOXICITY_WARNING", "toxicity ratio %s (%s)", ratio.StringFixed(2), strings.Join(hits, ", "))}, nil
	}
	return nil, nil
}

func (s *Service) checkBudgetBounds(ctx context.Context, in *orderInput) ([]domain.ValidationIssue, error) {
	template, err := in.template()
	if errors.Is(err, domain.ErrNotFound) {
		// reported by the legal check
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var issues []domain.ValidationIssue
	budget := in.order.Budget
	switch {
	case budget == 0 && template.MinBudget > 0:
		issues = append(issues, warning("BUDGET_MISSING", "template %s expects a budget of at least %d", template.TemplateCode, template.MinBudget))
	case budget < template.MinBudget:
		issues = append(issues, blocking("BUDGET_BELOW_MIN", "budget %d below minimum %d", budget, template.MinBudget))
	case template.MaxBudget > 0 && budget > template.MaxBudget:
		issues = append(issues, blocking("BUDGET_ABOVE_MAX", "budget %d above maximum %d", budget, template.MaxBudget))
	}
	if template.MaxObjectives > 0 && len(in.order.Objectives) > template.MaxObjectives {
		issues = append(issues, blocking("TOO_MANY_OBJECTIVES", "%d objectives exceed the limit of %d", len(in.order.Objectives), template.MaxObjectives))
	}
	return issues, nil
}

func (s *Service) checkDuplicates(ctx context.Context, in *orderInput) ([]domain.ValidationIssue, error) {
	if first, dup := s.dedup.lookup(in.fingerprint, in.order.OrderID, in.at); dup {
		return []domain.ValidationIssue{blocking("DUPLICATE_ORDER", "identical to order %s within %s", first, s.policy.DedupWindow)}, nil
	}
	return nil, nil
}
