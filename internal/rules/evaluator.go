// Package rules implements the capture decision algorithm: given an incoming
// notification and the configured rule sets, decide whether it is allowed
// through, exempt from bundling, or suppressed and held.
package rules

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/floreteng/bundld/internal/models"
)

// Decision is the outcome of evaluating one incoming notification.
type Decision int

const (
	// DecisionAllow leaves the notification untouched.
	DecisionAllow Decision = iota
	// DecisionExempt leaves the notification untouched because an exemption
	// rule matched; it is never stored.
	DecisionExempt
	// DecisionSuppress cancels the notification and holds it for bundling.
	DecisionSuppress
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionExempt:
		return "exempt"
	case DecisionSuppress:
		return "suppress"
	}
	return "unknown"
}

// Input carries the notification fields the evaluator inspects.
type Input struct {
	SourcePackage string
	Category      string
	Title         string
	Text          string
	SubText       string
}

// ExemptionSource supplies enabled exemption rules for a package.
type ExemptionSource interface {
	EnabledForApp(ctx context.Context, pkg string) ([]models.ExemptionRule, error)
}

// AppRuleSource supplies app rules for a package in stable order.
type AppRuleSource interface {
	ForPackage(ctx context.Context, pkg string) ([]models.AppRule, error)
}

// Evaluator decides the fate of incoming notifications.
type Evaluator struct {
	exemptions ExemptionSource
	appRules   AppRuleSource
}

// NewEvaluator constructs an Evaluator over the given rule sources.
func NewEvaluator(exemptions ExemptionSource, appRules AppRuleSource) *Evaluator {
	return &Evaluator{exemptions: exemptions, appRules: appRules}
}

// Evaluate runs the two-step decision: exemptions first, then app rules.
//
// Store read failures never surface to the caller; the evaluator fails open
// (allow) so a broken store degrades to no bundling rather than lost
// notifications.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) Decision {
	exempt, errExempt := e.isExempt(ctx, in)
	if errExempt != nil {
		log.WithError(errExempt).WithField("package", in.SourcePackage).
			Warn("evaluator: exemption lookup failed, allowing notification")
		return DecisionAllow
	}
	if exempt {
		return DecisionExempt
	}

	appRules, errRules := e.appRules.ForPackage(ctx, in.SourcePackage)
	if errRules != nil {
		log.WithError(errRules).WithField("package", in.SourcePackage).
			Warn("evaluator: app rule lookup failed, allowing notification")
		return DecisionAllow
	}
	return decideAppRules(appRules, in)
}

func (e *Evaluator) isExempt(ctx context.Context, in Input) (bool, error) {
	exemptionRules, err := e.exemptions.EnabledForApp(ctx, in.SourcePackage)
	if err != nil {
		return false, err
	}
	for i := range exemptionRules {
		if matchesExemption(&exemptionRules[i], in) {
			return true, nil
		}
	}
	return false, nil
}

// categoryRuleType reports whether the rule type participates in
// category-based matching. Keyword-only types like MENTION do not.
func categoryRuleType(ruleType string) bool {
	switch ruleType {
	case models.ExemptionTypeMessage, models.ExemptionTypeCall:
		return true
	}
	return false
}

func matchesExemption(rule *models.ExemptionRule, in Input) bool {
	if category := rule.Category(); category != "" && in.Category != "" {
		if category == in.Category && categoryRuleType(rule.RuleType) {
			return true
		}
	}

	keywords := rule.KeywordList()
	if len(keywords) == 0 {
		return false
	}
	combined := strings.ToLower(in.Title + " " + in.Text)
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(combined, keyword) {
			return true
		}
	}
	return false
}

// decideAppRules applies the whitelist/blacklist policy.
//
// Rules run in store order. The first blacklist rule whose filter matches
// suppresses; the first whitelist rule whose filter matches allows. When no
// filter matched at all, the presence of any whitelist rule means the
// notification was not explicitly allowed, so it is suppressed; a package with
// only unmatched blacklist rules is allowed through.
func decideAppRules(appRules []models.AppRule, in Input) Decision {
	if len(appRules) == 0 {
		return DecisionAllow
	}

	hasWhitelist := false
	for i := range appRules {
		rule := &appRules[i]
		if rule.Mode == models.RuleModeWhitelist {
			hasWhitelist = true
		}
		if !filterMatches(rule.Filter(), in) {
			continue
		}
		switch rule.Mode {
		case models.RuleModeWhitelist:
			return DecisionAllow
		case models.RuleModeBlacklist:
			return DecisionSuppress
		}
	}

	if hasWhitelist {
		return DecisionSuppress
	}
	return DecisionAllow
}

// filterMatches reports whether the filter string applies to the
// notification. A blank filter is a wildcard.
func filterMatches(filter string, in Input) bool {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(in.Title), filter) ||
		strings.Contains(strings.ToLower(in.Text), filter) ||
		strings.Contains(strings.ToLower(in.SubText), filter)
}
