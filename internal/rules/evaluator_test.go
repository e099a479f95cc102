package rules

import (
	"context"
	"errors"
	"testing"

	"gorm.io/datatypes"

	"github.com/floreteng/bundld/internal/models"
)

type fakeRuleSource struct {
	exemptions []models.ExemptionRule
	appRules   []models.AppRule
	failure    error
}

func (f *fakeRuleSource) EnabledForApp(_ context.Context, pkg string) ([]models.ExemptionRule, error) {
	if f.failure != nil {
		return nil, f.failure
	}
	var out []models.ExemptionRule
	for _, rule := range f.exemptions {
		if rule.AppPackage == pkg && rule.IsEnabled {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (f *fakeRuleSource) ForPackage(_ context.Context, pkg string) ([]models.AppRule, error) {
	if f.failure != nil {
		return nil, f.failure
	}
	var out []models.AppRule
	for _, rule := range f.appRules {
		if rule.PackageName == pkg {
			out = append(out, rule)
		}
	}
	return out, nil
}

func strptr(s string) *string { return &s }

func chatInput(title, text string) Input {
	return Input{
		SourcePackage: "com.example.chat",
		Title:         title,
		Text:          text,
	}
}

func TestNoRulesAllows(t *testing.T) {
	e := NewEvaluator(&fakeRuleSource{}, &fakeRuleSource{})
	if got := e.Evaluate(context.Background(), chatInput("Alice", "hi")); got != DecisionAllow {
		t.Fatalf("got %s, want allow", got)
	}
}

func TestBlacklistWildcardSuppresses(t *testing.T) {
	src := &fakeRuleSource{appRules: []models.AppRule{
		{PackageName: "com.example.chat", Mode: models.RuleModeBlacklist},
	}}
	e := NewEvaluator(src, src)
	if got := e.Evaluate(context.Background(), chatInput("Alice", "hi")); got != DecisionSuppress {
		t.Fatalf("got %s, want suppress", got)
	}
}

func TestBlacklistFilterMissAllows(t *testing.T) {
	src := &fakeRuleSource{appRules: []models.AppRule{
		{PackageName: "com.example.chat", Mode: models.RuleModeBlacklist, FilterString: strptr("urgent")},
	}}
	e := NewEvaluator(src, src)
	if got := e.Evaluate(context.Background(), chatInput("Alice", "hi")); got != DecisionAllow {
		t.Fatalf("got %s, want allow", got)
	}
}

func TestWhitelistMatchAllows(t *testing.T) {
	src := &fakeRuleSource{appRules: []models.AppRule{
		{PackageName: "com.example.chat", Mode: models.RuleModeWhitelist, FilterString: strptr("alice")},
	}}
	e := NewEvaluator(src, src)
	if got := e.Evaluate(context.Background(), chatInput("Alice", "hi")); got != DecisionAllow {
		t.Fatalf("got %s, want allow", got)
	}
}

func TestUnmatchedWhitelistSuppresses(t *testing.T) {
	src := &fakeRuleSource{appRules: []models.AppRule{
		{PackageName: "com.example.chat", Mode: models.RuleModeWhitelist, FilterString: strptr("boss")},
	}}
	e := NewEvaluator(src, src)
	if got := e.Evaluate(context.Background(), chatInput("Alice", "hi")); got != DecisionSuppress {
		t.Fatalf("got %s, want suppress (whitelist present but unmatched)", got)
	}
}

func TestFirstMatchWinsInStoreOrder(t *testing.T) {
	src := &fakeRuleSource{appRules: []models.AppRule{
		{PackageName: "com.example.chat", Mode: models.RuleModeBlacklist, FilterString: strptr("alice")},
		{PackageName: "com.example.chat", Mode: models.RuleModeWhitelist, FilterString: strptr("alice")},
	}}
	e := NewEvaluator(src, src)
	if got := e.Evaluate(context.Background(), chatInput("Alice", "hi")); got != DecisionSuppress {
		t.Fatalf("got %s, want suppress (blacklist listed first)", got)
	}
}

func TestFilterMatchesSubText(t *testing.T) {
	src := &fakeRuleSource{appRules: []models.AppRule{
		{PackageName: "com.example.chat", Mode: models.RuleModeBlacklist, FilterString: strptr("work")},
	}}
	e := NewEvaluator(src, src)
	in := chatInput("Alice", "hi")
	in.SubText = "Work account"
	if got := e.Evaluate(context.Background(), in); got != DecisionSuppress {
		t.Fatalf("got %s, want suppress (filter should match sub text)", got)
	}
}

func TestCategoryExemptionBeatsAppRules(t *testing.T) {
	src := &fakeRuleSource{
		exemptions: []models.ExemptionRule{{
			AppPackage:     "com.example.chat",
			RuleType:       models.ExemptionTypeCall,
			CategoryFilter: strptr("call"),
			IsEnabled:      true,
		}},
		appRules: []models.AppRule{
			{PackageName: "com.example.chat", Mode: models.RuleModeBlacklist},
		},
	}
	e := NewEvaluator(src, src)
	in := chatInput("Incoming call", "")
	in.Category = "call"
	if got := e.Evaluate(context.Background(), in); got != DecisionExempt {
		t.Fatalf("got %s, want exempt", got)
	}
}

func TestCategoryExemptionRequiresRecognizedRuleType(t *testing.T) {
	src := &fakeRuleSource{
		exemptions: []models.ExemptionRule{{
			AppPackage:     "com.example.chat",
			RuleType:       models.ExemptionTypeMention,
			CategoryFilter: strptr("call"),
			IsEnabled:      true,
		}},
	}
	e := NewEvaluator(src, src)
	in := chatInput("Incoming call", "")
	in.Category = "call"
	if got := e.Evaluate(context.Background(), in); got != DecisionAllow {
		t.Fatalf("got %s, want allow (MENTION is keyword-only)", got)
	}
}

func TestKeywordExemptionCaseInsensitive(t *testing.T) {
	src := &fakeRuleSource{
		exemptions: []models.ExemptionRule{{
			AppPackage: "com.example.chat",
			RuleType:   models.ExemptionTypeMention,
			Keywords:   datatypes.JSON(`["Boss","payroll"]`),
			IsEnabled:  true,
		}},
		appRules: []models.AppRule{
			{PackageName: "com.example.chat", Mode: models.RuleModeBlacklist},
		},
	}
	e := NewEvaluator(src, src)
	if got := e.Evaluate(context.Background(), chatInput("Message", "about PAYROLL today")); got != DecisionExempt {
		t.Fatalf("got %s, want exempt", got)
	}
}

func TestMalformedKeywordsContributeNothing(t *testing.T) {
	src := &fakeRuleSource{
		exemptions: []models.ExemptionRule{{
			AppPackage: "com.example.chat",
			RuleType:   models.ExemptionTypeMention,
			Keywords:   datatypes.JSON(`{not json array`),
			IsEnabled:  true,
		}},
	}
	e := NewEvaluator(src, src)
	if got := e.Evaluate(context.Background(), chatInput("anything", "at all")); got != DecisionAllow {
		t.Fatalf("got %s, want allow (inert rule)", got)
	}
}

func TestInertExemptionNeverMatches(t *testing.T) {
	src := &fakeRuleSource{
		exemptions: []models.ExemptionRule{{
			AppPackage: "com.example.chat",
			RuleType:   models.ExemptionTypeMessage,
			IsEnabled:  true,
		}},
		appRules: []models.AppRule{
			{PackageName: "com.example.chat", Mode: models.RuleModeBlacklist},
		},
	}
	e := NewEvaluator(src, src)
	if got := e.Evaluate(context.Background(), chatInput("Alice", "hi")); got != DecisionSuppress {
		t.Fatalf("got %s, want suppress (inert exemption must not fire)", got)
	}
}

func TestStoreFailureFailsOpen(t *testing.T) {
	src := &fakeRuleSource{failure: errors.New("disk on fire")}
	e := NewEvaluator(src, src)
	if got := e.Evaluate(context.Background(), chatInput("Alice", "hi")); got != DecisionAllow {
		t.Fatalf("got %s, want allow on store failure", got)
	}
}
