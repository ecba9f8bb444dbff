package classify

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Archetype is the coarse website category inferred from a prompt.
type Archetype string

const (
	ArchetypeLanding    Archetype = "landing"
	ArchetypeEcommerce  Archetype = "ecommerce"
	ArchetypeBlog       Archetype = "blog"
	ArchetypePortfolio  Archetype = "portfolio"
	ArchetypeSaaS       Archetype = "saas"
	ArchetypeRestaurant Archetype = "restaurant"
	ArchetypeCustom     Archetype = "custom"
)

// Style is the visual direction inferred from a prompt.
type Style string

const (
	StyleModern    Style = "modern"
	StyleMinimal   Style = "minimal"
	StyleCorporate Style = "corporate"
	StyleCreative  Style = "creative"
)

// Feature flags are OR'd in independently, not exclusive.
type Feature string

const (
	FeaturePricing      Feature = "pricing"
	FeatureContact      Feature = "contact"
	FeatureTestimonials Feature = "testimonials"
	FeatureAbout        Feature = "about"
	FeatureTeam         Feature = "team"
)

// Intent is the classification result. Classification always succeeds;
// prompts matching nothing default to a modern landing page.
type Intent struct {
	Archetype Archetype
	Style     Style
	Features  map[Feature]bool
}

// archetypeRules is an ordered priority list: the first rule with a matching
// keyword wins, so a prompt mentioning both "shop" and "blog" classifies as
// ecommerce. Precedence lives in this table, not in control flow.
var archetypeRules = []struct {
	archetype Archetype
	keywords  []string
}{
	{ArchetypeEcommerce, []string{"shop", "store", "ecommerce", "e-commerce", "product", "sell"}},
	{ArchetypeBlog, []string{"blog", "article", "news", "magazine"}},
	{ArchetypePortfolio, []string{"portfolio", "showcase", "gallery", "photographer"}},
	{ArchetypeSaaS, []string{"saas", "dashboard", "software", "platform", "startup"}},
	{ArchetypeRestaurant, []string{"restaurant", "cafe", "menu", "food", "bakery"}},
}

var styleRules = []struct {
	style    Style
	keywords []string
}{
	{StyleMinimal, []string{"minimal", "simple", "clean"}},
	{StyleCorporate, []string{"corporate", "professional", "business"}},
	{StyleCreative, []string{"creative", "bold", "colorful", "playful"}},
}

var featureRules = []struct {
	feature  Feature
	keywords []string
}{
	{FeaturePricing, []string{"pricing", "price", "plans"}},
	{FeatureContact, []string{"contact", "form", "get in touch"}},
	{FeatureTestimonials, []string{"testimonial", "review", "quote"}},
	{FeatureAbout, []string{"about"}},
	{FeatureTeam, []string{"team", "staff"}},
}

// Classify maps a free-text description to an Intent. Pure; never errors.
func Classify(prompt string) Intent {
	lower := strings.ToLower(prompt)

	intent := Intent{
		Archetype: ArchetypeLanding,
		Style:     StyleModern,
		Features:  make(map[Feature]bool),
	}

	for _, rule := range archetypeRules {
		if containsAny(lower, rule.keywords) {
			intent.Archetype = rule.archetype
			break
		}
	}

	for _, rule := range styleRules {
		if containsAny(lower, rule.keywords) {
			intent.Style = rule.style
			break
		}
	}

	for _, rule := range featureRules {
		if containsAny(lower, rule.keywords) {
			intent.Features[rule.feature] = true
		}
	}

	return intent
}

// ParseArchetype maps an explicit website-type hint to an archetype.
func ParseArchetype(s string) (Archetype, bool) {
	switch Archetype(strings.ToLower(strings.TrimSpace(s))) {
	case ArchetypeLanding, ArchetypeEcommerce, ArchetypeBlog, ArchetypePortfolio,
		ArchetypeSaaS, ArchetypeRestaurant, ArchetypeCustom:
		return Archetype(strings.ToLower(strings.TrimSpace(s))), true
	}
	return "", false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// explicitName captures the token following "for", "named" or "called".
// The token itself must already look like a slug — "for my-cafe" names the
// repo, "for Acme Corp" is prose and falls through to the synthesized name.
var explicitName = regexp.MustCompile(`\b(?i:for|named|called)\s+([a-z0-9][a-z0-9_.-]*)\b`)

var invalidNameChars = regexp.MustCompile(`[^a-z0-9-]`)

// NameRepo derives a repository name from the prompt, or synthesizes
// "<archetype>-website-<6 digits>" when the prompt names nothing. The
// sanitization step is what guarantees the GitHub name constraints; a name
// that sanitizes down to nothing (or bare hyphens) falls back to the
// synthesized form as well.
func NameRepo(prompt string, fallback Archetype) string {
	if m := explicitName.FindStringSubmatch(prompt); m != nil {
		if name := SanitizeName(m[1]); name != "" {
			return name
		}
	}
	return fmt.Sprintf("%s-website-%06d", fallback, time.Now().Unix()%1000000)
}

// SanitizeName lowercases a candidate repository name and replaces every
// character outside [a-z0-9-] with a hyphen, which is what guarantees the
// GitHub name constraints. Returns "" when nothing usable remains.
func SanitizeName(name string) string {
	s := invalidNameChars.ReplaceAllString(strings.ToLower(name), "-")
	if strings.Trim(s, "-") == "" {
		return ""
	}
	return s
}
