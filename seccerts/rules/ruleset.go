package rules

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"regexp"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/seccerts/seccerts/seccerts/certificate"
)

//go:embed rules.yaml
var rulesYAML []byte

// token boundary wrapper: matches may not begin or end inside a word, so a
// rule for "DES" does not fire inside "3DES-CBC". Whitespace control
// characters count as boundaries too, in particular the form feeds that
// separate converted pages.
const (
	regexecSep      = `[ ,;\[\]”"')(.\t\n\f]`
	regexecSepStart = `(?:^|` + regexecSep + `)`
	regexecSepEnd   = `(?:$|` + regexecSep + `)`
)

type declaredFile struct {
	CCRules    []string                    `yaml:"cc_rules"`
	FIPSRules  []string                    `yaml:"fips_rules"`
	Categories map[string]declaredCategory `yaml:"categories"`
}

type declaredCategory struct {
	CaseInsensitive bool                `yaml:"case_insensitive"`
	Rules           map[string][]string `yaml:"rules"`
}

// Category is one compiled group of named rules.
type Category struct {
	Name            string
	CaseInsensitive bool
	Rules           map[string][]*regexp.Regexp
}

// RuleSet is the compiled, immutable collection of categorized rules. It is
// constructed once at startup and safe for concurrent use.
type RuleSet struct {
	version        string
	categories     map[string]*Category
	ccCategories   []string
	fipsCategories []string
}

// ScanResult maps category -> rule name -> matched literal -> byte offsets of
// each sighting, in scan order.
type ScanResult map[string]map[string]map[string][]int

var (
	defaultRuleSet *RuleSet
	defaultOnce    sync.Once
)

// Default returns the process-wide rule set compiled from the embedded
// declarative source. It panics when the embedded source does not compile,
// which is a build defect rather than a runtime condition.
func Default() *RuleSet {
	defaultOnce.Do(func() {
		rs, err := Compile(rulesYAML)
		if err != nil {
			panic(fmt.Errorf("embedded rule set does not compile: %w", err))
		}
		defaultRuleSet = rs
	})
	return defaultRuleSet
}

// Compile parses and compiles a declarative rule source. The returned rule
// set's version is the first 16 hex characters of the sha256 of the source.
func Compile(source []byte) (*RuleSet, error) {
	var decl declaredFile
	if err := yaml.Unmarshal(source, &decl); err != nil {
		return nil, fmt.Errorf("unable to parse rule source: %w", err)
	}

	rs := &RuleSet{
		categories:     make(map[string]*Category, len(decl.Categories)),
		ccCategories:   decl.CCRules,
		fipsCategories: decl.FIPSRules,
	}

	digest := sha256.Sum256(source)
	rs.version = hex.EncodeToString(digest[:])[:16]

	for name, declCat := range decl.Categories {
		cat := &Category{
			Name:            name,
			CaseInsensitive: declCat.CaseInsensitive,
			Rules:           make(map[string][]*regexp.Regexp, len(declCat.Rules)),
		}
		for ruleName, patterns := range declCat.Rules {
			for _, pattern := range patterns {
				compiled, err := compileRule(pattern, declCat.CaseInsensitive)
				if err != nil {
					return nil, fmt.Errorf("category %q rule %q: %w", name, ruleName, err)
				}
				cat.Rules[ruleName] = append(cat.Rules[ruleName], compiled)
			}
		}
		rs.categories[name] = cat
	}

	for _, listed := range append(append([]string{}, decl.CCRules...), decl.FIPSRules...) {
		if _, ok := rs.categories[listed]; !ok {
			return nil, fmt.Errorf("scheme rule list references undefined category %q", listed)
		}
	}

	return rs, nil
}

func compileRule(pattern string, caseInsensitive bool) (*regexp.Regexp, error) {
	flags := "(?m)"
	if caseInsensitive {
		flags = "(?mi)"
	}
	return regexp.Compile(flags + regexecSepStart + "(?P<match>" + pattern + ")" + regexecSepEnd)
}

// Version is the content hash of the declarative source this set was
// compiled from; it is tagged onto every emitted feature record.
func (r *RuleSet) Version() string {
	return r.version
}

// Categories returns the category names applicable to the given scheme.
// Protection profiles are CC documents and share the CC categories.
func (r *RuleSet) Categories(scheme certificate.Scheme) []string {
	switch scheme {
	case certificate.SchemeFIPS:
		return r.fipsCategories
	default:
		return r.ccCategories
	}
}

// Scan runs every rule over the given text.
func (r *RuleSet) Scan(text string) ScanResult {
	names := make([]string, 0, len(r.categories))
	for name := range r.categories {
		names = append(names, name)
	}
	return r.scan(text, names)
}

// ScanScheme runs only the categories applicable to the given scheme.
func (r *RuleSet) ScanScheme(text string, scheme certificate.Scheme) ScanResult {
	return r.scan(text, r.Categories(scheme))
}

func (r *RuleSet) scan(text string, categories []string) ScanResult {
	result := make(ScanResult)
	for _, name := range categories {
		cat, ok := r.categories[name]
		if !ok {
			continue
		}
		for ruleName, res := range cat.Rules {
			for _, re := range res {
				for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
					// group 1 is the (?P<match>...) group added at compile time
					start, end := m[2], m[3]
					if start < 0 {
						continue
					}
					literal := text[start:end]

					catHits, ok := result[name]
					if !ok {
						catHits = make(map[string]map[string][]int)
						result[name] = catHits
					}
					ruleHits, ok := catHits[ruleName]
					if !ok {
						ruleHits = make(map[string][]int)
						catHits[ruleName] = ruleHits
					}
					ruleHits[literal] = append(ruleHits[literal], start)
				}
			}
		}
	}
	return result
}
