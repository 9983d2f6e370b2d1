/*
Package refgraph builds the directed reference graph between certificates
from the cert-ID hits in their feature records and materializes per-node
degree counts and transitive reachability.
*/
package refgraph

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/certificate"
)

// DefaultEvidenceWindow is the radius, in bytes, of the text segment
// collected around each sighting for edge classification.
const DefaultEvidenceWindow = 200

// TextProvider hands the builder the extracted text of one artifact role, or
// ok=false when none exists.
type TextProvider func(cert *certificate.Certificate, role certificate.Role) (string, bool)

type Builder struct {
	policy     Policy
	classifier Classifier
	window     int
	texts      TextProvider
}

// NewBuilder creates a graph builder. The classifier may be nil, in which
// case every edge is labeled "unknown". The text provider may be nil, in
// which case edges carry no evidence segments.
func NewBuilder(policy Policy, classifier Classifier, window int, texts TextProvider) *Builder {
	if window <= 0 {
		window = DefaultEvidenceWindow
	}
	return &Builder{
		policy:     policy,
		classifier: classifier,
		window:     window,
		texts:      texts,
	}
}

// Build resolves references for every certificate in the snapshot, mutating
// each certificate's References, Unresolved, degree counts and indirect
// reference sets in place.
func (b *Builder) Build(certs []*certificate.Certificate) {
	idx := IndexCertificates(certs)

	incoming := make(map[string]int)
	forward := make(map[string][]string)
	reverse := make(map[string][]string)

	for _, cert := range certs {
		edges, unresolved := b.resolveCert(cert, idx)

		cert.References = edges
		cert.Unresolved = unresolved
		cert.OutgoingDirectReferencesCount = len(edges)

		for _, edge := range edges {
			incoming[edge.Target]++
			forward[edge.Source] = append(forward[edge.Source], edge.Target)
			reverse[edge.Target] = append(reverse[edge.Target], edge.Source)
		}
	}

	for _, cert := range certs {
		cert.IncomingDirectReferencesCount = incoming[cert.Digest]
		cert.OutgoingIndirectReferences = reachable(forward, cert.Digest)
		cert.IncomingIndirectReferences = reachable(reverse, cert.Digest)
	}
}

func (b *Builder) resolveCert(cert *certificate.Certificate, idx *Index) ([]certificate.ReferenceEdge, []string) {
	type sighting struct {
		roles map[certificate.Role]bool
	}
	literals := make(map[string]*sighting)

	if cert.Features != nil {
		for _, ruleHits := range cert.Features.Hits["rules_cert_id"] {
			for literal, occs := range ruleHits {
				for _, occ := range occs {
					if !b.admits(cert.Scheme, occ.Role) {
						continue
					}
					s, ok := literals[literal]
					if !ok {
						s = &sighting{roles: make(map[certificate.Role]bool)}
						literals[literal] = s
					}
					s.roles[occ.Role] = true
				}
			}
		}
	}

	// cross-run pass: literals unresolved in the previous run are retried
	// against the current index, so a certificate issued later still closes
	// the edge.
	for _, literal := range cert.Unresolved {
		if _, ok := literals[literal]; !ok {
			literals[literal] = &sighting{roles: make(map[certificate.Role]bool)}
		}
	}

	ordered := make([]string, 0, len(literals))
	for literal := range literals {
		ordered = append(ordered, literal)
	}
	sort.Strings(ordered)

	edges := make(map[string]*certificate.ReferenceEdge)
	unresolvedSet := make(map[string]bool)

	for _, literal := range ordered {
		target, ok := idx.Lookup(literal)
		if !ok {
			unresolvedSet[CanonicalID(literal)] = true
			continue
		}
		if target == cert.Digest {
			continue
		}

		s := literals[literal]
		edge, ok := edges[target]
		if !ok {
			edge = &certificate.ReferenceEdge{
				Source: cert.Digest,
				Target: target,
				Label:  certificate.LabelUnknown,
			}
			edges[target] = edge
		}
		for _, role := range certificate.AllRoles {
			if !s.roles[role] {
				continue
			}
			if edge.SourceRole == "" {
				edge.SourceRole = role
			}
			edge.Evidence = append(edge.Evidence, b.evidence(cert, role, literal)...)
		}
	}

	out := make([]certificate.ReferenceEdge, 0, len(edges))
	for _, edge := range edges {
		edge.Evidence = dedupeStrings(edge.Evidence)
		if !b.classify(cert, edge) {
			continue
		}
		out = append(out, *edge)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })

	unresolved := make([]string, 0, len(unresolvedSet))
	for literal := range unresolvedSet {
		unresolved = append(unresolved, literal)
	}
	sort.Strings(unresolved)

	return out, unresolved
}

func (b *Builder) admits(scheme certificate.Scheme, role certificate.Role) bool {
	// the role policy only concerns CC; other schemes admit every role
	if scheme != certificate.SchemeCC {
		return true
	}
	return b.policy.Admits(role)
}

// classify labels the edge; it reports false when the edge should be dropped.
func (b *Builder) classify(cert *certificate.Certificate, edge *certificate.ReferenceEdge) bool {
	if b.classifier == nil || cert.Scheme != certificate.SchemeCC {
		return true
	}
	label, err := b.classifier.Classify(edge.Evidence)
	if err != nil {
		log.Warnf("unable to classify reference %s -> %s: %v", edge.Source, edge.Target, err)
		edge.Label = certificate.LabelUnknown
		return true
	}
	if label == certificate.LabelUnrelated {
		log.Debugf("dropping unrelated reference %s -> %s", edge.Source, edge.Target)
		return false
	}
	edge.Label = label
	return true
}

// evidence collects the text segments around each sighting of the literal in
// the given role's text.
func (b *Builder) evidence(cert *certificate.Certificate, role certificate.Role, literal string) []string {
	if b.texts == nil {
		return nil
	}
	text, ok := b.texts(cert, role)
	if !ok {
		return nil
	}

	var segments []string
	for offset := 0; ; {
		i := strings.Index(text[offset:], literal)
		if i < 0 {
			break
		}
		pos := offset + i
		segments = append(segments, window(text, pos, len(literal), b.window))
		offset = pos + len(literal)
	}
	return segments
}

// window returns the rune-safe slice of radius bytes around [pos, pos+length).
func window(text string, pos, length, radius int) string {
	start := pos - radius
	if start < 0 {
		start = 0
	}
	end := pos + length + radius
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return text[start:end]
}

func dedupeStrings(values []string) []string {
	if len(values) < 2 {
		return values
	}
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// reachable returns every digest reachable from start over the adjacency
// map, excluding start itself, sorted.
func reachable(adjacency map[string][]string, start string) []string {
	visited := map[string]bool{start: true}
	queue := append([]string{}, adjacency[start]...)

	var out []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if visited[node] {
			continue
		}
		visited[node] = true
		out = append(out, node)
		queue = append(queue, adjacency[node]...)
	}
	sort.Strings(out)
	return out
}
