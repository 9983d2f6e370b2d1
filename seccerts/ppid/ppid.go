/*
Package ppid assigns stable identifiers to protection profiles that carry no
scheme-issued one. Assignments are random on first sight and persisted, so an
id never changes once handed out.
*/
package ppid

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// groupCodes maps a protection-profile category to its two-letter group code.
var groupCodes = map[string]string{
	"Access Control Devices and Systems":                          "AC",
	"Detection Devices and Systems":                               "DD",
	"Biometric Systems and Devices":                               "BS",
	"Boundary Protection Devices and Systems":                     "BP",
	"Data Protection":                                             "DP",
	"Databases":                                                   "DB",
	"ICs, Smart Cards and Smart Card-Related Devices and Systems": "SC",
	"Key Management Systems":                                      "KM",
	"Mobility":                                                    "MO",
	"Multi-Function Devices":                                      "MF",
	"Network and Network-Related Devices and Systems":             "ND",
	"Operating Systems":                                           "OS",
	"Other Devices and Systems":                                   "OD",
	"Products for Digital Signatures":                             "DS",
	"Trusted Computing":                                           "TC",
}

// GroupCode resolves a category name to its group code.
func GroupCode(category string) (string, bool) {
	code, ok := groupCodes[category]
	return code, ok
}

var (
	trailingVersionRE = regexp.MustCompile(`V(\d+)$`)
	dottedVersionRE   = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)

	// some profiles spell version components with letters (e.g. "1.0b")
	letterDigits = strings.NewReplacer("a", "1", "b", "2", "c", "3", "d", "4", "e", "5", "f", "6")
)

// versionDigits renders a free-form version string as zero-padded
// major+minor(+patch) digits, e.g. "3.1" -> "030100".
func versionDigits(version string) (string, error) {
	version = strings.TrimSpace(version)

	var number string
	switch {
	case strings.Contains(version, "IEEE"):
		number = "1.0"
	case len(version) == 1 && version >= "0" && version <= "9":
		number = version + ".0"
	case trailingVersionRE.MatchString(version):
		digits := trailingVersionRE.FindStringSubmatch(version)[1]
		if len(digits) >= 2 {
			number = digits[:1] + "." + digits[1:2]
		} else {
			number = digits + ".0"
		}
	default:
		matches := dottedVersionRE.FindAllString(letterDigits.Replace(version), -1)
		if len(matches) == 0 {
			return "", fmt.Errorf("no version number in %q", version)
		}
		number = matches[len(matches)-1]
	}

	var b strings.Builder
	for _, part := range strings.Split(number, ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return "", fmt.Errorf("bad version component %q in %q", part, version)
		}
		fmt.Fprintf(&b, "%02d", n)
	}
	digits := b.String()
	if len(digits) == 4 {
		digits += "00"
	}
	return digits, nil
}

// Generator hands out ids of the form PP_<GROUP>_<YYYYMMDD>_V_<MMmmpp>/<CTR>
// and remembers every assignment on disk.
type Generator struct {
	fs      afero.Fs
	path    string
	ids     map[string]string
	counter func() (int, error)
}

// NewGenerator loads prior assignments from path, if any.
func NewGenerator(fs afero.Fs, path string) (*Generator, error) {
	g := &Generator{
		fs:      fs,
		path:    path,
		ids:     make(map[string]string),
		counter: randomCounter,
	}

	data, err := afero.ReadFile(fs, path)
	if os.IsNotExist(err) {
		return g, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read id assignments at %q: %w", path, err)
	}
	if err := json.Unmarshal(data, &g.ids); err != nil {
		return nil, fmt.Errorf("unable to parse id assignments at %q: %w", path, err)
	}
	return g, nil
}

func randomCounter() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return 0, fmt.Errorf("unable to draw id counter: %w", err)
	}
	return int(n.Int64()), nil
}

// Lookup returns the id previously assigned to key, if any.
func (g *Generator) Lookup(key string) (string, bool) {
	id, ok := g.ids[key]
	return id, ok
}

// Ensure returns the id for key, generating and recording one on first sight.
// The second return reports whether a new id was generated.
func (g *Generator) Ensure(key, category string, date time.Time, version string) (string, bool, error) {
	if id, ok := g.ids[key]; ok {
		return id, false, nil
	}

	group, ok := GroupCode(category)
	if !ok {
		return "", false, fmt.Errorf("unknown protection profile category %q", category)
	}
	digits, err := versionDigits(version)
	if err != nil {
		return "", false, err
	}
	counter, err := g.counter()
	if err != nil {
		return "", false, err
	}

	id := fmt.Sprintf("PP_%s_%s_V_%s/%03d", group, date.Format("20060102"), digits, counter)
	g.ids[key] = id
	return id, true, nil
}

// Reset drops all assignments so the next Ensure calls hand out fresh ids.
func (g *Generator) Reset() {
	g.ids = make(map[string]string)
}

// IDs returns a copy of the current assignments.
func (g *Generator) IDs() map[string]string {
	out := make(map[string]string, len(g.ids))
	for k, v := range g.ids {
		out[k] = v
	}
	return out
}

// Save writes the assignments back to disk.
func (g *Generator) Save() error {
	data, err := json.MarshalIndent(g.ids, "", "    ")
	if err != nil {
		return fmt.Errorf("unable to encode id assignments: %w", err)
	}
	if err := afero.WriteFile(g.fs, g.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("unable to write id assignments to %q: %w", g.path, err)
	}
	return nil
}
