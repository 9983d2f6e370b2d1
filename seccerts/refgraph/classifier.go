package refgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/seccerts/seccerts/seccerts/certificate"
)

// Classifier assigns a label to a reference edge from the text segments
// surrounding its sightings. Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(segments []string) (certificate.ReferenceLabel, error)
}

// HeuristicClassifier is the keyword baseline. It looks for characteristic
// phrases in the evidence and falls back to "unknown".
type HeuristicClassifier struct{}

var heuristicPhrases = []struct {
	label   certificate.ReferenceLabel
	phrases []string
}{
	{certificate.LabelPredecessor, []string{
		"previous version", "predecessor", "re-evaluation", "re-certification",
		"maintenance report", "formerly certified",
	}},
	{certificate.LabelComponent, []string{
		"composite evaluation", "composed of", "underlying platform",
		"hardware platform", "integrated circuit", "relies on the certified",
	}},
	{certificate.LabelEvaluationReuse, []string{
		"reuse of evaluation results", "re-use of evaluation", "evaluation results of",
		"based on the evaluation of",
	}},
}

func (HeuristicClassifier) Classify(segments []string) (certificate.ReferenceLabel, error) {
	haystack := strings.ToLower(strings.Join(segments, " "))
	for _, entry := range heuristicPhrases {
		for _, phrase := range entry.phrases {
			if strings.Contains(haystack, phrase) {
				return entry.label, nil
			}
		}
	}
	return certificate.LabelUnknown, nil
}

// RemoteClassifier delegates to an external model behind an HTTP endpoint.
// The endpoint receives {"segments": [...]} and answers {"label": "..."}.
type RemoteClassifier struct {
	URL    string
	Client *http.Client
}

func NewRemoteClassifier(url string, timeout time.Duration) *RemoteClassifier {
	return &RemoteClassifier{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

type remoteRequest struct {
	Segments []string `json:"segments"`
}

type remoteResponse struct {
	Label string `json:"label"`
}

func (c *RemoteClassifier) Classify(segments []string) (certificate.ReferenceLabel, error) {
	payload, err := json.Marshal(remoteRequest{Segments: segments})
	if err != nil {
		return certificate.LabelUnknown, err
	}

	resp, err := c.Client.Post(c.URL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return certificate.LabelUnknown, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return certificate.LabelUnknown, fmt.Errorf("classifier returned status %s", resp.Status)
	}

	var answer remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return certificate.LabelUnknown, fmt.Errorf("unable to decode classifier response: %w", err)
	}

	switch label := certificate.ReferenceLabel(answer.Label); label {
	case certificate.LabelComponent, certificate.LabelEvaluationReuse,
		certificate.LabelPredecessor, certificate.LabelUnrelated, certificate.LabelUnknown:
		return label, nil
	default:
		return certificate.LabelUnknown, fmt.Errorf("classifier returned unknown label %q", answer.Label)
	}
}
