package artifact

import (
	"fmt"
	"os/exec"
	"strings"
)

// CommandConverter shells out to an external conversion tool. The
// placeholders {pdf}, {txt} and {segments} in the argument list are
// substituted per call; arguments that reduce to an empty string are dropped.
type CommandConverter struct {
	Binary string
	Args   []string
}

func NewCommandConverter(binary string, args ...string) *CommandConverter {
	return &CommandConverter{Binary: binary, Args: args}
}

func (c *CommandConverter) Convert(pdfPath, txtPath, segmentsPath string) error {
	replacer := strings.NewReplacer(
		"{pdf}", pdfPath,
		"{txt}", txtPath,
		"{segments}", segmentsPath,
	)

	args := make([]string, 0, len(c.Args))
	for _, arg := range c.Args {
		substituted := replacer.Replace(arg)
		if substituted == "" && arg != "" {
			continue
		}
		args = append(args, substituted)
	}

	output, err := exec.Command(c.Binary, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w (output: %s)", c.Binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}
