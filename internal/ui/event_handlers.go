package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wagoodman/go-partybus"

	"github.com/seccerts/seccerts/seccerts/store"
)

func handlePipelineRunFinished(event partybus.Event, writer io.Writer) error {
	run, ok := event.Value.(*store.RunRecord)
	if !ok {
		return fmt.Errorf("unexpected run finished payload: %T", event.Value)
	}

	duration := ""
	if run.FinishedAt != nil {
		duration = fmt.Sprintf(" in %s", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}
	_, err := fmt.Fprintf(writer, "run %s finished%s: status=%s created=%d updated=%d archived=%d\n",
		run.ID, duration, run.Status, run.Created, run.Updated, run.Archived)
	if err != nil {
		return err
	}
	if len(run.Errors) > 0 {
		_, err = fmt.Fprintf(writer, "errors:\n  %s\n", strings.Join(run.Errors, "\n  "))
	}
	return err
}

func handleNonRootCommandFinished(event partybus.Event, writer io.Writer) error {
	result, ok := event.Value.(string)
	if !ok {
		return fmt.Errorf("unexpected command finished payload: %T", event.Value)
	}
	if !strings.HasSuffix(result, "\n") {
		result += "\n"
	}
	_, err := writer.Write([]byte(result))
	return err
}
