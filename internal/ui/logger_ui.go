package ui

import (
	"io"

	"github.com/wagoodman/go-partybus"

	"github.com/seccerts/seccerts/internal/log"
	seccertsEvent "github.com/seccerts/seccerts/seccerts/event"
)

type loggerUI struct {
	unsubscribe  func() error
	reportOutput io.Writer
}

// NewLoggerUI writes all events to the common application logger and writes the final report to the given writer.
func NewLoggerUI(reportWriter io.Writer) UI {
	return &loggerUI{
		reportOutput: reportWriter,
	}
}

func (l *loggerUI) Setup(unsubscribe func() error) error {
	l.unsubscribe = unsubscribe
	return nil
}

func (l loggerUI) Handle(event partybus.Event) error {
	switch event.Type {
	case seccertsEvent.PipelineStageStarted:
		log.Infof("stage started: %s", event.Value)
	case seccertsEvent.PipelineStageFinished:
		log.Debugf("stage finished: %s", event.Value)
	case seccertsEvent.SourceDegraded:
		log.Warnf("source %s degraded: %+v", event.Source, event.Error)
	case seccertsEvent.SnapshotPublished:
		log.Infof("snapshot published: %s", event.Value)
	case seccertsEvent.PipelineRunFinished:
		if err := handlePipelineRunFinished(event, l.reportOutput); err != nil {
			log.Warnf("unable to show run finished event: %+v", err)
		}
		// this is the last expected event, stop listening to events
		return l.unsubscribe()
	case seccertsEvent.NonRootCommandFinished:
		if err := handleNonRootCommandFinished(event, l.reportOutput); err != nil {
			log.Warnf("unable to show command finished event: %+v", err)
		}
		return l.unsubscribe()
	}
	return nil
}

func (l loggerUI) Teardown(_ bool) error {
	return nil
}
