package event

import "github.com/wagoodman/go-partybus"

const (
	PipelineRunStarted     partybus.EventType = "seccerts-pipeline-run-started"
	PipelineStageStarted   partybus.EventType = "seccerts-pipeline-stage-started"
	PipelineStageFinished  partybus.EventType = "seccerts-pipeline-stage-finished"
	PipelineRunFinished    partybus.EventType = "seccerts-pipeline-run-finished"
	SourceRefreshStarted   partybus.EventType = "seccerts-source-refresh-started"
	SourceDegraded         partybus.EventType = "seccerts-source-degraded"
	SnapshotPublished      partybus.EventType = "seccerts-snapshot-published"
	SearchReindexStarted   partybus.EventType = "seccerts-search-reindex-started"
	NonRootCommandFinished partybus.EventType = "seccerts-non-root-command-finished"
)
