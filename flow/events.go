package flow

// EventType discriminates the four variants of the observer-facing event
// stream (§4.G, §6): this is the entire surface between the engine and any
// observer, whether an interactive UI, a headless test harness, or a log
// shipper.
type EventType string

const (
	EventLifecycleUpdate EventType = "lifecycle_update"
	EventLog             EventType = "log"
	EventSubWorkflowEvent EventType = "sub_workflow_event"
	EventResult          EventType = "result"
)

// StreamEvent is one item of the observer-facing stream.
type StreamEvent struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// LifecycleData is the payload of an EventLifecycleUpdate.
type LifecycleData struct {
	StepName string `json:"step_name"`
	Status   Status `json:"status"`
}

// LogData is the payload of an EventLog: one DebugRecord.
type LogData struct {
	Record DebugRecord `json:"record"`
}

// SubWorkflowEventData is the payload of an EventSubWorkflowEvent: a
// verbatim forward of one event from a nested sub-workflow run, annotated
// with the enclosing context (§4.C workflow handler, §4.G).
type SubWorkflowEventData struct {
	ParentStep    string      `json:"parent_step"`
	SubWorkflow   string      `json:"sub_workflow"`
	OriginalEvent StreamEvent `json:"original_event"`
	MapIndex      *int        `json:"map_index,omitempty"`
}

// ResultData is the payload of the terminal EventResult: the final
// accumulated state of the run.
type ResultData struct {
	State GraphState `json:"state"`
}

// lifecycleEvent and logEvents are small constructors used by the engine
// and event streaming layer to build StreamEvents without repeating the
// Data-payload wiring at every call site.

func lifecycleEvent(stepName string, status Status) StreamEvent {
	return StreamEvent{Type: EventLifecycleUpdate, Data: LifecycleData{StepName: stepName, Status: status}}
}

func logEvent(record DebugRecord) StreamEvent {
	return StreamEvent{Type: EventLog, Data: LogData{Record: record}}
}

func resultEvent(state GraphState) StreamEvent {
	return StreamEvent{Type: EventResult, Data: ResultData{State: state}}
}

func subWorkflowEvent(parentStep, subWorkflow string, original StreamEvent, mapIndex *int) StreamEvent {
	return StreamEvent{
		Type: EventSubWorkflowEvent,
		Data: SubWorkflowEventData{
			ParentStep:    parentStep,
			SubWorkflow:   subWorkflow,
			OriginalEvent: original,
			MapIndex:      mapIndex,
		},
	}
}
