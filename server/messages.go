package server

// Messages of blockflow.v1.ControlService. They are plain structs carried
// as JSON over Connect and as CBOR over gRPC.

type StatusRequest struct{}

type StatusResponse struct {
	Scene      string            `json:"scene" cbor:"scene"`
	ClockMs    int64             `json:"clockMs" cbor:"clock_ms"`
	Busy       bool              `json:"busy" cbor:"busy"`
	Flowcharts []FlowchartStatus `json:"flowcharts" cbor:"flowcharts"`
}

type FlowchartStatus struct {
	Name      string            `json:"name" cbor:"name"`
	Blocks    []BlockStatus     `json:"blocks" cbor:"blocks"`
	Variables map[string]string `json:"variables,omitempty" cbor:"variables,omitempty"`
}

type BlockStatus struct {
	Name           string `json:"name" cbor:"name"`
	Executing      bool   `json:"executing" cbor:"executing"`
	Index          int    `json:"index" cbor:"index"`
	ExecutionCount int    `json:"executionCount" cbor:"execution_count"`
}

type ExecuteBlockRequest struct {
	Flowchart string `json:"flowchart" cbor:"flowchart"`
	Block     string `json:"block" cbor:"block"`
	Index     int    `json:"index,omitempty" cbor:"index,omitempty"`
}

type ExecuteBlockResponse struct {
	Started bool `json:"started" cbor:"started"`
}

type StopBlockRequest struct {
	Flowchart string `json:"flowchart" cbor:"flowchart"`
	Block     string `json:"block" cbor:"block"`
}

type StopBlockResponse struct {
	Stopped bool `json:"stopped" cbor:"stopped"`
}

// SendMessageRequest broadcasts to every loaded flowchart when Flowchart is
// empty.
type SendMessageRequest struct {
	Flowchart string `json:"flowchart,omitempty" cbor:"flowchart,omitempty"`
	Message   string `json:"message" cbor:"message"`
}

type SendMessageResponse struct {
	Started int `json:"started" cbor:"started"`
}

// SetVariableRequest carries Value as text; it is converted to the
// variable's type.
type SetVariableRequest struct {
	Flowchart string `json:"flowchart" cbor:"flowchart"`
	Key       string `json:"key" cbor:"key"`
	Value     string `json:"value" cbor:"value"`
}

type SetVariableResponse struct {
	Value string `json:"value" cbor:"value"`
}

type SaveRequest struct {
	Slot        string `json:"slot" cbor:"slot"`
	Description string `json:"description,omitempty" cbor:"description,omitempty"`
}

type SaveResponse struct {
	Slot    string `json:"slot" cbor:"slot"`
	SavedAt int64  `json:"savedAt" cbor:"saved_at"`
}

type LoadRequest struct {
	Slot string `json:"slot" cbor:"slot"`
}

type LoadResponse struct {
	Scene       string `json:"scene" cbor:"scene"`
	Description string `json:"description,omitempty" cbor:"description,omitempty"`
}
