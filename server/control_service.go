package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/blockflow/flow"
	"github.com/chazu/blockflow/host"
	"github.com/chazu/blockflow/save"
	"github.com/chazu/blockflow/variable"
)

// ServiceName is the fully qualified name of the control service.
const ServiceName = "blockflow.v1.ControlService"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// ControlServer is the control service as seen by the gRPC registry.
type ControlServer interface {
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	ExecuteBlock(context.Context, *ExecuteBlockRequest) (*ExecuteBlockResponse, error)
	StopBlock(context.Context, *StopBlockRequest) (*StopBlockResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	SetVariable(context.Context, *SetVariableRequest) (*SetVariableResponse, error)
	Save(context.Context, *SaveRequest) (*SaveResponse, error)
	Load(context.Context, *LoadRequest) (*LoadResponse, error)
}

// ControlService drives a runtime through its worker.
type ControlService struct {
	worker *host.Worker
}

func NewControlService(worker *host.Worker) *ControlService {
	return &ControlService{worker: worker}
}

// Status reports the loaded scene and the state of every block.
func (s *ControlService) Status(ctx context.Context, _ *StatusRequest) (*StatusResponse, error) {
	return host.Call(s.worker, func(rt *host.Runtime) (*StatusResponse, error) {
		res := &StatusResponse{
			Scene:   rt.Scene(),
			ClockMs: rt.Clock().Now().Milliseconds(),
			Busy:    rt.Busy(),
		}
		for _, fc := range rt.Flowcharts() {
			res.Flowcharts = append(res.Flowcharts, flowchartStatus(fc))
		}
		return res, nil
	})
}

func flowchartStatus(fc *flow.Flowchart) FlowchartStatus {
	st := FlowchartStatus{Name: fc.Name()}
	for _, b := range fc.Blocks() {
		st.Blocks = append(st.Blocks, BlockStatus{
			Name:           b.Name(),
			Executing:      b.IsExecuting(),
			Index:          b.ActiveIndex(),
			ExecutionCount: b.ExecutionCount(),
		})
	}
	for _, v := range fc.Variables().All() {
		if st.Variables == nil {
			st.Variables = make(map[string]string)
		}
		st.Variables[v.Key()] = v.Value().String()
	}
	return st
}

// ExecuteBlock starts a block. Started is false if it was already running.
func (s *ControlService) ExecuteBlock(ctx context.Context, req *ExecuteBlockRequest) (*ExecuteBlockResponse, error) {
	return host.Call(s.worker, func(rt *host.Runtime) (*ExecuteBlockResponse, error) {
		fc, b, err := lookupBlock(rt, req.Flowchart, req.Block)
		if err != nil {
			return nil, err
		}
		if req.Index < 0 || req.Index >= b.Len() {
			return nil, fmt.Errorf("%w: index %d out of range for block %q", ErrInvalidArgument, req.Index, req.Block)
		}
		return &ExecuteBlockResponse{Started: fc.ExecuteBlockAt(b, req.Index, nil)}, nil
	})
}

// StopBlock stops a block. Stopped is false if it was idle.
func (s *ControlService) StopBlock(ctx context.Context, req *StopBlockRequest) (*StopBlockResponse, error) {
	return host.Call(s.worker, func(rt *host.Runtime) (*StopBlockResponse, error) {
		_, b, err := lookupBlock(rt, req.Flowchart, req.Block)
		if err != nil {
			return nil, err
		}
		running := b.IsExecuting()
		b.Stop()
		return &StopBlockResponse{Stopped: running}, nil
	})
}

// SendMessage starts the blocks listening for a message.
func (s *ControlService) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidArgument)
	}
	return host.Call(s.worker, func(rt *host.Runtime) (*SendMessageResponse, error) {
		if req.Flowchart == "" {
			n := 0
			for _, fc := range rt.Flowcharts() {
				n += fc.SendMessage(req.Message)
			}
			return &SendMessageResponse{Started: n}, nil
		}
		fc := rt.Flowchart(req.Flowchart)
		if fc == nil {
			return nil, fmt.Errorf("%w: flowchart %q", ErrNotFound, req.Flowchart)
		}
		return &SendMessageResponse{Started: fc.SendMessage(req.Message)}, nil
	})
}

// SetVariable assigns a flowchart variable from its text form.
func (s *ControlService) SetVariable(ctx context.Context, req *SetVariableRequest) (*SetVariableResponse, error) {
	return host.Call(s.worker, func(rt *host.Runtime) (*SetVariableResponse, error) {
		fc := rt.Flowchart(req.Flowchart)
		if fc == nil {
			return nil, fmt.Errorf("%w: flowchart %q", ErrNotFound, req.Flowchart)
		}
		v, ok := fc.Variable(req.Key)
		if !ok {
			return nil, fmt.Errorf("%w: variable %q", ErrNotFound, req.Key)
		}
		val, err := variable.Coerce(v.Type(), req.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		if err := v.Set(val); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return &SetVariableResponse{Value: v.Value().String()}, nil
	})
}

// Save writes the loaded flowcharts to a slot.
func (s *ControlService) Save(ctx context.Context, req *SaveRequest) (*SaveResponse, error) {
	if req.Slot == "" {
		return nil, fmt.Errorf("%w: slot is required", ErrInvalidArgument)
	}
	return host.Call(s.worker, func(rt *host.Runtime) (*SaveResponse, error) {
		snap, err := rt.Save(ctx, req.Slot, req.Description)
		if err != nil {
			return nil, err
		}
		return &SaveResponse{Slot: req.Slot, SavedAt: snap.SavedAt}, nil
	})
}

// Load restores a slot, reloading its scene.
func (s *ControlService) Load(ctx context.Context, req *LoadRequest) (*LoadResponse, error) {
	if req.Slot == "" {
		return nil, fmt.Errorf("%w: slot is required", ErrInvalidArgument)
	}
	return host.Call(s.worker, func(rt *host.Runtime) (*LoadResponse, error) {
		snap, err := rt.Load(ctx, req.Slot)
		switch {
		case errors.Is(err, save.ErrNotFound):
			return nil, fmt.Errorf("%w: save slot %q", ErrNotFound, req.Slot)
		case err != nil:
			return nil, err
		}
		return &LoadResponse{Scene: snap.Scene, Description: snap.Description}, nil
	})
}

func lookupBlock(rt *host.Runtime, flowchart, block string) (*flow.Flowchart, *flow.Block, error) {
	fc := rt.Flowchart(flowchart)
	if fc == nil {
		return nil, nil, fmt.Errorf("%w: flowchart %q", ErrNotFound, flowchart)
	}
	b := fc.Block(block)
	if b == nil {
		return nil, nil, fmt.Errorf("%w: block %q in %s", ErrNotFound, block, flowchart)
	}
	return fc, b, nil
}
