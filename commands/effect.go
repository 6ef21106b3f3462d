package commands

import (
	"fmt"
	"strings"

	"github.com/chazu/blockflow/flow"
)

// ---------------------------------------------------------------------------
// Messaging
// ---------------------------------------------------------------------------

// SendMessage starts blocks listening for Message in this flowchart, or in
// every flowchart of the runtime when All is set.
type SendMessage struct {
	flow.Base
	Message string
	All     bool
}

func (c *SendMessage) Enter(f *flow.Frame) flow.Result {
	msg := f.Substitute(c.Message)
	if msg == "" {
		log.Warningf("%s: empty message", f.Location())
		return flow.Next()
	}
	if c.All {
		for _, fc := range f.Services().Flowcharts() {
			fc.SendMessage(msg)
		}
		return flow.Next()
	}
	if fc := f.Flowchart(); fc != nil {
		fc.SendMessage(msg)
	}
	return flow.Next()
}

// ---------------------------------------------------------------------------
// Log / Comment
// ---------------------------------------------------------------------------

// Log writes Text, with {$key} tokens expanded, to the log at Level.
type Log struct {
	flow.Base
	Level string
	Text  string
}

func (c *Log) Enter(f *flow.Frame) flow.Result {
	text := f.Substitute(c.Text)
	switch strings.ToLower(c.Level) {
	case "error":
		log.Errorf("%s: %s", f.Location(), text)
	case "warning", "warn":
		log.Warningf("%s: %s", f.Location(), text)
	case "debug":
		log.Debugf("%s: %s", f.Location(), text)
	default:
		log.Infof("%s: %s", f.Location(), text)
	}
	return flow.Next()
}

// Comment is an authoring note. It is never entered.
type Comment struct {
	flow.Base
	Text string
}

func (c *Comment) Role() flow.Role               { return flow.RoleComment }
func (c *Comment) Enter(*flow.Frame) flow.Result { return flow.Next() }

// ---------------------------------------------------------------------------
// Effect
// ---------------------------------------------------------------------------

// Effect invokes the effector registered as Name. With Wait set the block
// suspends until the effector reports completion.
type Effect struct {
	flow.Base
	Name string
	Args map[string]any
	Wait bool
}

func (c *Effect) Enter(f *flow.Frame) flow.Result {
	e, ok := f.Services().Effector(c.Name)
	if !ok {
		log.Warningf("%s: no effector %q", f.Location(), c.Name)
		return flow.Next()
	}
	call := flow.EffectCall{Name: c.Name, Args: c.expand(f), Location: f.Location()}
	if !c.Wait {
		e.Invoke(call, func(err error) {
			if err != nil {
				log.Warningf("%s: %v", call.Location, err)
			}
		})
		return flow.Next()
	}
	tok := f.Token()
	cancel := e.Invoke(call, func(err error) {
		if err != nil {
			tok.Fail(err)
			return
		}
		tok.Continue()
	})
	return flow.Suspend(cancel)
}

// expand substitutes {$key} tokens in string arguments.
func (c *Effect) expand(f *flow.Frame) map[string]any {
	if len(c.Args) == 0 {
		return nil
	}
	out := make(map[string]any, len(c.Args))
	for k, v := range c.Args {
		if s, ok := v.(string); ok {
			v = f.Substitute(s)
		}
		out[k] = v
	}
	return out
}

func (c *Effect) CommandName() string { return "Effect:" + c.Name }

// ---------------------------------------------------------------------------
// SavePoint
// ---------------------------------------------------------------------------

// SavePoint saves the runtime under Key. When a save is restored, the block
// resumes on this command and skips it.
type SavePoint struct {
	flow.Base
	Key         string
	Description string
}

func (c *SavePoint) Enter(f *flow.Frame) flow.Result {
	if f.Resumed() {
		return flow.Next()
	}
	s := f.Services().Saver
	if s == nil {
		log.Warningf("%s: no saver configured", f.Location())
		return flow.Next()
	}
	if err := s.SavePoint(c.Key, f.Substitute(c.Description)); err != nil {
		return flow.Fail(fmt.Errorf("save point %q: %w", c.Key, err))
	}
	return flow.Next()
}
