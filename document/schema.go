package document

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// schema values share one cue.Context, which is not safe for concurrent use.
type schema struct {
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
}

var loadSchema = sync.OnceValues(func() (*schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compiling document schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Flowchart"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("document schema: %w", err)
	}
	return &schema{ctx: ctx, def: def}, nil
})

// validate checks a decoded TOML tree against the #Flowchart definition.
func validate(raw map[string]any) error {
	s, err := loadSchema()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.def.Unify(s.ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrSchema, cueerrors.Details(err, nil))
	}
	return nil
}
