package store

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/agentlog/internal/faults"
)

// schemaSource holds the structural contract of each document kind. The
// definitions are open: only the fields named here are constrained, extra
// keys pass through untouched.
const schemaSource = `
#Entry: {
	timestamp?:   string
	local_time?:  string
	operation?:   string
	description?: string
	project?:     string
	cwd?:         string
	session_id?:  string
	details?:     {...} | null
	...
}

#SessionState: {
	session?: {
		last_updated?:    string
		operation_count?: number & >=0
		...
	}
	...
}

#PlannedTasks: {
	last_synced?: string
	tasks?: [...]
	...
}

#WorkLog: {
	entries?: [...#Entry]
	entry_count?:  number & >=0
	last_updated?: string
	...
}

#RecoveryCheckpoint: {
	checkpoint?: {
		timestamp?: string
		status?:    string
		...
	}
	...
}

#Archive: {
	entries?: [...#Entry]
	last_updated?: string
	...
}
`

// schemas validates documents against the compiled CUE definitions.
// A cue.Context is not safe for concurrent use, so every use holds mu.
type schemas struct {
	mu   sync.Mutex
	ctx  *cue.Context
	defs map[string]cue.Value
}

const archiveKind = "archive"

var schemaDefs = map[string]string{
	string(SessionState):       "#SessionState",
	string(PlannedTasks):       "#PlannedTasks",
	string(WorkLog):            "#WorkLog",
	string(RecoveryCheckpoint): "#RecoveryCheckpoint",
	archiveKind:                "#Archive",
}

func compileSchemas() (*schemas, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("documents.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile document schemas: %w", err)
	}

	defs := make(map[string]cue.Value, len(schemaDefs))
	for kind, path := range schemaDefs {
		def := v.LookupPath(cue.ParsePath(path))
		if !def.Exists() {
			return nil, fmt.Errorf("compile document schemas: %s not found", path)
		}
		defs[kind] = def
	}
	return &schemas{ctx: ctx, defs: defs}, nil
}

// validate checks doc against the schema for kind. Failures are
// faults.KindPermanentValidation.
func (s *schemas) validate(kind string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.defs[kind]
	if !ok {
		return faults.Validation("validate "+kind, fmt.Errorf("unknown document kind"))
	}

	v := s.ctx.Encode(doc)
	if err := v.Err(); err != nil {
		return faults.Validation("validate "+kind, err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return faults.Validation("validate "+kind, fmt.Errorf("%s", errors.Details(err, nil)))
	}
	return nil
}
