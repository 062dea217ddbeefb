package voice

import (
	"context"
	"encoding/json"

	"github.com/chriscow/voicetask/pkg/ai/llm"
)

// Tool is a callable function exposed to the language model. The
// session advertises each tool's definition with every chat request
// and dispatches model-issued calls to Call.
type Tool interface {
	// Definition describes the tool to the language model.
	Definition() llm.FunctionDefinition

	// Call executes the tool. The returned string goes back to the
	// model as the function result; operational failures should be
	// reported as explanatory text, not as an error, so the model can
	// relay them to the user.
	Call(ctx context.Context, args json.RawMessage) (string, error)
}
