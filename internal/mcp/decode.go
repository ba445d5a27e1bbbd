package mcp

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/fishscroll/internal/errors"
)

// decodeArgs maps tool arguments onto T. Failures come back as
// INVALID_REQUEST naming the offending field when one is known.
func decodeArgs[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	args := req.GetArguments()
	if len(args) == 0 {
		return out, nil
	}

	b, err := json.Marshal(args)
	if err != nil {
		return out, errors.NewInvalidRequest("arguments: " + err.Error())
	}
	if err := json.Unmarshal(b, &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return out, errors.NewInvalidRequest(fmt.Sprintf("%s must be %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value))
		}
		return out, errors.NewInvalidRequest("arguments: " + err.Error())
	}
	return out, nil
}
