package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/latticehq/lattice/internal/common/logtrace"
)

// SendJSONRsp sends a JSON response with the given status code and message.
// Handles both pre-marshaled JSON (string or []byte) and structs.
func SendJSONRsp(ctx context.Context, w http.ResponseWriter, statusCode int, msg any) {
	var msgJSON []byte
	switch v := msg.(type) {
	case string:
		b := []byte(v)
		if json.Valid(b) {
			msgJSON = b
		}
	case []byte:
		if json.Valid(v) {
			msgJSON = v
		}
	default:
		var err error
		msgJSON, err = json.Marshal(msg)
		if err != nil {
			log.Ctx(ctx).Err(err).Msg("unable to marshal json")
			ErrApplicationError("id: " + logtrace.RequestIDFromContext(ctx)).Send(w)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(msgJSON)
}
