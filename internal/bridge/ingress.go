package bridge

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/jensen-user/rew-bridge/internal/rew"
)

// maxCallbackBody bounds the callback payload read. Real updates are a few
// hundred bytes; the limit only guards against a misbehaving sender.
const maxCallbackBody = 64 << 10

// decodeUpdate validates and decodes one telemetry push. Malformed payloads
// are rejected here, before any state is touched; missing optional fields
// take the meter's conventional defaults.
func decodeUpdate(r *http.Request) (rew.Update, error) {
	var u rew.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCallbackBody)).Decode(&u); err != nil {
		return rew.Update{}, err
	}
	u.ApplyDefaults()
	return u, nil
}
