package rest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/listenupapp/tagnotes/internal/errors"
)

// errorBody covers the shapes GoTrue and PostgREST use for failures.
type errorBody struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Details          string `json:"details"`
	Hint             string `json:"hint"`
}

func (b errorBody) text() string {
	for _, s := range []string{b.Message, b.Msg, b.ErrorDescription, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// decodeError turns a non-2xx response into a domain error. The message is
// what the backend said, so it can be shown as is.
func decodeError(status int, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)

	msg := body.text()
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	var e *errors.Error
	switch {
	case body.Error == "invalid_grant" || body.ErrorCode == "invalid_credentials":
		e = errors.InvalidCredentials(msg)
	case status == http.StatusNotFound:
		e = errors.NotFound(msg)
	case status == http.StatusConflict || body.Code == "23505":
		e = errors.Conflict(msg)
	default:
		e = errors.Remote(status, msg)
	}
	e.Status = status

	if body.Details != "" || body.Hint != "" {
		e = e.WithDetails(map[string]string{"details": body.Details, "hint": body.Hint})
	}
	return e
}

// unfilteredError guards against patching or deleting a whole table.
func unfilteredError(verb, table string) error {
	return errors.Validationf("refusing to %s every row of %s", verb, table)
}
