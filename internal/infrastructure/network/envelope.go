package network

import (
	"encoding/json"
	"net/http"

	apphuderr "github.com/apphud/apphud-go/internal/domain/errors"
)

// envelope is the backend's standard response wrapper.
type envelope struct {
	Data struct {
		Results json.RawMessage `json:"results"`
	} `json:"data"`
	Errors []envelopeError `json:"errors"`
}

type envelopeError struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
}

// unwrapEnvelope validates the HTTP status, parses the envelope and
// surfaces server-reported errors, returning the raw results payload.
func unwrapEnvelope(statusCode int, raw []byte) (json.RawMessage, error) {
	if statusCode < 200 || statusCode >= 300 {
		msg := http.StatusText(statusCode)
		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil && len(env.Errors) > 0 {
			if env.Errors[0].Title != "" {
				msg = env.Errors[0].Title
			}
		}
		return nil, apphuderr.NewHTTPStatus(statusCode, msg)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &apphuderr.Error{
			Message: "failed to parse response",
			Kind:    apphuderr.KindServer,
			Err:     apphuderr.ErrMalformedResponse,
		}
	}

	if len(env.Errors) > 0 {
		messages := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			if e.Title != "" {
				messages = append(messages, e.Title)
			}
		}
		return nil, apphuderr.NewServer(messages)
	}

	return env.Data.Results, nil
}
