package network

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// loggingRoundTripper logs method, URL and pretty-printed JSON bodies of
// each request/response pair, tagged with a short random trace id so the
// two sides are correlatable. The response body is duplicated before
// logging so downstream readers always get an intact stream.
type loggingRoundTripper struct {
	next   http.RoundTripper
	logger *zap.Logger
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	traceID := uuid.NewString()[:8]

	var requestBody string
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			raw, _ := io.ReadAll(body)
			body.Close()
			requestBody = prettyJSON(raw)
		}
	}

	if requestBody != "" {
		l.logger.Info("["+traceID+"] start "+req.Method+" request "+req.URL.String()+" with params:\n"+requestBody)
	} else {
		l.logger.Info("[" + traceID + "] start " + req.Method + " request " + req.URL.String())
	}

	resp, err := l.next.RoundTrip(req)
	if err != nil {
		l.logger.Info("["+traceID+"] failed "+req.Method+" request "+req.URL.String(), zap.Error(err))
		return nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	if body := prettyJSON(raw); body != "" {
		l.logger.Info("[" + traceID + "] finished " + req.Method + " request " + req.URL.String() +
			" with response: " + resp.Status + "\n" + body)
	} else {
		l.logger.Info("[" + traceID + "] finished " + req.Method + " request " + req.URL.String() +
			" with response: " + resp.Status)
	}

	return resp, nil
}

// prettyJSON re-indents raw JSON, returning the input unchanged when it is
// not JSON and empty for an empty body.
func prettyJSON(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
