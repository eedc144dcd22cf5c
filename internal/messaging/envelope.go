package messaging

import (
	"encoding/json"
	"errors"

	apperrors "github.com/spec-kit/storefront/pkg/util/errorutil"
)

// Request is the wire envelope of every message: a pattern naming the
// handler and its JSON data.
type Request struct {
	Pattern string          `json:"pattern"`
	Data    json.RawMessage `json:"data"`
}

// Reply is the body published back to a request's ReplyTo queue.
type Reply struct {
	Response json.RawMessage `json:"response,omitempty"`
	Err      *ReplyError     `json:"err,omitempty"`
}

// ReplyError carries a DomainError across the broker.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encodeRequest(pattern string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Request{Pattern: pattern, Data: data})
}

func decodeRequest(body []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, err
	}
	if req.Pattern == "" {
		return Request{}, errors.New("missing pattern")
	}
	return req, nil
}

func encodeReply(result any, handlerErr error) ([]byte, error) {
	if handlerErr != nil {
		domainErr := apperrors.ToDomainError(handlerErr)
		return json.Marshal(Reply{Err: &ReplyError{Code: domainErr.Code, Message: domainErr.Message}})
	}
	response, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Reply{Response: response})
}
