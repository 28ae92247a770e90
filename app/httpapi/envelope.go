package httpapi

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

const (
	tokenTypeBearer = "bearer"
	contentTypeJSON = "application/json"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// envelope is the body of every JSON response.
type envelope struct {
	Status    bool   `json:"status"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Errors    any    `json:"errors,omitempty"`
	Token     string `json:"token,omitempty"`
	TokenType string `json:"token_type,omitempty"`
}

func success(message string, data any) envelope {
	return envelope{Status: true, Message: message, Data: data}
}

func failure(message string) envelope {
	return envelope{Status: false, Message: message}
}

func failureWithErrors(message string, errs any) envelope {
	return envelope{Status: false, Message: message, Errors: errs}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body envelope) {
	payload, err := json.Marshal(body)
	if err != nil {
		s.logError(r.Context(), logMsgEncodingFailed, logAttrError, err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
