package response

// Body is the envelope used by middleware and handlers that do not go
// through fres.
type Body struct {
	Status  string      `json:"status"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Error(code, message string, data interface{}) Body {
	return Body{
		Status:  "error",
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func Success(message string, data interface{}) Body {
	return Body{
		Status:  "success",
		Code:    "OK",
		Message: message,
		Data:    data,
	}
}
