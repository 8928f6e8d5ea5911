package errors

// ErrorCode is the stable application error code returned to API clients.
type ErrorCode int32

const (
	ErrorCode_HTTP_OK ErrorCode = iota
	ErrorCode_INTERNAL
	ErrorCode_INVALID_ARGUMENT
	ErrorCode_NOT_FOUND
	ErrorCode_ALREADY_EXISTS
	ErrorCode_CONFLICT
	ErrorCode_INVALID_PAYLOAD
	ErrorCode_MEETING_NOT_FOUND
	ErrorCode_STAGE_CONFLICT
	ErrorCode_TRANSCRIPT_NOT_READY
	ErrorCode_QUEUE_UNAVAILABLE
	ErrorCode_AI_ANALYSIS_FAILED
	ErrorCode_LLM_UNAVAILABLE
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCode_HTTP_OK:              "HTTP_OK",
	ErrorCode_INTERNAL:             "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:     "INVALID_ARGUMENT",
	ErrorCode_NOT_FOUND:            "NOT_FOUND",
	ErrorCode_ALREADY_EXISTS:       "ALREADY_EXISTS",
	ErrorCode_CONFLICT:             "CONFLICT",
	ErrorCode_INVALID_PAYLOAD:      "INVALID_PAYLOAD",
	ErrorCode_MEETING_NOT_FOUND:    "MEETING_NOT_FOUND",
	ErrorCode_STAGE_CONFLICT:       "STAGE_CONFLICT",
	ErrorCode_TRANSCRIPT_NOT_READY: "TRANSCRIPT_NOT_READY",
	ErrorCode_QUEUE_UNAVAILABLE:    "QUEUE_UNAVAILABLE",
	ErrorCode_AI_ANALYSIS_FAILED:   "AI_ANALYSIS_FAILED",
	ErrorCode_LLM_UNAVAILABLE:      "LLM_UNAVAILABLE",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}
