package mcperr

// JSON-RPC 2.0 protocol error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// SDK-reserved error codes. These are part of the wire contract and must
// never change between releases.
const (
	CodeToolNotFound         = -32001
	CodeToolExecutionError   = -32002
	CodeResourceNotFound     = -32003
	CodeAuthenticationError  = -32004
	CodeAuthorizationError   = -32005
	CodeRateLimitError       = -32006
	CodeTimeoutError         = -32007
	CodeValidationError      = -32008
	CodeDependencyError      = -32009
	CodeConfigurationError   = -32010
	CodePaymentRequired      = -32011
	CodeInsufficientCredits  = -32012
	CodeSubscriptionRequired = -32013
)
