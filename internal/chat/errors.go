package chat

import (
	"errors"
	"fmt"
)

// API error codes shared by the REST handlers, the HTTP client, and the
// session controller. Each failure surfaced to a client carries exactly
// one of these.
const (
	CodeRoomNotFound            = "ROOM_NOT_FOUND"
	CodeRoomInactive            = "ROOM_INACTIVE"
	CodeMessagesFetchFailed     = "MESSAGES_FETCH_FAILED"
	CodeMessageSendFailed       = "MESSAGE_SEND_FAILED"
	CodeMessageNotFound         = "MESSAGE_NOT_FOUND"
	CodeMessageDeleteFailed     = "MESSAGE_DELETE_FAILED"
	CodeUnauthorizedDelete      = "UNAUTHORIZED_DELETE"
	CodeReactionToggleFailed    = "REACTION_TOGGLE_FAILED"
	CodeSelfReactionNotAllowed  = "SELF_REACTION_NOT_ALLOWED"
	CodeParticipantsFetchFailed = "PARTICIPANTS_FETCH_FAILED"
	CodeJoinFailed              = "JOIN_FAILED"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeInvalidRequest          = "INVALID_REQUEST"
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeUserExists              = "USER_EXISTS"
	CodeRoomCreateFailed        = "ROOM_CREATE_FAILED"
	CodeRoomListFailed          = "ROOM_LIST_FAILED"
	CodeProfileUpdateFailed     = "PROFILE_UPDATE_FAILED"
	CodeRateLimited             = "RATE_LIMITED"
)

// ErrSubscribeTimeout marks a channel subscription whose acknowledgment
// neither succeeded nor failed within the ack window. It is retryable:
// the subscriber transitions to disconnected and may subscribe afresh.
var ErrSubscribeTimeout = errors.New("chat: subscribe ack timeout")

// APIError is the structured error every REST endpoint returns and every
// client-side operation receives.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// NewAPIError builds an APIError.
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}
