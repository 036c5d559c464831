/*
Package protocol defines the JSON text frames exchanged over a chat connection.

Inbound frames are requests {action, params}; outbound frames are responses or events
{type, code, msg, data}. Frame codes reuse HTTP status semantics: 200 for success and
the error's status for ERROR frames.
*/
package protocol

import (
	"bytes"
	"encoding/json"

	"chatcoord/internal/pkg/errs"
)

// Outbound frame types.
const (
	TypeLoginResp      = "LOGIN_RESP"
	TypeChatMsg        = "EVENT_CHAT_MSG"
	TypeOnlineList     = "ONLINE_LIST"
	TypeHistoryList    = "HISTORY_LIST"
	TypeMsgRecalled    = "EVENT_MSG_RECALLED"
	TypeMsgRead        = "EVENT_MSG_READ"
	TypeMsgReact       = "EVENT_MSG_REACT"
	TypeTyping         = "EVENT_TYPING"
	TypeSysNotice      = "SYS_NOTICE"
	TypeError          = "ERROR"
	TypeSuccess        = "SUCCESS"
	TypeHeartbeatResp  = "HEARTBEAT_RESP"
	TypeGroupCreated   = "GROUP_CREATED"
	TypeGroupUpdated   = "GROUP_UPDATED"
	TypeGroupDissolved = "GROUP_DISSOLVED"
	TypeFriendEvent    = "FRIEND_EVENT"
)

const (
	CodeOK = 200
	MsgOK  = "ok"

	// NoticeEvicted is the SYS_NOTICE code sent to a session displaced by a newer login.
	NoticeEvicted = 400
	// NoticeKicked is the SYS_NOTICE code sent to a session removed by an administrator.
	NoticeKicked = 403
	// NoticeMuted is the SYS_NOTICE code sent to a user who has just been muted.
	NoticeMuted = 423
)

// Request is an inbound frame.
type Request struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is an outbound frame: a direct reply or a pushed event.
type Response struct {
	Type string `json:"type"`
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// ErrorData is the payload of an ERROR frame.
type ErrorData struct {
	ErrorCode int       `json:"errorCode"`
	Kind      errs.Kind `json:"kind"`
}

// Parse decodes an inbound text frame. Absent params decode as an empty object.
func Parse(raw []byte) (Request, error) {
	var req Request

	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&req); err != nil {
		return Request{}, errs.NewError(errs.ErrInvalidFrame)
	}
	if dec.More() {
		return Request{}, errs.NewError(errs.ErrInvalidFrame)
	}

	if len(req.Params) == 0 || bytes.Equal(req.Params, []byte("null")) {
		req.Params = json.RawMessage("{}")
	}

	return req, nil
}

// Encode serializes an outbound frame.
func Encode(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

// OK builds a success frame of the given type.
func OK(typ string, data any) Response {
	return Response{Type: typ, Code: CodeOK, Msg: MsgOK, Data: data}
}

// Success builds the generic SUCCESS acknowledgement with a custom message.
func Success(msg string, data any) Response {
	return Response{Type: TypeSuccess, Code: CodeOK, Msg: msg, Data: data}
}

// Notice builds a SYS_NOTICE frame.
func Notice(code int, msg string) Response {
	return Response{Type: TypeSysNotice, Code: code, Msg: msg}
}

// Error converts err into an ERROR frame. Non-application errors surface as the generic internal error.
func Error(err error) Response {
	customErr := errs.As(err)
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	return Response{
		Type: TypeError,
		Code: customErr.Status,
		Msg:  customErr.Message,
		Data: ErrorData{ErrorCode: customErr.Code, Kind: customErr.Kind},
	}
}
