package chat

import (
	"encoding/json"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"

	"chatcoord/internal/app/protocol"
	"chatcoord/internal/app/session"
	"chatcoord/internal/pkg/errs"
	"chatcoord/internal/pkg/logx"
)

// call carries one authorized invocation into a handler.
type call struct {
	conn   session.Conn
	user   string
	params json.RawMessage
}

type handlerFunc func(e *Engine, c *call) error

// Engine decodes inbound frames, applies the auth gate and runs the matching handler.
// Handlers reply on the caller's connection themselves; the engine only replies on error.
type Engine struct {
	m      *Manager
	routes map[Action]handlerFunc
	logger zerolog.Logger
}

func newEngine(m *Manager) *Engine {
	e := &Engine{
		m:      m,
		logger: logx.Component("Engine"),
	}

	e.routes = map[Action]handlerFunc{
		ActionLogin:             (*Engine).login,
		ActionLogout:            (*Engine).logout,
		ActionHeartbeat:         (*Engine).heartbeat,
		ActionSendPrivate:       (*Engine).sendPrivate,
		ActionSendGroup:         (*Engine).sendGroup,
		ActionRecallMsg:         (*Engine).recall,
		ActionGetOnline:         (*Engine).getOnline,
		ActionGetHistory:        (*Engine).getHistory,
		ActionMsgRead:           (*Engine).markRead,
		ActionMsgReact:          (*Engine).react,
		ActionTypingStart:       (*Engine).typing,
		ActionKickUser:          (*Engine).kickUser,
		ActionMuteUser:          (*Engine).muteUser,
		ActionCreateGroup:       (*Engine).createGroup,
		ActionGroupAddMember:    (*Engine).groupAddMember,
		ActionGroupRemoveMember: (*Engine).groupRemoveMember,
		ActionGroupSetAdmin:     (*Engine).groupSetAdmin,
		ActionGroupRemoveAdmin:  (*Engine).groupRemoveAdmin,
		ActionGroupRename:       (*Engine).groupRename,
		ActionGroupDissolve:     (*Engine).groupDissolve,
		ActionFriendRequest:     (*Engine).friendRequest,
		ActionFriendAccept:      (*Engine).friendAccept,
		ActionFriendReject:      (*Engine).friendReject,
		ActionBlockUser:         (*Engine).blockUser,
		ActionUnblockUser:       (*Engine).unblockUser,
		ActionUpdateAvatar:      (*Engine).updateAvatar,
	}

	return e
}

// Handle processes one inbound text frame from conn. Every failure is answered with an
// ERROR frame on the same connection.
func (e *Engine) Handle(conn session.Conn, raw []byte) {
	req, err := protocol.Parse(raw)
	if err != nil {
		e.fail(conn, "INVALID", err)
		return
	}

	action, ok := ParseAction(req.Action)
	if !ok {
		e.logger.Debug().Str("conn_id", conn.ID()).Str("action", req.Action).Msg("Unknown action.")
		e.fail(conn, "UNKNOWN", errs.NewError(errs.ErrUnknownAction))
		return
	}

	if err := e.run(conn, action, req.Params); err != nil {
		e.fail(conn, action.String(), err)
		return
	}

	e.m.Metrics.Actions.WithLabelValues(action.String(), "ok").Inc()
}

func (e *Engine) run(conn session.Conn, action Action, params json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Interface("panic", r).
				Str("action", action.String()).
				Str("conn_id", conn.ID()).
				Bytes("stack", debug.Stack()).
				Msg("Handler panicked.")
			err = errs.NewError(errs.ErrUnknown)
		}
	}()

	username := conn.Identity()
	if !action.Public() && username == "" {
		return errs.NewError(errs.ErrUnauthorized)
	}
	if action.AdminOnly() && !e.m.Users.IsAdmin(username) {
		return errs.NewError(errs.ErrAdminOnly)
	}

	handler, ok := e.routes[action]
	if !ok {
		return errs.NewError(errs.ErrUnknownAction)
	}

	return handler(e, &call{conn: conn, user: username, params: params})
}

func (e *Engine) fail(conn session.Conn, label string, err error) {
	customErr := errs.As(err)

	e.m.Metrics.Actions.WithLabelValues(label, strings.ToLower(string(customErr.Kind))).Inc()

	e.logger.Debug().
		Str("conn_id", conn.ID()).
		Str("action", label).
		Int("error_code", customErr.Code).
		Msg("Action rejected.")

	e.m.Dispatcher.Reply(conn, protocol.Error(customErr))
}

// Disconnect releases the session bound to conn, if it is still the live one.
func (e *Engine) Disconnect(conn session.Conn) {
	username := conn.Identity()
	if username == "" {
		return
	}

	conn.SetIdentity("")
	e.m.Sessions.Unregister(username, conn)
}
