/*
Package chat contains the action engine, the websocket client and the Manager that
owns every piece of shared chat state.

This file defines the closed catalogue of inbound actions.
*/
package chat

// Action is one entry of the fixed inbound action catalogue.
type Action int

const (
	ActionLogin Action = iota + 1
	ActionLogout
	ActionHeartbeat
	ActionSendPrivate
	ActionSendGroup
	ActionRecallMsg
	ActionGetOnline
	ActionGetHistory
	ActionMsgRead
	ActionMsgReact
	ActionTypingStart
	ActionKickUser
	ActionMuteUser
	ActionCreateGroup
	ActionGroupAddMember
	ActionGroupRemoveMember
	ActionGroupSetAdmin
	ActionGroupRemoveAdmin
	ActionGroupRename
	ActionGroupDissolve
	ActionFriendRequest
	ActionFriendAccept
	ActionFriendReject
	ActionBlockUser
	ActionUnblockUser
	ActionUpdateAvatar
)

var actionNames = map[Action]string{
	ActionLogin:             "LOGIN",
	ActionLogout:            "LOGOUT",
	ActionHeartbeat:         "HEARTBEAT",
	ActionSendPrivate:       "SEND_PRIVATE",
	ActionSendGroup:         "SEND_GROUP",
	ActionRecallMsg:         "RECALL_MSG",
	ActionGetOnline:         "GET_ONLINE",
	ActionGetHistory:        "GET_HISTORY",
	ActionMsgRead:           "MSG_READ",
	ActionMsgReact:          "MSG_REACT",
	ActionTypingStart:       "TYPING_START",
	ActionKickUser:          "KICK_USER",
	ActionMuteUser:          "MUTE_USER",
	ActionCreateGroup:       "CREATE_GROUP",
	ActionGroupAddMember:    "GROUP_ADD_MEMBER",
	ActionGroupRemoveMember: "GROUP_REMOVE_MEMBER",
	ActionGroupSetAdmin:     "GROUP_SET_ADMIN",
	ActionGroupRemoveAdmin:  "GROUP_REMOVE_ADMIN",
	ActionGroupRename:       "GROUP_RENAME",
	ActionGroupDissolve:     "GROUP_DISSOLVE",
	ActionFriendRequest:     "FRIEND_REQUEST",
	ActionFriendAccept:      "FRIEND_ACCEPT",
	ActionFriendReject:      "FRIEND_REJECT",
	ActionBlockUser:         "BLOCK_USER",
	ActionUnblockUser:       "UNBLOCK_USER",
	ActionUpdateAvatar:      "UPDATE_AVATAR",
}

var actionsByName = func() map[string]Action {
	m := make(map[string]Action, len(actionNames))
	for a, name := range actionNames {
		m[name] = a
	}
	return m
}()

// ParseAction resolves a wire name. Names are case-sensitive.
func ParseAction(name string) (Action, bool) {
	a, ok := actionsByName[name]
	return a, ok
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "UNKNOWN"
}

// Public reports whether the action may run before login.
func (a Action) Public() bool {
	return a == ActionLogin || a == ActionHeartbeat
}

// AdminOnly reports whether the action requires the ADMIN role.
func (a Action) AdminOnly() bool {
	return a == ActionKickUser || a == ActionMuteUser
}
