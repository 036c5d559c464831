package chat

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"chatcoord/internal/app/group"
	"chatcoord/internal/app/protocol"
	"chatcoord/internal/app/session"
	"chatcoord/internal/app/user"
	"chatcoord/internal/pkg/auth/jwt"
	"chatcoord/internal/pkg/errs"
)

// loginResponse is the LOGIN_RESP payload. The credential hash never leaves the directory.
type loginResponse struct {
	user.Profile

	// Token may be presented on a later LOGIN instead of the password.
	Token string `json:"token,omitempty"`

	Groups []group.Group `json:"groups"`
}

func (e *Engine) login(c *call) error {
	p, err := bind[loginParams](c.params)
	if err != nil {
		return err
	}

	var profile user.Profile
	if p.Token != "" {
		profile, err = e.resume(p.Username, p.Token)
	} else {
		profile, _, err = e.m.Users.Login(p.Username, p.Password)
	}
	if err != nil {
		return err
	}

	// A connection switching identities first releases the old one.
	if prev := c.conn.Identity(); prev != "" && prev != profile.Username {
		e.Disconnect(c.conn)
	}

	c.conn.SetIdentity(profile.Username)
	e.m.Sessions.Register(profile.Username, c.conn)

	token, err := e.issueToken(profile)
	if err != nil {
		e.logger.Error().Err(err).Str("username", profile.Username).Msg("Failed to sign resume token.")
		token = ""
	}

	e.m.Dispatcher.Reply(c.conn, protocol.OK(protocol.TypeLoginResp, loginResponse{
		Profile: profile,
		Token:   token,
		Groups:  e.m.Groups.GroupsOf(profile.Username),
	}))

	e.logger.Info().Str("username", profile.Username).Str("conn_id", c.conn.ID()).Msg("User logged in.")
	return nil
}

// issueToken signs a resume token bound to the user's current credential epoch.
func (e *Engine) issueToken(profile user.Profile) (string, error) {
	epoch, ok := e.m.Users.TokenEpoch(profile.Username)
	if !ok {
		return "", errs.NewError(errs.ErrUserNotFound)
	}

	return jwt.GenerateToken(&jwt.Payload{
		Username: profile.Username,
		Role:     string(profile.Role),
		Epoch:    epoch,
	}, e.m.config.JWTSecret, jwt.ResumeTokenExpiration)
}

// resume authenticates with a previously issued token. The token must carry the
// user's current credential epoch; a password login since issue invalidates it.
func (e *Engine) resume(username, token string) (user.Profile, error) {
	payload, err := jwt.ParseToken(token, e.m.config.JWTSecret)
	if err != nil || payload.Username != strings.TrimSpace(username) {
		return user.Profile{}, errs.NewError(errs.ErrInvalidToken)
	}

	epoch, ok := e.m.Users.TokenEpoch(payload.Username)
	if !ok || epoch != payload.Epoch {
		return user.Profile{}, errs.NewError(errs.ErrInvalidToken)
	}

	profile, ok := e.m.Users.Get(payload.Username)
	if !ok {
		return user.Profile{}, errs.NewError(errs.ErrInvalidToken)
	}
	return profile, nil
}

func (e *Engine) logout(c *call) error {
	e.Disconnect(c.conn)
	e.m.Dispatcher.Reply(c.conn, protocol.Success("logged out", nil))
	c.conn.Close(CloseCodeNormal, "logout")
	return nil
}

func (e *Engine) heartbeat(c *call) error {
	e.m.Dispatcher.Reply(c.conn, protocol.Response{
		Type: protocol.TypeHeartbeatResp,
		Code: protocol.CodeOK,
		Msg:  "pong",
	})
	return nil
}

func (e *Engine) getOnline(c *call) error {
	online := e.m.Sessions.SnapshotOnline(e.m.Users)
	slices.SortFunc(online, func(a, b session.OnlineUser) int {
		return cmp.Compare(a.Username, b.Username)
	})

	e.m.Dispatcher.Reply(c.conn, protocol.OK(protocol.TypeOnlineList, online))
	return nil
}

func (e *Engine) kickUser(c *call) error {
	p, err := bind[targetParams](c.params)
	if err != nil {
		return err
	}
	target := strings.TrimSpace(p.TargetUser)

	if target == c.user {
		return errs.NewError(errs.ErrInvalidParams, "targetUser")
	}

	conn, ok := e.m.Sessions.Lookup(target)
	if !ok {
		return errs.NewError(errs.ErrUserOffline)
	}

	session.Evict(conn, protocol.Notice(protocol.NoticeKicked, "You were removed by an administrator."), "kicked by administrator")
	e.m.Sessions.Unregister(target, conn)
	e.m.Metrics.Evictions.Inc()

	e.logger.Warn().Str("operator", c.user).Str("target", target).Msg("User kicked.")

	e.m.Dispatcher.Reply(c.conn, protocol.Success("kicked", map[string]string{"targetUser": target}))
	return nil
}

// muteResponse is the SUCCESS payload of MUTE_USER.
type muteResponse struct {
	TargetUser string `json:"targetUser"`
	MuteUntil  int64  `json:"muteUntil"`
}

func (e *Engine) muteUser(c *call) error {
	p, err := bind[muteParams](c.params)
	if err != nil {
		return err
	}
	target := strings.TrimSpace(p.TargetUser)

	seconds := p.seconds()
	if seconds <= 0 {
		return errs.NewError(errs.ErrInvalidParams, "durationSeconds")
	}

	until := e.m.now().Add(time.Duration(seconds) * time.Second)
	if err := e.m.Users.Mute(target, until); err != nil {
		return err
	}

	e.m.Dispatcher.SendToUser(target, protocol.Notice(protocol.NoticeMuted,
		"You are muted until "+until.UTC().Format(time.RFC3339)+"."))

	e.logger.Warn().Str("operator", c.user).Str("target", target).Time("until", until).Msg("User muted.")

	e.m.Dispatcher.Reply(c.conn, protocol.Success("muted", muteResponse{
		TargetUser: target,
		MuteUntil:  until.UnixMilli(),
	}))
	return nil
}

func (e *Engine) updateAvatar(c *call) error {
	p, err := bind[avatarParams](c.params)
	if err != nil {
		return err
	}

	profile, err := e.m.Users.UpdateAvatar(c.user, p.Avatar)
	if err != nil {
		return err
	}

	e.m.Dispatcher.Reply(c.conn, protocol.Success("avatar updated", profile))
	return nil
}
