package handler

import (
	"chatcoord/internal/app/chat"
	"chatcoord/internal/configs"
)

type AppDeps struct {
	Manager *chat.Manager
	Config  *configs.AppConfig
}
