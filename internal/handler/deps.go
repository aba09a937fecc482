package handler

import (
	"sockchat/internal/app/chat"
	"sockchat/internal/app/session"
	"sockchat/internal/app/storage"
	"sockchat/internal/app/user"
	"sockchat/internal/app/view"
	"sockchat/internal/configs"
	"sockchat/internal/pkg/pow"
)

// AppDeps carries everything the routes need. Sessions and Authorizer must be built on the
// same session store and cookie codec.
type AppDeps struct {
	Config     *configs.AppConfig
	Users      *user.Service
	Sessions   *session.Manager
	Authorizer *session.Authorizer
	Hub        *chat.Hub
	Views      *view.Renderer
	Pow        *pow.Manager

	// Assets is nil when public files are served from Config.PublicDir.
	Assets storage.AssetService
}
