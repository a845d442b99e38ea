package telegoapi

import (
	"context"

	"github.com/mymmrac/telego"
)

// BotAPI defines the subset of Bot API operations the relay needs.
// This allows using both the real telego.Bot and mocks.
type BotAPI interface {
	GetMe(ctx context.Context) (*telego.User, error)
	GetUpdates(ctx context.Context, params *telego.GetUpdatesParams) ([]telego.Update, error)
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
	GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error)
	FileDownloadURL(filepath string) string
}

var _ BotAPI = (*telego.Bot)(nil)
