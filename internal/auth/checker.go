package auth

import (
	"context"
	"fmt"
	"log"

	"tgfb-relay/internal/source"
	"tgfb-relay/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

// ChannelAccessChecker verifies that the bot can read the source channel.
// Channel posts are only delivered to bots that administer the channel.
type ChannelAccessChecker struct {
	bot     telegoapi.BotAPI
	channel source.Channel
}

// NewChannelAccessChecker creates a new ChannelAccessChecker.
func NewChannelAccessChecker(bot telegoapi.BotAPI, channel source.Channel) (*ChannelAccessChecker, error) {
	if bot == nil {
		return nil, fmt.Errorf("telego bot instance cannot be nil")
	}
	if channel.ID == 0 && channel.Username == "" {
		return nil, fmt.Errorf("target channel cannot be empty")
	}
	return &ChannelAccessChecker{bot: bot, channel: channel}, nil
}

// Verify returns an error when the read session cannot be started: bad token,
// unknown channel, or a bot that is not an administrator of the channel.
func (c *ChannelAccessChecker) Verify(ctx context.Context) error {
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to authenticate bot: %w", err)
	}

	member, err := c.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: c.channel.ChatID(),
		UserID: me.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to get bot membership in %s: %w", c.channel, err)
	}

	status := member.MemberStatus()
	if status != telego.MemberStatusCreator && status != telego.MemberStatusAdministrator {
		return fmt.Errorf("bot @%s is %q in %s, administrator rights are required to read channel posts", me.Username, status, c.channel)
	}
	log.Printf("[AccessCheck Channel:%s] Bot @%s is %s", c.channel, me.Username, status)
	return nil
}
