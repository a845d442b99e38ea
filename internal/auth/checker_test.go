package auth

import (
	"context"
	"errors"
	"testing"

	"tgfb-relay/internal/source"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBot struct {
	mock.Mock
}

func (m *MockBot) GetMe(ctx context.Context) (*telego.User, error) {
	args := m.Called(ctx)
	if user, ok := args.Get(0).(*telego.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) GetUpdates(ctx context.Context, params *telego.GetUpdatesParams) ([]telego.Update, error) {
	args := m.Called(ctx, params)
	return nil, args.Error(1)
}

func (m *MockBot) GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	args := m.Called(ctx, params)
	if member, ok := args.Get(0).(telego.ChatMember); ok {
		return member, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error) {
	args := m.Called(ctx, params)
	return nil, args.Error(1)
}

func (m *MockBot) FileDownloadURL(filepath string) string {
	return m.Called(filepath).String(0)
}

func TestChannelAccessChecker_Verify(t *testing.T) {
	channel := source.Channel{Username: "WatcherGuru"}
	membership := mock.MatchedBy(func(p *telego.GetChatMemberParams) bool {
		return p.ChatID.Username == "@WatcherGuru" && p.UserID == 77
	})

	t.Run("administrator", func(t *testing.T) {
		bot := new(MockBot)
		bot.On("GetMe", mock.Anything).Return(&telego.User{ID: 77, Username: "relay_bot"}, nil)
		bot.On("GetChatMember", mock.Anything, membership).
			Return(&telego.ChatMemberAdministrator{Status: telego.MemberStatusAdministrator}, nil)

		checker, err := NewChannelAccessChecker(bot, channel)
		require.NoError(t, err)
		assert.NoError(t, checker.Verify(context.Background()))
	})

	t.Run("not an administrator", func(t *testing.T) {
		bot := new(MockBot)
		bot.On("GetMe", mock.Anything).Return(&telego.User{ID: 77, Username: "relay_bot"}, nil)
		bot.On("GetChatMember", mock.Anything, membership).
			Return(&telego.ChatMemberLeft{Status: telego.MemberStatusLeft}, nil)

		checker, err := NewChannelAccessChecker(bot, channel)
		require.NoError(t, err)
		err = checker.Verify(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "administrator rights are required")
	})

	t.Run("bad token", func(t *testing.T) {
		bot := new(MockBot)
		bot.On("GetMe", mock.Anything).Return(nil, errors.New("401 Unauthorized"))

		checker, err := NewChannelAccessChecker(bot, channel)
		require.NoError(t, err)
		assert.ErrorContains(t, checker.Verify(context.Background()), "failed to authenticate bot")
		bot.AssertNotCalled(t, "GetChatMember", mock.Anything, mock.Anything)
	})
}

func TestNewChannelAccessChecker_Validation(t *testing.T) {
	_, err := NewChannelAccessChecker(nil, source.Channel{Username: "x"})
	assert.Error(t, err)
	_, err = NewChannelAccessChecker(new(MockBot), source.Channel{})
	assert.Error(t, err)
}
