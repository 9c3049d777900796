package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// SendMessageParams describes one outgoing chat message.
type SendMessageParams struct {
	ChatID    int64
	Text      string
	ParseMode string
	Buttons   [][]InlineButton
}

// TelegramBotAdapter is the outbound side of the chat platform.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, params SendMessageParams) error
	SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error
}
