package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramMessage holds the data for a wake notification.
type TelegramMessage struct {
	Success   bool
	AppURL    string
	StartTime time.Time
	Duration  time.Duration

	// Wake details.
	Clicked      bool
	ClickedIn    string
	AlreadyAwake bool
	Message      string

	// Error info (if the run failed before or outside the wake protocol).
	ErrorMessage string
	FailedStep   string
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}
