package config

import "time"

// TelegramConfig configures the chat transport.  An empty BotToken turns
// outbound chat messages into log lines.
type TelegramConfig struct {
	BotToken    string
	AdminChatID int64
	APIURL      string
	Timeout     time.Duration
}

func LoadTelegramConfig() TelegramConfig {
	return TelegramConfig{
		BotToken:    envStr("TELEGRAM_BOT_TOKEN", ""),
		AdminChatID: envInt64("ADMIN_CHAT_ID", 0),
		APIURL:      envStr("TELEGRAM_API_URL", "https://api.telegram.org"),
		Timeout:     envDur("TELEGRAM_TIMEOUT", 10*time.Second),
	}
}

// YooKassaConfig configures the payment provider client.
type YooKassaConfig struct {
	ShopID      string
	SecretKey   string
	ReturnURL   string
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
}

func LoadYooKassaConfig() YooKassaConfig {
	return YooKassaConfig{
		ShopID:      must("YOOKASSA_SHOP_ID"),
		SecretKey:   must("YOOKASSA_SECRET_KEY"),
		ReturnURL:   envStr("PAYMENT_RETURN_URL", ""),
		BaseURL:     envStr("YOOKASSA_API_URL", "https://api.yookassa.ru/v3"),
		Timeout:     envDur("YOOKASSA_TIMEOUT", 15*time.Second),
		MaxAttempts: envInt("YOOKASSA_MAX_ATTEMPTS", 3),
	}
}
