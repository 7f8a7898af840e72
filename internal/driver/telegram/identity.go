package telegram

import "editguard/pkg/guard"

const (
	// DriverType is the configured driver type token for the Telegram runtime.
	DriverType = "telegram"
	// DriverPlatform is the neutral platform produced by the Telegram runtime.
	DriverPlatform guard.Platform = guard.PlatformTelegram
)
