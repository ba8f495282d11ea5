package models

import (
	"fmt"
	"time"
)

// Platform is a review site a work submission targets.
type Platform string

const (
	PlatformYandex   Platform = "yandex"
	PlatformGoogle   Platform = "google"
	PlatformTelegram Platform = "telegram"
)

// Platforms lists every platform accepted by the service.
var Platforms = []Platform{PlatformYandex, PlatformGoogle, PlatformTelegram}

// ParsePlatform returns the platform named by s or an error for unknown names.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(s); p {
	case PlatformYandex, PlatformGoogle, PlatformTelegram:
		return p, nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}

// Cooldown is the minimum spacing between two accepted submissions by the
// same user on this platform. Zero means unlimited.
func (p Platform) Cooldown() time.Duration {
	switch p {
	case PlatformYandex:
		return 72 * time.Hour
	case PlatformGoogle:
		return 24 * time.Hour
	default:
		return 0
	}
}
