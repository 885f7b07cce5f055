package model

import "fmt"

// Channel is a single output destination for published content.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelVK       Channel = "vk"
	ChannelVideo    Channel = "video"
)

func (c Channel) String() string {
	return string(c)
}

func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelTelegram, ChannelVK, ChannelVideo:
		return Channel(s), nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}
