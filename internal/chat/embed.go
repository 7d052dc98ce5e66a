package chat

import "time"

const (
	embedDefaultColor = 0xFF6B00
	embedFooter       = "FlameKeeper · FlameBorn DAO on Celo"
)

// EventEmbed builds the standard notification embed used across commands and
// the donation bridge.
func EventEmbed(title, description string) Embed {
	return EventEmbedColored(title, description, embedDefaultColor)
}

func EventEmbedColored(title, description string, color int) Embed {
	return Embed{
		Title:       title,
		Description: description,
		Color:       color,
		Footer:      embedFooter,
		Timestamp:   time.Now(),
	}
}
