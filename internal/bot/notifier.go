package bot

import (
	"github.com/bwmarrin/discordgo"

	"github.com/frostholt/discord-twitch-notify/internal/embed"
	"github.com/frostholt/discord-twitch-notify/internal/watcher"
)

// discordNotifier delivers rendered payloads as channel messages with an
// embed and a persistent watch button.
type discordNotifier struct {
	session *discordgo.Session
}

func (n *discordNotifier) Send(channelID string, p *watcher.Payload) error {
	_, err := n.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    p.Content,
		Embeds:     []*discordgo.MessageEmbed{embed.CreateLiveStreamEmbed(p)},
		Components: embed.WatchButton(p.WatchURL),
	})
	return err
}
