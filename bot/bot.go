package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo"
	disgobot "github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/dustin/go-humanize"

	"soundboard/board"
	"soundboard/config"
	"soundboard/playback"
)

// maxMessage is Discord's message length limit.
const maxMessage = 2000

// Bot is the Discord front end of the board: slash commands trigger sounds
// and the mix is played into a voice channel.
type Bot struct {
	config *config.DiscordConfig
	board  *board.Board
	voice  *VoiceOutput
	client disgobot.Client
	logger *slog.Logger
}

// New creates a bot. The engine behind b must play through voice.
func New(cfg *config.DiscordConfig, b *board.Board, voice *VoiceOutput) *Bot {
	return &Bot{
		config: cfg,
		board:  b,
		voice:  voice,
		logger: slog.With("component", "discord"),
	}
}

// Initialize sets up the Discord client and registers the commands
func (d *Bot) Initialize() error {
	d.logger.Info("Initializing Discord client")

	guildID, err := snowflake.Parse(d.config.GuildID)
	if err != nil {
		return fmt.Errorf("invalid guild ID: %w", err)
	}

	client, err := disgo.New(d.config.Token,
		disgobot.WithGatewayConfigOpts(
			gateway.WithIntents(gateway.IntentGuilds|gateway.IntentGuildVoiceStates),
		),
		disgobot.WithEventListenerFunc(d.commandListener),
	)
	if err != nil {
		return fmt.Errorf("failed to create Discord client: %w", err)
	}

	d.client = client

	if _, err = client.Rest().SetGuildCommands(client.ApplicationID(), guildID, commands()); err != nil {
		return fmt.Errorf("failed to register Discord commands: %w", err)
	}

	d.logger.Info("Discord client initialized successfully")
	return nil
}

// Start opens the gateway and joins the configured voice channel.
func (d *Bot) Start(ctx context.Context) error {
	if err := d.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to connect to Discord gateway: %w", err)
	}

	guildID, err := snowflake.Parse(d.config.GuildID)
	if err != nil {
		return fmt.Errorf("invalid guild ID: %w", err)
	}
	channelID, err := snowflake.Parse(d.config.VoiceChannelID)
	if err != nil {
		return fmt.Errorf("invalid voice channel ID: %w", err)
	}

	conn := d.client.VoiceManager().CreateConn(guildID)

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Open(openCtx, channelID, false, true); err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}
	d.voice.Attach(conn)

	d.logger.Info("Joined voice channel", slog.String("channel", channelID.String()))

	// Bring the output up now so the first command plays without delay.
	if err := d.board.Engine().InitContext(); err != nil {
		d.logger.Warn("Voice output not ready", slog.Any("error", err))
	}
	return nil
}

// Stop leaves the voice channel and closes the Discord connection
func (d *Bot) Stop() {
	d.board.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d.voice.Disconnect(ctx)
	if d.client != nil {
		d.client.Close(ctx)
	}
}

func commands() []discord.ApplicationCommandCreate {
	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        "play",
			Description: "Plays a sound from the board",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "sound",
					Description: "Name of the sound",
					Required:    true,
				},
				discord.ApplicationCommandOptionBool{
					Name:        "overlap",
					Description: "Play on top of what is already playing",
				},
				discord.ApplicationCommandOptionBool{
					Name:        "loop",
					Description: "Repeat until stopped",
				},
				discord.ApplicationCommandOptionInt{
					Name:        "volume",
					Description: "Volume from 0 to 100",
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        "stop",
			Description: "Stops every sound",
		},
		discord.SlashCommandCreate{
			Name:        "nowplaying",
			Description: "Shows the sound that is playing",
		},
		discord.SlashCommandCreate{
			Name:        "sounds",
			Description: "Lists the sounds on the board",
		},
	}
}

// playRequest is a parsed /play command.
type playRequest struct {
	sound   string
	overlap *bool
	loop    *bool
	volume  *int
}

func (r playRequest) options() []playback.PlayOption {
	var opts []playback.PlayOption
	if r.overlap != nil {
		opts = append(opts, playback.WithOverlap(*r.overlap))
	}
	if r.loop != nil {
		opts = append(opts, playback.WithLoop(*r.loop))
	}
	if r.volume != nil {
		opts = append(opts, playback.WithVolume(*r.volume))
	}
	return opts
}

// commandListener handles Discord slash commands
func (d *Bot) commandListener(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()

	d.logger.Info("Received command",
		slog.String("command", data.CommandName()),
		slog.String("user", event.User().Username))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var reply string
	switch data.CommandName() {
	case "play":
		req := playRequest{sound: data.String("sound")}
		if v, ok := data.OptBool("overlap"); ok {
			req.overlap = &v
		}
		if v, ok := data.OptBool("loop"); ok {
			req.loop = &v
		}
		if v, ok := data.OptInt("volume"); ok {
			req.volume = &v
		}
		reply = d.play(ctx, req)
	case "stop":
		reply = d.stop()
	case "nowplaying":
		reply = d.nowPlaying(ctx)
	case "sounds":
		reply = d.sounds(ctx)
	default:
		return
	}

	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(reply).
		SetEphemeral(true).
		Build())
	if err != nil {
		d.logger.Error("Failed to send Discord response", slog.Any("error", err))
	}
}

func (d *Bot) play(ctx context.Context, req playRequest) string {
	snd, h, err := d.board.Play(ctx, req.sound, req.options()...)
	switch {
	case errors.Is(err, board.ErrUnknownSound):
		return fmt.Sprintf("No sound called `%s`.", req.sound)
	case errors.Is(err, playback.ErrInvalidInput):
		return fmt.Sprintf("**%s** has no playable audio.", snd.Name)
	case errors.Is(err, playback.ErrDecode):
		return fmt.Sprintf("**%s** could not be decoded.", snd.Name)
	case errors.Is(err, playback.ErrPlaybackDenied):
		return "I am not connected to a voice channel."
	case err != nil:
		return fmt.Sprintf("Playback failed: %v", err)
	case h == nil:
		return fmt.Sprintf("**%s** was skipped, another sound took over.", snd.Name)
	}

	msg := fmt.Sprintf("Playing **%s**", snd.Name)
	if h.Loop() {
		msg += " on repeat"
	}
	return msg + "."
}

func (d *Bot) stop() string {
	d.board.Stop()
	return "Stopped."
}

func (d *Bot) nowPlaying(ctx context.Context) string {
	snd, found, err := d.board.NowPlaying(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to read the board: %v", err)
	}
	if !found {
		return "Nothing is playing."
	}
	return fmt.Sprintf("Now playing **%s**.", snd.Name)
}

func (d *Bot) sounds(ctx context.Context) string {
	sounds, err := d.board.Sounds(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to read the board: %v", err)
	}
	if len(sounds) == 0 {
		return "The board is empty."
	}

	var sb strings.Builder
	for i, snd := range sounds {
		line := fmt.Sprintf("- **%s** (`%s`, %s)\n", snd.Name, snd.ID, humanize.Bytes(uint64(snd.Size)))
		if sb.Len()+len(line) > maxMessage-32 {
			fmt.Fprintf(&sb, "…and %d more", len(sounds)-i)
			break
		}
		sb.WriteString(line)
	}
	return strings.TrimRight(sb.String(), "\n")
}
