package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"soundboard/board"
)

// Notifier posts now-playing changes to a Discord webhook.
type Notifier struct {
	url      string
	username string
	board    *board.Board
	logger   *slog.Logger
	client   *http.Client
}

type webhookMessage struct {
	Username string `json:"username,omitempty"`
	Content  string `json:"content"`
}

// NewNotifier creates a notifier posting to url.
func NewNotifier(url string, b *board.Board) *Notifier {
	return &Notifier{
		url:      url,
		username: "Soundboard",
		board:    b,
		logger:   slog.With("component", "webhook"),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Start follows the engine's playing id until ctx is done or the engine
// closes. The id current at start is taken as the baseline and not posted.
// The returned channel is closed when the notifier stops.
func (n *Notifier) Start(ctx context.Context) <-chan struct{} {
	updates, unsubscribe := n.board.Engine().Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer unsubscribe()

		n.logger.Info("Posting now playing changes to webhook")

		last, ok := <-updates
		if !ok {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case id, ok := <-updates:
				if !ok {
					return
				}
				if id == last {
					continue
				}
				last = id

				if err := n.announce(ctx, id); err != nil {
					n.logger.Error("Failed to post now playing", slog.Any("error", err))
				}
			}
		}
	}()

	return done
}

func (n *Notifier) announce(ctx context.Context, id string) error {
	if id == "" {
		return n.SendMessage(ctx, "Playback stopped.")
	}

	snd, found, err := n.board.Resolve(ctx, id)
	if err != nil {
		return err
	}
	name := id
	if found {
		name = snd.Name
	}
	return n.SendMessage(ctx, fmt.Sprintf("Now playing **%s**", name))
}

// SendMessage sends a message to Discord via webhook
func (n *Notifier) SendMessage(ctx context.Context, message string) error {
	body, err := json.Marshal(webhookMessage{Username: n.username, Content: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord webhook returned status %d: %s", resp.StatusCode, body)
	}

	n.logger.Debug("Posted to Discord webhook", slog.Int("status", resp.StatusCode))
	return nil
}
