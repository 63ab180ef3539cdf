// Command generate fills a sound library with spoken demo clips.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Duckduckgot/gtts"
	"github.com/Duckduckgot/gtts/voices"

	"soundboard/sound"
)

var clips = []string{
	"Air horn!",
	"Ba dum tss.",
	"Applause, applause.",
	"Wrong answer.",
	"Nice.",
	"Sad trombone.",
	"Drum roll, please.",
	"Ding ding ding!",
}

func main() {
	dir := flag.String("dir", "sounds", "library directory to write clips to")
	lang := flag.String("lang", voices.English, "gtts voice language")
	flag.Parse()

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		slog.Error("Failed to create library directory", slog.Any("error", err))
		os.Exit(1)
	}

	speech := gtts.Speech{Folder: *dir, Language: *lang}
	for _, text := range clips {
		if err := generate(speech, text); err != nil {
			slog.Error("Failed to generate clip", slog.String("text", text), slog.Any("error", err))
			os.Exit(1)
		}
	}
}

func generate(speech gtts.Speech, text string) error {
	name, err := sound.Slug(text)
	if err != nil {
		return err
	}

	path, err := speech.CreateSpeechFile(text, name)
	if err != nil {
		return fmt.Errorf("error generating audio: %w", err)
	}

	slog.Info("Generated clip", slog.String("text", text), slog.String("file", path))
	return nil
}
