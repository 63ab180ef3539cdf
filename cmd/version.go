package cmd

import (
	"fmt"

	"github.com/disgoorg/disgo"
	ffaudio "github.com/disgoorg/ffmpeg-audio"
	"github.com/spf13/cobra"
)

var (
	// Version information, set during build
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version, git commit, build date, library versions and the audio formats soundboard can decode.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("soundboard version %s\n", Version)
		fmt.Printf("Git commit: %s\n", GitCommit)
		fmt.Printf("Built: %s\n", BuildDate)
		fmt.Printf("disgo: %s\n", disgo.Version)
		fmt.Printf("Decoders: wav, mp3, flac, vorbis (ffmpeg fallback %s)\n", ffmpegStatus(ffaudio.DefaultConfig().Exec))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
