package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"soundboard/config"
	"soundboard/sound"
)

// listCmd lists the sound library
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the sounds in the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		library, err := sound.NewDirStore(cfg.Library.Dir)
		if err != nil {
			return err
		}
		sounds, err := library.Sounds(cmd.Context())
		if err != nil {
			return err
		}

		if len(sounds) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No sounds in %s\n", library.Dir())
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderSounds(sounds, time.Now()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func renderSounds(sounds []sound.Sound, now time.Time) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Name", "Type", "Size", "Added"})

	var total int64
	for _, snd := range sounds {
		total += snd.Size
		tw.AppendRow(table.Row{
			snd.ID,
			snd.Name,
			snd.Type,
			humanize.Bytes(uint64(snd.Size)),
			humanize.RelTime(snd.ModTime, now, "ago", "from now"),
		})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d sounds", len(sounds)), "", humanize.Bytes(uint64(total)), ""})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return tw.Render()
}
