package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"tgfb-relay/internal/config"
	"tgfb-relay/internal/database/models"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

const captionPreviewRunes = 60

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List published posts from the results store",
	Long: `List the records of the results store, oldest first.

Examples:
  tgfb-relay history             # every record
  tgfb-relay history --limit 20  # the 20 most recent records
  tgfb-relay history --json      # records as stored`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", 0, "show only the N most recent records")
	historyCmd.Flags().Bool("json", false, "output as JSON")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	sc, err := config.LoadStoreConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cmd.Context(), *sc)
	if err != nil {
		return err
	}
	defer closeStore()

	records, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		return enc.Encode(records)
	}
	return renderHistory(cmd.OutOrStdout(), records)
}

func renderHistory(w io.Writer, records []models.PublishRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No posts recorded yet.")
		return err
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{Borders: tw.BorderNone}),
	)
	table.Header([]string{"Telegram ID", "Posted At", "Status", "Group", "Caption"})

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			strconv.Itoa(rec.SourceID),
			rec.DatePosted(),
			string(rec.Status),
			rec.MediaGroupID,
			preview(rec.TranslatedCaption, captionPreviewRunes),
		})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// preview shortens s to n runes on a single line.
func preview(s string, n int) string {
	out := make([]rune, 0, n)
	for _, r := range s {
		if r == '\n' || r == '\r' {
			r = ' '
		}
		if len(out) == n {
			return string(out) + "..."
		}
		out = append(out, r)
	}
	return string(out)
}
