// Command glance imports EPUB and PDF documents into a local library of
// word sequences with chapter boundaries, ready for word-at-a-time
// reading front ends.
package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glance-reader/glance/internal/bookstore"
	"github.com/glance-reader/glance/internal/config"
	"github.com/glance-reader/glance/internal/importer"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "glance",
	Short: "Import ebooks and PDFs into a word-indexed reading library",
	Long: `glance ingests EPUB and PDF documents and converts them into a flat,
ordered word sequence with chapter boundaries, stored locally for
word-at-a-time reading.`,
	SilenceUsage: true,
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import an EPUB or PDF document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, logger, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()
		defer logger.Sync()

		im := importer.New(store, importer.Config{
			DataDir:   cfg.DataDir,
			Normalize: cfg.Normalize,
		}, logger)

		rec, err := im.Import(cmd.Context(), args[0], func(p importer.Progress) {
			fmt.Fprintf(os.Stderr, "%s\n", p.Message)
		})
		if err != nil {
			return err
		}

		fmt.Printf("Imported %q (%s)\n", rec.Title, rec.ID)
		fmt.Printf("  %d words, %d chapters\n", rec.WordCount, len(rec.Chapters))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported books",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, logger, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()
		defer logger.Sync()

		recs, err := store.List()
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No books imported yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tKIND\tWORDS\tPOSITION")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
				r.ID, r.Title, r.Kind, r.WordCount, r.CurrentWord)
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a book's record and chapters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, logger, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()
		defer logger.Sync()

		rec, err := store.Get(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Title:  %s\n", rec.Title)
		if rec.Author != "" {
			fmt.Printf("Author: %s\n", rec.Author)
		}
		fmt.Printf("Kind:   %s\n", rec.Kind)
		fmt.Printf("Words:  %d (position %d)\n", rec.WordCount, rec.CurrentWord)
		fmt.Printf("Added:  %s\n", rec.AddedAt.Format("2006-01-02 15:04"))
		if len(rec.Chapters) > 0 {
			fmt.Println("Chapters:")
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for i, ch := range rec.Chapters {
				fmt.Fprintf(w, "  %d.\t%s\t(word %d)\n", i+1, ch.Title, ch.StartIndex)
			}
			w.Flush()
		}
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Remove a book and its word cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, logger, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()
		defer logger.Sync()

		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

func setup() (config.Config, *bookstore.Store, *zap.Logger, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, nil, err
	}
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	store, err := bookstore.Open(cfg.DBPath(), logger)
	if err != nil {
		return cfg, nil, nil, err
	}
	return cfg, store, logger, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: XDG config dir)")
	rootCmd.AddCommand(importCmd, listCmd, showCmd, rmCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
