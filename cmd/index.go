package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mentor/internal/pkg/ark"
	"mentor/internal/retrieval"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect the retrieval vector index",
}

var indexInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load the index and print its size",
	RunE:  runIndexInspect,
}

var indexSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Embed a query and print the nearest chunks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndexSearch,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexInspectCmd, indexSearchCmd)

	flags := indexCmd.PersistentFlags()
	flags.String("vectors", "", "vectors file (default from retrieval.vectors_path)")
	flags.String("docs", "", "docs file (default from retrieval.docs_path)")
	_ = viper.BindPFlag("retrieval.vectors_path", flags.Lookup("vectors"))
	_ = viper.BindPFlag("retrieval.docs_path", flags.Lookup("docs"))

	indexSearchCmd.Flags().IntP("top-k", "k", 0, "number of results (default from retrieval.top_k)")
}

func loadIndex() (*retrieval.Index, error) {
	cfg := GetConfig()
	index, err := retrieval.LoadIndex(cfg.Retrieval.VectorsPath, cfg.Retrieval.DocsPath)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	return index, nil
}

func runIndexInspect(cmd *cobra.Command, args []string) error {
	index, err := loadIndex()
	if err != nil {
		return err
	}

	cfg := GetConfig()
	log.Debug().Str("vectors", cfg.Retrieval.VectorsPath).Str("docs", cfg.Retrieval.DocsPath).Msg("index loaded")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "documents: %d\n", index.Len())
	fmt.Fprintf(out, "dimension: %d\n", index.Dim())
	return nil
}

func runIndexSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if !cfg.Embedding.Enabled() {
		return errors.New("embedding.api_key and embedding.model must be set to search")
	}

	index, err := loadIndex()
	if err != nil {
		return err
	}
	if index.Empty() {
		return errors.New("index is empty")
	}

	client, err := ark.NewEmbeddingClient(&cfg.Embedding)
	if err != nil {
		return fmt.Errorf("create embedding client: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Embedding.Timeout)
	defer cancel()

	query := strings.Join(args, " ")
	vec, err := client.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	k, _ := cmd.Flags().GetInt("top-k")
	if k <= 0 {
		k = cfg.Retrieval.TopK
	}
	hits, err := index.Search(vec, k)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, hit := range hits {
		fmt.Fprintf(out, "%d. [%.4f] %s\n", i+1, hit.Distance, hit.Source)
		fmt.Fprintf(out, "   %s\n", truncate(hit.Text, 200))
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
