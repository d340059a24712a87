package commands

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbukum/chanflow/pipeline"
)

var (
	wordcountDir   string
	wordcountBatch int
)

var wordcountCmd = &cobra.Command{
	Use:   "wordcount",
	Short: "Count words in the text files of a directory",
	Long: `Read the files of a directory in batches, keep the non-empty .txt files,
count their words and print them, largest first.

Example:
  chanflow wordcount --dir ./data --batch 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := wordcountDir
		if dir == "" {
			dir = appConfig.Stream.DataDir
		}
		size := wordcountBatch
		if size == 0 {
			size = appConfig.Stream.BatchSize
		}

		p, err := wordcountPipeline(dir, size)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		return pipeline.Drain(p, func(_ context.Context, wc wordCount) error {
			_, err := fmt.Fprintf(out, "%-24s %6d\n", wc.name, wc.words)
			return err
		}, stageOptions("print")...).Run(cmd.Context())
	},
}

func init() {
	wordcountCmd.Flags().StringVarP(&wordcountDir, "dir", "d", "", "input directory (default: stream.data_dir)")
	wordcountCmd.Flags().IntVarP(&wordcountBatch, "batch", "b", 0, "files read concurrently per batch (default: stream.batch_size)")
	rootCmd.AddCommand(wordcountCmd)
}

type document struct {
	name string
	text string
}

type wordCount struct {
	name  string
	words int
}

// wordcountPipeline builds files -> batched concurrent read -> filter -> count -> sort.
func wordcountPipeline(dir string, batchSize int) (*pipeline.Pipeline[wordCount], error) {
	files := pipeline.Produce(listFiles(dir), stageOptions("files")...)

	docs, err := pipeline.Batch(files, batchSize, pipeline.ProcessEachAsync(readDocument), stageOptions("read")...)
	if err != nil {
		return nil, err
	}

	texts := pipeline.Filter(docs, isCountable, stageOptions("filter")...)
	counts := pipeline.Pipe(texts, func(d document) wordCount {
		return wordCount{name: d.name, words: len(strings.Fields(d.text))}
	}, stageOptions("count")...)
	return pipeline.SortBy(counts, pipeline.Descending(func(wc wordCount) int { return wc.words }), stageOptions("sort")...), nil
}

// listFiles yields the regular files of dir in name order.
func listFiles(dir string) pipeline.Producer[string] {
	return func(context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			entries, err := os.ReadDir(dir)
			if err != nil {
				yield("", err)
				return
			}
			for _, e := range entries {
				if !e.Type().IsRegular() {
					continue
				}
				if !yield(filepath.Join(dir, e.Name()), nil) {
					return
				}
			}
		}
	}
}

func readDocument(_ context.Context, path string) (document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return document{}, err
	}
	return document{name: filepath.Base(path), text: string(data)}, nil
}

func isCountable(d document) bool {
	return strings.HasSuffix(d.name, ".txt") && len(d.text) > 0
}
