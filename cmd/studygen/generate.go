package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"studyforge/internal/adapter/extract"
	"studyforge/internal/domain"
	"studyforge/internal/service"

	"github.com/spf13/cobra"
)

type itemFlags struct {
	kind       string
	count      int
	difficulty string
	language   string
}

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.kind, "kind", "k", string(domain.KindFlashcard), "Item kind: flashcard, quiz or exercise")
	cmd.Flags().IntVarP(&f.count, "count", "n", 10, "Number of items to generate")
	cmd.Flags().StringVarP(&f.difficulty, "difficulty", "d", string(domain.DifficultyBeginner), "beginner, intermediate or advanced")
	cmd.Flags().StringVar(&f.language, "language", "", "Output language")
}

func (c *cli) generateCmd() *cobra.Command {
	var (
		items  itemFlags
		file   string
		origin string
		kinds  []string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate items from a PDF or text file",
		Long: `Generate study items from a PDF, DOCX, PPTX or text document. Use --file -
to read plain text from stdin. With --kinds every listed kind is generated from
the same document and reported separately. The outcome is printed as JSON; the
command exits non-zero when nothing usable was generated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			text, err := extract.Text(name, data)
			if err != nil {
				return err
			}
			if text == "" {
				return fmt.Errorf("no text could be extracted from %s", name)
			}
			req := domain.GenerationRequest{
				SourceText: text,
				Count:      items.count,
				Kind:       domain.ParseItemKind(items.kind),
				Difficulty: domain.ParseDifficulty(items.difficulty),
				Origin:     domain.Origin(origin),
				Language:   items.language,
			}
			if len(kinds) > 0 {
				return c.runSet(cmd, req, service.ParseKinds(kinds))
			}
			return c.run(cmd, req)
		},
	}
	items.register(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "Input .pdf, .docx, .pptx or .txt file, or - for stdin")
	cmd.Flags().StringSliceVar(&kinds, "kinds", nil, "Generate several kinds at once, e.g. flashcard,quiz,exercise")
	cmd.Flags().StringVar(&origin, "origin", string(domain.OriginDocument), "document or topic-search")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readInput(cmd *cobra.Command, file string) (string, []byte, error) {
	if file == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", nil, fmt.Errorf("read stdin: %w", err)
		}
		return "stdin.txt", data, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", file, err)
	}
	return filepath.Base(file), data, nil
}
