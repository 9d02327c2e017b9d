package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"quizmaster-service/internal/app"
)

// NewImportCmd appends questions from a YAML or JSON file to a stored quiz.
func NewImportCmd(configPath *string) *cobra.Command {
	var quizID, file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import questions into a quiz from a YAML or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			raw, err := readQuestionFile(file)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			rt, err := buildService(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			quiz, err := rt.service.ImportQuestions(ctx, quizID, raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d questions into %q (%d total)\n", len(raw), quiz.Title, len(quiz.Questions))
			return nil
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "", "id of the quiz to import into")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON file holding a list of questions")
	_ = cmd.MarkFlagRequired("quiz")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readQuestionFile decodes a list of question objects. JSON input is read as YAML.
func readQuestionFile(path string) ([]app.RawQuestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(items) == 0 {
		return nil, errors.New("no questions in " + path)
	}
	raw := make([]app.RawQuestion, len(items))
	for i, item := range items {
		raw[i] = app.RawQuestion(item)
	}
	return raw, nil
}
