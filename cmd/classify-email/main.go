package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/di"
	"github.com/mikey/email-classifier/internal/ports"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &di.CLIFlags{}

	cmd := &cobra.Command{
		Use:   "classify-email",
		Short: "Classify an email as Produtivo or Improdutivo",
		Long: `classify-email sends an email text or file (.txt, .pdf, .eml) to the
configured completion provider and prints the category, confidence and a
suggested reply.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (flags.Text == "") == (flags.InputFile == "") {
				return errors.New("exactly one of --text or --file is required")
			}
			flags.Out = cmd.OutOrStdout()
			return run(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Text, "text", "t", "", "Email text to classify")
	cmd.Flags().StringVarP(&flags.InputFile, "file", "f", "", "Email file to classify (.txt, .pdf, .eml)")
	cmd.Flags().StringVarP(&flags.Provider, "provider", "p", "", "Completion provider (openai, gemini, bedrock)")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose output and debug logging")
	cmd.Flags().BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	cmd.Flags().StringVarP(&flags.ConfigFile, "config", "c", "", "Path to config file")

	return cmd
}

func run(cmd *cobra.Command, flags *di.CLIFlags) error {
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(cli *di.CLI) error {
		defer cli.Close()

		email := &ports.Email{Body: flags.Text}
		if flags.InputFile != "" {
			text, err := readFile(cli, flags.InputFile)
			if err != nil {
				return err
			}
			email.Body = text
		}

		if strings.TrimSpace(email.Body) == "" {
			return core.ErrEmptyInput
		}

		if _, err := cli.Filter.ProcessEmail(cmd.Context(), email); err != nil {
			return fmt.Errorf("classification failed (%s): %w", core.ErrorCode(err), err)
		}
		return nil
	})
}

func readFile(cli *di.CLI, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read input file: %w", err)
	}

	cli.Logger.Debug("Reading email from file", zap.String("file", path), zap.Int("size", len(raw)))

	contentType := ""
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		contentType = "text/plain"
	}
	return cli.Extractor.Extract(filepath.Base(path), contentType, raw)
}
