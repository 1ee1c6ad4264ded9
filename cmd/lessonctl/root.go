package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/lessongen/internal/learning/prompts"
	"github.com/yungbote/lessongen/internal/modules/learning/keys"
	"github.com/yungbote/lessongen/internal/platform/logger"
	"github.com/yungbote/lessongen/internal/sandbox/loader"
	"github.com/yungbote/lessongen/internal/sandbox/render"
	"github.com/yungbote/lessongen/internal/sandbox/transpile"
	"github.com/yungbote/lessongen/internal/sandbox/ui"
)

type rootOptions struct {
	verbose bool
	jsx     string
	timeout time.Duration
}

func (o *rootOptions) logger() *logger.Logger {
	if !o.verbose {
		return logger.Nop()
	}
	log, err := logger.New("development")
	if err != nil {
		return logger.Nop()
	}
	return log
}

func (o *rootOptions) transpileOptions() transpile.Options {
	return transpile.Options{JSX: transpile.JSXMode(o.jsx)}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "lessonctl",
		Short:         "Inspect lesson cache keys and render lesson components locally",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")
	cmd.PersistentFlags().StringVar(&opts.jsx, "jsx", string(transpile.JSXClassic), "JSX lowering: classic or automatic")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", loader.DefaultTimeout, "sandbox evaluation limit")

	cmd.AddCommand(
		newKeyCmd(opts),
		newTranspileCmd(opts),
		newRenderCmd(opts),
		newWorkerCmd(opts),
	)
	return cmd
}

func newKeyCmd(opts *rootOptions) *cobra.Command {
	var (
		prefix  string
		outline bool
	)
	cmd := &cobra.Command{
		Use:   "key <file|->",
		Short: "Print the cache key for a prompt, or for a lesson outline with --outline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			prompt := text
			if outline {
				reg, err := prompts.Load(opts.logger())
				if err != nil {
					return err
				}
				data, err := prompts.LessonJSON(prompts.LessonData{Outline: strings.TrimSpace(text)})
				if err != nil {
					return err
				}
				p, err := reg.Build(prompts.PromptLessonCode, prompts.Input{LessonJSON: data})
				if err != nil {
					return err
				}
				prompt = p.Canonical()
			}
			key, err := keys.New(prefix).Key(prompt)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", keys.DefaultPrefix, "key namespace")
	cmd.Flags().BoolVar(&outline, "outline", false, "treat input as a lesson outline and key the rendered code prompt")
	return cmd
}

func newTranspileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transpile <file|->",
		Short: "Print the executable module produced from TSX source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			mod, err := transpile.Transform(src, opts.transpileOptions())
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), mod.Code)
			return err
		},
	}
}

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var (
		propsJSON string
		asJSON    bool
		document  bool
	)
	cmd := &cobra.Command{
		Use:   "render <file|->",
		Short: "Render TSX source in the sandbox and print the resulting HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var props map[string]any
			if propsJSON != "" {
				if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
					return fmt.Errorf("--props: %w", err)
				}
			}
			log := opts.logger()
			eval := loader.NewHostEvaluator(loader.HostOptions{Timeout: opts.timeout, Log: log})
			pipe := render.NewPipeline(eval, render.Options{Transpile: opts.transpileOptions(), Log: log})
			view := pipe.Render(cmd.Context(), render.Request{Source: src, Props: props})

			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(view); err != nil {
					return err
				}
			case document:
				if _, err := io.WriteString(out, ui.Document("Lesson preview", view.HTML)); err != nil {
					return err
				}
			default:
				fmt.Fprintln(out, view.HTML)
			}
			if view.State == render.StateFailed {
				return fmt.Errorf("render failed: %s", view.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&propsJSON, "props", "", "props object as JSON")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the view as JSON")
	cmd.Flags().BoolVar(&document, "document", false, "wrap the HTML in a full page")
	return cmd
}

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:    "sandbox-worker",
		Short:  "Serve one sandbox request on stdin/stdout",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return loader.ServeWorker(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), loader.HostOptions{
				Timeout: opts.timeout,
			})
		},
	}
}

func readInput(cmd *cobra.Command, name string) (string, error) {
	if name == "-" {
		b, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), transpile.MaxSourceBytes+1))
		return string(b), err
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
