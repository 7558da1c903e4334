package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"docchat-cli/internal/citation"
	"docchat-cli/internal/config"
	"docchat-cli/internal/display"
	"docchat-cli/internal/render"
	"docchat-cli/internal/stream"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ─── ask ────────────────────────────────────────────────────────────────────

func (a *app) askCmd() *cobra.Command {
	var raw, asJSON bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd, strings.Join(args, " "), raw, asJSON)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the cleaned text without rendering")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.MarkFlagsMutuallyExclusive("raw", "json")
	return cmd
}

func (a *app) runAsk(cmd *cobra.Command, question string, raw, asJSON bool) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return errors.New("question is empty")
	}
	session, err := a.newSession(a.cfg)
	if err != nil {
		return err
	}

	progress := display.NewProgress("Ожидание ответа")
	result, err := session.Ask(cmd.Context(), question, func(snapshot string) {
		progress.Update(utf8.RuneCountInString(snapshot))
	})
	progress.Clear()

	out := cmd.OutOrStdout()
	if err != nil {
		a.logger.Warn("ask failed", zap.Error(err))
		var perr *stream.PartialError
		if errors.As(err, &perr) && perr.Partial != "" && !asJSON {
			fmt.Fprintln(out, a.printer().Document(a.pipeline.Render(perr.Partial, render.Options{})))
		}
		return err
	}

	switch {
	case asJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case raw:
		fmt.Fprintln(out, result.Text)
		if result.SourcesWereFiltered {
			fmt.Fprintln(cmd.ErrOrStderr(), display.FilteredSourcesNotice)
		}
	default:
		fmt.Fprintln(out, a.printer().Document(a.pipeline.Render(result.Text, render.Options{})))
		if result.SourcesWereFiltered {
			fmt.Fprintln(out)
			display.Notice(display.FilteredSourcesNotice)
		}
	}
	return nil
}

// ─── clean ──────────────────────────────────────────────────────────────────

func (a *app) cleanCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "clean [file]",
		Short: "Remove source markers from an answer and add the sources footer",
		Long:  "clean reads an answer from a file, or from stdin when the file is omitted or \"-\", and prints it cleaned.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			result := citation.NewCleaner(a.logger, a.metrics).Clean(text)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			if result.SourcesWereFiltered {
				fmt.Fprintln(cmd.ErrOrStderr(), display.FilteredSourcesNotice)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// ─── render ─────────────────────────────────────────────────────────────────

func (a *app) renderCmd() *cobra.Command {
	var tree, fallback bool
	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render markdown the way answers are shown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			doc := a.pipeline.Render(text, render.Options{Fallback: fallback})
			if tree {
				fmt.Fprint(cmd.OutOrStdout(), render.Outline(doc))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.printer().Document(doc))
			return nil
		},
	}
	cmd.Flags().BoolVar(&tree, "tree", false, "print the document outline instead of rendering it")
	cmd.Flags().BoolVar(&fallback, "fallback", false, "use the line renderer only")
	return cmd
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(data), nil
}

// ─── config ─────────────────────────────────────────────────────────────────

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			display.Header("DocChat Configuration")
			display.Info("Profile:", config.ProfileName(a.profile))
			for _, key := range config.Keys() {
				value, _ := a.cfg.Get(key)
				switch {
				case value == "":
					value = display.Dim + "(not set)" + display.Reset
				case key == config.KeyToken:
					value = display.MaskToken(value)
				}
				display.Info(key+":", value)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

// ─── set ────────────────────────────────────────────────────────────────────

func (a *app) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting in the active profile",
		Long:  "Keys: " + strings.Join(config.Keys(), ", "),
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			key, value := args[0], strings.Join(args[1:], " ")
			if err := a.cfg.Set(key, value); err != nil {
				return err
			}
			if err := a.cfg.Save(); err != nil {
				return err
			}
			a.logger.Info("setting changed", zap.String("key", key))

			if strings.EqualFold(key, config.KeyToken) {
				value = display.MaskToken(value)
			}
			display.Success(fmt.Sprintf("%s set to %s", key, value))
			return nil
		},
	}
}

// ─── profiles ───────────────────────────────────────────────────────────────

func (a *app) profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List config profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, err := config.ListProfiles()
			if err != nil {
				return err
			}

			display.Header(fmt.Sprintf("Profiles (%d)", len(profiles)))
			if len(profiles) == 0 {
				display.Warn("No profiles found.")
				return nil
			}

			out := cmd.OutOrStdout()
			for _, p := range profiles {
				marker := " "
				if p == config.ProfileName(a.profile) {
					marker = display.Green + "●" + display.Reset
				}
				fmt.Fprintf(out, "  %s %s\n", marker, p)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
