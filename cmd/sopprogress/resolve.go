package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wisarudtecha/CMS-sub002/internal/diagram"
	"github.com/wisarudtecha/CMS-sub002/internal/payload"
	"github.com/wisarudtecha/CMS-sub002/internal/tracker"
	"github.com/wisarudtecha/CMS-sub002/internal/validation"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// errInvalid is returned by validate when the payload has errors.
var errInvalid = errors.New("payload is invalid")

type resolveOptions struct {
	Format   string
	Language string
	Output   string
}

func newResolveCmd(a *app) *cobra.Command {
	var opts resolveOptions
	cmd := &cobra.Command{
		Use:   "resolve <file>",
		Short: "Resolve the progress steps of a JSON or YAML payload file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), cmd.OutOrStdout(), a.cfg, a.logger, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "json", "output format: json, mermaid, ascii, png, svg")
	cmd.Flags().StringVar(&opts.Language, "lang", "", "title language (default: payload language, then config)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a payload file and list its errors and warnings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), cmd.OutOrStdout(), a.cfg, args[0])
		},
	}
}

// runResolve resolves a payload file without a store. An empty workflow still
// prints its (empty) result before the error is returned.
func runResolve(ctx context.Context, w io.Writer, cfg Config, logger *slog.Logger, path string, opts resolveOptions) error {
	dec, err := payload.NewDecoder()
	if err != nil {
		return err
	}
	p, err := dec.DecodeFile(ctx, path)
	if err != nil {
		return err
	}
	tcfg, err := buildTrackerConfig(cfg, nil)
	if err != nil {
		return err
	}
	tr := tracker.NewTracker(nil, nil, tcfg, logger)

	out := w
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if opts.Format == "" || opts.Format == "json" {
		res, resolveErr := tr.Inline(ctx, p, opts.Language)
		if resolveErr != nil && !schema.IsCode(resolveErr, schema.ErrCodeEmptyWorkflow) {
			return resolveErr
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		return resolveErr
	}

	model, err := tr.InlineDiagram(ctx, p, opts.Language)
	if err != nil {
		return err
	}
	switch opts.Format {
	case "mermaid":
		_, err = io.WriteString(out, diagram.RenderMermaid(model))
	case "ascii":
		_, err = io.WriteString(out, diagram.RenderASCII(model))
	case diagram.FormatPNG, diagram.FormatSVG:
		var img []byte
		if img, err = diagram.RenderImage(ctx, model, opts.Format); err == nil {
			_, err = out.Write(img)
		}
	default:
		err = fmt.Errorf("unknown format %q (want json, mermaid, ascii, png or svg)", opts.Format)
	}
	return err
}

// runValidate prints one line per issue and fails when any is an error.
func runValidate(ctx context.Context, w io.Writer, cfg Config, path string) error {
	dec, err := payload.NewDecoder()
	if err != nil {
		return err
	}
	tcfg, err := buildTrackerConfig(cfg, nil)
	if err != nil {
		return err
	}

	var result *schema.ValidationResult
	if p, err := dec.DecodeFile(ctx, path); err != nil {
		if !errors.As(err, new(*schema.SOPError)) {
			return err
		}
		result = validation.StructuralResult(err)
	} else {
		def := p.Definition()
		if result, err = tracker.NewTracker(nil, nil, tcfg, nil).Validate(ctx, &def); err != nil {
			return err
		}
	}

	for _, issue := range result.Errors {
		fmt.Fprintf(w, "error\t%s\t%s\t%s\n", issue.Path, issue.Code, issue.Message)
	}
	for _, issue := range result.Warnings {
		fmt.Fprintf(w, "warning\t%s\t%s\t%s\n", issue.Path, issue.Code, issue.Message)
	}
	if !result.Valid() {
		return errInvalid
	}
	fmt.Fprintf(w, "ok\t%d warning(s)\n", len(result.Warnings))
	return nil
}
