package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"quizdoc/api/internal/pipeline"
)

func newRunCmd(f *flags) *cobra.Command {
	var number int
	cmd := &cobra.Command{
		Use:   "run IMAGE",
		Short: "Publish one photographed question",
		Long: `Publish one photographed question.

The default OCR engine is tesseract, which needs a binary built with
-tags ocr (and libtesseract installed). A plain build must pick the
cloud engine with --engine yandex or OCR_ENGINE=yandex.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if number < 0 {
				return errors.New("--number must be >= 0")
			}
			a, _, _, err := f.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.Pipeline.Run(cmd.Context(), pipeline.Request{File: args[0], Number: number})
			report(cmd.ErrOrStderr(), out)
			if err != nil {
				return &exitError{code: exitCode(err)}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&number, "number", 0, "prefix the stem with this number (0 lets Notion number it)")
	return cmd
}

// report prints one line per run: the block id on success, or
// stage / category.kind / detail on failure.
func report(w io.Writer, o pipeline.Outcome) {
	if o.Err == nil {
		fmt.Fprintf(w, "%s: published %s (attempts=%d)\n", o.File, o.BlockID, o.Attempts)
		return
	}
	body := describe(o.Err)
	fmt.Fprintf(w, "%s: failed during %s: %s.%s: %s\n", o.File, body.stage, body.category, body.kind, body.detail)
}

type failureBody struct {
	stage, category, kind, detail string
}

func describe(err error) failureBody {
	var f *pipeline.Failure
	if !errors.As(err, &f) {
		return failureBody{stage: "?", category: "Error", kind: "Unknown", detail: err.Error()}
	}
	detail := f.Err.Error()
	if i := strings.IndexByte(detail, '\n'); i >= 0 {
		detail = detail[:i]
	}
	return failureBody{stage: string(f.Stage), category: f.Category(), kind: f.Kind(), detail: detail}
}

// exitCode distinguishes failures the user can fix (2) from service
// failures (3) and cancellation (130).
func exitCode(err error) int {
	var f *pipeline.Failure
	if !errors.As(err, &f) {
		return 1
	}
	switch f.Category() {
	case "Cancelled":
		return 130
	case "ImageError", "OcrError":
		if f.Kind() == "EngineFailed" {
			return 3
		}
		return 2
	case "InterpretError":
		if f.Kind() == "SchemaInvalid" {
			return 2
		}
		return 3
	case "PublishError":
		return 3
	}
	return 1
}
