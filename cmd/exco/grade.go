package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Abrar11050/exam-conductor/internal/grading"
	appI18n "github.com/Abrar11050/exam-conductor/internal/i18n"
	"github.com/Abrar11050/exam-conductor/internal/model"
	"github.com/Abrar11050/exam-conductor/internal/report"
)

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade every submission of an exam into a gradesheet file",
		RunE:  runGrade,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.String("exam-id", "", "Exam to grade (required)")
	f.StringP("format", "f", string(model.FormatCSV), "Gradesheet format (csv, html, xlsx)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.StringP("lang", "l", "en", "Gradesheet language (en, ru)")

	_ = cmd.MarkFlagRequired("exam-id")

	return cmd
}

func runGrade(cmd *cobra.Command, _ []string) (err error) {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	format := model.ExportFormat(v.GetString("format"))
	if !format.Valid() {
		return fmt.Errorf("unsupported format %q", format)
	}
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := openBackend(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); err == nil && cerr != nil {
				err = cerr
			}
		}()
		w = f
	}

	sink, err := report.New(format, w, report.Options{Labels: report.LocalizedLabels(appI18n.Translator(lang))})
	if err != nil {
		return err
	}
	task := grading.NewTask(db, v.GetString("exam-id"), sink)
	if err := task.Prepare(ctx); err != nil {
		return fmt.Errorf("prepare grading: %w", err)
	}
	stats, err := task.Run(ctx)
	if err != nil {
		return fmt.Errorf("grade exam: %w", err)
	}
	slog.Info("gradesheet written",
		"exam_id", v.GetString("exam-id"),
		"format", format,
		"rows", stats.Rows,
		"failures", stats.Failures,
	)
	return nil
}
