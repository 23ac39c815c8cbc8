package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvloznov/expense-voice/internal/app"
	"github.com/dvloznov/expense-voice/internal/pipeline"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a typed expense description",
		Example: `  expense classify --text "am cumparat paine cu 5 lei"
  expense classify --text "beer 12, taxi 30" --categories "going out,transport" --no-translate -o json`,
		Args: cobra.NoArgs,
		RunE: runClassify,
	}
	cmd.Flags().StringP("text", "t", "", "expense description (required)")
	cmd.Flags().StringSliceP("categories", "c", nil, "allowed categories (default: configured categories)")
	cmd.Flags().Bool("no-translate", false, "skip the translation step")
	addOutputFlag(cmd)
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	text, _ := cmd.Flags().GetString("text")
	rawCategories, _ := cmd.Flags().GetStringSlice("categories")
	noTranslate, _ := cmd.Flags().GetBool("no-translate")

	categories := parseCategories(rawCategories)
	if len(categories) == 0 {
		categories = cfg.Categories
	}

	a, err := newApp(cmd.Context(), app.Options{RequireLLM: true, SkipTranslation: noTranslate, Persist: true})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Service.ProcessText(cmd.Context(), text, categories)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), format, res)
}

func printResult(w io.Writer, format string, res *pipeline.ClassificationResult) error {
	if handled, err := writeStructured(w, format, res); handled {
		return err
	}
	renderResult(w, res)
	return nil
}

func renderResult(w io.Writer, res *pipeline.ClassificationResult) {
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Original:  "), res.OriginalText)
	if res.TranslatedText != res.OriginalText {
		fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Translated:"), res.TranslatedText)
	}
	fmt.Fprintln(w, strings.Repeat("-", 40))
	if len(res.ClassifiedItems) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No expenses detected."))
		return
	}
	var total float64
	for i, item := range res.ClassifiedItems {
		fmt.Fprintf(w, "%d. %s %s: %s\n", i+1,
			categoryStyle.Render("["+item.Category+"]"), item.Item, amountStyle.Render(fmt.Sprintf("%.2f", item.Amount)))
		total += item.Amount
	}
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Total:"), amountStyle.Render(fmt.Sprintf("%.2f", total)))
}
