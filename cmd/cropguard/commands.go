package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/application/service"
	"github.com/garyjia/crop-guard/internal/config"
	"github.com/garyjia/crop-guard/internal/container"
	"github.com/garyjia/crop-guard/internal/domain/crop"
	"github.com/garyjia/crop-guard/internal/domain/entity"
	"github.com/garyjia/crop-guard/internal/domain/recommendation"
	"github.com/garyjia/crop-guard/pkg/utils"
)

type cli struct {
	opts   options
	stdout io.Writer
	stderr io.Writer
}

// open loads configuration and starts the container
func (c *cli) open(ctx context.Context) (*container.Container, *zap.Logger, error) {
	cfg, err := config.Load(c.opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := utils.NewCLILogger(c.opts.verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ct, err := container.NewContainer(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := ct.Start(ctx); err != nil {
		return nil, nil, err
	}
	return ct, logger, nil
}

func (c *cli) scan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	imagePath := fs.String("image", "", "path to the leaf photo")
	cropName := fs.String("crop", string(entity.DefaultCropType), "crop type: Maize, Cassava, Cashew or Tomato")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *imagePath == "" {
		return fmt.Errorf("%w: scan requires -image", errUsage)
	}
	cropType, err := entity.ParseCropType(*cropName)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	absPath, err := filepath.Abs(*imagePath)
	if err != nil {
		return err
	}
	image, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	ct, logger, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer ct.Close()

	session := service.NewScanSession(ctx, ct.ScanService(), logger)
	defer session.Close()

	type outcome struct {
		result entity.ScanResult
		err    error
	}
	done := make(chan outcome, 1)
	err = session.Start(service.ScanInput{
		Image:    image,
		FileName: utils.SanitizeFileName(filepath.Base(absPath), "plant_image.jpg"),
		CropType: cropType,
		ImageURI: fileURI(absPath),
	}, func(result entity.ScanResult, err error) {
		done <- outcome{result: result, err: err}
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stderr, "Analyzing %s leaf...\n", cropType)

	select {
	case <-ctx.Done():
		session.Close()
		return fmt.Errorf("scan canceled")
	case out := <-done:
		if out.err != nil {
			_ = c.printScan(out.result)
			return out.err
		}
		return c.printScan(out.result)
	}
}

func (c *cli) history(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: history requires a subcommand", errUsage)
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "list", "show", "rm", "clear", "search", "export":
	default:
		return fmt.Errorf("%w: unknown history subcommand %q", errUsage, sub)
	}
	if (sub == "show" || sub == "rm") && len(rest) != 1 {
		return fmt.Errorf("%w: history %s requires an ID", errUsage, sub)
	}

	var filter service.HistoryFilter
	var outPath string
	switch sub {
	case "search":
		fs := flag.NewFlagSet("history search", flag.ContinueOnError)
		fs.SetOutput(c.stderr)
		fs.StringVar(&filter.Query, "q", "", "text to match against diagnosis or crop")
		cropName := fs.String("crop", "", "crop type")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *cropName != "" {
			ct, err := entity.ParseCropType(*cropName)
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			filter.CropType = ct
		}
	case "export":
		fs := flag.NewFlagSet("history export", flag.ContinueOnError)
		fs.SetOutput(c.stderr)
		fs.StringVar(&outPath, "o", "", "output .xlsx file")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if outPath == "" {
			return fmt.Errorf("%w: history export requires -o", errUsage)
		}
	}

	ct, _, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer ct.Close()
	history := ct.History()

	switch sub {
	case "list":
		return c.printHistory(history.List())
	case "search":
		return c.printHistory(history.Search(filter))
	case "show":
		scan, err := ct.ScanService().FromHistory(rest[0])
		if err != nil {
			return err
		}
		return c.printScan(scan)
	case "rm":
		if !history.RemoveOne(ctx, rest[0]) {
			fmt.Fprintf(c.stdout, "No scan with id %s\n", rest[0])
			return nil
		}
		fmt.Fprintf(c.stdout, "Removed %s\n", rest[0])
	case "clear":
		n := history.Len()
		history.Clear(ctx)
		fmt.Fprintf(c.stdout, "Cleared %d scans\n", n)
	case "export":
		items := history.List()
		if err := ct.Exporter().ExportFile(items, outPath); err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Exported %d scans to %s\n", len(items), outPath)
	}
	return nil
}

func (c *cli) recommend(args []string) error {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	cropName := fs.String("crop", "", "crop type")
	if err := fs.Parse(reorderFlags(args)); err != nil {
		return errUsage
	}
	label := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if label == "" {
		return fmt.Errorf("%w: recommend requires a LABEL", errUsage)
	}

	var (
		rec     entity.Recommendation
		matched bool
	)
	if *cropName != "" {
		ct, err := entity.ParseCropType(*cropName)
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		rec, matched = recommendation.LookupForCrop(label, ct)
	} else {
		rec, matched = recommendation.Lookup(label)
	}

	if c.opts.jsonOutput {
		return c.writeJSON(map[string]interface{}{
			"label":          label,
			"matched":        matched,
			"recommendation": rec,
		})
	}

	if !matched {
		fmt.Fprintf(c.stdout, "No specific advice for %q.\n\n", label)
	}
	printRecommendation(c.stdout, rec)
	return nil
}

func (c *cli) models() error {
	type model struct {
		CropType entity.CropType `json:"cropType"`
		Model    string          `json:"model"`
		Labels   []string        `json:"labels"`
	}
	var models []model
	for _, ct := range entity.CropTypes() {
		m := crop.ResolveModel(ct)
		models = append(models, model{CropType: ct, Model: m, Labels: crop.Labels(m)})
	}

	if c.opts.jsonOutput {
		return c.writeJSON(models)
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CROP\tMODEL\tLABELS")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.CropType, m.Model, strings.Join(m.Labels, ", "))
	}
	return tw.Flush()
}

func (c *cli) printScan(scan entity.ScanResult) error {
	if c.opts.jsonOutput {
		return c.writeJSON(scan)
	}

	w := c.stdout
	if scan.ID != "" {
		fmt.Fprintf(w, "ID:          %s\n", scan.ID)
	}
	fmt.Fprintf(w, "Crop:        %s\n", scan.CropType)
	fmt.Fprintf(w, "Diagnosis:   %s\n", scan.Diagnosis)
	fmt.Fprintf(w, "Confidence:  %d%% (%s)\n", scan.Confidence, scan.ConfidenceBand())
	fmt.Fprintf(w, "Date:        %s\n", scan.Date.Local().Format(time.RFC1123))
	if scan.ImageURI != "" {
		fmt.Fprintf(w, "Image:       %s\n", scan.ImageURI)
	}
	if scan.Failed() {
		return nil
	}
	fmt.Fprintln(w)
	printRecommendation(w, scan.Recommendation)
	return nil
}

func (c *cli) printHistory(items []entity.ScanResult) error {
	if c.opts.jsonOutput {
		return c.writeJSON(items)
	}
	if len(items) == 0 {
		fmt.Fprintln(c.stdout, "No scans yet.")
		return nil
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCROP\tDIAGNOSIS\tCONFIDENCE")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d%%\n",
			item.ID,
			item.Date.Local().Format("2006-01-02 15:04"),
			item.CropType,
			item.Diagnosis,
			item.Confidence)
	}
	return tw.Flush()
}

// fileURI escapes absPath so characters such as % and # survive url.Parse
func fileURI(absPath string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(absPath)}).String()
}

func (c *cli) writeJSON(v interface{}) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRecommendation(w io.Writer, rec entity.Recommendation) {
	if len(rec.Symptoms) > 0 {
		fmt.Fprintln(w, "Symptoms:")
		for _, s := range rec.Symptoms {
			fmt.Fprintf(w, "  - %s\n", s)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "Treatment Recommendations:")
	for i, step := range rec.Steps() {
		fmt.Fprintf(w, "  %d. %s\n", i+1, step)
	}
}

// reorderFlags moves flags ahead of positional arguments so
// "recommend leaf spot -crop maize" parses like "recommend -crop maize leaf spot".
func reorderFlags(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "-") && len(a) > 1 {
			flags = append(flags, a)
			if !strings.Contains(a, "=") && i+1 < len(args) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positional = append(positional, a)
	}
	return append(flags, positional...)
}
