package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tigrinya.news/pipeline/common/llm"
	"tigrinya.news/pipeline/internal/model"
)

// Images below this size are rules, bullets and logos.
const minImageBytes = 2048

const imagePrompt = "Describe this image in Tigrinya. Keep the description concise (1-2 sentences)."

type imageDescription struct {
	Description string `json:"description" jsonschema_description:"Tigrinya description of the image"`
}

var imageSchema = llm.GenerateSchema[imageDescription]()

// ImageDescriber pulls embedded images out of a PDF with pdfimages and asks
// a vision model to describe the first few.
type ImageDescriber struct {
	runner    CommandRunner
	bin       string
	client    llm.Client
	maxImages int
}

func NewImageDescriber(runner CommandRunner, bin string, client llm.Client, maxImages int) *ImageDescriber {
	if bin == "" {
		bin = "pdfimages"
	}
	return &ImageDescriber{runner: runner, bin: bin, client: client, maxImages: maxImages}
}

// Describe returns one description per described image. A failed description
// is logged and skipped; only a failed image extraction is an error.
func (d *ImageDescriber) Describe(ctx context.Context, pdfPath string) ([]model.ImageDescription, error) {
	if d.maxImages <= 0 {
		return nil, nil
	}

	dir, err := os.MkdirTemp("", "pdfimages-*")
	if err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	if _, err := d.runner.Run(ctx, Command{
		Name: d.bin,
		Args: []string{"-png", pdfPath, filepath.Join(dir, "img")},
	}); err != nil {
		return nil, fmt.Errorf("extracting images: %w", err)
	}

	files, err := d.candidates(dir)
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	var out []model.ImageDescription
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			slog.WarnContext(ctx, "reading extracted image failed", "image", path, "error", err)
			continue
		}

		var desc imageDescription
		if _, err := d.client.Chat(ctx, llm.Request{
			UserPrompt: imagePrompt,
			Images:     []llm.Image{{MIMEType: "image/png", Data: data}},
			SchemaName: "image_description",
			Schema:     imageSchema,
			MaxTokens:  300,
		}, &desc); err != nil {
			slog.WarnContext(ctx, "describing image failed", "image", filepath.Base(path), "error", err)
			continue
		}
		if strings.TrimSpace(desc.Description) == "" {
			continue
		}

		out = append(out, model.ImageDescription{
			Image:       stem + "/" + filepath.Base(path),
			Description: strings.TrimSpace(desc.Description),
		})
	}
	return out, nil
}

func (d *ImageDescriber) candidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing extracted images: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".png" {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() < minImageBytes {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	if len(files) > d.maxImages {
		files = files[:d.maxImages]
	}
	return files, nil
}
