package portrait

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"portrait-studio/internal/gemini"
)

var ErrUnavailable = errors.New("portrait generation is not configured")

type Request struct {
	FileName  string
	MediaType string
	Image     []byte
	Options   Options
}

type Image struct {
	Data     []byte
	MimeType string
}

type Result struct {
	Images []Image
	Note   string
}

// Generator is the downstream action behind the widget's generate button.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Unavailable is used when no model backend is configured.
type Unavailable struct{}

func (Unavailable) Generate(context.Context, Request) (Result, error) {
	return Result{}, ErrUnavailable
}

type imageEditor interface {
	EditImage(ctx context.Context, prompt string, img gemini.ImageInput, opts gemini.EditOptions) (gemini.Response, error)
}

type ServiceOptions struct {
	Editor imageEditor
	Logger *slog.Logger
}

type Service struct {
	editor imageEditor
	logger *slog.Logger
}

func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{editor: opts.Editor, logger: logger}
}

func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	if s.editor == nil {
		return Result{}, ErrUnavailable
	}
	if len(req.Image) == 0 {
		return Result{}, errors.New("no image staged")
	}

	prompt, aspect := BuildPrompt(req.Options)
	start := time.Now()

	resp, err := s.editor.EditImage(ctx, prompt, gemini.ImageInput{
		Data:     req.Image,
		MimeType: req.MediaType,
	}, gemini.EditOptions{AspectRatio: aspect})
	if err != nil {
		return Result{}, fmt.Errorf("edit image: %w", err)
	}

	s.logger.Info("portrait generated",
		"file", req.FileName,
		"style", req.Options.Style,
		"images", len(resp.Images),
		"dur_ms", time.Since(start).Milliseconds(),
	)

	if len(resp.Images) == 0 {
		return Result{}, fmt.Errorf("model returned no image: %s", resp.Text)
	}

	out := Result{Note: resp.Text}
	for _, img := range resp.Images {
		out.Images = append(out.Images, Image{Data: img.Data, MimeType: img.MimeType})
	}
	return out, nil
}
