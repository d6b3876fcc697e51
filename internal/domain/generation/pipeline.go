// Package generation produces the content of one post: a description, a
// caption and a rendered image artifact.
package generation

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"autopost-server-go/internal/domain/media"
	"autopost-server-go/internal/platform/errors"
	"autopost-server-go/internal/platform/logging"
)

const (
	textAttempts  = 3
	imageAttempts = 2

	seedMin = 1000
	seedMax = 999999

	imageWidth  = 512
	imageHeight = 512

	defaultBackoff = 2 * time.Second
)

// TextResult carries a stage's text together with a flag telling whether it
// is real output or the fallback recorded after every attempt failed.
// Callers that must not publish fallback text check Exhausted instead of
// comparing strings.
type TextResult struct {
	Text      string
	Exhausted bool
}

// Result is the full content of one post.
type Result struct {
	Description TextResult
	Caption     TextResult
	Artifact    *media.Artifact
}

// Options tunes the pipeline. The zero value selects production settings.
type Options struct {
	// Backoff between failed attempts. Tests set this to zero.
	Backoff time.Duration
	// RequireText aborts the run when a text stage exhausts its attempts
	// instead of falling back to the placeholder.
	RequireText bool
}

// Pipeline runs the three generation stages in order.
type Pipeline struct {
	text      TextProvider
	image     ImageProvider
	validator *media.Validator
	dir       *media.Dir
	logger    *logging.Logger

	backoff     time.Duration
	requireText bool
	rng         *rand.Rand
}

func NewPipeline(text TextProvider, image ImageProvider, dir *media.Dir, logger *logging.Logger, opts Options) *Pipeline {
	backoff := opts.Backoff
	if backoff == 0 {
		backoff = defaultBackoff
	}
	return &Pipeline{
		text:        text,
		image:       image,
		validator:   media.NewValidator(0),
		dir:         dir,
		logger:      logger,
		backoff:     backoff,
		requireText: opts.RequireText,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *Pipeline) seed() int {
	return seedMin + p.rng.Intn(seedMax-seedMin+1)
}

func (p *Pipeline) wait(ctx context.Context) error {
	if p.backoff <= 0 {
		return nil
	}
	timer := time.NewTimer(p.backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Description writes the post body for a topic. Each attempt uses a fresh
// random seed; after the last failure the fallback text is returned with
// Exhausted set.
func (p *Pipeline) Description(ctx context.Context, topic string) (TextResult, error) {
	return p.textStage(ctx, "description", descriptionPrompt+topic, descriptionSystem, descriptionFallback)
}

// Caption condenses the description into a post caption.
func (p *Pipeline) Caption(ctx context.Context, description string) (TextResult, error) {
	return p.textStage(ctx, "caption", captionPrompt+description, captionSystem, captionFallback)
}

func (p *Pipeline) textStage(ctx context.Context, stage, prompt, system, fallback string) (TextResult, error) {
	var lastErr error
	for attempt := 1; attempt <= textAttempts; attempt++ {
		if attempt > 1 {
			if err := p.wait(ctx); err != nil {
				return TextResult{}, err
			}
		}
		text, err := p.text.GenerateText(ctx, prompt, system, p.seed())
		if err == nil {
			return TextResult{Text: text}, nil
		}
		lastErr = err
		p.logger.Warn("%s attempt %d/%d failed: %v", stage, attempt, textAttempts, err)
	}

	p.logger.Error("%s generation exhausted after %d attempts: %v", stage, textAttempts, lastErr)
	return TextResult{Text: fallback, Exhausted: true}, nil
}

// Image renders the description and stores the validated bytes as an
// artifact. Unlike the text stages there is no fallback: a post without an
// image cannot be published.
func (p *Pipeline) Image(ctx context.Context, description string) (*media.Artifact, error) {
	const op errors.Op = "generation.Image"

	var lastErr error
	for attempt := 1; attempt <= imageAttempts; attempt++ {
		if attempt > 1 {
			if err := p.wait(ctx); err != nil {
				return nil, err
			}
		}
		data, err := p.image.GenerateImage(ctx, imagePromptPrefix+description, p.seed(), imageWidth, imageHeight)
		if err != nil {
			lastErr = err
			p.logger.Warn("image attempt %d/%d failed: %v", attempt, imageAttempts, err)
			continue
		}
		res := p.validator.Validate(data, "")
		if !res.IsValid {
			lastErr = res.Error
			p.logger.Warn("image attempt %d/%d produced invalid payload: %v", attempt, imageAttempts, res.Error)
			continue
		}
		art, err := p.dir.Write(data, res.Format)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindGeneration, op, "store artifact")
		}
		return art, nil
	}
	return nil, errors.Wrap(lastErr, errors.KindGeneration, op,
		fmt.Sprintf("image generation failed after %d attempts", imageAttempts))
}

// Run produces the content of one post. Text stages fall back to
// placeholders unless RequireText is set; a failed image stage aborts the
// run.
func (p *Pipeline) Run(ctx context.Context, topic string) (*Result, error) {
	const op errors.Op = "generation.Run"

	desc, err := p.Description(ctx, topic)
	if err != nil {
		return nil, err
	}
	if p.requireText && desc.Exhausted {
		return nil, errors.New(errors.KindGeneration, op, "description generation exhausted")
	}

	caption, err := p.Caption(ctx, desc.Text)
	if err != nil {
		return nil, err
	}
	if p.requireText && caption.Exhausted {
		return nil, errors.New(errors.KindGeneration, op, "caption generation exhausted")
	}

	art, err := p.Image(ctx, desc.Text)
	if err != nil {
		return nil, err
	}
	return &Result{
		Description: desc,
		Caption:     caption,
		Artifact:    art,
	}, nil
}
