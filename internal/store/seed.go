package store

import (
	"context"
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/capitalize-ai/legal-drafting/pkg/logger"
)

// SeedFromGlob imports every exported template matching pattern into s.
// Files that fail to parse are logged and skipped. It returns the number of
// templates created.
func SeedFromGlob(ctx context.Context, s TemplateStore, pattern string, log *logger.Logger) (int, error) {
	log = logger.OrGlobal(log)
	if pattern == "" {
		return 0, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return 0, fmt.Errorf("invalid seed pattern %q", pattern)
	}

	paths, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return 0, fmt.Errorf("failed to expand seed pattern: %w", err)
	}

	created := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("skipping unreadable seed template", zap.String("path", path), zap.Error(err))
			continue
		}
		t, err := Import(string(data))
		if err != nil {
			log.Warn("skipping invalid seed template", zap.String("path", path), zap.Error(err))
			continue
		}
		id, err := s.Create(ctx, t)
		if err != nil {
			log.Warn("failed to seed template", zap.String("path", path), zap.Error(err))
			continue
		}
		created++
		log.Debug("seeded template", zap.String("path", path), zap.String("template_id", id))
	}
	log.Info("template seeding complete", zap.Int("templates", created), zap.String("pattern", pattern))
	return created, nil
}
