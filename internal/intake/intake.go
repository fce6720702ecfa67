package intake

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/precedex/precedex/internal/caseid"
	"github.com/precedex/precedex/internal/config"
	"github.com/precedex/precedex/internal/models"
	"github.com/precedex/precedex/internal/repository"
	"github.com/precedex/precedex/internal/search"
)

// Intake ties the drop-directory watcher to the ingestion pipeline: files
// placed in a corpus directory become corpus cases with path-deterministic
// IDs, changed files replace their case, deleted files remove it.
type Intake struct {
	service *search.Service
	repo    *repository.Repository
	watcher *Watcher
	logger  *zap.Logger
}

// New builds the intake pipeline from the configured directories.
func New(service *search.Service, repo *repository.Repository, cfg config.IntakeConfig, logger *zap.Logger) *Intake {
	in := &Intake{service: service, repo: repo, logger: logger}
	in.watcher = NewWatcher(
		cfg.Directories,
		cfg.Extensions,
		cfg.RecursiveOrDefault(),
		in.ingestFile,
		in.removeFile,
		WithWatcherLogger(logger),
	)
	return in
}

// Start begins watching and ingests files already present in the roots.
func (in *Intake) Start(ctx context.Context) error {
	if err := in.watcher.Start(ctx); err != nil {
		return err
	}
	go in.watcher.SyncExisting()
	return nil
}

// Stop stops the watcher.
func (in *Intake) Stop() {
	in.watcher.Stop()
}

func (in *Intake) ingestFile(path string) {
	ctx := context.Background()
	payload, err := os.ReadFile(path)
	if err != nil {
		in.log("intake read failed", path, err)
		return
	}
	id := caseid.FromPath(path)

	// A changed file replaces its previous case wholesale.
	if err := in.repo.Remove(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		in.log("intake replace failed", path, err)
		return
	}
	_, err = in.service.IngestCase(ctx, payload, filepath.Base(path), models.CaseInput{
		ID:     id,
		Source: models.SourceCorpus,
	})
	if err != nil {
		in.log("intake ingest failed", path, err)
		return
	}
	if in.logger != nil {
		in.logger.Info("corpus file ingested", zap.String("path", path), zap.String("id", id))
	}
}

func (in *Intake) removeFile(path string) {
	id := caseid.FromPath(path)
	if err := in.repo.Remove(context.Background(), id); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			in.log("intake remove failed", path, err)
		}
		return
	}
	if in.logger != nil {
		in.logger.Info("corpus file removed", zap.String("path", path), zap.String("id", id))
	}
}

func (in *Intake) log(msg, path string, err error) {
	if in.logger != nil {
		in.logger.Warn(msg, zap.String("path", path), zap.Error(err))
	}
}
