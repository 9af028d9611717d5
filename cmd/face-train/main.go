// Command face-train rebuilds the face classifier from the captured samples
// without starting the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/smart-attendance/internal/repository"
	"github.com/noah-isme/smart-attendance/internal/service"
	"github.com/noah-isme/smart-attendance/internal/vision/opencv"
	"github.com/noah-isme/smart-attendance/pkg/config"
	"github.com/noah-isme/smart-attendance/pkg/logger"
	"github.com/noah-isme/smart-attendance/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	flag.StringVar(&cfg.Paths.FacesDir, "faces", cfg.Paths.FacesDir, "directory of per-student face samples")
	flag.StringVar(&cfg.Paths.ModelsDir, "models", cfg.Paths.ModelsDir, "directory for face_model.yml and label_map.json")
	dryRun := flag.Bool("dry-run", false, "list sample counts per student without training")
	flag.Parse()

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := train(ctx, cfg, logr, *dryRun); err != nil {
		logr.Error("training failed", zap.Error(err))
		stop()
		_ = logr.Sync()
		os.Exit(1)
	}
}

func train(ctx context.Context, cfg *config.Config, logr *zap.Logger, dryRun bool) error {
	faces, err := storage.NewLocalStorage(cfg.Paths.FacesDir)
	if err != nil {
		return err
	}
	modelFiles, err := storage.NewLocalStorage(cfg.Paths.ModelsDir)
	if err != nil {
		return err
	}

	captures := repository.NewCaptureRepository(faces)
	modelRepo := repository.NewModelRepository(modelFiles)

	if dryRun {
		return listSamples(ctx, captures)
	}

	svc := service.NewTrainingService(captures, modelRepo, opencv.LBPHBackend{}, nil, logr)
	result, err := svc.Train(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("trained %d student(s) from %d sample(s), %d skipped\n", result.Students, result.Samples, result.Skipped)
	fmt.Printf("model:     %s\nlabel map: %s\n", modelRepo.ModelPath(), modelRepo.LabelMapPath())
	return nil
}

func listSamples(ctx context.Context, captures *repository.CaptureRepository) error {
	students, err := captures.ListStudents(ctx)
	if err != nil {
		return err
	}
	if len(students) == 0 {
		fmt.Println("no student sample directories found")
		return nil
	}
	for _, id := range students {
		count, err := captures.Count(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d sample(s)\t%s\n", id, count, captures.Dir(id))
	}
	return nil
}
