package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/smart-attendance/api/swagger"
	"github.com/noah-isme/smart-attendance/internal/handler"
	internalmiddleware "github.com/noah-isme/smart-attendance/internal/middleware"
	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/internal/repository"
	"github.com/noah-isme/smart-attendance/internal/service"
	"github.com/noah-isme/smart-attendance/internal/vision"
	"github.com/noah-isme/smart-attendance/internal/vision/opencv"
	"github.com/noah-isme/smart-attendance/pkg/cache"
	"github.com/noah-isme/smart-attendance/pkg/config"
	"github.com/noah-isme/smart-attendance/pkg/database"
	"github.com/noah-isme/smart-attendance/pkg/jobs"
	"github.com/noah-isme/smart-attendance/pkg/logger"
	corsmiddleware "github.com/noah-isme/smart-attendance/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/smart-attendance/pkg/middleware/requestid"
	"github.com/noah-isme/smart-attendance/pkg/qrcodec"
	"github.com/noah-isme/smart-attendance/pkg/storage"
)

// @title Smart Attendance API
// @version 1.0.0
// @description Face recognition and QR attendance with a CSV or Postgres ledger
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	faces, err := storage.NewLocalStorage(cfg.Paths.FacesDir)
	if err != nil {
		return err
	}
	modelFiles, err := storage.NewLocalStorage(cfg.Paths.ModelsDir)
	if err != nil {
		return err
	}
	qrFiles, err := storage.NewLocalStorage(cfg.Paths.QRDir)
	if err != nil {
		return err
	}
	exportFiles, err := storage.NewLocalStorage(cfg.Paths.ExportsDir)
	if err != nil {
		return err
	}

	studentRepo := repository.NewStudentRepository(cfg.Paths.StudentsCSV)
	captureRepo := repository.NewCaptureRepository(faces)
	modelRepo := repository.NewModelRepository(modelFiles)
	logr.Info("data stores",
		zap.String("students", studentRepo.Path()),
		zap.String("faces", faces.BaseDir()),
		zap.String("model", modelRepo.ModelPath()),
	)

	ledger, closeLedger, err := openLedger(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer closeLedger()

	gate, closeGate, err := openGate(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer closeGate()

	codec := qrcodec.New()
	signer := storage.NewSignedURLSigner(cfg.JWT.Secret, 15*time.Minute)

	authService := service.NewAuthService(validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		Username:          cfg.Operator.Username,
		PasswordHash:      cfg.Operator.PasswordHash,
	})
	studentService := service.NewStudentService(studentRepo, validate, logr)
	attendanceService := service.NewAttendanceService(ledger, studentRepo, codec, metrics, logr)
	qrService := service.NewQRService(qrFiles, codec, studentRepo, signer, cfg.APIPrefix, logr)
	exportService := service.NewExportService(attendanceService, exportFiles, signer, service.ExportConfig{APIPrefix: cfg.APIPrefix}, logr, nil, nil)

	detector, err := opencv.NewCascadeDetector(cfg.Paths.HaarCascadePath, vision.DetectorParams{
		ScaleFactor:  cfg.Recognition.ScaleFactor,
		MinNeighbors: cfg.Recognition.MinNeighbors,
	})
	if err != nil {
		return fmt.Errorf("load face detector: %w", err)
	}
	defer detector.Close() //nolint:errcheck
	qrDetector := opencv.NewQRDetector()
	defer qrDetector.Close() //nolint:errcheck

	backend := opencv.LBPHBackend{}
	trainingService := service.NewTrainingService(captureRepo, modelRepo, backend, metrics, logr)
	trainingQueue := jobs.NewQueue(service.TrainingJobType, trainingService.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Training.Workers,
		BufferSize: cfg.Training.BufferSize,
		Logger:     logr,
	})
	trainingService.UseQueue(trainingQueue)
	trainingQueue.Start(ctx)
	defer trainingQueue.Stop()

	var displays func(models.SessionMode) vision.Display
	if cfg.Camera.Preview {
		displays = func(mode models.SessionMode) vision.Display {
			return opencv.NewWindow("Smart Attendance - " + string(mode))
		}
	}
	sessionService := service.NewSessionService(service.SessionDeps{
		Gate:     gate,
		Cameras:  opencv.Opener{Device: cfg.Camera.Device},
		Detector: detector,
		QR:       qrDetector,
		Backend:  backend,
		Models:   modelRepo,
		Students: studentRepo,
		Ledger:   attendanceService,
		Samples:  captureRepo,
		Displays: displays,
		Metrics:  metrics,
		Logger:   logr,
	}, service.SessionConfig{
		ConfidenceThreshold: cfg.Recognition.ConfidenceThreshold,
		SampleLimit:         cfg.Recognition.SampleLimit,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics,
		handler.HealthCheck{Name: "students", Check: func(ctx context.Context) error {
			_, err := studentRepo.List(ctx)
			return err
		}},
		handler.HealthCheck{Name: "camera_gate", Check: func(ctx context.Context) error {
			_, err := gate.Busy(ctx)
			return err
		}},
	)
	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		Students:   handler.NewStudentHandler(studentService),
		Attendance: handler.NewAttendanceHandler(attendanceService, exportService, validate, logr),
		QR:         handler.NewQRHandler(qrService),
		Sessions:   handler.NewSessionHandler(sessionService, logr),
		Training:   handler.NewTrainingHandler(trainingService),
		Metrics:    metricsHandler,
	}, internalmiddleware.JWT(authService))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	go cleanupExports(ctx, exportService, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sessionService.Shutdown(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}

type ledgerBackend interface {
	AlreadyMarked(ctx context.Context, studentID, date string) (bool, error)
	Append(ctx context.Context, record models.AttendanceRecord) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
}

func openLedger(ctx context.Context, cfg *config.Config, logr *zap.Logger) (ledgerBackend, func(), error) {
	switch cfg.Ledger.Driver {
	case config.LedgerDriverCSV, "":
		logr.Info("attendance ledger", zap.String("driver", config.LedgerDriverCSV), zap.String("path", cfg.Paths.AttendanceCSV))
		return repository.NewAttendanceRepository(cfg.Paths.AttendanceCSV), func() {}, nil
	case config.LedgerDriverPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect ledger database: %w", err)
		}
		repo := repository.NewAttendanceSQLRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("prepare ledger schema: %w", err)
		}
		logr.Info("attendance ledger", zap.String("driver", config.LedgerDriverPostgres), zap.String("database", cfg.Database.Name))
		return repo, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger driver %q", cfg.Ledger.Driver)
	}
}

func openGate(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.CameraGate, func(), error) {
	switch cfg.Gate.Driver {
	case config.GateDriverLocal, "":
		return service.NewLocalCameraGate(), func() {}, nil
	case config.GateDriverRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connect camera gate: %w", err)
		}
		logr.Info("camera gate", zap.String("driver", config.GateDriverRedis), zap.String("key", cfg.Gate.Key))
		return service.NewRedisCameraGate(client, cfg.Gate.Key, cfg.Gate.TTL), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown camera gate driver %q", cfg.Gate.Driver)
	}
}

func cleanupExports(ctx context.Context, exports *service.ExportService, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(deleted)))
			}
		}
	}
}
