package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	LedgerDriverCSV      = "csv"
	LedgerDriverPostgres = "postgres"

	GateDriverLocal = "local"
	GateDriverRedis = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Paths       PathsConfig
	Recognition RecognitionConfig
	Camera      CameraConfig
	Ledger      LedgerConfig
	Gate        GateConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Operator    OperatorConfig
	CORS        CORSConfig
	Log         LogConfig
	Training    TrainingConfig
}

// PathsConfig locates every on-disk artifact the service reads or writes.
type PathsConfig struct {
	DataDir         string
	StudentsCSV     string
	AttendanceCSV   string
	FacesDir        string
	ModelsDir       string
	QRDir           string
	ExportsDir      string
	HaarCascadePath string
}

// RecognitionConfig tunes the detector and the acceptance threshold.
type RecognitionConfig struct {
	ConfidenceThreshold float64
	ScaleFactor         float64
	MinNeighbors        int
	SampleLimit         int
}

// CameraConfig selects the capture device.
type CameraConfig struct {
	Device  int
	Preview bool
}

// LedgerConfig selects the attendance ledger backend.
type LedgerConfig struct {
	Driver string
}

// GateConfig selects how the camera-in-use flag is shared.
type GateConfig struct {
	Driver string
	Key    string
	TTL    time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// OperatorConfig holds the single operator account allowed to drive the camera.
type OperatorConfig struct {
	Username     string
	PasswordHash string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TrainingConfig sizes the background training queue.
type TrainingConfig struct {
	Workers    int
	BufferSize int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	dataDir := v.GetString("DATA_DIR")
	cfg.Paths = PathsConfig{
		DataDir:         dataDir,
		StudentsCSV:     pathOr(v.GetString("STUDENTS_CSV"), dataDir, "data/students.csv"),
		AttendanceCSV:   pathOr(v.GetString("ATTENDANCE_CSV"), dataDir, "data/attendance.csv"),
		FacesDir:        pathOr(v.GetString("FACES_DIR"), dataDir, "faces"),
		ModelsDir:       pathOr(v.GetString("MODELS_DIR"), dataDir, "models"),
		QRDir:           pathOr(v.GetString("QR_DIR"), dataDir, "qr_codes"),
		ExportsDir:      pathOr(v.GetString("EXPORTS_DIR"), dataDir, "exports"),
		HaarCascadePath: v.GetString("HAAR_CASCADE_PATH"),
	}

	cfg.Recognition = RecognitionConfig{
		ConfidenceThreshold: v.GetFloat64("RECOGNITION_CONFIDENCE_THRESHOLD"),
		ScaleFactor:         v.GetFloat64("DETECTOR_SCALE_FACTOR"),
		MinNeighbors:        v.GetInt("DETECTOR_MIN_NEIGHBORS"),
		SampleLimit:         v.GetInt("CAPTURE_SAMPLE_LIMIT"),
	}

	cfg.Camera = CameraConfig{
		Device:  v.GetInt("CAMERA_DEVICE"),
		Preview: v.GetBool("CAMERA_PREVIEW"),
	}

	cfg.Ledger = LedgerConfig{Driver: strings.ToLower(v.GetString("LEDGER_DRIVER"))}

	cfg.Gate = GateConfig{
		Driver: strings.ToLower(v.GetString("CAMERA_GATE_DRIVER")),
		Key:    v.GetString("CAMERA_GATE_KEY"),
		TTL:    parseDuration(v.GetString("CAMERA_GATE_TTL"), 12*time.Hour),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.Operator = OperatorConfig{
		Username:     v.GetString("OPERATOR_USERNAME"),
		PasswordHash: v.GetString("OPERATOR_PASSWORD_HASH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Training = TrainingConfig{
		Workers:    v.GetInt("TRAINING_WORKERS"),
		BufferSize: v.GetInt("TRAINING_QUEUE_SIZE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DATA_DIR", "smart_attendance")
	v.SetDefault("STUDENTS_CSV", "")
	v.SetDefault("ATTENDANCE_CSV", "")
	v.SetDefault("FACES_DIR", "")
	v.SetDefault("MODELS_DIR", "")
	v.SetDefault("QR_DIR", "")
	v.SetDefault("EXPORTS_DIR", "")
	v.SetDefault("HAAR_CASCADE_PATH", "haarcascade_frontalface_default.xml")

	v.SetDefault("RECOGNITION_CONFIDENCE_THRESHOLD", 70.0)
	v.SetDefault("DETECTOR_SCALE_FACTOR", 1.3)
	v.SetDefault("DETECTOR_MIN_NEIGHBORS", 5)
	v.SetDefault("CAPTURE_SAMPLE_LIMIT", 30)

	v.SetDefault("CAMERA_DEVICE", 0)
	v.SetDefault("CAMERA_PREVIEW", false)

	v.SetDefault("LEDGER_DRIVER", LedgerDriverCSV)

	v.SetDefault("CAMERA_GATE_DRIVER", GateDriverLocal)
	v.SetDefault("CAMERA_GATE_KEY", "smart-attendance:camera")
	v.SetDefault("CAMERA_GATE_TTL", "12h")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "smart_attendance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "smart-attendance")

	v.SetDefault("OPERATOR_USERNAME", "operator")
	v.SetDefault("OPERATOR_PASSWORD_HASH", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TRAINING_WORKERS", 1)
	v.SetDefault("TRAINING_QUEUE_SIZE", 4)
}

func pathOr(raw, dataDir, rel string) string {
	if raw != "" {
		return raw
	}
	return filepath.Join(dataDir, rel)
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
