package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/internal/vision"
	"github.com/noah-isme/smart-attendance/pkg/storage"
)

const (
	// ModelFileName is the persisted classifier artifact.
	ModelFileName = "face_model.yml"
	// LabelMapFileName is the label map persisted next to the model.
	LabelMapFileName = "label_map.json"
)

var (
	// ErrModelMissing is returned when either half of the model pair is absent.
	ErrModelMissing = errors.New("trained model or label map missing")
	// ErrModelMismatch is returned when the label map was written for a different model file.
	ErrModelMismatch = errors.New("label map does not belong to the stored model")
)

// ModelRepository stores the trained classifier and its label map as a pair.
type ModelRepository struct {
	storage *storage.LocalStorage
}

// NewModelRepository constructs the repository over the models directory.
func NewModelRepository(store *storage.LocalStorage) *ModelRepository {
	return &ModelRepository{storage: store}
}

// ModelPath returns the absolute location of the model artifact.
func (r *ModelRepository) ModelPath() string {
	return r.storage.Path(ModelFileName)
}

// LabelMapPath returns the absolute location of the label map.
func (r *ModelRepository) LabelMapPath() string {
	return r.storage.Path(LabelMapFileName)
}

// Exists reports whether both halves of the pair are present.
func (r *ModelRepository) Exists(ctx context.Context) (bool, error) {
	model, err := r.storage.Exists(ModelFileName)
	if err != nil {
		return false, err
	}
	labels, err := r.storage.Exists(LabelMapFileName)
	if err != nil {
		return false, err
	}
	return model && labels, nil
}

// Save writes model and labels to temp files and renames both into place.
// labels.ModelSHA256 is set to the fingerprint of the written model.
func (r *ModelRepository) Save(ctx context.Context, model vision.TrainedClassifier, labels *models.LabelMap) error {
	if err := labels.Validate(); err != nil {
		return fmt.Errorf("invalid label map: %w", err)
	}

	modelTmp, err := r.storage.TempPath(ModelFileName)
	if err != nil {
		return err
	}
	defer os.Remove(modelTmp) //nolint:errcheck

	if err := model.Save(modelTmp); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	sum, err := fileSHA256(modelTmp)
	if err != nil {
		return err
	}
	labels.ModelSHA256 = sum

	payload, err := json.MarshalIndent(labels, "", "  ")
	if err != nil {
		return fmt.Errorf("encode label map: %w", err)
	}
	labelsTmp, err := r.storage.TempPath(LabelMapFileName)
	if err != nil {
		return err
	}
	defer os.Remove(labelsTmp) //nolint:errcheck

	if err := os.WriteFile(labelsTmp, payload, 0o644); err != nil {
		return fmt.Errorf("write label map: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.storage.Commit(modelTmp, ModelFileName); err != nil {
		return err
	}
	return r.storage.Commit(labelsTmp, LabelMapFileName)
}

// LoadLabelMap reads and validates the stored label map.
func (r *ModelRepository) LoadLabelMap(ctx context.Context) (*models.LabelMap, error) {
	file, err := r.storage.Open(LabelMapFileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelMissing, err)
	}
	defer file.Close() //nolint:errcheck

	var labels models.LabelMap
	if err := json.NewDecoder(file).Decode(&labels); err != nil {
		return nil, fmt.Errorf("decode label map: %w", err)
	}
	if err := labels.Validate(); err != nil {
		return nil, fmt.Errorf("invalid label map: %w", err)
	}
	return &labels, nil
}

// Load returns the stored classifier together with its label map. Both files
// must exist and the label map must carry the model's fingerprint.
func (r *ModelRepository) Load(ctx context.Context, backend vision.ClassifierBackend) (vision.Classifier, *models.LabelMap, error) {
	ok, err := r.Exists(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrModelMissing
	}

	labels, err := r.LoadLabelMap(ctx)
	if err != nil {
		return nil, nil, err
	}
	sum, err := fileSHA256(r.ModelPath())
	if err != nil {
		return nil, nil, err
	}
	if labels.ModelSHA256 != sum {
		return nil, nil, ErrModelMismatch
	}

	classifier, err := backend.Load(r.ModelPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load model: %w", err)
	}
	return classifier, labels, nil
}

func fileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
