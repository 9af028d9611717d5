package repository

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/noah-isme/smart-attendance/pkg/storage"
)

const sampleExt = ".png"

var sampleExts = map[string]struct{}{".png": {}, ".jpg": {}, ".jpeg": {}, ".bmp": {}}

// CaptureRepository persists grayscale face samples under one directory per student.
type CaptureRepository struct {
	storage *storage.LocalStorage
}

// NewCaptureRepository constructs the repository over the faces directory.
func NewCaptureRepository(store *storage.LocalStorage) *CaptureRepository {
	return &CaptureRepository{storage: store}
}

// Dir returns the sample directory of studentID.
func (r *CaptureRepository) Dir(studentID string) string {
	return r.storage.Path(studentID)
}

// NextIndex returns the number the next sample of studentID will be saved under.
// Numbering continues after the highest existing file so earlier captures are
// never overwritten.
func (r *CaptureRepository) NextIndex(studentID string) (int, error) {
	files, err := r.storage.ListFiles(studentID)
	if err != nil {
		return 0, err
	}
	next := 1
	for _, name := range files {
		n, err := strconv.Atoi(strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil {
			continue
		}
		if n >= next {
			next = n + 1
		}
	}
	return next, nil
}

// Save writes sample as <studentID>/<index>.png.
func (r *CaptureRepository) Save(ctx context.Context, studentID string, index int, sample *image.Gray) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel := path.Join(studentID, strconv.Itoa(index)+sampleExt)
	target := r.storage.Path(rel)
	if err := r.storage.EnsureDir(studentID); err != nil {
		return "", err
	}
	if err := imaging.Save(sample, target); err != nil {
		return "", fmt.Errorf("save sample %s: %w", rel, err)
	}
	return target, nil
}

// ListStudents returns the student directories in lexical order.
func (r *CaptureRepository) ListStudents(ctx context.Context) ([]string, error) {
	return r.storage.ListDirs("")
}

// Count returns how many sample files studentID has.
func (r *CaptureRepository) Count(ctx context.Context, studentID string) (int, error) {
	files, err := r.storage.ListFiles(studentID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, name := range files {
		if isSampleFile(name) {
			count++
		}
	}
	return count, nil
}

// LoadSamples decodes every sample of studentID as grayscale. Files that fail
// to decode are counted in skipped rather than failing the load.
func (r *CaptureRepository) LoadSamples(ctx context.Context, studentID string) ([]*image.Gray, int, error) {
	files, err := r.storage.ListFiles(studentID)
	if err != nil {
		return nil, 0, err
	}
	samples := make([]*image.Gray, 0, len(files))
	skipped := 0
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		if !isSampleFile(name) {
			continue
		}
		img, err := imaging.Open(r.storage.Path(path.Join(studentID, name)))
		if err != nil {
			skipped++
			continue
		}
		samples = append(samples, toGray(img))
	}
	return samples, skipped, nil
}

func isSampleFile(name string) bool {
	_, ok := sampleExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}
