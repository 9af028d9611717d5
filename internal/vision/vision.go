// Package vision declares the camera and computer-vision collaborators the
// attendance services drive. Concrete implementations live in subpackages.
package vision

import (
	"context"
	"errors"
	"image"
	"image/color"
)

// ErrNoFrame is returned by Camera.Read when the device yields no image.
var ErrNoFrame = errors.New("camera returned no frame")

// Frame is one captured image. Implementations may hold native buffers, so
// callers must Close every frame they read.
type Frame interface {
	Bounds() image.Rectangle
	Close() error
}

// Camera is an open capture device.
type Camera interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// CameraOpener acquires the capture device for one session.
type CameraOpener interface {
	Open(ctx context.Context) (Camera, error)
}

// CameraOpenerFunc adapts a function to CameraOpener.
type CameraOpenerFunc func(ctx context.Context) (Camera, error)

// Open calls f.
func (f CameraOpenerFunc) Open(ctx context.Context) (Camera, error) { return f(ctx) }

// DetectorParams tunes face detection sensitivity.
type DetectorParams struct {
	ScaleFactor  float64
	MinNeighbors int
}

// DefaultDetectorParams mirrors the Haar cascade settings used for enrollment and attendance.
func DefaultDetectorParams() DetectorParams {
	return DetectorParams{ScaleFactor: 1.3, MinNeighbors: 5}
}

// Face is a detected face region and its grayscale crop.
type Face struct {
	Bounds image.Rectangle
	Crop   *image.Gray
}

// FaceDetector finds zero or more faces in a frame.
type FaceDetector interface {
	DetectFaces(frame Frame) ([]Face, error)
}

// Prediction is a classifier result. Confidence is a distance: lower is better.
type Prediction struct {
	Label      int
	Confidence float64
}

// Classifier labels a face crop with the identity it was trained on.
type Classifier interface {
	Predict(face *image.Gray) (Prediction, error)
}

// TrainedClassifier is a classifier that can persist itself.
type TrainedClassifier interface {
	Classifier
	Save(path string) error
}

// ClassifierBackend trains new classifiers and loads persisted ones.
type ClassifierBackend interface {
	Train(ctx context.Context, faces []*image.Gray, labels []int) (TrainedClassifier, error)
	Load(path string) (Classifier, error)
}

// QRCode is a decoded payload and its bounding quadrilateral in the frame.
type QRCode struct {
	Payload string
	Corners []image.Point
}

// QRDecoder returns the code visible in a frame, or nil when none is found.
type QRDecoder interface {
	DecodeQR(frame Frame) (*QRCode, error)
}

// Annotation is an overlay drawn over a frame.
type Annotation struct {
	Box     image.Rectangle
	Polygon []image.Point
	Text    string
	Color   color.RGBA
}

var (
	ColorMarked  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	ColorAlready = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	ColorUnknown = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	ColorInfo    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Display shows annotated frames to the operator. Show returns true when the
// operator asked to quit.
type Display interface {
	Show(frame Frame, annotations []Annotation) (quit bool, err error)
	Close() error
}

// NopDisplay discards frames; sessions run headless with it.
type NopDisplay struct{}

// Show implements Display.
func (NopDisplay) Show(Frame, []Annotation) (bool, error) { return false, nil }

// Close implements Display.
func (NopDisplay) Close() error { return nil }
