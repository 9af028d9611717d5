// Package opencv implements the vision interfaces on top of gocv: V4L/DirectShow
// capture, Haar cascade face detection, LBPH recognition and QR detection.
package opencv

import (
	"context"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"

	"github.com/noah-isme/smart-attendance/internal/vision"
)

type frame struct {
	mat gocv.Mat
}

func (f *frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.mat.Cols(), f.mat.Rows())
}

func (f *frame) Close() error {
	return f.mat.Close()
}

func asFrame(in vision.Frame) (*frame, error) {
	f, ok := in.(*frame)
	if !ok {
		return nil, fmt.Errorf("opencv: unsupported frame type %T", in)
	}
	return f, nil
}

// Camera wraps a gocv video capture device.
type Camera struct {
	capture *gocv.VideoCapture
}

// Opener opens the configured device index for each session.
type Opener struct {
	Device int
}

// Open implements vision.CameraOpener.
func (o Opener) Open(ctx context.Context) (vision.Camera, error) {
	capture, err := gocv.OpenVideoCapture(o.Device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", o.Device, err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return nil, fmt.Errorf("camera %d not available", o.Device)
	}
	return &Camera{capture: capture}, nil
}

// Read implements vision.Camera.
func (c *Camera) Read(ctx context.Context) (vision.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		_ = mat.Close()
		return nil, vision.ErrNoFrame
	}
	return &frame{mat: mat}, nil
}

// Close releases the device.
func (c *Camera) Close() error {
	return c.capture.Close()
}

// CascadeDetector finds faces with a Haar cascade on the grayscale frame.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	params     vision.DetectorParams
}

// NewCascadeDetector loads the cascade XML at path.
func NewCascadeDetector(path string, params vision.DetectorParams) (*CascadeDetector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("haar cascade %s: %w", path, err)
	}
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		_ = classifier.Close()
		return nil, fmt.Errorf("failed to load haar cascade from %s", path)
	}
	if params.ScaleFactor <= 1 {
		params.ScaleFactor = vision.DefaultDetectorParams().ScaleFactor
	}
	if params.MinNeighbors <= 0 {
		params.MinNeighbors = vision.DefaultDetectorParams().MinNeighbors
	}
	return &CascadeDetector{classifier: classifier, params: params}, nil
}

// DetectFaces implements vision.FaceDetector.
func (d *CascadeDetector) DetectFaces(in vision.Frame) ([]vision.Face, error) {
	f, err := asFrame(in)
	if err != nil {
		return nil, err
	}
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(f.mat, &gray, gocv.ColorBGRToGray)

	rects := d.classifier.DetectMultiScaleWithParams(gray, d.params.ScaleFactor, d.params.MinNeighbors, 0, image.Point{}, image.Point{})
	faces := make([]vision.Face, 0, len(rects))
	for _, rect := range rects {
		crop, err := cropGray(gray, rect)
		if err != nil {
			return nil, err
		}
		faces = append(faces, vision.Face{Bounds: rect, Crop: crop})
	}
	return faces, nil
}

// Close releases the cascade.
func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}

func cropGray(gray gocv.Mat, rect image.Rectangle) (*image.Gray, error) {
	region := gray.Region(rect)
	defer region.Close()
	owned := region.Clone()
	defer owned.Close()
	img, err := owned.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert face region: %w", err)
	}
	g, ok := img.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("face region is %T, want grayscale", img)
	}
	return g, nil
}

// LBPHBackend trains and loads OpenCV LBPH face recognizers.
type LBPHBackend struct{}

// Train implements vision.ClassifierBackend.
func (LBPHBackend) Train(ctx context.Context, faces []*image.Gray, labels []int) (vision.TrainedClassifier, error) {
	if len(faces) == 0 || len(faces) != len(labels) {
		return nil, fmt.Errorf("lbph: %d faces for %d labels", len(faces), len(labels))
	}
	mats := make([]gocv.Mat, 0, len(faces))
	defer func() {
		for _, m := range mats {
			_ = m.Close()
		}
	}()
	for _, face := range faces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := gocv.ImageGrayToMatGray(face)
		if err != nil {
			return nil, fmt.Errorf("lbph: convert sample: %w", err)
		}
		mats = append(mats, m)
	}
	recognizer := contrib.NewLBPHFaceRecognizer()
	recognizer.Train(mats, labels)
	return &lbphClassifier{recognizer: recognizer}, nil
}

// Load implements vision.ClassifierBackend.
func (LBPHBackend) Load(path string) (vision.Classifier, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("lbph model %s: %w", path, err)
	}
	recognizer := contrib.NewLBPHFaceRecognizer()
	recognizer.LoadFile(path)
	return &lbphClassifier{recognizer: recognizer}, nil
}

type lbphClassifier struct {
	recognizer *contrib.LBPHFaceRecognizer
}

func (c *lbphClassifier) Predict(face *image.Gray) (vision.Prediction, error) {
	m, err := gocv.ImageGrayToMatGray(face)
	if err != nil {
		return vision.Prediction{}, fmt.Errorf("lbph: convert face: %w", err)
	}
	defer m.Close()
	res := c.recognizer.PredictExtendedResponse(m)
	return vision.Prediction{Label: int(res.Label), Confidence: float64(res.Confidence)}, nil
}

func (c *lbphClassifier) Save(path string) error {
	c.recognizer.SaveFile(path)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("lbph: save model: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("lbph: model file %s is empty", path)
	}
	return nil
}

// QRDetector decodes QR codes directly from camera frames.
type QRDetector struct {
	detector gocv.QRCodeDetector
}

// NewQRDetector allocates the OpenCV QR detector.
func NewQRDetector() *QRDetector {
	return &QRDetector{detector: gocv.NewQRCodeDetector()}
}

// DecodeQR implements vision.QRDecoder.
func (d *QRDetector) DecodeQR(in vision.Frame) (*vision.QRCode, error) {
	f, err := asFrame(in)
	if err != nil {
		return nil, err
	}
	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	payload := d.detector.DetectAndDecode(f.mat, &points, &straight)
	if payload == "" {
		return nil, nil
	}
	code := &vision.QRCode{Payload: payload}
	if !points.Empty() {
		if coords, err := points.DataPtrFloat32(); err == nil {
			for i := 0; i+1 < len(coords); i += 2 {
				code.Corners = append(code.Corners, image.Pt(int(coords[i]), int(coords[i+1])))
			}
		}
	}
	return code, nil
}

// Close releases the detector.
func (d *QRDetector) Close() error {
	return d.detector.Close()
}

// Window shows annotated frames in a native preview window.
type Window struct {
	window *gocv.Window
}

// NewWindow opens a preview window titled name.
func NewWindow(name string) *Window {
	return &Window{window: gocv.NewWindow(name)}
}

// Show implements vision.Display. Pressing q in the window requests a stop.
func (w *Window) Show(in vision.Frame, annotations []vision.Annotation) (bool, error) {
	f, err := asFrame(in)
	if err != nil {
		return false, err
	}
	for _, a := range annotations {
		if !a.Box.Empty() {
			gocv.Rectangle(&f.mat, a.Box, a.Color, 2)
		}
		if len(a.Polygon) > 1 {
			pv := gocv.NewPointsVectorFromPoints([][]image.Point{a.Polygon})
			gocv.Polylines(&f.mat, pv, true, a.Color, 3)
			pv.Close()
		}
		if a.Text != "" {
			org := image.Pt(10, 30)
			switch {
			case !a.Box.Empty():
				org = image.Pt(a.Box.Min.X, a.Box.Min.Y-10)
			case len(a.Polygon) > 0:
				org = image.Pt(a.Polygon[0].X, a.Polygon[0].Y-10)
			}
			gocv.PutText(&f.mat, a.Text, org, gocv.FontHersheySimplex, 0.7, a.Color, 2)
		}
	}
	w.window.IMShow(f.mat)
	key := w.window.WaitKey(1)
	return key == 'q' || key == 'Q', nil
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.window.Close()
}
