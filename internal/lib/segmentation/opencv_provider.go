package segmentation

import (
	"context"
	"errors"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/roofsight/roofsight/server/internal/clients/staticmap"
	"github.com/roofsight/roofsight/server/internal/lib/geo"
)

// Contour filtering thresholds for the edge-detection pipeline. Roofs at
// zoom 20 cover thousands of pixels; anything under minContourArea is noise.
const (
	minContourArea   = 500.0
	approxEpsilonPct = 0.02
)

var (
	errDecodeFailed = errors.New("capture could not be decoded for contour extraction")
	errNoContours   = errors.New("no roof-scale contours found in capture")
)

// OpenCVProvider segments rooftops locally with classic image processing:
// blur, Canny edges, dilation, then contour extraction. No network beyond the
// capture fetch, no credentials, lower confidence than the model providers.
type OpenCVProvider struct {
	captures CaptureSource
	geoUtils geo.GeoUtils
	opts     staticmap.CaptureOptions
}

// NewOpenCVProvider creates the local image-processing provider
func NewOpenCVProvider(captures CaptureSource, geoUtils geo.GeoUtils, opts staticmap.CaptureOptions) *OpenCVProvider {
	return &OpenCVProvider{
		captures: captures,
		geoUtils: geoUtils,
		opts:     opts,
	}
}

// Method identifies this provider
func (p *OpenCVProvider) Method() Method {
	return MethodOpenCV
}

// Segment runs the contour pipeline on a fresh capture and reprojects the
// contour nearest the capture center.
func (p *OpenCVProvider) Segment(ctx context.Context, lat, lng float64) *Result {
	capture, err := p.captures.FetchCapture(ctx, lat, lng, p.opts)
	if err != nil {
		return failure(MethodOpenCV, ErrorNetworkError, err.Error())
	}

	data, err := encodePNG(capture)
	if err != nil {
		return failure(MethodOpenCV, ErrorBadRequest, err.Error())
	}

	outline, err := p.extractOutline(data)
	if err != nil {
		return failure(MethodOpenCV, ErrorNoRoofDetected, err.Error())
	}

	pixels := make([]geo.PixelPoint, len(outline))
	for i, pt := range outline {
		pixels[i] = geo.PixelPoint{X: float64(pt.X), Y: float64(pt.Y)}
	}
	polygon := p.geoUtils.PixelPolygonToLatLng(pixels, lat, lng, p.opts.Zoom, p.opts.ImageSize)

	segment := RoofSegment{
		Polygon: polygon,
		Center:  polygonCentroid(polygon),
		AreaM2:  p.geoUtils.PolygonArea(polygon),
	}

	return &Result{
		Method:      MethodOpenCV,
		Segments:    []RoofSegment{segment},
		Outline:     polygon,
		TotalAreaM2: segment.AreaM2,
		Confidence:  ConfidenceOpenCV,
	}
}

// extractOutline runs the OpenCV pipeline and returns the simplified contour
// closest to the image center
func (p *OpenCVProvider) extractOutline(pngData []byte) ([]image.Point, error) {
	src, err := gocv.IMDecode(pngData, gocv.IMReadGrayScale)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	if src.Empty() {
		return nil, errDecodeFailed
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(src, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, 50, 150)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(edges, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	center := float64(p.opts.ImageSize) / 2
	var best []image.Point
	bestDist := math.Inf(1)

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if gocv.ContourArea(contour) < minContourArea {
			continue
		}

		epsilon := approxEpsilonPct * gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, epsilon, true)
		points := approx.ToPoints()
		approx.Close()

		if len(points) < 3 {
			continue
		}

		cx, cy := pixelCentroid(points)
		dist := (cx-center)*(cx-center) + (cy-center)*(cy-center)
		if dist < bestDist {
			bestDist = dist
			best = points
		}
	}

	if best == nil {
		return nil, errNoContours
	}

	return best, nil
}

// pixelCentroid is the vertex average of a pixel contour
func pixelCentroid(points []image.Point) (float64, float64) {
	var x, y float64
	for _, pt := range points {
		x += float64(pt.X)
		y += float64(pt.Y)
	}
	n := float64(len(points))
	return x / n, y / n
}
