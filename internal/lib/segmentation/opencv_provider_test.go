package segmentation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roofsight/roofsight/server/internal/clients/staticmap"
	"github.com/roofsight/roofsight/server/internal/lib/geo"
)

func TestOpenCVProvider_CaptureFailure(t *testing.T) {
	captures := &fakeCaptureSource{err: errors.New("connection refused")}
	provider := NewOpenCVProvider(captures, geo.NewGeoUtils(), staticmap.DefaultCaptureOptions())

	result := provider.Segment(context.Background(), 38.1327, -120.4606)
	require.True(t, result.Failed())
	assert.Equal(t, ErrorNetworkError, result.Error)
	assert.Empty(t, result.Segments)
}

func TestOpenCVProvider_Method(t *testing.T) {
	provider := NewOpenCVProvider(&fakeCaptureSource{}, geo.NewGeoUtils(), staticmap.DefaultCaptureOptions())
	assert.Equal(t, MethodOpenCV, provider.Method())
}
