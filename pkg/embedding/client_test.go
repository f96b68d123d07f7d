package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatewayStub(t *testing.T, wantPath string, status int, body string) (*httptest.Server, *string) {
	t.Helper()
	var gotField string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, wantPath, r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		if fhs := r.MultipartForm.File["image"]; len(fhs) == 1 {
			gotField = fhs[0].Filename
		}

		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	return srv, &gotField
}

func TestEncodeParsesEmbedding(t *testing.T) {
	srv, field := gatewayStub(t, "/encode", http.StatusOK,
		`{"embedding":[0.1,0.2,0.3],"dimensions":3}`)
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	vec, err := c.Encode(context.Background(), []byte("jpegbytes"))
	require.NoError(t, err)
	assert.Len(t, vec, 3)
	assert.InDelta(t, 0.2, vec[1], 1e-6)
	assert.Equal(t, "frame.jpg", *field, "frame travels as the image form file")
}

func TestEncodeRejectsDimensionMismatch(t *testing.T) {
	srv, _ := gatewayStub(t, "/encode", http.StatusOK,
		`{"embedding":[0.1,0.2],"dimensions":3}`)
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Encode(context.Background(), []byte("x"))
	assert.ErrorContains(t, err, "malformed embedding")
}

func TestEncodeRejectsEmptyEmbedding(t *testing.T) {
	srv, _ := gatewayStub(t, "/encode", http.StatusOK, `{"embedding":[],"dimensions":0}`)
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Encode(context.Background(), []byte("x"))
	assert.Error(t, err)
}

func TestEncodeNavigationInpaintQuery(t *testing.T) {
	var gotInpaint string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/encode/navigation", r.URL.Path)
		gotInpaint = r.URL.Query().Get("inpaint")
		w.Write([]byte(`{"embedding":[1],"dimensions":1}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)

	_, err := c.EncodeNavigation(context.Background(), []byte("x"), true)
	require.NoError(t, err)
	assert.Equal(t, "true", gotInpaint)

	_, err = c.EncodeNavigation(context.Background(), []byte("x"), false)
	require.NoError(t, err)
	assert.Equal(t, "", gotInpaint)
}

func TestEncodeSurfacesGatewayError(t *testing.T) {
	srv, _ := gatewayStub(t, "/encode", http.StatusBadGateway, `clip server down`)
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Encode(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "status 502")
	assert.ErrorContains(t, err, "clip server down")
}

func TestDetectPersons(t *testing.T) {
	srv, _ := gatewayStub(t, "/detect/persons", http.StatusOK,
		`{"count":2,"detections":[0.9,0.4]}`)
	defer srv.Close()

	count, dets, err := NewClient(srv.URL, time.Second).DetectPersons(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []float64{0.9, 0.4}, dets)
}

func TestHealth(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	assert.NoError(t, c.Health(context.Background()))

	healthy = false
	assert.Error(t, c.Health(context.Background()))
}
