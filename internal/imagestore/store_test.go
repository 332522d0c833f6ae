package imagestore

import (
	"context"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "image"), noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return s
}

func dataURI(format string, payload []byte) string {
	return "data:image/" + format + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

func TestParseDataURI(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantExt string
		wantErr error
	}{
		{name: "png", in: dataURI("png", []byte("png")), wantExt: "png"},
		{name: "svg maps to svg", in: dataURI("svg+xml", []byte("<svg/>")), wantExt: "svg"},
		{name: "jpeg maps to jpg", in: dataURI("jpeg", []byte("jpg")), wantExt: "jpg"},
		{name: "upper case prefix", in: "DATA:IMAGE/PNG;base64,AAAA", wantExt: "png"},
		{name: "gif is unsupported", in: dataURI("gif", []byte("gif")), wantErr: ErrUnsupported},
		{name: "plain path is unsupported", in: "image/1.png", wantErr: ErrUnsupported},
		{name: "empty is unsupported", in: "", wantErr: ErrUnsupported},
		{name: "missing base64 marker", in: "data:image/png,AAAA", wantErr: ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, _, err := ParseDataURI(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

func TestParseDataURI_BadPayload(t *testing.T) {
	_, _, err := ParseDataURI("data:image/png;base64,!!!")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupported)
}

func TestStore_SaveOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	path, err := s.Save(ctx, "42", dataURI("jpeg", []byte("first")))
	require.NoError(t, err)
	assert.Equal(t, "image/42.jpg", path)

	f, err := s.Open("42.jpg")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	// A new format replaces the old file.
	path, err = s.Save(ctx, "42", dataURI("png", []byte("second")))
	require.NoError(t, err)
	assert.Equal(t, "image/42.png", path)

	_, err = os.Stat(filepath.Join(s.Dir(), "42.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_SaveFailureKeepsPrevious(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "8", dataURI("png", []byte("kept")))
	require.NoError(t, err)
	// A directory in the way makes the jpeg write fail.
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "8.jpg"), 0o755))

	_, err = s.Save(ctx, "8", dataURI("jpeg", []byte("lost")))
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(s.Dir(), "8.png"))
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))
}

func TestStore_SaveRejectsBadID(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save(context.Background(), "../etc", dataURI("png", []byte("x")))
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestStore_Open(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Open("missing.png")
	require.ErrorIs(t, err, ErrNotExist)

	_, err = s.Open("..")
	require.ErrorIs(t, err, ErrInvalidName)

	require.NoError(t, os.MkdirAll(filepath.Join(s.Dir(), "dir.png"), 0o755))
	_, err = s.Open("dir.png")
	require.ErrorIs(t, err, ErrNotExist)
}

func TestStore_RemoveByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// No directory yet.
	removed, err := s.RemoveByID("1")
	require.NoError(t, err)
	assert.Empty(t, removed)

	_, err = s.Save(ctx, "1", dataURI("png", []byte("a")))
	require.NoError(t, err)
	_, err = s.Save(ctx, "10", dataURI("png", []byte("b")))
	require.NoError(t, err)

	removed, err = s.RemoveByID("1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.png"}, removed)

	f, err := s.Open("10.png")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("1.svg", false))
	assert.Equal(t, "image/svg+xml", ContentType("1.svg", true))
	assert.Equal(t, "image/jpeg", ContentType("1.jpg", true))
	assert.Equal(t, "image/png", ContentType("1.png", true))
}
