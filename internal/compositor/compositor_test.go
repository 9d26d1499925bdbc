package compositor

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pictoria/service-api/internal/action"
)

// hanziFont maps 中人大水爱龙 to distinct outlines and nothing else.
func hanziFont(t *testing.T) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/hanzi-subset.ttf")
	require.NoError(t, err)
	return b
}

func small(t *testing.T) *Compositor {
	t.Helper()
	c, err := New(Options{DisplaySize: 128, SuperSample: 2, CharFont: hanziFont(t)})
	require.NoError(t, err)
	return c
}

func decode(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	return img
}

func TestRenderDefaultSize(t *testing.T) {
	if testing.Short() {
		t.Skip("full-size render")
	}
	c, err := New(Options{CharFont: hanziFont(t)})
	require.NoError(t, err)

	out, err := c.Render("爱", []string{"ài"})
	require.NoError(t, err)
	assert.Equal(t, 1024, out.Width)
	assert.Equal(t, 1024, out.Height)
	assert.Equal(t, len(out.PNG), out.Size)

	img := decode(t, out.PNG)
	assert.Equal(t, image.Rect(0, 0, 1024, 1024), img.Bounds())
}

func TestRenderDeterministic(t *testing.T) {
	c := small(t)
	a, err := c.Render("人", []string{"rén"})
	require.NoError(t, err)
	b, err := c.Render("人", []string{"rén"})
	require.NoError(t, err)
	assert.Equal(t, a.PNG, b.PNG)
	assert.Equal(t, a.DataURI, b.DataURI)
}

func TestDataURIMatchesBytes(t *testing.T) {
	out, err := small(t).Render("水", nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out.DataURI, "data:image/png;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(out.DataURI, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, out.PNG, raw)
}

func TestDistinctCharactersDiffer(t *testing.T) {
	c := small(t)
	seen := map[string]string{}
	for _, ch := range []string{"人", "水", "中", "龙"} {
		out, err := c.Render(ch, nil)
		require.NoError(t, err, ch)
		key := string(out.PNG)
		assert.NotContains(t, seen, key, "%s renders like %s", ch, seen[key])
		seen[key] = ch
	}
}

func TestMissingGlyphIsUnavailable(t *testing.T) {
	c := small(t)
	assert.True(t, c.Supports("人"))
	assert.False(t, c.Supports("a"))
	assert.False(t, c.Supports(""))

	out, err := c.Render("书", nil)
	assert.ErrorIs(t, err, action.ErrRenderUnavailable)
	assert.Nil(t, out)

	latin, err := New(Options{DisplaySize: 64, SuperSample: 1})
	require.NoError(t, err)
	assert.False(t, latin.Supports("人"), "the built-in face has no Han glyphs")
	_, err = latin.Render("人", nil)
	assert.ErrorIs(t, err, action.ErrRenderUnavailable)
}

func TestOutputIsOpaque(t *testing.T) {
	c, err := New(Options{DisplaySize: 256, SuperSample: 2, CharFont: hanziFont(t)})
	require.NoError(t, err)
	out, err := c.Render("水", []string{"shuǐ"})
	require.NoError(t, err)

	// IHDR color type 2 is truecolor without an alpha channel.
	require.Greater(t, len(out.PNG), 25)
	assert.Equal(t, byte(2), out.PNG[25])

	img := decode(t, out.PNG)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			require.Equal(t, uint32(0xffff), a, "pixel %d,%d", x, y)
		}
	}
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Less(t, r, uint32(0xffff), "corner shows the canvas, not the card")
}

func TestCaptionChangesPixels(t *testing.T) {
	c := small(t)
	bare, err := c.Render("人", nil)
	require.NoError(t, err)
	captioned, err := c.Render("人", []string{"rén", "ren"})
	require.NoError(t, err)
	assert.NotEqual(t, bare.PNG, captioned.PNG)

	blank, err := c.Render("人", []string{" ", ""})
	require.NoError(t, err)
	assert.Equal(t, bare.PNG, blank.PNG, "blank pronunciations draw no caption")
}

func TestCardShape(t *testing.T) {
	c, err := New(Options{DisplaySize: 1024, SuperSample: 1})
	require.NoError(t, err)
	surface := image.NewRGBA(image.Rect(0, 0, 1024, 1024))
	c.fillCard(surface, 1024)

	assert.Equal(t, canvas, surface.RGBAAt(0, 0), "corner outside the rounded card shows the canvas")
	assert.Equal(t, canvas, surface.RGBAAt(1023, 1023))
	assert.Equal(t, canvas, surface.RGBAAt(1023, 0))
	for _, p := range []image.Point{{512, 1}, {1, 512}, {512, 512}, {1022, 512}, {12, 12}} {
		assert.Equal(t, color.RGBA{255, 255, 255, 255}, surface.RGBAAt(p.X, p.Y), "%v", p)
	}
}

func TestRenderInvalidInput(t *testing.T) {
	c := small(t)
	for _, s := range []string{"", "  ", "人大", "ab"} {
		out, err := c.Render(s, nil)
		assert.ErrorIs(t, err, action.ErrInvalidInput, "%q", s)
		assert.Nil(t, out)
	}
	_, err := c.Render("人\u0301", nil)
	assert.NoError(t, err, "a combining sequence is one grapheme")

	latin, err := New(Options{DisplaySize: 64, SuperSample: 1})
	require.NoError(t, err)
	_, err = latin.Render("e\u0301", nil)
	assert.NoError(t, err)
}

func TestRenderUnavailable(t *testing.T) {
	c, err := New(Options{DisplaySize: 4096, SuperSample: 4, CharFont: hanziFont(t)})
	require.NoError(t, err)
	out, err := c.Render("人", nil)
	assert.ErrorIs(t, err, action.ErrRenderUnavailable)
	assert.Nil(t, out)

	c, err = New(Options{DisplaySize: -1, CharFont: hanziFont(t)})
	require.NoError(t, err)
	_, err = c.Render("人", nil)
	assert.ErrorIs(t, err, action.ErrRenderUnavailable)

	_, err = New(Options{CharFont: []byte("not a font")})
	assert.ErrorIs(t, err, action.ErrRenderUnavailable)
}

func TestLoadFont(t *testing.T) {
	b, err := LoadFont("")
	assert.NoError(t, err)
	assert.Nil(t, b)

	_, err = LoadFont("/nonexistent/font.ttf")
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(small(t), zap.NewNop().Sugar()).Register(mux, "/api")

	req := httptest.NewRequest(http.MethodPost, "/api/compositor/render", strings.NewReader(`{"character":"人","pronunciations":["rén"]}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data_uri":"data:image/png;base64,`)
	assert.Contains(t, rec.Body.String(), `"width":128`)

	req = httptest.NewRequest(http.MethodPost, "/api/compositor/render", strings.NewReader(`{"character":"人"}`))
	req.Header.Set("Accept", "image/png")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	decode(t, rec.Body.Bytes())

	req = httptest.NewRequest(http.MethodPost, "/api/compositor/render", strings.NewReader(`{"character":"人大"}`))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}
