package render

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"smartclass/internal/builder"
	"smartclass/internal/domain"
)

func page() []domain.Element {
	box := func(x, y, w, h float64) domain.Properties {
		return domain.Properties{domain.PropX: x, domain.PropY: y, domain.PropWidth: w, domain.PropHeight: h}
	}
	a := box(100, 100, 100, 50)
	a[domain.PropConnectionGroupID] = "g"
	a[domain.PropConnectionState] = "connected"
	a[domain.PropConnectedNodeID] = "b"
	a[domain.PropLineColor] = "#ff0000"
	b := box(600, 100, 100, 50)
	b[domain.PropConnectionGroupID] = "g"
	b[domain.PropConnectionState] = "connected"
	b[domain.PropConnectedNodeID] = "a"
	return []domain.Element{
		{ID: "c", Type: domain.ElementTypeContainer, Name: "Card", Properties: box(0, 0, 400, 300)},
		{ID: "img", Type: domain.ElementTypeImage, ParentID: "c", Name: "Picture", Properties: box(10, 10, 100, 80)},
		{ID: "a", Type: domain.ElementTypeConnectionText, Name: "A", Properties: a},
		{ID: "b", Type: domain.ElementTypeConnectionText, Name: "B", Properties: b},
	}
}

func TestThumbnail_Size(t *testing.T) {
	img, err := Thumbnail(page(), ThumbnailOptions{Width: 320, CanvasWidth: 1280, CanvasHeight: 720, Labels: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Dx(); got != 320 {
		t.Errorf("width = %d", got)
	}
	if got := img.Bounds().Dy(); got != 180 {
		t.Errorf("height = %d, want 180 for a 16:9 canvas", got)
	}

	// midpoint of the connection line, (400,125) on the canvas
	r, g, b, _ := img.At(100, 31).RGBA()
	if r>>8 < 0xc0 || g>>8 > 0x60 || b>>8 > 0x60 {
		t.Errorf("expected the red connection line at the midpoint, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestThumbnail_GrowsToFitElements(t *testing.T) {
	els := []domain.Element{{ID: "far", Type: domain.ElementTypeButton, Properties: domain.Properties{
		domain.PropX: 2000.0, domain.PropY: 0.0, domain.PropWidth: 560.0, domain.PropHeight: 40.0,
	}}}
	img, err := Thumbnail(els, ThumbnailOptions{Width: 256})
	if err != nil {
		t.Fatal(err)
	}
	// canvas becomes 2560 wide, so the 720 high default scales to 72
	if got := img.Bounds().Dy(); got != 72 {
		t.Errorf("height = %d", got)
	}
}

func TestThumbnailPNG_Decodes(t *testing.T) {
	data, err := ThumbnailPNG(page(), ThumbnailOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("not a png: %v", err)
	}
}

func TestParseHex(t *testing.T) {
	if c, ok := parseHex("#4f46e5"); !ok || c.R != 0x4f || c.G != 0x46 || c.B != 0xe5 {
		t.Errorf("parseHex = %v %v", c, ok)
	}
	for _, bad := range []string{"", "red", "#fff", "#zzzzzz"} {
		if _, ok := parseHex(bad); ok {
			t.Errorf("parseHex(%q) should fail", bad)
		}
	}
}

func TestLayerTree(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	panel := builder.NewLayersPanel()
	store := builder.NewStore(builder.Options{})
	store.LoadElements(page())
	panel.Attach(store)
	defer panel.Close()
	panel.Expand("c")
	store.SelectElement("img", false)

	out := LayerTree("Page 1", panel.Rows())
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "▾ ▢ Card") {
		t.Errorf("container row = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "    ▣ Picture") {
		t.Errorf("child row = %q", lines[2])
	}

	if got := LayerTree("", nil); !strings.Contains(got, "(no elements)") {
		t.Errorf("empty tree = %q", got)
	}
}

func TestExpandedRows(t *testing.T) {
	rows := ExpandedRows(page())
	if len(rows) != 4 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].ID != "c" || !rows[0].IsExpanded || !rows[0].HasChildren {
		t.Errorf("container row = %+v", rows[0])
	}
	if rows[1].ID != "img" || rows[1].Depth != 1 {
		t.Errorf("child row = %+v", rows[1])
	}
}
