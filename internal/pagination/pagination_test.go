package pagination

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"smartclass/internal/builder"
	"smartclass/internal/domain"
)

func TestParseContent_Shapes(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantPages []int // element count per page
		wantErr   error
	}{
		{"empty", "", []int{0}, nil},
		{"null", "null", []int{0}, nil},
		{"flat array", `[{"id":"a","type":"text"},{"id":"b","type":"image"}]`, []int{2}, nil},
		{"wrapped elements", `{"elements":[{"id":"a","type":"text"}]}`, []int{1}, nil},
		{"v2", `{"version":2,"pages":[{"id":"p1","elementIds":["a"]},{"id":"p2","elementIds":["b","c"]}],
			"elements":[{"id":"a","type":"text"},{"id":"b","type":"text"},{"id":"c","type":"text"}]}`, []int{1, 2}, nil},
		{"v2 unlisted element", `{"version":2,"pages":[{"id":"p1","elementIds":[]},{"id":"p2","elementIds":["b"]}],
			"elements":[{"id":"a","type":"text"},{"id":"b","type":"text"}]}`, []int{1, 1}, nil},
		{"v3", `{"version":3,"content":{"pages":{
			"x":{"id":"x","title":"Second","order":1,"elements":[{"id":"b","type":"text"}]},
			"y":{"id":"y","title":"First","order":0,"elements":[]}},
			"currentPageId":"x","totalPages":2}}`, []int{0, 1}, nil},
		{"garbage", `{"version":`, []int{0}, ErrMalformedContent},
		{"bad array", `[1,2,3]`, []int{0}, ErrMalformedContent},
		{"future version", `{"version":9}`, []int{0}, ErrUnknownVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseContent([]byte(tt.raw))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if doc == nil {
				t.Fatal("ParseContent must always return a document")
			}
			var got []int
			for i, p := range doc.Pages {
				got = append(got, len(p.Elements))
				if p.Order != i {
					t.Errorf("page %d has order %d", i, p.Order)
				}
				if p.Elements == nil {
					t.Errorf("page %d has nil elements", i)
				}
			}
			if !reflect.DeepEqual(got, tt.wantPages) {
				t.Errorf("page sizes = %v, want %v", got, tt.wantPages)
			}
			if p, _ := doc.Page(doc.CurrentPageID); p == nil {
				t.Error("current page id must reference a page")
			}
		})
	}
}

func TestParseContent_V3KeepsCurrentPage(t *testing.T) {
	doc, err := ParseContent([]byte(`{"version":3,"content":{"pages":{
		"a":{"id":"a","title":"A","order":0,"elements":[]},
		"b":{"id":"b","title":"B","order":1,"elements":[]}},"currentPageId":"b"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if doc.CurrentPageID != "b" {
		t.Errorf("current page = %q", doc.CurrentPageID)
	}
	if doc.Pages[0].Title != "A" {
		t.Errorf("pages not sorted by order: %q first", doc.Pages[0].Title)
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	doc, _ := ParseContent([]byte(`{"version":2,"pages":[{"id":"p1","title":"Intro","elementIds":["a"]}],
		"elements":[{"id":"a","type":"heading","name":"Hello","properties":{"x":10}}]}`))
	data, err := Serialize(doc)
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseContent(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(back.Pages) != 1 || back.Pages[0].ID != "p1" || back.Pages[0].Title != "Intro" {
		t.Fatalf("pages = %+v", back.Pages)
	}
	if got := back.Pages[0].Elements[0].Geometry().X; got != 10 {
		t.Errorf("x = %v", got)
	}
}

func threeElements() []domain.Element {
	return []domain.Element{
		{ID: "e1", Type: domain.ElementTypeHeading, Name: "H", Properties: domain.Properties{"content": "Hi"}},
		{ID: "e2", Type: domain.ElementTypeContainer, Name: "C", Properties: domain.Properties{}},
		{ID: "e3", Type: domain.ElementTypeText, ParentID: "e2", Name: "T", Properties: domain.Properties{}},
	}
}

func TestPager_SwitchRoundTrip(t *testing.T) {
	store := builder.NewStore(builder.Options{})
	doc := NewDocument()
	doc.Pages[0].Elements = threeElements()
	pager := NewPager(store, doc)
	p2 := pager.CreatePage("")

	before := store.Elements()
	if len(before) != 3 {
		t.Fatalf("first page not loaded, %d elements", len(before))
	}
	p1 := pager.CurrentPageID()
	if err := pager.SwitchPageByID(p2.ID); err != nil {
		t.Fatal(err)
	}
	if n := len(store.Elements()); n != 0 {
		t.Errorf("second page should be empty, got %d", n)
	}
	if err := pager.SwitchPageByID(p1); err != nil {
		t.Fatal(err)
	}
	if got := store.Elements(); !reflect.DeepEqual(got, before) {
		t.Errorf("round trip changed elements:\n got %v\nwant %v", got, before)
	}
}

func TestPager_SaveBeforeSwitch(t *testing.T) {
	store := builder.NewStore(builder.Options{})
	pager := NewPager(store, nil)
	pager.CreatePage("Two")

	if _, err := store.AddElement(builder.NewElement{ID: "new", Type: domain.ElementTypeButton}); err != nil {
		t.Fatal(err)
	}
	if err := pager.SwitchPage(1); err != nil {
		t.Fatal(err)
	}
	if store.CanUndo() {
		t.Error("history must not cross a page switch")
	}
	if err := pager.SwitchPage(0); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Element("new"); !ok {
		t.Error("edits on the outgoing page were lost")
	}
	if err := pager.SwitchPage(5); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestPager_CreateDeleteRenameMove(t *testing.T) {
	store := builder.NewStore(builder.Options{})
	pager := NewPager(store, nil)
	first := pager.CurrentPageID()

	if err := pager.DeletePage(first); !errors.Is(err, ErrLastPage) {
		t.Fatalf("deleting the last page err = %v", err)
	}

	b := pager.CreatePage("B")
	c := pager.CreatePage("C")
	if err := pager.MovePage(c.ID, 0); err != nil {
		t.Fatal(err)
	}
	if err := pager.RenamePage(b.ID, "Bee"); err != nil {
		t.Fatal(err)
	}
	var titles []string
	for i, info := range pager.Pages() {
		titles = append(titles, info.Title)
		if info.Order != i {
			t.Errorf("%s order = %d", info.Title, info.Order)
		}
	}
	if want := []string{"C", "Page 1", "Bee"}; !reflect.DeepEqual(titles, want) {
		t.Errorf("titles = %v, want %v", titles, want)
	}

	if err := pager.DeletePage(first); err != nil {
		t.Fatal(err)
	}
	if cur := pager.CurrentPageID(); cur != b.ID {
		t.Errorf("after deleting current page, current = %q want %q", cur, b.ID)
	}
	pages := pager.Pages()
	if len(pages) != 2 || pages[0].Order != 0 || pages[1].Order != 1 {
		t.Errorf("pages not reindexed: %+v", pages)
	}
	if err := pager.DeletePage("nope"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestPager_DocumentFlushesLivePage(t *testing.T) {
	store := builder.NewStore(builder.Options{})
	pager := NewPager(store, nil)
	if _, err := store.AddElement(builder.NewElement{ID: "x", Type: domain.ElementTypeVideo}); err != nil {
		t.Fatal(err)
	}
	doc := pager.Document()
	if len(doc.Pages[0].Elements) != 1 {
		t.Fatalf("live page not flushed: %+v", doc.Pages[0].Elements)
	}
	data, err := pager.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseContent(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Pages[0].Elements[0].ID != "x" {
		t.Error("serialized document lost the live element")
	}
}

func TestPager_DocumentDuringSwitches(t *testing.T) {
	store := builder.NewStore(builder.Options{})
	doc := NewDocument()
	doc.Pages[0].Elements = []domain.Element{{ID: "a", Type: domain.ElementTypeText, Properties: domain.Properties{}}}
	pager := NewPager(store, doc)
	second := pager.CreatePage("Two")
	first := pager.CurrentPageID()
	if err := pager.SwitchPageByID(second.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddElement(builder.NewElement{ID: "b", Type: domain.ElementTypeText}); err != nil {
		t.Fatal(err)
	}
	owner := map[string]string{"a": first, "b": second.ID}

	check := func(d *Document) {
		for _, pg := range d.Pages {
			for _, el := range pg.Elements {
				if owner[el.ID] != pg.ID {
					t.Errorf("element %q leaked into page %q", el.ID, pg.Title)
				}
			}
		}
	}

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				check(pager.Document())
			}
		}
	}()
	for i := 0; i < 200; i++ {
		id := first
		if i%2 == 1 {
			id = second.ID
		}
		if err := pager.SwitchPageByID(id); err != nil {
			t.Fatal(err)
		}
	}
	close(done)
	wg.Wait()

	final := pager.Document()
	check(final)
	for _, pg := range final.Pages {
		if len(pg.Elements) != 1 {
			t.Errorf("page %q has %d elements, want 1", pg.Title, len(pg.Elements))
		}
	}
}
