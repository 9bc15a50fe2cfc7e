package builder

import (
	"fmt"
	"sort"

	"smartclass/internal/domain"
)

// Template produces a batch of new elements rooted at one container. The
// batch is added as a single history entry.
type Template func(newID func() string, parentID string, x, y float64) []NewElement

var templates = map[string]Template{
	"two-column":      twoColumn,
	"card":            card,
	"connection-pair": connectionPair,
}

// TemplateNames lists the registered templates in alphabetical order.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for n := range templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddTemplate expands the named template under parentID at (x, y).
func (s *Store) AddTemplate(name, parentID string, x, y float64) ([]domain.Element, error) {
	tpl, ok := templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return s.AddElements(tpl(s.newID, parentID, x, y))
}

func box(x, y, w, h float64) domain.Properties {
	return domain.Geometry{X: x, Y: y, Width: w, Height: h}.Patch()
}

func twoColumn(newID func() string, parentID string, x, y float64) []NewElement {
	root := newID()
	left, right := newID(), newID()
	return []NewElement{
		{ID: root, Type: domain.ElementTypeContainer, ParentID: parentID, Name: "Two Columns", Properties: box(x, y, 640, 320)},
		{ID: left, Type: domain.ElementTypeContainer, ParentID: root, Name: "Left Column", Properties: box(0, 0, 320, 320)},
		{ID: right, Type: domain.ElementTypeContainer, ParentID: root, Name: "Right Column", Properties: box(320, 0, 320, 320)},
	}
}

func card(newID func() string, parentID string, x, y float64) []NewElement {
	root := newID()
	heading := box(16, 16, 288, 40)
	heading[domain.PropContent] = "Title"
	body := box(16, 64, 288, 120)
	body[domain.PropContent] = "Description"
	return []NewElement{
		{ID: root, Type: domain.ElementTypeContainer, ParentID: parentID, Name: "Card", Properties: box(x, y, 320, 260)},
		{ID: newID(), Type: domain.ElementTypeImage, ParentID: root, Name: "Card Image", Properties: box(16, 192, 288, 52)},
		{ID: newID(), Type: domain.ElementTypeHeading, ParentID: root, Name: "Card Title", Properties: heading},
		{ID: newID(), Type: domain.ElementTypeParagraph, ParentID: root, Name: "Card Body", Properties: body},
	}
}

// connectionPair is a container with the two ends of one connection group.
func connectionPair(newID func() string, parentID string, x, y float64) []NewElement {
	root := newID()
	group := newID()
	node := func(nx float64, content string) domain.Properties {
		p := box(nx, 40, 160, 60)
		p[domain.PropContent] = content
		p[domain.PropConnectionGroupID] = group
		p[domain.PropConnectionState] = string(domain.ConnectionDisconnected)
		p[domain.PropLineColor] = "#4f46e5"
		p[domain.PropAllowRetry] = true
		return p
	}
	return []NewElement{
		{ID: root, Type: domain.ElementTypeContainer, ParentID: parentID, Name: "Connection Pair", Properties: box(x, y, 480, 140)},
		{ID: newID(), Type: domain.ElementTypeConnectionText, ParentID: root, Name: "Source", Properties: node(20, "Source")},
		{ID: newID(), Type: domain.ElementTypeConnectionText, ParentID: root, Name: "Target", Properties: node(300, "Target")},
	}
}
