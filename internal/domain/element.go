package domain

import "strings"

type ElementType string

const (
	ElementTypeContainer      ElementType = "container"
	ElementTypeHeading        ElementType = "heading"
	ElementTypeParagraph      ElementType = "paragraph"
	ElementTypeText           ElementType = "text"
	ElementTypeRichText       ElementType = "rich-text"
	ElementTypeImage          ElementType = "image"
	ElementTypeVideo          ElementType = "video"
	ElementTypeButton         ElementType = "button"
	ElementTypeConnectionText ElementType = "connection-text-node"
	ElementTypeConnectionImg  ElementType = "connection-image-node"
)

// ElementTypes lists every type the builder knows how to render.
var ElementTypes = []ElementType{
	ElementTypeContainer,
	ElementTypeHeading,
	ElementTypeParagraph,
	ElementTypeText,
	ElementTypeRichText,
	ElementTypeImage,
	ElementTypeVideo,
	ElementTypeButton,
	ElementTypeConnectionText,
	ElementTypeConnectionImg,
}

func (t ElementType) Valid() bool {
	for _, known := range ElementTypes {
		if t == known {
			return true
		}
	}
	return false
}

// CanContain reports whether elements of this type may parent other elements.
func (t ElementType) CanContain() bool {
	return t == ElementTypeContainer
}

// Connectable reports whether the type takes part in connection exercises.
func (t ElementType) Connectable() bool {
	return t == ElementTypeConnectionText || t == ElementTypeConnectionImg
}

// TextEditable reports whether the type carries editable text content.
func (t ElementType) TextEditable() bool {
	switch t {
	case ElementTypeHeading, ElementTypeParagraph, ElementTypeText,
		ElementTypeRichText, ElementTypeButton, ElementTypeConnectionText:
		return true
	}
	return false
}

// Label is the human readable name used for default element names.
func (t ElementType) Label() string {
	switch t {
	case ElementTypeConnectionText:
		return "Connection Text"
	case ElementTypeConnectionImg:
		return "Connection Image"
	case ElementTypeRichText:
		return "Rich Text"
	}
	s := string(t)
	if s == "" {
		return "Element"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Element is a node of the canvas tree. Parent/child is a relation through
// ParentID; all elements of a page live in one flat ordered list, and sibling
// order is z-order.
type Element struct {
	ID         string      `json:"id"`
	Type       ElementType `json:"type"`
	ParentID   string      `json:"parentId,omitempty"`
	Name       string      `json:"name"`
	Properties Properties  `json:"properties"`
}

// Clone returns a copy that shares no mutable state with e.
func (e Element) Clone() Element {
	e.Properties = e.Properties.Clone()
	return e
}

// CloneElements deep-copies a slice of elements.
func CloneElements(elements []Element) []Element {
	if elements == nil {
		return nil
	}
	out := make([]Element, len(elements))
	for i, el := range elements {
		out[i] = el.Clone()
	}
	return out
}
