package uistate

import "fmt"

// Marker classes toggled on icon elements. They are mutually exclusive.
const (
	ClassTrue  = "true"
	ClassFalse = "false"
)

// Element is a page element that state can be applied to. Every method must
// be idempotent.
type Element interface {
	Show()
	Hide()
	AddClass(name string)
	RemoveClass(name string)
	SetImageSource(url string)
}

// Finder looks elements up by id.
type Finder interface {
	FindByID(id string) (Element, bool)
}

// SlotKind is one of the element roles a single state key addresses.
type SlotKind int

const (
	// Visibility elements are shown or hidden.
	Visibility SlotKind = iota
	// IconToggle elements swap between the "true" and "false" marker classes.
	IconToggle
	// ImageSource elements get their image source replaced.
	ImageSource
)

type slot struct {
	kind   SlotKind
	suffix string
	apply  func(el Element, value string)
}

var slots = []slot{
	{Visibility, "Disp", applyVisibility},
	{IconToggle, "Icon", applyIconToggle},
	{ImageSource, "Img", applyImageSource},
}

// SlotKinds returns every slot kind in application order.
func SlotKinds() []SlotKind {
	kinds := make([]SlotKind, len(slots))
	for i, s := range slots {
		kinds[i] = s.kind
	}
	return kinds
}

// Suffix returns the id suffix that addresses this slot.
func (k SlotKind) Suffix() string {
	if k < 0 || int(k) >= len(slots) {
		return ""
	}
	return slots[k].suffix
}

func (k SlotKind) String() string {
	switch k {
	case Visibility:
		return "visibility"
	case IconToggle:
		return "icon"
	case ImageSource:
		return "image"
	}
	return fmt.Sprintf("SlotKind(%d)", int(k))
}

// ElementID returns the id of the element of the given kind for key.
func ElementID(key string, kind SlotKind) string {
	return key + kind.Suffix()
}

func applyVisibility(el Element, value string) {
	if value == FalseValue {
		el.Hide()
		return
	}
	el.Show()
}

func applyIconToggle(el Element, value string) {
	if value == FalseValue {
		el.RemoveClass(ClassTrue)
		el.AddClass(ClassFalse)
		return
	}
	el.AddClass(ClassTrue)
	el.RemoveClass(ClassFalse)
}

func applyImageSource(el Element, value string) {
	if value == "" {
		return
	}
	el.SetImageSource(value)
}

// Apply applies doc to the elements reachable through f, entry by entry in
// document order. Keys with no matching elements are skipped. It returns the
// number of elements touched.
func Apply(f Finder, doc Document) int {
	if f == nil {
		return 0
	}

	touched := 0
	for _, e := range doc {
		for _, s := range slots {
			el, ok := f.FindByID(e.Key + s.suffix)
			if !ok || el == nil {
				continue
			}
			s.apply(el, e.Value)
			touched++
		}
	}
	return touched
}
