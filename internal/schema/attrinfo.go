package schema

import (
	"fmt"
	"strings"
)

// AttrKind classifies a successfully resolved attribute path.
type AttrKind int

const (
	AttrInvalid    AttrKind = iota
	AttrField               // declared field
	AttrUserField           // undeclared field in a section that admits user fields
	AttrObjectType          // path stops at a multi-instance section name
	AttrSingleton           // path stops at a singleton section
	AttrInstance            // path stops at a named instance of a section
)

func (k AttrKind) String() string {
	switch k {
	case AttrField:
		return "field"
	case AttrUserField:
		return "user-defined-field"
	case AttrObjectType:
		return "object-type"
	case AttrSingleton:
		return "singleton"
	case AttrInstance:
		return "instance"
	}
	return "invalid"
}

// AttrErr is the failure reason of GetAttrInfo. AttrOK means success.
type AttrErr int

const (
	AttrOK               AttrErr = iota
	ErrSectionUnderField         // path continues below a field
	ErrFieldNotAllowed           // unknown field in a section without user fields
	ErrNoSuchSection             // unknown section with segments remaining
	ErrSectionNotAllowed         // known section not admitted by its parent
)

func (e AttrErr) String() string {
	switch e {
	case AttrOK:
		return "ok"
	case ErrSectionUnderField:
		return "section-under-field"
	case ErrFieldNotAllowed:
		return "field-not-allowed"
	case ErrNoSuchSection:
		return "no-such-section"
	case ErrSectionNotAllowed:
		return "section-not-allowed"
	}
	return "unknown"
}

// AttrInfo is the result of resolving a dotted attribute path.
type AttrInfo struct {
	Kind     AttrKind
	Err      AttrErr
	Field    *Field   // AttrField
	Section  *Section // innermost section reached
	Instance string   // AttrInstance, or the instance owning a field
	Segment  int      // index of the offending segment when Err != AttrOK
	Path     []string
}

// OK reports whether the path resolved.
func (i AttrInfo) OK() bool { return i.Err == AttrOK }

// Message renders a human readable explanation for a failed lookup.
func (i AttrInfo) Message() string {
	full := strings.Join(i.Path, ".")
	seg := ""
	if i.Segment >= 0 && i.Segment < len(i.Path) {
		seg = i.Path[i.Segment]
	}
	parent := "the top level"
	if i.Section != nil && i.Section.Name != "" {
		parent = fmt.Sprintf("section %q", i.Section.Name)
	}
	switch i.Err {
	case ErrSectionUnderField:
		field := seg
		if i.Segment >= 1 && i.Segment <= len(i.Path) {
			field = i.Path[i.Segment-1]
		}
		return fmt.Sprintf("%s: %q is a field, a section was expected below it", full, field)
	case ErrFieldNotAllowed:
		return fmt.Sprintf("%s: field %q is not allowed in %s", full, seg, parent)
	case ErrNoSuchSection:
		return fmt.Sprintf("%s: no such section %q", full, seg)
	case ErrSectionNotAllowed:
		return fmt.Sprintf("%s: section %q is not allowed in %s", full, seg, parent)
	}
	return full
}

// GetAttrInfo walks path through the section tree of s.
//
// At every segment a field of the current section wins; a field must be
// the last segment. Otherwise the segment names a child section, which the
// current section must admit. A singleton section is its own instance, so
// the following segment selects inside it; other sections consume the next
// segment as the instance name.
func GetAttrInfo(s *Schema, path []string) AttrInfo {
	cur := s.Root
	info := AttrInfo{Path: path, Segment: -1, Section: cur}
	instance := ""

	for i := 0; i < len(path); i++ {
		seg := path[i]
		last := i == len(path)-1

		if f, ok := cur.Fields[seg]; ok {
			if !last {
				info.Err, info.Segment = ErrSectionUnderField, i+1
				return info
			}
			info.Kind, info.Field, info.Instance = AttrField, f, instance
			return info
		}

		child, known := s.Sections[seg]
		if !known {
			if last {
				if cur.AllowUserFields {
					info.Kind, info.Instance = AttrUserField, instance
					return info
				}
				info.Err, info.Segment = ErrFieldNotAllowed, i
				return info
			}
			info.Err, info.Segment = ErrNoSuchSection, i
			return info
		}
		if !cur.Admits(seg) {
			info.Err, info.Segment = ErrSectionNotAllowed, i
			return info
		}

		cur = child
		info.Section = child
		if child.Singleton {
			instance = seg
			if last {
				info.Kind, info.Instance = AttrSingleton, instance
				return info
			}
			continue
		}
		if last {
			info.Kind = AttrObjectType
			return info
		}
		i++
		instance = path[i]
		if i == len(path)-1 {
			info.Kind, info.Instance = AttrInstance, instance
			return info
		}
	}

	// empty path: the root itself
	info.Kind, info.Instance = AttrSingleton, ""
	return info
}
