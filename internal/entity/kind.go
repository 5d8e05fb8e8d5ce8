package entity

import "strings"

// Kind is the closed set of entity kinds the lock protocol understands.
type Kind uint8

const (
	// KindOther is any repository type outside the protocol.
	KindOther Kind = iota
	KindProject
	KindFolder
	KindFile
)

// ParseKind maps a repository type string to a Kind. Both short names
// ("folder") and fully qualified model names ("org.sagebionetworks.repo.model.Folder")
// are accepted, case-insensitively.
func ParseKind(raw string) Kind {
	name := raw
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	switch strings.ToLower(name) {
	case "project":
		return KindProject
	case "folder":
		return KindFolder
	case "file", "fileentity":
		return KindFile
	default:
		return KindOther
	}
}

// String returns the short type name used on the wire and in storage.
func (k Kind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "other"
	}
}

// Title returns the display name used in listings ("Project", "Folder", "File").
func (k Kind) Title() string {
	switch k {
	case KindProject:
		return "Project"
	case KindFolder:
		return "Folder"
	case KindFile:
		return "File"
	default:
		return "Entity"
	}
}

// Lockable reports whether entities of this kind can be checked out.
func (k Kind) Lockable() bool {
	return k == KindProject || k == KindFolder || k == KindFile
}

// Container reports whether entities of this kind can have children.
func (k Kind) Container() bool {
	return k == KindProject || k == KindFolder
}

// Indexed reports whether entities of this kind appear as index view rows.
// The project itself is never a row of its own view.
func (k Kind) Indexed() bool {
	return k == KindFolder || k == KindFile
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}
