package planning

import (
	"github.com/google/uuid"
)

// GestureID identifies a gesture across master and every project.
type GestureID uuid.UUID

// ProjectID identifies a project branch.
type ProjectID uuid.UUID

// MachineID identifies an observer endpoint with its own preview cache.
type MachineID string

// NewGestureID allocates a process-wide unique gesture id.
func NewGestureID() GestureID {
	return GestureID(uuid.New())
}

func NewProjectID() ProjectID {
	return ProjectID(uuid.New())
}

func ParseProjectID(raw string) (ProjectID, error) {
	id, err := uuid.Parse(raw)
	return ProjectID(id), err
}

func (id GestureID) String() string {
	return uuid.UUID(id).String()
}

func (id ProjectID) String() string {
	return uuid.UUID(id).String()
}

func (id GestureID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *GestureID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(data)
}

func (id ProjectID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *ProjectID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(data)
}
