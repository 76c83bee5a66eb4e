package models

import (
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// MainPanelID is the panel every room must register.
const MainPanelID = "main"

var sqlIdentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsSQLIdentifier reports whether s can be used unquoted as a table name.
func IsSQLIdentifier(s string) bool {
	return sqlIdentPattern.MatchString(s)
}

var roomValidator = newRoomValidator()

func newRoomValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return IsSQLIdentifier(fl.Field().String())
	})
	return v
}

// DataSource is a named table backed by a CSV at a URL or file path.
type DataSource struct {
	TableName string `json:"tableName" validate:"required,sqlident"`
	Type      string `json:"type" validate:"required,oneof=url file"`
	URL       string `json:"url" validate:"required"`
}

// Panel is a named UI region registered in the room.
type Panel struct {
	Title     string `json:"title" validate:"required"`
	Icon      string `json:"icon,omitempty"`
	Component string `json:"component" validate:"required"`
	Placement string `json:"placement" validate:"required,oneof=main left right"`
}

// RoomConfig describes the room's data sources and panel layout.
// It is built once at startup and not mutated afterwards.
type RoomConfig struct {
	Title       string           `json:"title" validate:"required"`
	DataSources []DataSource     `json:"dataSources" validate:"required,min=1,unique=TableName,dive"`
	Panels      map[string]Panel `json:"panels" validate:"required,dive"`
}

// Validate checks the schema rules and that the main panel is registered.
func (c *RoomConfig) Validate() error {
	if err := roomValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid room config: %w", err)
	}
	if _, ok := c.Panels[MainPanelID]; !ok {
		return fmt.Errorf("invalid room config: panel %q is required", MainPanelID)
	}
	return nil
}

// TableNames returns the registered table names in declaration order.
func (c *RoomConfig) TableNames() []string {
	names := make([]string, 0, len(c.DataSources))
	for _, ds := range c.DataSources {
		names = append(names, ds.TableName)
	}
	return names
}

// SourceStatus is the load state of one data source.
type SourceStatus struct {
	TableName string      `json:"tableName"`
	Status    QueryStatus `json:"status"`
	Rows      int64       `json:"rows"`
	Error     string      `json:"error,omitempty"`
	LoadedAt  *time.Time  `json:"loadedAt,omitempty"`
}
