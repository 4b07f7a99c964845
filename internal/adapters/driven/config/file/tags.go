package file

import (
	"reflect"
	"strings"
)

// tomlName reports fields by their TOML key in validation errors.
func tomlName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
