package schemaref

import (
	"reflect"
	"strings"
)

// StructKey applies the repository-wide rule for resolving a struct field's
// external wire key, used as the field alias during validation and dumping.
// Priority: schemafield:"name=..." > json tag name > field name; "-"
// disables the field.
func StructKey(sf reflect.StructField) string {
	if gt := sf.Tag.Get("schemafield"); gt != "" {
		for _, p := range strings.Split(gt, ",") {
			p = strings.TrimSpace(p)
			if strings.HasPrefix(p, "name=") {
				return strings.TrimPrefix(p, "name=")
			}
		}
	}
	if jt := sf.Tag.Get("json"); jt != "" {
		if jt == "-" {
			return "-"
		}
		if i := strings.IndexByte(jt, ','); i >= 0 {
			return jt[:i]
		}
		return jt
	}
	return sf.Name
}
