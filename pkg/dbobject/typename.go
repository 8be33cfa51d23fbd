package dbobject

import "strings"

// typeAliases maps PostgreSQL's internal and shorthand spellings to the
// names format_type() reports.
var typeAliases = map[string]string{
	"int":         "integer",
	"int4":        "integer",
	"int8":        "bigint",
	"int2":        "smallint",
	"float4":      "real",
	"float8":      "double precision",
	"bool":        "boolean",
	"varchar":     "character varying",
	"char":        "character",
	"bpchar":      "character",
	"decimal":     "numeric",
	"timestamptz": "timestamp with time zone",
	"timestamp":   "timestamp without time zone",
	"timetz":      "time with time zone",
	"time":        "time without time zone",
	"varbit":      "bit varying",
}

// builtinTypes are the pg_catalog types a domain may use without the type
// being declared anywhere.
var builtinTypes = map[string]bool{
	"bigint": true, "bit": true, "bit varying": true, "boolean": true,
	"box": true, "bytea": true, "character": true, "character varying": true,
	"cidr": true, "circle": true, "date": true, "double precision": true,
	"inet": true, "integer": true, "interval": true, "json": true,
	"jsonb": true, "line": true, "lseg": true, "macaddr": true,
	"macaddr8": true, "money": true, "name": true, "numeric": true,
	"oid": true, "path": true, "point": true, "polygon": true, "real": true,
	"smallint": true, "text": true, "time with time zone": true,
	"time without time zone": true, "timestamp with time zone": true,
	"timestamp without time zone": true, "tsquery": true, "tsvector": true,
	"uuid": true, "xml": true, "int4range": true, "int8range": true,
	"numrange": true, "tsrange": true, "tstzrange": true, "daterange": true,
}

// IsBuiltinType reports whether name (after normalization) is a built-in type.
func IsBuiltinType(name string) bool {
	return builtinTypes[baseTypeKey(name)]
}

// normalizeTypeName lowercases unquoted names, collapses whitespace and maps
// aliases, keeping array suffixes and type modifiers.
func normalizeTypeName(name string) string {
	s := strings.Join(strings.Fields(name), " ")
	if strings.Contains(s, `"`) {
		return s
	}
	s = strings.ToLower(s)

	suffix := ""
	for strings.HasSuffix(s, "[]") {
		suffix += "[]"
		s = strings.TrimSpace(strings.TrimSuffix(s, "[]"))
	}
	mods := ""
	// modifiers may sit inside a multi-word name: "timestamp(3) with time zone"
	if i := strings.IndexByte(s, '('); i >= 0 {
		if j := strings.IndexByte(s[i:], ')'); j >= 0 {
			mods = strings.ReplaceAll(s[i:i+j+1], " ", "")
			s = strings.Join(strings.Fields(s[:i]+" "+s[i+j+1:]), " ")
		}
	}
	s = strings.TrimPrefix(s, "pg_catalog.")
	if alias, ok := typeAliases[s]; ok {
		s = alias
	}
	return s + mods + suffix
}

// baseTypeKey strips array suffixes and type modifiers, leaving the name
// that linking resolves.
func baseTypeKey(name string) string {
	s := normalizeTypeName(name)
	for strings.HasSuffix(s, "[]") {
		s = strings.TrimSuffix(s, "[]")
	}
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}
