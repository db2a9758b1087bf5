package typecast

// builtinTypeNames maps the stable, well-known OIDs of Postgres's built-in
// scalar and array types (pg_type.oid, unchanged across server versions)
// to the type name Cast dispatches on. Types outside this table are cast
// as a pass-through string, matching the "anything else passes through
// unchanged" default
// fallback.
var builtinTypeNames = map[uint32]string{
	16:   "bool",
	17:   "bytea",
	20:   "int8",
	21:   "int2",
	23:   "int4",
	26:   "oid",
	114:  "json",
	700:  "float4",
	701:  "float8",
	790:  "money",
	1082: "date",
	1083: "time",
	1114: "timestamp",
	1184: "timestamptz",
	1266: "timetz",
	1700: "numeric",
	2950: "uuid",
	3802: "jsonb",

	1000: "_bool",
	1001: "_bytea",
	1005: "_int2",
	1007: "_int4",
	1016: "_int8",
	1028: "_oid",
	199:  "_json",
	1021: "_float4",
	1022: "_float8",
	791:  "_money",
	1182: "_date",
	1183: "_time",
	1115: "_timestamp",
	1185: "_timestamptz",
	1270: "_timetz",
	1231: "_numeric",
	2951: "_uuid",
	3807: "_jsonb",
	1009: "_text",
	25:   "text",
}

// TypeNameForOID returns the type name a given column type OID casts as.
// The second return value is false for OIDs not in the built-in table
// (e.g. user-defined enums, domains) — callers should fall back to
// treating the column as opaque text.
func TypeNameForOID(oid uint32) (string, bool) {
	name, ok := builtinTypeNames[oid]
	return name, ok
}
