package ir

// Per-file declaration records emitted by the parser collaborator. Keys and
// vids are file-local identifiers; the linker maps them into the global
// namespace.

// FieldDecl is one struct field: a name and a file-local type index.
type FieldDecl struct {
	Name   string `json:"name"`
	TypeIx int    `json:"type_ix"`
}

// CompDecl is a struct or union definition in one file.
type CompDecl struct {
	Key    int         `json:"key"` // file-local compinfo key
	Name   string      `json:"name"`
	Struct bool        `json:"struct"`
	Fields []FieldDecl `json:"fields"`
}

// VarDecl is a global variable or function declaration in one file.
type VarDecl struct {
	VID     int    `json:"vid"` // file-local variable id
	Name    string `json:"name"`
	Storage string `json:"storage"` // "s" static, "n" none, "e" extern
	TypeIx  int    `json:"type_ix"`
}
