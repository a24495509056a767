package config

const SourceFileExt = ".tree.yaml"

// SourceFileExtensions are all recognized parse tree file extensions
var SourceFileExtensions = []string{".tree.yaml", ".tree.yml"}

// DefaultProjectFile is looked up in the working directory when -config
// is not given.
const DefaultProjectFile = "c4c.yaml"

// NoConstant is the reserved constant pool id meaning "no constant".
const NoConstant uint32 = 0

// Module names
const (
	GlobalScopeName = "<global>"
	AttrScopeName   = "<attributes>"
	ModuleSeparator = "."
)

// Built-in function names
const (
	PrintFuncName  = "print"
	LenFuncName    = "len"
	StrFuncName    = "str"
	IntFuncName    = "int"
	FloatFuncName  = "float"
	AppendFuncName = "append"
	KeysFuncName   = "keys"
	AbortFuncName  = "abort"
)
