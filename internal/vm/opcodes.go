// Package vm holds the bytecode side of the compiler: the shared constant
// pool, chunks, opcodes, code generation from analyzed modules and a
// disassembler.
package vm

// Opcode represents a single VM instruction
type Opcode byte

const (
	// Stack manipulation
	OP_CONST Opcode = iota // Push constant from pool (u16 id)
	OP_NIL
	OP_TRUE
	OP_FALSE
	OP_POP // Discard top of stack

	// Arithmetic
	OP_ADD // +
	OP_SUB // -
	OP_MUL // *
	OP_DIV // /
	OP_MOD // %
	OP_NEG // Unary minus

	// Comparison
	OP_EQ // ==
	OP_NE // !=
	OP_LT // <
	OP_LE // <=
	OP_GT // >
	OP_GE // >=

	// Logic
	OP_NOT // !
	OP_AND // and
	OP_OR  // or

	// Variables
	OP_GET_LOCAL  // Get local variable by slot (u8)
	OP_SET_LOCAL  // Set local variable by slot (u8)
	OP_GET_GLOBAL // Get module static by offset (u16)
	OP_SET_GLOBAL // Set module static by offset (u16)
	OP_GET_ATTR   // Get attribute, u16 constant id of the path
	OP_SET_ATTR   // Set attribute, u16 constant id of the path
	OP_GET_EXTERN // Get another module's static, u16 constant id of module.name
	OP_SET_EXTERN // Set another module's static, u16 constant id of module.name

	// Control flow
	OP_JUMP          // Unconditional jump (u16 forward)
	OP_JUMP_IF_FALSE // Pop; jump if the value was false (u16 forward)
	OP_LOOP          // Jump backward (u16)

	// Functions
	OP_CALL   // u16 constant id of callee name, u8 argc
	OP_RETURN // Return from function

	// Data structures
	OP_MAKE_LIST  // u8 count
	OP_MAKE_TUPLE // u8 count
	OP_MAKE_MAP   // u8 pair count
	OP_INDEX

	OP_HALT
)

var opNames = [...]string{
	OP_CONST:         "CONST",
	OP_NIL:           "NIL",
	OP_TRUE:          "TRUE",
	OP_FALSE:         "FALSE",
	OP_POP:           "POP",
	OP_ADD:           "ADD",
	OP_SUB:           "SUB",
	OP_MUL:           "MUL",
	OP_DIV:           "DIV",
	OP_MOD:           "MOD",
	OP_NEG:           "NEG",
	OP_EQ:            "EQ",
	OP_NE:            "NE",
	OP_LT:            "LT",
	OP_LE:            "LE",
	OP_GT:            "GT",
	OP_GE:            "GE",
	OP_NOT:           "NOT",
	OP_AND:           "AND",
	OP_OR:            "OR",
	OP_GET_LOCAL:     "GET_LOCAL",
	OP_SET_LOCAL:     "SET_LOCAL",
	OP_GET_GLOBAL:    "GET_GLOBAL",
	OP_SET_GLOBAL:    "SET_GLOBAL",
	OP_GET_ATTR:      "GET_ATTR",
	OP_SET_ATTR:      "SET_ATTR",
	OP_GET_EXTERN:    "GET_EXTERN",
	OP_SET_EXTERN:    "SET_EXTERN",
	OP_JUMP:          "JUMP",
	OP_JUMP_IF_FALSE: "JUMP_IF_FALSE",
	OP_LOOP:          "LOOP",
	OP_CALL:          "CALL",
	OP_RETURN:        "RETURN",
	OP_MAKE_LIST:     "MAKE_LIST",
	OP_MAKE_TUPLE:    "MAKE_TUPLE",
	OP_MAKE_MAP:      "MAKE_MAP",
	OP_INDEX:         "INDEX",
	OP_HALT:          "HALT",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "UNKNOWN"
}

var binaryOps = map[string]Opcode{
	"+":   OP_ADD,
	"-":   OP_SUB,
	"*":   OP_MUL,
	"/":   OP_DIV,
	"%":   OP_MOD,
	"==":  OP_EQ,
	"!=":  OP_NE,
	"<":   OP_LT,
	"<=":  OP_LE,
	">":   OP_GT,
	">=":  OP_GE,
	"and": OP_AND,
	"or":  OP_OR,
}

// BinaryOpcode maps a source operator to its opcode.
func BinaryOpcode(op string) (Opcode, bool) {
	o, ok := binaryOps[op]
	return o, ok
}
