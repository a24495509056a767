package vm

// Chunk represents a sequence of bytecode instructions. Constants are not
// stored in the chunk; instructions reference ids in the shared ConstPool.
type Chunk struct {
	// Code is the bytecode instructions
	Code []byte

	// Lines maps bytecode offset to source line number (for errors)
	Lines []int

	// Columns maps bytecode offset to source column number (for errors)
	Columns []int

	// File is the source file name
	File string
}

// NewChunk creates a new empty chunk
func NewChunk() *Chunk {
	return &Chunk{
		Code:    make([]byte, 0, 256),
		Lines:   make([]int, 0, 256),
		Columns: make([]int, 0, 256),
	}
}

// Write adds a byte to the chunk with line info (column defaults to 0)
func (c *Chunk) Write(b byte, line int) {
	c.WriteWithCol(b, line, 0)
}

// WriteWithCol adds a byte to the chunk with line and column info
func (c *Chunk) WriteWithCol(b byte, line, col int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	c.Columns = append(c.Columns, col)
}

// WriteOp writes an opcode to the chunk
func (c *Chunk) WriteOp(op Opcode, line int) {
	c.Write(byte(op), line)
}

// WriteU16 writes a big-endian 16-bit operand
func (c *Chunk) WriteU16(v int, line int) {
	c.Write(byte(v>>8), line)
	c.Write(byte(v), line)
}

// WriteConstant writes OP_CONST followed by the pool id
func (c *Chunk) WriteConstant(id uint32, line int) {
	c.WriteOp(OP_CONST, line)
	// 2 bytes allow up to 65535 constants
	c.WriteU16(int(id), line)
}

// ReadU16 reads a 2-byte operand at offset
func (c *Chunk) ReadU16(offset int) int {
	return int(c.Code[offset])<<8 | int(c.Code[offset+1])
}

// Len returns the number of bytes in the chunk
func (c *Chunk) Len() int {
	return len(c.Code)
}
