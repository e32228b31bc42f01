// Package bytecode implements the Compiler (Node -> FnProto) and the
// stack-based VM of spec.md §3.6/§4.5/§4.6: the second of this core's
// two evaluators, compiled ahead of time instead of walked per call.
//
// Grounded on the teacher's internal/bytecode package: same
// single-package co-location of instruction set, compiler, and VM, same
// fixed-width instruction encoding idea (opcode + operand), same
// call-frame shape, same one-line-per-instruction disassembler. Opcode
// values are assigned within the fixed category ranges this spec
// prescribes rather than the teacher's own numbering, since the two
// instruction sets serve different languages.
package bytecode

// OpCode is one bytecode instruction. Values are grouped into fixed
// ranges so a disassembler or a future serializer can recover the
// category from the byte alone without a lookup table.
type OpCode byte

// Instruction is opcode + a single u16 operand, interpreted per-opcode
// (constant pool index, local slot, jump distance, arg count, ...).
type Instruction struct {
	Op OpCode
	A  uint16
}

const (
	// 0x00-0x0F: constants.

	// OpConstLoad pushes constants[A]. Stack: [] -> [v].
	OpConstLoad OpCode = 0x00
	// OpNil pushes nil. Stack: [] -> [nil].
	OpNil OpCode = 0x01
	// OpTrue pushes true. Stack: [] -> [true].
	OpTrue OpCode = 0x02
	// OpFalse pushes false. Stack: [] -> [false].
	OpFalse OpCode = 0x03

	// 0x10-0x1F: stack shuffling.

	// OpPop discards the top of stack. Stack: [v] -> [].
	OpPop OpCode = 0x10
	// OpDup duplicates the top of stack. Stack: [v] -> [v, v].
	OpDup OpCode = 0x12

	// 0x20-0x2F: locals.

	// OpLocalLoad pushes locals[A]. Stack: [] -> [v].
	OpLocalLoad OpCode = 0x20
	// OpLocalStore pops and stores into locals[A]. Stack: [v] -> [].
	OpLocalStore OpCode = 0x21

	// 0x30-0x3F: upvalues (closed-over locals copied at closure-creation time).

	// OpUpvalueLoad pushes the current frame's upvalue[A]. Stack: [] -> [v].
	OpUpvalueLoad OpCode = 0x30
	// OpUpvalueStore pops and stores into upvalue[A]. Stack: [v] -> [].
	OpUpvalueStore OpCode = 0x31

	// 0x40-0x4F: vars and the forms that touch them directly.

	// OpVarLoad dereferences constants[A] (a *ns.Var) through the
	// current dynamic-frame stack. Stack: [] -> [v].
	OpVarLoad OpCode = 0x40
	// OpSetBang pops a value, resolves constants[A] (a symbol name, not
	// a pre-baked *ns.Var — `set!` must re-resolve against whichever
	// namespace is current at the moment it runs, the same as
	// internal/treewalk's evalSetBang) and rebinds its top dynamic
	// frame. Errors if the var is not dynamic or has no active binding.
	// Stack: [v] -> [v].
	OpSetBang OpCode = 0x41
	// OpDef interns constants[A] (a symbol name) in the current
	// namespace and binds its root to the popped value.
	// Stack: [init] -> [var_ref].
	OpDef OpCode = 0x42
	// OpDefMacro is OpDef plus marking the var as a macro.
	OpDefMacro OpCode = 0x43
	// OpDefMulti creates a multi_fn named constants[A] with the popped
	// dispatch fn. Stack: [dispatch_fn] -> [multi_fn].
	OpDefMulti OpCode = 0x44
	// OpDefMethod registers (dispatch_val -> fn) on the multi_fn named
	// constants[A]. Stack: [dispatch_val, fn] -> [fn].
	OpDefMethod OpCode = 0x45
	// OpLazySeq wraps the popped zero-arg fn as a lazy_seq Value.
	// Stack: [thunk_fn] -> [lazy_seq].
	OpLazySeq OpCode = 0x46
	// OpTrap raises a source-stamped error for a node the compiler
	// recognized but the VM does not implement (spec.md §4.5
	// "invalid-node emission"). constants[A] holds the error message.
	OpTrap OpCode = 0x4F

	// 0x50-0x5F: control flow.

	// OpJump adds signed(A) to ip.
	OpJump OpCode = 0x50
	// OpJumpIfFalse pops; if falsy, adds signed(A) to ip.
	// Stack: [test] -> [].
	OpJumpIfFalse OpCode = 0x51
	// OpJumpBack subtracts unsigned(A) from ip (loop back-edges; GC
	// safe points are checked here per spec.md §4.1 step 2).
	OpJumpBack OpCode = 0x52

	// 0x60-0x6F: function call/return/closure creation.

	// OpCall pops A args then the callee, dispatches by Value variant
	// (spec.md §4.10), and pushes the result.
	OpCall OpCode = 0x60
	// OpTailCall is OpCall in tail position. The VM executes it exactly
	// like OpCall: the current frame is not reused, so the call-frame
	// stack grows as for any call. The compiler does not emit it.
	OpTailCall OpCode = 0x61
	// OpRet pops the return value, pops the current frame, restores
	// the caller's ip/locals/ns, pushes the return value.
	OpRet OpCode = 0x62
	// OpClosure builds a closure from the FnProto template at protos[A]:
	// for each of that proto's Captures, copies one Value out of the
	// current frame (its locals, or its own upvalues if the capture is
	// FromUpvalue) into a fresh upvalue array, then pushes the new `fn`
	// Value bound to the proto's defining namespace. Stack: [] -> [fn].
	OpClosure OpCode = 0x63

	// recur has no opcode of its own: the compiler emits the plain
	// local_store/jump_back sequence a hand-unrolled loop would use.

	// 0x80-0x8F: collection literals.

	// OpListNew pops A elements (in reverse) into a new list.
	OpListNew OpCode = 0x80
	// OpVectorNew pops A elements into a new vector.
	OpVectorNew OpCode = 0x81
	// OpMapNew pops 2*A elements (key, val pairs) into a new map.
	OpMapNew OpCode = 0x82
	// OpSetNew pops A elements into a new set.
	OpSetNew OpCode = 0x83

	// 0xA0-0xAF: exception handling.

	// OpTryBegin pushes the handler region TryRegions[A] (its catch
	// specs and finally offset) plus the current operand-stack depth
	// onto the frame's try stack.
	OpTryBegin OpCode = 0xA0
	// OpTryEnd pops the top try handler (normal exit from its body).
	OpTryEnd OpCode = 0xA1
	// OpThrow pops a value and raises it as a user exception.
	// Stack: [v] -> [] (never falls through normally).
	OpThrow OpCode = 0xA2
	// OpFinallyEnd marks the end of a compiled `finally` block. Reached
	// by falling off the normal post-try merge point it is a no-op; the
	// VM's unwind path additionally uses it as the stop condition when
	// running a finally block inline during an unmatched-exception
	// unwind (it must not run whatever code follows the try in that
	// case, only the finally body itself).
	OpFinallyEnd OpCode = 0xA3

	// 0xB0-0xBF: arithmetic and comparison fast paths.

	OpAdd OpCode = 0xB0
	OpSub OpCode = 0xB1
	OpMul OpCode = 0xB2
	OpDiv OpCode = 0xB3
	OpMod OpCode = 0xB4
	OpRem OpCode = 0xB5
	OpLt  OpCode = 0xB6
	OpLe  OpCode = 0xB7
	OpGt  OpCode = 0xB8
	OpGe  OpCode = 0xB9
	OpEq  OpCode = 0xBA
	OpNeq OpCode = 0xBB
)

// opNames backs the disassembler.
var opNames = map[OpCode]string{
	OpConstLoad: "const_load", OpNil: "nil", OpTrue: "true", OpFalse: "false",
	OpPop: "pop", OpDup: "dup",
	OpLocalLoad: "local_load", OpLocalStore: "local_store",
	OpUpvalueLoad: "upvalue_load", OpUpvalueStore: "upvalue_store",
	OpVarLoad: "var_load", OpSetBang: "set_bang",
	OpDef: "def", OpDefMacro: "def_macro", OpDefMulti: "defmulti",
	OpDefMethod: "defmethod", OpLazySeq: "lazy_seq", OpTrap: "trap",
	OpJump: "jump", OpJumpIfFalse: "jump_if_false", OpJumpBack: "jump_back",
	OpCall: "call", OpTailCall: "tail_call", OpRet: "ret", OpClosure: "closure",
	OpListNew: "list_new", OpVectorNew: "vector_new", OpMapNew: "map_new", OpSetNew: "set_new",
	OpTryBegin: "try_begin", OpTryEnd: "try_end", OpThrow: "throw", OpFinallyEnd: "finally_end",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod", OpRem: "rem",
	OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge", OpEq: "eq", OpNeq: "neq",
}

func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "unknown"
}
