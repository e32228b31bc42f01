package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders proto's code as one line per instruction, the
// operand annotated with what it addresses (constant, local slot, jump
// target) where that's knowable without running the VM. Grounded on the
// teacher's disassembler convention of a flat human-readable listing
// rather than a structured AST dump — meant for `clj compile` and
// debugging, not machine consumption.
func Disassemble(proto *FnProto) string {
	var sb strings.Builder
	disassembleOne(&sb, proto, "")
	return sb.String()
}

func disassembleOne(sb *strings.Builder, proto *FnProto, indent string) {
	label := proto.Name
	if label == "" {
		label = "fn"
	}
	fmt.Fprintf(sb, "%s%s(argc=%d variadic=%v locals=%d)\n", indent, label, proto.ParamCount, proto.Variadic, proto.LocalCount)
	for ip, instr := range proto.Code {
		fmt.Fprintf(sb, "%s  %4d  %-14s %s\n", indent, ip, instr.Op.String(), operandHint(proto, instr))
	}
	for _, child := range proto.Protos {
		disassembleOne(sb, child, indent+"  ")
	}
}

func operandHint(proto *FnProto, instr Instruction) string {
	switch instr.Op {
	case OpConstLoad:
		if int(instr.A) < len(proto.Constants) {
			return fmt.Sprintf("; %s", proto.Constants[instr.A].PrStr())
		}
	case OpVarLoad, OpTrap, OpDef, OpDefMacro, OpDefMulti, OpSetBang:
		if int(instr.A) < len(proto.Constants) {
			return fmt.Sprintf("; %s", proto.Constants[instr.A].PrStr())
		}
	case OpJump, OpJumpIfFalse:
		return fmt.Sprintf("; -> %d", int(int16(instr.A)))
	case OpJumpBack:
		return fmt.Sprintf("; <- %d", int(instr.A))
	case OpClosure:
		if int(instr.A) < len(proto.Protos) {
			return fmt.Sprintf("; %s", proto.Protos[instr.A].Name)
		}
	case OpLocalLoad, OpLocalStore, OpUpvalueLoad, OpUpvalueStore:
		return fmt.Sprintf("; slot %d", instr.A)
	}
	if instr.A != 0 {
		return fmt.Sprintf("%d", instr.A)
	}
	return ""
}
