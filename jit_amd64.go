package vex

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// emitAMD64 hand-encodes the restricted DSL from spec.md §4.5 into raw
// amd64 machine code following the System V calling convention: the
// sole integer argument arrives in RDI, the result leaves in RAX. No
// library in the retrieval pack exercises a linkable native-code
// encoder (see DESIGN.md), so this is hand-written — matching spec.md's
// description of a deliberately restricted body DSL rather than a
// general-purpose compiler backend.
func emitAMD64(body SimpleBody) ([]byte, error) {
	movRaxRdi := []byte{0x48, 0x89, 0xf8} // mov rax, rdi
	ret := byte(0xc3)

	switch body.Kind {
	case ShapeIdentity:
		return append(append([]byte{}, movRaxRdi...), ret), nil
	case ShapeDouble:
		code := append([]byte{}, movRaxRdi...)
		code = append(code, 0x48, 0x01, 0xc0) // add rax, rax
		return append(code, ret), nil
	case ShapeSquare:
		code := append([]byte{}, movRaxRdi...)
		code = append(code, 0x48, 0x0f, 0xaf, 0xc7) // imul rax, rdi
		return append(code, ret), nil
	case ShapeIncrement:
		code := append([]byte{}, movRaxRdi...)
		code = append(code, 0x48, 0x83, 0xc0, 0x01) // add rax, 1
		return append(code, ret), nil
	case ShapeNegate:
		code := append([]byte{}, movRaxRdi...)
		code = append(code, 0x48, 0xf7, 0xd8) // neg rax
		return append(code, ret), nil
	case ShapeArith:
		return emitArith(body.Op, body.K)
	default:
		return nil, fmt.Errorf("unsupported shape %d", body.Kind)
	}
}

func emitArith(op string, k int64) ([]byte, error) {
	code := []byte{0x48, 0x89, 0xf8} // mov rax, rdi
	imm32 := make([]byte, 4)
	binary.LittleEndian.PutUint32(imm32, uint32(int32(k)))

	switch op {
	case "+":
		code = append(code, 0x48, 0x05) // add rax, imm32
		code = append(code, imm32...)
	case "-":
		code = append(code, 0x48, 0x2d) // sub rax, imm32
		code = append(code, imm32...)
	case "*":
		code = append(code, 0x48, 0x69, 0xc0) // imul rax, rax, imm32
		code = append(code, imm32...)
	case "/":
		if k == 0 {
			return nil, fmt.Errorf("division by constant zero")
		}
		imm64 := make([]byte, 8)
		binary.LittleEndian.PutUint64(imm64, uint64(k))
		code = append(code, 0x48, 0xb9) // mov rcx, imm64
		code = append(code, imm64...)
		code = append(code, 0x48, 0x99)       // cqo
		code = append(code, 0x48, 0xf7, 0xf9) // idiv rcx
	default:
		return nil, fmt.Errorf("unsupported arithmetic op %q", op)
	}
	return append(code, 0xc3), nil
}

// makeExecutable copies code into a fresh anonymous mmap page, marks it
// PROT_EXEC, and wraps it as a callable Go func value. Go's amd64
// register ABI passes the func value's first integer argument in RAX
// (and also returns in RAX), so the page starts with `mov rdi, rax` to
// hand the argument to the System V body where it expects it. This
// file is restricted to amd64 by its filename suffix.
func makeExecutable(code []byte) (*CompiledNative, error) {
	code = append([]byte{0x48, 0x89, 0xc7}, code...) // mov rdi, rax
	pageSize := unix.Getpagesize()
	size := ((len(code) + pageSize - 1) / pageSize) * pageSize
	if size == 0 {
		size = pageSize
	}

	page, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	copy(page, code)

	if err := unix.Mprotect(page, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(page)
		return nil, fmt.Errorf("mprotect: %w", err)
	}

	fnPtr := unsafe.Pointer(&page)
	native := &CompiledNative{
		page: page,
		fn:   *(*func(int64) int64)(unsafe.Pointer(&fnPtr)),
	}
	return native, nil
}
