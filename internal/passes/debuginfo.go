// Package passes holds structural processors that run in the first pipeline
// phase, before any name is decided.
package passes

import (
	"fmt"

	"github.com/cmmoran/jvmobf/internal/classfile"
	"github.com/cmmoran/jvmobf/internal/pipeline"
)

var (
	classDebug = []string{classfile.AttrSourceFile, classfile.AttrSourceDebugExtension}
	codeDebug  = []string{classfile.AttrLineNumberTable, classfile.AttrLocalVariableTable, classfile.AttrLocalVariableTypeTable}
)

// StripDebugInfo drops source file names, line numbers and local variable
// tables. Stack traces lose line numbers; behavior is unchanged.
func StripDebugInfo() pipeline.Processor {
	return pipeline.ProcessorFunc{ID: "strip-debug-info", Fn: stripDebugInfo}
}

func stripDebugInfo(cls *classfile.Class, _ pipeline.Callback) error {
	cls.Attributes = cls.RemoveAttributes(cls.Attributes, classDebug...)
	for _, m := range cls.Methods {
		code := cls.Attribute(m.Attributes, classfile.AttrCode)
		if code == nil {
			continue
		}
		decoded, err := classfile.DecodeCode(code.Data)
		if err != nil {
			return fmt.Errorf("%s.%s%s: %w", cls.Name(), m.Name(cls.Pool), m.Descriptor(cls.Pool), err)
		}
		n := len(decoded.Attributes)
		decoded.Attributes = cls.RemoveAttributes(decoded.Attributes, codeDebug...)
		if len(decoded.Attributes) != n {
			code.Data = decoded.Encode()
		}
	}
	return nil
}
