package hierarchy

import (
	"fmt"

	"github.com/cmmoran/jvmobf/internal/classfile"
	"github.com/cmmoran/jvmobf/internal/pipeline"
	"github.com/cmmoran/jvmobf/internal/registry"
)

// Processor builds the node of every class it sees. It must run before any
// pass that renames classes, since nodes are looked up by original name.
func (c *Cache) Processor() pipeline.Processor {
	return pipeline.ProcessorFunc{
		ID: "hierarchy",
		Fn: func(cls *classfile.Class, _ pipeline.Callback) error {
			ref := registry.ClassReference(cls.Name())
			d, ok := c.reg.Get(ref)
			if !ok {
				return fmt.Errorf("class %s not registered", ref)
			}
			_, err := c.Build(d)
			return err
		},
	}
}
