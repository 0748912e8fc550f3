/*
   Copyright 2021 Joseph Cumines

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package forester

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xlab/treeprint"
)

// Printer models something capable of rendering an RTree for humans -
// debugging a compiled tree's shape without having run it yet.
type Printer interface {
	// Fprint writes a representation of tree to output.
	Fprint(output io.Writer, tree *RTree) error
}

// TreePrinter is the generalised Printer implementation used by
// DefaultPrinter; Inspector configures the single line of text shown for
// each node.
type TreePrinter struct {
	Inspector func(tree *RTree, id RNodeId, node RNode) string
}

// DefaultPrinter renders an RTree as an indented ASCII tree via
// github.com/xlab/treeprint, one line per node naming its id and a short
// description of its kind.
var DefaultPrinter Printer = TreePrinter{Inspector: DefaultPrinterInspector}

// DefaultPrinterInspector is used by DefaultPrinter.
func DefaultPrinterInspector(tree *RTree, id RNodeId, node RNode) string {
	switch node.Kind {
	case KindFlow:
		return fmt.Sprintf("#%d %s", id, node.FlowType)
	case KindLeaf:
		return fmt.Sprintf("#%d %s(%s)", id, node.LeafKind, node.Name)
	case KindDecorator:
		return fmt.Sprintf("#%d %s", id, node.DecoratorKind)
	default:
		return fmt.Sprintf("#%d ?", id)
	}
}

// String renders tree using DefaultPrinter, swallowing any error into
// the returned string (for use in %s/%v formatting and tests).
func String(tree *RTree) string {
	var b bytes.Buffer
	if err := DefaultPrinter.Fprint(&b, tree); err != nil {
		return fmt.Sprintf("forester.DefaultPrinter error: %s", err)
	}
	return b.String()
}

// Fprint implements Printer.
func (p TreePrinter) Fprint(output io.Writer, tree *RTree) error {
	if tree == nil {
		_, err := io.WriteString(output, "<nil>")
		return err
	}
	root := treeprint.New()
	node, ok := tree.Get(tree.RootId)
	if !ok {
		_, err := io.WriteString(output, "<empty>")
		return err
	}
	root.SetValue(p.Inspector(tree, tree.RootId, node))
	p.build(tree, root, tree.RootId, node)
	_, err := output.Write(root.Bytes())
	return err
}

func (p TreePrinter) build(tree *RTree, branch treeprint.Tree, id RNodeId, node RNode) {
	switch node.Kind {
	case KindFlow:
		for _, childId := range node.Children {
			child, ok := tree.Get(childId)
			if !ok {
				branch.AddNode(fmt.Sprintf("#%d <missing>", childId))
				continue
			}
			childBranch := branch.AddBranch(p.Inspector(tree, childId, child))
			p.build(tree, childBranch, childId, child)
		}
	case KindDecorator:
		child, ok := tree.Get(node.Child)
		if !ok {
			branch.AddNode(fmt.Sprintf("#%d <missing>", node.Child))
			return
		}
		childBranch := branch.AddBranch(p.Inspector(tree, node.Child, child))
		p.build(tree, childBranch, node.Child, child)
	}
}
