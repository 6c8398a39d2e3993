// Package xtbl reads the game's .xtbl data tables. An xtbl is an XML
// document whose <Table> element lists entries, optionally followed by a
// <TableDescription> that types each field.
package xtbl

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

var ErrFormat = errors.New("xtbl: malformed table")

const Extension = ".xtbl"

type Type uint8

const (
	TypeNone Type = iota
	TypeElement
	TypeString
	TypeInt
	TypeFloat
	TypeVector
	TypeColor
	TypeSelection
	TypeFlags
	TypeList
	TypeFilename
	TypeComboElement
	TypeReference
	TypeGrid
	TypeTableDescription
	TypeFlag
	TypeUnsupported
)

var typeNames = []string{
	TypeNone:             "None",
	TypeElement:          "Element",
	TypeString:           "String",
	TypeInt:              "Int",
	TypeFloat:            "Float",
	TypeVector:           "Vector",
	TypeColor:            "Color",
	TypeSelection:        "Selection",
	TypeFlags:            "Flags",
	TypeList:             "List",
	TypeFilename:         "Filename",
	TypeComboElement:     "ComboElement",
	TypeReference:        "Reference",
	TypeGrid:             "Grid",
	TypeTableDescription: "TableDescription",
	TypeFlag:             "Flag",
	TypeUnsupported:      "Unsupported",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", t)
}

// ParseType maps a description's <Type> to a Type. Anything unknown is
// TypeUnsupported.
func ParseType(value string) Type {
	for i, name := range typeNames {
		if i == int(TypeNone) || i == int(TypeUnsupported) {
			continue
		}
		if name == value {
			return Type(i)
		}
	}
	return TypeUnsupported
}

// Node is one XML element. Leaf elements carry their text in Value.
type Node struct {
	Name     string
	Value    string
	Children []*Node
}

// Child returns the first child element with the given name.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, child := range n.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// Find follows a path of element names separated by slashes, such as
// "_Editor/Category".
func (n *Node) Find(path string) *Node {
	node := n
	for _, name := range strings.Split(path, "/") {
		node = node.Child(name)
		if node == nil {
			return nil
		}
	}
	return node
}

// Text returns the value at path, or "" when there is none.
func (n *Node) Text(path string) string {
	node := n.Find(path)
	if node == nil {
		return ""
	}
	return node.Value
}

// Walk calls fn for every leaf below n with its slash separated path.
func (n *Node) Walk(fn func(path string, leaf *Node)) {
	var walk func(prefix string, node *Node)
	walk = func(prefix string, node *Node) {
		for _, child := range node.Children {
			path := child.Name
			if prefix != "" {
				path = prefix + "/" + child.Name
			}

			if len(child.Children) == 0 {
				fn(path, child)
				continue
			}
			walk(path, child)
		}
	}
	walk("", n)
}

// Description types one field of an entry.
type Description struct {
	Name        string
	Type        Type
	Display     string
	Description string
	Default     string
	Children    []*Description
}

func parseDescription(node *Node) *Description {
	description := &Description{
		Name:        node.Text("Name"),
		Type:        ParseType(node.Text("Type")),
		Display:     node.Text("Display"),
		Description: node.Text("Description"),
		Default:     node.Text("Default"),
	}

	for _, child := range node.Children {
		if child.Name != "Element" {
			continue
		}
		description.Children = append(description.Children, parseDescription(child))
	}

	return description
}

// Field returns the description of a top-level field.
func (d *Description) Field(name string) *Description {
	if d == nil {
		return nil
	}
	for _, child := range d.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

type File struct {
	// The archive the table was read from
	VppName string
	Name    string

	Root        *Node
	Entries     []*Node
	Description *Description
}

// Entry returns the first entry whose <Name> is name.
func (f *File) Entry(name string) *Node {
	for _, entry := range f.Entries {
		if entry.Text("Name") == name {
			return entry
		}
	}
	return nil
}

// Category is the editor category of an entry, or "" when it has none.
func Category(entry *Node) string {
	return entry.Text("_Editor/Category")
}

// Categories lists the distinct entry categories in sorted order.
func (f *File) Categories() []string {
	seen := make(map[string]struct{})
	for _, entry := range f.Entries {
		if category := Category(entry); category != "" {
			seen[category] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for category := range seen {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

func readTree(data []byte) (*Node, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	// Some tables declare encodings other than UTF-8 but only use ASCII
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var root *Node
	var stack []*Node
	var text strings.Builder

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch token := token.(type) {
		case xml.StartElement:
			node := &Node{Name: token.Name.Local}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			} else if root == nil {
				root = node
			} else {
				return nil, fmt.Errorf("more than one root element")
			}
			stack = append(stack, node)
			text.Reset()
		case xml.CharData:
			text.Write(token)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected </%s>", token.Name.Local)
			}
			node := stack[len(stack)-1]
			if len(node.Children) == 0 {
				node.Value = strings.TrimSpace(text.String())
			}
			stack = stack[:len(stack)-1]
			text.Reset()
		}
	}

	if root == nil {
		return nil, fmt.Errorf("no root element")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("<%s> is not closed", stack[len(stack)-1].Name)
	}

	return root, nil
}

// Parse decodes an xtbl read from the archive vppName.
func Parse(vppName, name string, data []byte) (*File, error) {
	root, err := readTree(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFormat, name, err)
	}

	table := root.Child("Table")
	if table == nil {
		return nil, fmt.Errorf("%w: %s: no <Table>", ErrFormat, name)
	}

	file := &File{
		VppName: vppName,
		Name:    name,
		Root:    root,
		Entries: table.Children,
	}

	if description := root.Child("TableDescription"); description != nil {
		file.Description = parseDescription(description)
	}

	return file, nil
}

func sortFiles(files []*File) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
}
