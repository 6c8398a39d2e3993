package zones

// GenerateObjectHierarchy links every object to its parent by handle and
// fills in each object's children. An object whose parent is missing, is
// itself, or would close a loop is left at the top level.
func (z *Zone) GenerateObjectHierarchy() {
	byHandle := make(map[uint32]int, len(z.Objects))
	for i := range z.Objects {
		if _, ok := byHandle[z.Objects[i].Handle]; !ok {
			byHandle[z.Objects[i].Handle] = i
		}
	}

	for i := range z.Objects {
		z.Objects[i].ParentIndex = -1
		z.Objects[i].Children = nil
	}

	for i := range z.Objects {
		object := &z.Objects[i]
		if object.Parent == NoHandle {
			continue
		}

		parent, ok := byHandle[object.Parent]
		if !ok || parent == i || z.isAncestor(i, parent) {
			continue
		}

		object.ParentIndex = parent
	}

	for i := range z.Objects {
		parent := z.Objects[i].ParentIndex
		if parent == -1 {
			continue
		}
		z.Objects[parent].Children = append(z.Objects[parent].Children, i)
	}
}

// isAncestor reports whether candidate is an ancestor of index, or index
// itself, following the links assigned so far.
func (z *Zone) isAncestor(candidate, index int) bool {
	for steps := 0; index != -1 && steps <= len(z.Objects); steps++ {
		if index == candidate {
			return true
		}
		index = z.Objects[index].ParentIndex
	}
	return false
}

// Roots returns the indices of objects with no parent.
func (z *Zone) Roots() []int {
	var roots []int
	for i := range z.Objects {
		if z.Objects[i].ParentIndex == -1 {
			roots = append(roots, i)
		}
	}
	return roots
}
