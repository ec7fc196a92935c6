package cell

type idxItem struct {
	index uint64
	cell  *Cell
}

// flattenIndex deduplicates cells by hash and orders them so that every
// parent goes before its children, roots keep their relative order.
func flattenIndex(roots []*Cell) ([]*idxItem, map[string]*idxItem) {
	index := map[string]*idxItem{}
	order := make([]*idxItem, 0, len(roots))

	var visit func(c *Cell)
	visit = func(c *Cell) {
		key := c.HashKey()
		if _, ok := index[key]; ok {
			return
		}

		item := &idxItem{cell: c}
		index[key] = item

		// backwards, so after reversal refs keep their order
		for i := len(c.refs) - 1; i >= 0; i-- {
			visit(c.refs[i])
		}
		order = append(order, item)
	}

	// reversed post-order is topological, walk roots backwards
	// so the first root ends up in front
	for i := len(roots) - 1; i >= 0; i-- {
		visit(roots[i])
	}

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}

	for i, item := range order {
		item.index = uint64(i)
	}

	return order, index
}
